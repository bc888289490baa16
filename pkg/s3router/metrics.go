package s3router

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stefando/s3router/pkg/signer"
)

// signMetrics counts signer calls. A nil *signMetrics records nothing.
type signMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newSignMetrics(reg prometheus.Registerer) (*signMetrics, error) {
	if reg == nil {
		return nil, nil
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3router",
		Subsystem: "sign",
		Name:      "requests_total",
		Help:      "Total number of URL signing attempts, partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "s3router",
		Subsystem: "sign",
		Name:      "duration_seconds",
		Help:      "Histogram of signer call latencies.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	var err error
	if requests, err = registerOrReuse(reg, requests); err != nil {
		return nil, err
	}
	if latency, err = registerOrReuse(reg, latency); err != nil {
		return nil, err
	}

	return &signMetrics{requests: requests, latency: latency}, nil
}

// registerOrReuse registers c, returning the already registered collector
// when several routers share one registry.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *signMetrics) observe(op signer.Operation, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(string(op), outcome).Inc()
	m.latency.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}
