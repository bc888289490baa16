package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/s3/uploads/*", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://example.com", http.StatusFound)
	})
	r.Get("/s3/sign", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	})

	for _, path := range []string{"/s3/uploads/a.png", "/s3/uploads/b.png", "/s3/sign", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/s3/uploads/*", "302", "GET")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/s3/sign", "400", "GET")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "404", "GET")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
}

func TestHandler(t *testing.T) {
	m := New()
	m.requests.WithLabelValues("/s3/sign", "200", "GET").Inc()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "s3router_http_requests_total")
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
