// Package server assembles the HTTP handler shared by the standalone server
// and the Lambda entry point.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/stefando/s3router/internal/auth"
	"github.com/stefando/s3router/internal/config"
	"github.com/stefando/s3router/internal/metrics"
	"github.com/stefando/s3router/internal/tracing"
	"github.com/stefando/s3router/pkg/s3router"
)

// Options carries the runtime dependencies that do not come from config.
type Options struct {
	Logger      *zap.Logger
	ReportError func(ctx context.Context, err error)

	// Verifier overrides the OIDC verifier built from cfg.Auth.
	Verifier auth.TokenVerifier
}

// Server is the assembled application.
type Server struct {
	Handler http.Handler
	Router  *s3router.Router
	Metrics *metrics.Metrics
}

// New builds the signer, the upload router and the surrounding middleware.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sgn, err := cfg.NewSigner(ctx)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	routerCfg := cfg.RouterConfig()
	routerCfg.Signer = sgn
	routerCfg.Logger = logger
	routerCfg.Registerer = m.Registry()
	routerCfg.ReportError = opts.ReportError

	rt, err := s3router.New(routerCfg)
	if err != nil {
		return nil, err
	}

	verifier := opts.Verifier
	if verifier == nil && cfg.AuthConfig().Enabled() {
		v, err := auth.NewVerifier(ctx, cfg.AuthConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create token verifier: %w", err)
		}
		verifier = v
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(tracing.Middleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	rc := rt.Config()
	r.Group(func(r chi.Router) {
		if verifier != nil {
			gate := auth.Middleware(verifier, logger)
			if cfg.Auth.PublicRedirect && rc.EnableRedirect {
				gate = skipPrefix(strings.TrimSuffix(rc.Prefix, "/")+"/uploads/", gate)
			}
			r.Use(gate)
		}
		rt.Mount(r)
	})

	var h http.Handler = r
	if len(cfg.CORS.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(cfg.CORS.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(h)
	}

	logger.Info("Router configured",
		zap.String("provider", cfg.Provider),
		zap.String("bucket", rc.Bucket),
		zap.String("prefix", rc.Prefix),
		zap.Bool("redirect", rc.EnableRedirect),
		zap.Bool("auth", verifier != nil),
		zap.Bool("publicRedirect", verifier != nil && cfg.Auth.PublicRedirect),
	)

	return &Server{Handler: h, Router: rt, Metrics: m}, nil
}

// skipPrefix bypasses mw for request paths under prefix. Browsers follow
// publicUrl links without an Authorization header.
func skipPrefix(prefix string, mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		guarded := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
			guarded.ServeHTTP(w, r)
		})
	}
}
