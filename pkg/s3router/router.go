// Package s3router serves short-lived signed URLs that let clients upload
// straight to an object-storage bucket, and optionally redirects downloads
// through freshly signed URLs.
//
// Routes, relative to Config.Prefix (default "/s3"):
//
//	GET /sign?objectName=|fileName=&contentType=   signed PUT URL as JSON
//	GET /uploads/{key...}                          302 to a signed GET URL (EnableRedirect only)
package s3router

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/stefando/s3router/pkg/signer"
	s3signer "github.com/stefando/s3router/pkg/signer/s3"
)

const tracerName = "github.com/stefando/s3router/pkg/s3router"

// SignResponse is the JSON body returned by /sign.
type SignResponse struct {
	Filename  string `json:"filename"`
	Key       string `json:"key"`
	SignedURL string `json:"signedUrl"`
	PublicURL string `json:"publicUrl,omitempty"`
}

// Router issues signed URLs for a single bucket. It is safe for concurrent
// use; all state is fixed at construction.
type Router struct {
	cfg     Config
	signer  signer.Signer
	metrics *signMetrics
	logger  *zap.Logger
	routes  chi.Router
	handler http.Handler
}

// New validates cfg and builds a Router. When cfg.Signer is nil an S3 signer
// is created from the provider settings in cfg.
func New(cfg Config) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// copy so later changes to the caller's map don't leak in
	cfg.Headers = maps.Clone(cfg.Headers)

	s := cfg.Signer
	if s == nil {
		s3s, err := s3signer.New(context.Background(), s3signer.Config{
			Region:           cfg.Region,
			SignatureVersion: cfg.SignatureVersion,
			AccessKeyID:      cfg.AccessKeyID,
			SecretAccessKey:  cfg.SecretAccessKey,
			Endpoint:         cfg.Endpoint,
			ForcePathStyle:   cfg.ForcePathStyle,
		})
		if err != nil {
			return nil, &ConfigError{Field: "Signer", Err: err}
		}
		s = s3s
	}

	metrics, err := newSignMetrics(cfg.Registerer)
	if err != nil {
		return nil, &ConfigError{Field: "Registerer", Err: err}
	}

	rt := &Router{
		cfg:     cfg,
		signer:  s,
		metrics: metrics,
		logger:  cfg.Logger.With(zap.String("bucket", cfg.Bucket)),
	}
	rt.routes = rt.buildRoutes()
	rt.handler = rt.buildHandler()

	return rt, nil
}

// Config returns a copy of the resolved configuration.
func (rt *Router) Config() Config {
	cfg := rt.cfg
	cfg.Headers = maps.Clone(rt.cfg.Headers)
	return cfg
}

// Routes returns the routes relative to the prefix, for callers that mount
// them themselves.
func (rt *Router) Routes() chi.Router {
	return rt.routes
}

// Mount attaches the routes to r under the configured prefix.
func (rt *Router) Mount(r chi.Router) {
	prefix := rt.cfg.Prefix
	if prefix == "" {
		prefix = "/"
	}
	r.Mount(prefix, rt.routes)
}

// ServeHTTP serves the routes including the prefix.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

func (rt *Router) buildRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/sign", rt.handleSign)
	if rt.cfg.EnableRedirect {
		r.Get("/uploads/*", rt.handleRedirect)
	}
	return r
}

func (rt *Router) buildHandler() http.Handler {
	root := chi.NewRouter()
	rt.Mount(root)
	return root
}

// signRequest holds the /sign query parameters.
type signRequest struct {
	ObjectName  string
	FileName    string
	ContentType string
}

func parseSignRequest(q url.Values) (*signRequest, error) {
	req := &signRequest{
		ObjectName:  q.Get("objectName"),
		FileName:    q.Get("fileName"),
		ContentType: q.Get("contentType"),
	}
	if req.ObjectName == "" && req.FileName == "" {
		return nil, &ValidationError{
			Param:   "objectName",
			Message: "Either objectName or fileName is required as a query parameter",
			Err:     ErrMissingFilename,
		}
	}
	if req.ContentType == "" {
		return nil, &ValidationError{
			Param:   "contentType",
			Message: "contentType is a required query parameter",
			Err:     ErrMissingContentType,
		}
	}
	return req, nil
}

// handleSign returns a signed PUT URL for a new upload.
func (rt *Router) handleSign(w http.ResponseWriter, r *http.Request) {
	req, err := parseSignRequest(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for k, v := range rt.cfg.Headers {
		w.Header().Set(k, v)
	}

	filename, key, err := DeriveKey(KeyInput{
		FileName:          req.FileName,
		ObjectName:        req.ObjectName,
		RandomizeFilename: rt.cfg.RandomizeFilename,
		KeyPrefix:         rt.cfg.KeyPrefix,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	signedURL, err := rt.sign(r.Context(), signer.PutObject, signer.Params{
		Bucket:      rt.cfg.Bucket,
		Key:         key,
		Expires:     rt.cfg.Expires,
		ContentType: req.ContentType,
		ACL:         rt.cfg.ACL,
	})
	if err != nil {
		if rt.clientGone(r, err) {
			return
		}
		http.Error(w, "Cannot create S3 signed URL", http.StatusInternalServerError)
		return
	}

	resp := SignResponse{
		Filename:  filename,
		Key:       key,
		SignedURL: signedURL,
	}
	if rt.cfg.EnableRedirect {
		resp.PublicURL = rt.cfg.Prefix + "/uploads/" + filename
	}

	render.JSON(w, r, resp)
}

// handleRedirect redirects to a signed GET URL for the key in the path.
func (rt *Router) handleRedirect(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			http.Error(w, "invalid object key", http.StatusBadRequest)
			return
		}
		key = unescaped
	}
	if key == "" {
		http.Error(w, "object key is required", http.StatusBadRequest)
		return
	}

	signedURL, err := rt.sign(r.Context(), signer.GetObject, signer.Params{
		Bucket:  rt.cfg.Bucket,
		Key:     key,
		Expires: rt.cfg.Expires,
	})
	if err != nil {
		if rt.clientGone(r, err) {
			return
		}
		status, ok := signer.StatusCode(err)
		if !ok {
			status = http.StatusInternalServerError
		}
		http.Error(w, err.Error(), status)
		return
	}

	http.Redirect(w, r, signedURL, http.StatusFound)
}

// sign performs the single signer call of a request, recording metrics and
// reporting failures.
func (rt *Router) sign(ctx context.Context, op signer.Operation, params signer.Params) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "s3router.sign",
		trace.WithAttributes(
			attribute.String("s3router.operation", string(op)),
			attribute.String("s3router.bucket", params.Bucket),
		),
	)
	defer span.End()

	start := time.Now()
	signedURL, err := rt.signer.SignURL(ctx, op, params)
	rt.metrics.observe(op, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "signing failed")
	}

	if err != nil && ctx.Err() == nil {
		rt.logger.Error("Cannot create signed URL",
			zap.String("operation", string(op)),
			zap.String("key", params.Key),
			zap.Error(err),
		)
		rt.cfg.ReportError(ctx, err)
	}
	return signedURL, err
}

// clientGone reports whether the request was abandoned while signing; the
// result is then dropped without writing a response.
func (rt *Router) clientGone(r *http.Request, err error) bool {
	if r.Context().Err() == nil {
		return false
	}
	rt.logger.Debug("Request cancelled while signing",
		zap.String("path", r.URL.Path),
		zap.Bool("deadline", errors.Is(r.Context().Err(), context.DeadlineExceeded)),
		zap.NamedError("signError", err),
	)
	return true
}
