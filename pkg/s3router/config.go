package s3router

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/stefando/s3router/pkg/signer"
)

const (
	DefaultPrefix  = "/s3"
	DefaultACL     = "private"
	DefaultExpires = 60 * time.Second

	// MaxExpires is the longest validity SigV4 presigned URLs accept.
	MaxExpires = 7 * 24 * time.Hour
)

// Config configures a Router. It is validated once by New and never
// mutated afterwards.
type Config struct {
	// Bucket is the target bucket. Required.
	Bucket string

	// Prefix is the path the routes are mounted under. Default "/s3".
	Prefix string

	// KeyPrefix is prepended to every generated object key.
	KeyPrefix string

	// RandomizeFilename prepends a UUID to uploaded filenames.
	RandomizeFilename bool

	// ACL is the canned ACL signed into upload URLs. Default "private".
	ACL string

	// Headers are set on every /sign response.
	Headers map[string]string

	// EnableRedirect mounts GET /uploads/* and adds publicUrl to /sign responses.
	EnableRedirect bool

	// Expires is how long signed URLs stay valid. Default 60s.
	Expires time.Duration

	// Provider connection settings, used only when Signer is nil.
	Region           string
	SignatureVersion string
	AccessKeyID      string
	SecretAccessKey  string
	Endpoint         string
	ForcePathStyle   bool

	// Signer overrides the S3 signer built from the settings above. Without
	// it, provider settings left empty fall back to the AWS default chain,
	// which reads AWS_* environment variables and ~/.aws config files.
	Signer signer.Signer

	// Logger receives signing failures. Default no-op.
	Logger *zap.Logger

	// Registerer, when set, receives the router's signing metrics.
	Registerer prometheus.Registerer

	// ReportError is called with every signing failure, e.g. to forward it
	// to an error tracker.
	ReportError func(ctx context.Context, err error)
}

// Validate checks required fields and fills in defaults.
func (c *Config) Validate() error {
	c.Bucket = strings.TrimSpace(c.Bucket)
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Err: ErrMissingBucket}
	}

	c.Prefix = normalizePrefix(c.Prefix)

	if c.ACL == "" {
		c.ACL = DefaultACL
	}

	switch {
	case c.Expires == 0:
		c.Expires = DefaultExpires
	case c.Expires < time.Second:
		return &ConfigError{Field: "Expires", Reason: "must be at least one second"}
	case c.Expires > MaxExpires:
		return &ConfigError{Field: "Expires", Reason: "must not exceed 7 days"}
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.ReportError == nil {
		c.ReportError = func(context.Context, error) {}
	}

	return nil
}

// normalizePrefix returns p with a leading slash and no trailing slash.
// An empty prefix means DefaultPrefix; "/" mounts at the root.
func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultPrefix
	}
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return ""
	}
	return p
}
