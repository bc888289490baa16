// Package config loads the configuration of the s3router binaries from an
// optional YAML file and the environment.
//
// YAML example:
//
//	httpAddr: ":8080"
//	provider: "s3"            # "s3" or "gcs"
//	router:
//	  bucket: "uploads"
//	  prefix: "/s3"
//	  keyPrefix: "incoming/"
//	  randomizeFilename: true
//	  enableRedirect: true
//	  expires: 60
//	  headers:
//	    Cache-Control: "no-store"
//	s3:
//	  region: "eu-west-1"
//	  endpoint: "http://localhost:9000"
//	  forcePathStyle: true
//
// Environment variables override the file; see the env tags below.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/stefando/s3router/internal/auth"
	"github.com/stefando/s3router/internal/tracing"
	"github.com/stefando/s3router/pkg/s3router"
	"github.com/stefando/s3router/pkg/signer"
	"github.com/stefando/s3router/pkg/signer/gcs"
	s3signer "github.com/stefando/s3router/pkg/signer/s3"
)

const (
	ProviderS3  = "s3"
	ProviderGCS = "gcs"
)

type Config struct {
	HTTPAddr     string `yaml:"httpAddr" env:"HTTP_ADDR" env-default:":8080"`
	Environment  string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	LogLevel     string `yaml:"logLevel" env:"LOG_LEVEL" env-default:"info"`
	Provider     string `yaml:"provider" env:"STORAGE_PROVIDER" env-default:"s3"`
	RollbarToken string `yaml:"rollbarToken" env:"ROLLBAR_TOKEN"`

	Router  RouterConfig  `yaml:"router"`
	S3      S3Config      `yaml:"s3"`
	GCS     GCSConfig     `yaml:"gcs"`
	Auth    AuthConfig    `yaml:"auth"`
	CORS    CORSConfig    `yaml:"cors"`
	Tracing TracingConfig `yaml:"tracing"`
}

type RouterConfig struct {
	Bucket            string            `yaml:"bucket" env:"S3_BUCKET"`
	Prefix            string            `yaml:"prefix" env:"S3_PREFIX" env-default:"/s3"`
	KeyPrefix         string            `yaml:"keyPrefix" env:"S3_KEY_PREFIX"`
	RandomizeFilename bool              `yaml:"randomizeFilename" env:"S3_RANDOMIZE_FILENAME"`
	ACL               string            `yaml:"acl" env:"S3_ACL" env-default:"private"`
	Headers           map[string]string `yaml:"headers" env:"S3_HEADERS"` // "Name:value,Name:value"
	EnableRedirect    bool              `yaml:"enableRedirect" env:"S3_ENABLE_REDIRECT"`
	Expires           int               `yaml:"expires" env:"S3_EXPIRES" env-default:"60"` // seconds
}

type S3Config struct {
	Region           string `yaml:"region" env:"AWS_REGION"`
	SignatureVersion string `yaml:"signatureVersion" env:"S3_SIGNATURE_VERSION"`
	AccessKeyID      string `yaml:"accessKeyId" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey  string `yaml:"secretAccessKey" env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken     string `yaml:"sessionToken" env:"AWS_SESSION_TOKEN"`
	Endpoint         string `yaml:"endpoint" env:"S3_ENDPOINT"`
	ForcePathStyle   bool   `yaml:"forcePathStyle" env:"S3_FORCE_PATH_STYLE"`
	RoleARN          string `yaml:"roleArn" env:"S3_ROLE_ARN"`
}

type GCSConfig struct {
	CredentialsFile string `yaml:"credentialsFile" env:"GCS_CREDENTIALS_FILE"`
}

type AuthConfig struct {
	Issuer   string `yaml:"issuer" env:"OIDC_ISSUER"`
	Audience string `yaml:"audience" env:"OIDC_AUDIENCE"`
	JWKSURL  string `yaml:"jwksUrl" env:"OIDC_JWKS_URL"`
	// PublicRedirect leaves the /uploads/* redirect outside the token check
	// so publicUrl links open in a browser.
	PublicRedirect bool `yaml:"publicRedirect" env:"OIDC_PUBLIC_REDIRECT"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" env:"TRACING_ENABLED"`
	Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Protocol    string  `yaml:"protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"grpc"`
	SampleRatio float64 `yaml:"sampleRatio" env:"TRACING_SAMPLE_RATIO" env-default:"1"`
}

// Load reads path (when non-empty) and then the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch cfg.Provider {
	case ProviderS3, ProviderGCS:
	default:
		return nil, fmt.Errorf("unsupported storage provider %q (use %q or %q)", cfg.Provider, ProviderS3, ProviderGCS)
	}

	if cfg.Router.Expires < 0 {
		return nil, fmt.Errorf("expires must not be negative, got %d", cfg.Router.Expires)
	}

	return &cfg, nil
}

// RouterConfig maps the file/env settings onto the router configuration.
// Runtime hooks (signer, logger, metrics) are left for the caller.
func (c *Config) RouterConfig() s3router.Config {
	return s3router.Config{
		Bucket:            c.Router.Bucket,
		Prefix:            c.Router.Prefix,
		KeyPrefix:         c.Router.KeyPrefix,
		RandomizeFilename: c.Router.RandomizeFilename,
		ACL:               c.Router.ACL,
		Headers:           c.Router.Headers,
		EnableRedirect:    c.Router.EnableRedirect,
		Expires:           time.Duration(c.Router.Expires) * time.Second,
		Region:            c.S3.Region,
		SignatureVersion:  c.S3.SignatureVersion,
		AccessKeyID:       c.S3.AccessKeyID,
		SecretAccessKey:   c.S3.SecretAccessKey,
		Endpoint:          c.S3.Endpoint,
		ForcePathStyle:    c.S3.ForcePathStyle,
	}
}

// AuthConfig returns the bearer token settings.
func (c *Config) AuthConfig() auth.Config {
	return auth.Config{
		Issuer:   c.Auth.Issuer,
		Audience: c.Auth.Audience,
		JWKSURL:  c.Auth.JWKSURL,
	}
}

// TracingOptions returns the OpenTelemetry settings.
func (c *Config) TracingOptions() tracing.Options {
	return tracing.Options{
		Enabled:     c.Tracing.Enabled,
		Endpoint:    c.Tracing.Endpoint,
		Protocol:    c.Tracing.Protocol,
		SampleRatio: c.Tracing.SampleRatio,
		ServiceName: "s3router",
	}
}

// NewSigner builds the signer for the configured provider.
func (c *Config) NewSigner(ctx context.Context) (signer.Signer, error) {
	switch c.Provider {
	case ProviderGCS:
		s, err := gcs.New(gcs.Config{CredentialsFile: c.GCS.CredentialsFile})
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS signer: %w", err)
		}
		return s, nil
	default:
		s, err := s3signer.New(ctx, s3signer.Config{
			Region:           c.S3.Region,
			SignatureVersion: c.S3.SignatureVersion,
			AccessKeyID:      c.S3.AccessKeyID,
			SecretAccessKey:  c.S3.SecretAccessKey,
			SessionToken:     c.S3.SessionToken,
			Endpoint:         c.S3.Endpoint,
			ForcePathStyle:   c.S3.ForcePathStyle,
			RoleARN:          c.S3.RoleARN,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 signer: %w", err)
		}
		return s, nil
	}
}
