// Package gcs signs object URLs for Google Cloud Storage using a service
// account key.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"

	"github.com/stefando/s3router/pkg/signer"
)

// DefaultExpires is used when Params.Expires is zero.
const DefaultExpires = 60 * time.Second

// Config holds the service account used for signing. Either
// ServiceAccountJSON, CredentialsFile or GoogleAccessID+PrivateKey must be set.
type Config struct {
	ServiceAccountJSON []byte
	CredentialsFile    string
	GoogleAccessID     string
	PrivateKey         []byte
}

// Signer produces V4 signed URLs. It holds no network resources.
type Signer struct {
	accessID   string
	privateKey []byte
}

var _ signer.Signer = (*Signer)(nil)

// New parses the configured service account key.
func New(cfg Config) (*Signer, error) {
	if cfg.GoogleAccessID != "" && len(cfg.PrivateKey) > 0 {
		return &Signer{accessID: cfg.GoogleAccessID, privateKey: cfg.PrivateKey}, nil
	}

	jsonKey := cfg.ServiceAccountJSON
	if len(jsonKey) == 0 && cfg.CredentialsFile != "" {
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		jsonKey = b
	}
	if len(jsonKey) == 0 {
		return nil, errors.New("gcs: service account credentials are required")
	}

	conf, err := google.JWTConfigFromJSON(jsonKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}

	return &Signer{accessID: conf.Email, privateKey: conf.PrivateKey}, nil
}

// SignURL returns a signed URL for the given operation.
func (s *Signer) SignURL(ctx context.Context, op signer.Operation, params signer.Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	expires := params.Expires
	if expires <= 0 {
		expires = DefaultExpires
	}

	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		GoogleAccessID: s.accessID,
		PrivateKey:     s.privateKey,
		Expires:        time.Now().Add(expires),
	}

	switch op {
	case signer.PutObject:
		opts.Method = http.MethodPut
		opts.ContentType = params.ContentType
		if params.ACL != "" {
			opts.Headers = []string{"x-goog-acl:" + params.ACL}
		}
	case signer.GetObject:
		opts.Method = http.MethodGet
	default:
		return "", fmt.Errorf("unsupported operation: %q", op)
	}

	u, err := storage.SignedURL(params.Bucket, params.Key, opts)
	if err != nil {
		return "", fmt.Errorf("failed to sign GCS URL: %w", err)
	}
	return u, nil
}
