package s3router

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrMissingBucket      = errors.New("bucket is required")
	ErrMissingFilename    = errors.New("either objectName or fileName is required")
	ErrMissingContentType = errors.New("contentType is required")
)

// ConfigError reports an invalid Config. New never returns a usable Router
// alongside it.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("s3router: invalid config %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("s3router: invalid config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError reports a missing or malformed request parameter. The
// Message is safe to return to the caller.
type ValidationError struct {
	Param   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }
