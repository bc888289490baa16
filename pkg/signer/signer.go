// Package signer defines the contract between the router and the storage
// provider that turns a bucket/key pair into a time-limited URL.
package signer

import (
	"context"
	"errors"
	"net/http"
	"time"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// Operation names the object operation a URL is signed for.
type Operation string

const (
	GetObject Operation = "getObject"
	PutObject Operation = "putObject"
)

// Params describes the object a URL is signed for. ContentType and ACL only
// apply to PutObject.
type Params struct {
	Bucket      string
	Key         string
	Expires     time.Duration
	ContentType string
	ACL         string
}

// Signer converts an operation and its parameters into a signed URL.
// Implementations must honour ctx cancellation.
type Signer interface {
	SignURL(ctx context.Context, op Operation, params Params) (string, error)
}

// Func adapts an ordinary function to the Signer interface.
type Func func(ctx context.Context, op Operation, params Params) (string, error)

// SignURL calls f(ctx, op, params).
func (f Func) SignURL(ctx context.Context, op Operation, params Params) (string, error) {
	return f(ctx, op, params)
}

// statusCoder is implemented by provider errors that carry an HTTP status,
// e.g. smithy-go's response errors.
type statusCoder interface {
	HTTPStatusCode() int
}

// StatusCode reports the HTTP status carried by a signing failure, if any.
func StatusCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() != 0 {
		return respErr.HTTPStatusCode(), true
	}

	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatusCode() != 0 {
		return sc.HTTPStatusCode(), true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "SignatureDoesNotMatch", "InvalidAccessKeyId":
			return http.StatusForbidden, true
		case "NoSuchBucket", "NoSuchKey", "NotFound":
			return http.StatusNotFound, true
		}
	}

	return 0, false
}
