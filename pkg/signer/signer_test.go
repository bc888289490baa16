package signer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

type codedError struct{ code int }

func (e codedError) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e codedError) HTTPStatusCode() int { return e.code }

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOK   bool
	}{
		{"nil error", nil, 0, false},
		{"plain error", errors.New("boom"), 0, false},
		{"status coder", codedError{code: http.StatusServiceUnavailable}, http.StatusServiceUnavailable, true},
		{"wrapped status coder", fmt.Errorf("failed to sign: %w", codedError{code: http.StatusForbidden}), http.StatusForbidden, true},
		{"zero status ignored", codedError{code: 0}, 0, false},
		{"access denied api error", &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}, http.StatusForbidden, true},
		{"no such key api error", &smithy.GenericAPIError{Code: "NoSuchKey"}, http.StatusNotFound, true},
		{"unknown api error", &smithy.GenericAPIError{Code: "SlowDown"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := StatusCode(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestFunc(t *testing.T) {
	var got Params
	s := Func(func(ctx context.Context, op Operation, params Params) (string, error) {
		got = params
		return "https://example.com/" + string(op), nil
	})

	url, err := s.SignURL(context.Background(), PutObject, Params{Bucket: "b", Key: "k"})
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/putObject", url)
	assert.Equal(t, "b", got.Bucket)
	assert.Equal(t, "k", got.Key)
}
