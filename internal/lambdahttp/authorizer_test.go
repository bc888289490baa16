package lambdahttp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefando/s3router/internal/auth"
)

type tokenVerifier map[string]*auth.Subject

func (v tokenVerifier) Verify(ctx context.Context, rawToken string) (*auth.Subject, error) {
	if s, ok := v[rawToken]; ok {
		return s, nil
	}
	return nil, errors.New("unknown token")
}

const methodArn = "arn:aws:execute-api:eu-west-1:123456789012:api/prod/GET/s3/sign"

func TestAuthorize(t *testing.T) {
	v := tokenVerifier{
		"good": {Subject: "alice", TenantID: "acme", ExpiresAt: time.Unix(1700000000, 0)},
	}

	tests := []struct {
		name       string
		headers    map[string]string
		wantEffect string
		wantID     string
	}{
		{"no header", nil, "Deny", "unauthorized"},
		{"not bearer", map[string]string{"Authorization": "Basic abc"}, "Deny", "unauthorized"},
		{"unknown token", map[string]string{"Authorization": "Bearer bad"}, "Deny", "unauthorized"},
		{"valid", map[string]string{"Authorization": "Bearer good"}, "Allow", "alice"},
		{"lowercase header", map[string]string{"authorization": "bearer good"}, "Allow", "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Authorize(context.Background(), v, nil, events.APIGatewayCustomAuthorizerRequestTypeRequest{
				MethodArn: methodArn,
				Headers:   tt.headers,
			})

			assert.Equal(t, tt.wantID, resp.PrincipalID)
			require.Len(t, resp.PolicyDocument.Statement, 1)
			assert.Equal(t, tt.wantEffect, resp.PolicyDocument.Statement[0].Effect)
			assert.Equal(t, []string{methodArn}, resp.PolicyDocument.Statement[0].Resource)

			if tt.wantEffect == "Allow" {
				assert.Equal(t, "acme", resp.Context["tenant_id"])
				assert.Equal(t, "1700000000", resp.Context["token_expiration"])
			} else {
				assert.Nil(t, resp.Context)
			}
		})
	}
}

func TestAuthorizerContextRoundTrip(t *testing.T) {
	v := tokenVerifier{"good": {Subject: "alice", TenantID: "acme"}}
	resp := Authorize(context.Background(), v, nil, events.APIGatewayCustomAuthorizerRequestTypeRequest{
		MethodArn: methodArn,
		Headers:   map[string]string{"Authorization": "Bearer good"},
	})

	// API Gateway hands the context plus principalId to the backend
	authorizer := map[string]interface{}{"principalId": resp.PrincipalID}
	for k, val := range resp.Context {
		authorizer[k] = val
	}

	req, err := NewRequest(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:     "GET",
		Path:           "/s3/sign",
		RequestContext: events.APIGatewayProxyRequestContext{Authorizer: authorizer},
	})
	require.NoError(t, err)

	subject, ok := auth.SubjectFrom(req.Context())
	require.True(t, ok)
	assert.Equal(t, "alice", subject.Subject)
	assert.Equal(t, "acme", subject.TenantID)
}
