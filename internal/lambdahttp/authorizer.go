package lambdahttp

import (
	"context"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/stefando/s3router/internal/auth"
)

// Authorize answers an API Gateway REQUEST authorizer event. Allowed
// requests carry the subject as principalId and the tenant in the context,
// which NewRequest turns back into an auth.Subject.
func Authorize(ctx context.Context, v auth.TokenVerifier, logger *zap.Logger, event events.APIGatewayCustomAuthorizerRequestTypeRequest) events.APIGatewayCustomAuthorizerResponse {
	if logger == nil {
		logger = zap.NewNop()
	}

	token, ok := auth.BearerToken(headerValue(event.Headers, "Authorization"))
	if !ok {
		logger.Info("Authorization denied: no bearer token", zap.String("path", event.Path))
		return authorizerResponse("unauthorized", "Deny", event.MethodArn, nil)
	}

	subject, err := v.Verify(ctx, token)
	if err != nil {
		logger.Info("Authorization denied", zap.String("path", event.Path), zap.Error(err))
		return authorizerResponse("unauthorized", "Deny", event.MethodArn, nil)
	}

	logger.Debug("Authorization granted",
		zap.String("subject", subject.Subject),
		zap.String("tenant", subject.TenantID),
	)

	// context values must be strings, numbers or booleans
	authContext := map[string]interface{}{
		"tenant_id": subject.TenantID,
	}
	if !subject.ExpiresAt.IsZero() {
		authContext["token_expiration"] = strconv.FormatInt(subject.ExpiresAt.Unix(), 10)
	}
	return authorizerResponse(subject.Subject, "Allow", event.MethodArn, authContext)
}

// headerValue looks up name case-insensitively, API Gateway forwards headers
// in whatever case the client sent.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func authorizerResponse(principalID, effect, methodArn string, authContext map[string]interface{}) events.APIGatewayCustomAuthorizerResponse {
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: principalID,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{{
				Action:   []string{"execute-api:Invoke"},
				Effect:   effect,
				Resource: []string{methodArn},
			}},
		},
		Context: authContext,
	}
}
