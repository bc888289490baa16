// Package lambdahttp runs an http.Handler behind API Gateway proxy events.
package lambdahttp

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/stefando/s3router/internal/auth"
)

// NewRequest creates an http.Request from an API Gateway event. Identity
// established by a REQUEST authorizer is copied into the request context.
func NewRequest(ctx context.Context, req events.APIGatewayProxyRequest) (*http.Request, error) {
	var body string
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode request body: %w", err)
		}
		body = string(decoded)
	} else {
		body = req.Body
	}

	// Resolve path parameters for events that carry the resource template
	path := req.Path
	for param, value := range req.PathParameters {
		path = strings.ReplaceAll(path, "{"+param+"}", value)
	}
	if path == "" {
		path = "/"
	}

	// API Gateway hands over the decoded path, so it is assigned rather than
	// parsed: '%', '?' and '#' belong to the object key.
	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod, "/", strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.URL.Path = path
	httpReq.URL.RawPath = ""

	query := url.Values{}
	for param, values := range req.MultiValueQueryStringParameters {
		for _, v := range values {
			query.Add(param, v)
		}
	}
	for param, value := range req.QueryStringParameters {
		if _, ok := query[param]; !ok {
			query.Set(param, value)
		}
	}
	httpReq.URL.RawQuery = query.Encode()

	for key, values := range req.MultiValueHeaders {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	for key, value := range req.Headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}
	if host := httpReq.Header.Get("Host"); host != "" {
		httpReq.Host = host
	}
	httpReq.RemoteAddr = req.RequestContext.Identity.SourceIP

	if subject, ok := authorizerSubject(req.RequestContext.Authorizer); ok {
		httpReq = httpReq.WithContext(auth.WithSubject(httpReq.Context(), subject))
	}

	return httpReq, nil
}

func authorizerSubject(authorizer map[string]interface{}) (*auth.Subject, bool) {
	if authorizer == nil {
		return nil, false
	}
	subject, _ := authorizer["principalId"].(string)
	tenantID, _ := authorizer["tenant_id"].(string)
	if subject == "" && tenantID == "" {
		return nil, false
	}
	return &auth.Subject{Subject: subject, TenantID: tenantID}, true
}

// Serve runs h for a single API Gateway event.
func Serve(ctx context.Context, h http.Handler, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	httpReq, err := NewRequest(ctx, req)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Body:       http.StatusText(http.StatusBadRequest),
		}
	}

	rec := newResponseRecorder()
	h.ServeHTTP(rec, httpReq)
	return rec.response()
}

// responseRecorder captures the handler's response
type responseRecorder struct {
	header      http.Header
	body        strings.Builder
	statusCode  int
	wroteHeader bool
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{
		header:     http.Header{},
		statusCode: http.StatusOK,
	}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) Write(body []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(body)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if r.wroteHeader {
		return
	}
	r.statusCode = statusCode
	r.wroteHeader = true
}

func (r *responseRecorder) response() events.APIGatewayProxyResponse {
	headers := make(map[string]string, len(r.header))
	for key, values := range r.header {
		if len(values) > 0 {
			headers[key] = values[len(values)-1]
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode:        r.statusCode,
		Headers:           headers,
		MultiValueHeaders: r.header.Clone(),
		Body:              r.body.String(),
	}
}
