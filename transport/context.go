package transport

import (
	"context"
	"net/http"
)

// Context keys for the transport package
type contextKey string

const (
	// HTTP headers from original request
	httpHeadersKey contextKey = "http-headers"

	requestIDKey contextKey = "request-id"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

// WithHTTPHeaders adds HTTP headers to the context
func WithHTTPHeaders(ctx context.Context, headers http.Header) context.Context {
	if headers == nil {
		return ctx
	}
	return context.WithValue(ctx, httpHeadersKey, headers)
}

// GetHTTPHeaders retrieves HTTP headers from the context
func GetHTTPHeaders(ctx context.Context) http.Header {
	if headers, ok := ctx.Value(httpHeadersKey).(http.Header); ok {
		return headers
	}
	return nil
}

// WithRequestID adds the request ID to the context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
