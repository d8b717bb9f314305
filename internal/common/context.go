package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyProtocol  contextKey = "protocol"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithProtocol adds the case protocol being processed to the context
func WithProtocol(ctx context.Context, protocol string) context.Context {
	return context.WithValue(ctx, ContextKeyProtocol, protocol)
}

// ProtocolFromContext extracts the case protocol from context
func ProtocolFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(ContextKeyProtocol).(string); ok {
		return p
	}
	return ""
}

// WithTimeout bounds ctx when timeout is positive; otherwise it returns a plain cancelable child.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
