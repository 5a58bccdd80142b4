// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets values, services read them. Keeping this package free
// of net/http dependencies lets services import only what they need.
//
// Usage in services (read values):
//
//	contact := requestcontext.IssuerContact(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	issuerContactKey struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
)

// IssuerContact retrieves the authenticated issuer contact address from
// the context. Returns "" if not set.
func IssuerContact(ctx context.Context) string {
	if contact, ok := ctx.Value(issuerContactKey{}).(string); ok {
		return contact
	}
	return ""
}

// WithIssuerContact injects an authenticated issuer contact address.
func WithIssuerContact(ctx context.Context, contact string) context.Context {
	return context.WithValue(ctx, issuerContactKey{}, contact)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service
// unit tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
