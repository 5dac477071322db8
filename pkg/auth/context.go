package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type contextKey int

const (
	claimsKey contextKey = iota
	bearerKey
)

// ContextWithClaims attaches a verified ClaimsSet. The HTTP middleware and
// gRPC interceptors call it after a successful validation.
func ContextWithClaims(ctx context.Context, claims *ClaimsSet) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the ClaimsSet attached by the middleware.
//
//	claims, ok := auth.ClaimsFromContext(r.Context())
//	if !ok {
//	    http.Error(w, "unauthorized", http.StatusUnauthorized)
//	    return
//	}
//	ownerID := claims.Subject()
func ClaimsFromContext(ctx context.Context) (*ClaimsSet, bool) {
	claims, ok := ctx.Value(claimsKey).(*ClaimsSet)
	return claims, ok && claims != nil
}

// MustClaimsFromContext is ClaimsFromContext for handlers that only run
// behind the middleware. It panics when no claims are present.
func MustClaimsFromContext(ctx context.Context) *ClaimsSet {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		panic("auth: no claims in context; ensure authentication middleware is configured")
	}
	return claims
}

// contextWithBearer remembers the verified credential so that outgoing
// calls to downstream functions can present it again.
func contextWithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey, token)
}

// BearerFromContext returns the verified bearer token of the inbound
// request, without the scheme.
func BearerFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerKey).(string)
	return token, ok && token != ""
}

// TraceIDFromContext returns the active OpenTelemetry trace ID as hex.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}
