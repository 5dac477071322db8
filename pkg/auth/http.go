package auth

import (
	"log/slog"
	"net/http"
)

// UnauthorizedMessage is the only body a rejected request ever sees. The
// specific reason goes to logs and traces.
const UnauthorizedMessage = "invalid or missing credentials"

// HTTPMiddleware authenticates every request with validator. On success
// the ClaimsSet and the bearer token are stored in the request context; on
// any failure the client gets 401 with a WWW-Authenticate challenge and
// UnauthorizedMessage, whatever the cause.
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("GET /api/eventos", listEventos)
//	http.ListenAndServe(":8080", auth.HTTPMiddleware(svc, "bff")(mux))
func HTTPMiddleware(validator TokenValidator, serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			header := r.Header.Get(HeaderAuthorization)

			claims, err := validator.Validate(ctx, header)
			if err != nil {
				traceID, _ := TraceIDFromContext(ctx)
				slog.DebugContext(ctx, "auth: request rejected",
					"service", serviceName,
					"method", r.Method,
					"path", r.URL.Path,
					"kind", KindOf(err).String(),
					"trace_id", traceID,
				)
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, UnauthorizedMessage, http.StatusUnauthorized)
				return
			}

			ctx = ContextWithClaims(ctx, claims)
			ctx = contextWithBearer(ctx, ExtractBearerToken(header))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ForwardingRoundTripper presents the inbound request's verified bearer
// token on outgoing requests, so the functions behind the BFF can run the
// same verification. Requests whose context carries no token, or that
// already set an Authorization header, pass through untouched.
//
//	client := &http.Client{Transport: auth.NewForwardingRoundTripper(nil)}
//	req, _ := http.NewRequestWithContext(r.Context(), http.MethodGet, eventosURL, nil)
//	resp, err := client.Do(req)
type ForwardingRoundTripper struct {
	wrapped http.RoundTripper
}

// NewForwardingRoundTripper wraps transport, or http.DefaultTransport when
// transport is nil.
func NewForwardingRoundTripper(transport http.RoundTripper) *ForwardingRoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &ForwardingRoundTripper{wrapped: transport}
}

// RoundTrip implements http.RoundTripper.
func (t *ForwardingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	token, ok := BearerFromContext(r.Context())
	if !ok || r.Header.Get(HeaderAuthorization) != "" {
		return t.wrapped.RoundTrip(r)
	}

	// RoundTrippers must not modify the caller's request.
	clone := r.Clone(r.Context())
	clone.Header.Set(HeaderAuthorization, "Bearer "+token)
	return t.wrapped.RoundTrip(clone)
}
