package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the OpenTelemetry instrumentation scope for auth spans.
const tracerName = "github.com/tallerpinturas/tallerpinturas-core/pkg/auth"

// TokenValidator is what the HTTP and gRPC adapters need from a validator.
// [TokenValidationService] implements it.
type TokenValidator interface {
	Validate(ctx context.Context, authorizationHeader string) (*ClaimsSet, error)
}

// ---------------------------------------------------------------------------
// TokenValidationService
// ---------------------------------------------------------------------------

// TokenValidationService is the entry point for bearer-token verification.
// It holds no per-request state; the only shared state is the key set in
// its [KeyMaterialCache].
//
// A *ClaimsSet is only returned for a token whose signature verified
// against the current key set and whose claims passed every check. Every
// failure is a *sserr.Error whose [Kind] is available through [KindOf].
//
// TokenValidationService is safe for concurrent use.
type TokenValidationService struct {
	cfg      ValidationConfig
	cache    *KeyMaterialCache
	verifier *SignatureVerifier
	claims   *ClaimsValidator
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *Metrics
	now      func() time.Time
}

var _ TokenValidator = (*TokenValidationService)(nil)

type serviceOptions struct {
	source     KeySetSource
	httpClient HTTPClient
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *Metrics
	now        func() time.Time
}

// Option configures a TokenValidationService.
type Option func(*serviceOptions)

// WithKeySetSource replaces the HTTP fetcher built from the config, e.g.
// with a Redis-backed source shared by several instances.
func WithKeySetSource(src KeySetSource) Option {
	return func(o *serviceOptions) { o.source = src }
}

// WithHTTPClient sets the client the default fetcher uses. It has no
// effect together with WithKeySetSource.
func WithHTTPClient(c HTTPClient) Option {
	return func(o *serviceOptions) { o.httpClient = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *serviceOptions) { o.logger = l }
}

// WithTracerProvider takes spans from tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *serviceOptions) { o.tracer = tp.Tracer(tracerName) }
}

// WithMetrics records validation and fetch outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(o *serviceOptions) { o.metrics = m }
}

// WithClock overrides time.Now for claim checks and cache ages.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// NewTokenValidationService validates cfg and wires the cache, verifier
// and claims validator. No network call happens until the first
// validation.
func NewTokenValidationService(cfg ValidationConfig, opts ...Option) (*TokenValidationService, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = DefaultAlgorithm
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := serviceOptions{
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.source == nil {
		o.source = NewHTTPKeySetFetcher(cfg.JWKSURL, cfg.ConnectTimeout, cfg.RequestTimeout, o.httpClient)
	}

	verifier, err := NewSignatureVerifier(cfg.Algorithm, cfg.maxTokenBytes())
	if err != nil {
		return nil, err
	}

	cache := NewKeyMaterialCache(o.source,
		WithMinRefreshInterval(cfg.MinRefreshInterval),
		WithKeySetMaxAge(cfg.KeySetMaxAge),
		WithCacheClock(o.now),
		WithCacheLogger(o.logger),
		WithCacheMetrics(o.metrics),
	)

	return &TokenValidationService{
		cfg:      cfg,
		cache:    cache,
		verifier: verifier,
		claims:   NewClaimsValidator(cfg, o.now),
		logger:   o.logger,
		tracer:   o.tracer,
		metrics:  o.metrics,
		now:      o.now,
	}, nil
}

// KeyCache exposes the key cache, e.g. for an operator-triggered
// Invalidate after a known key rotation.
func (s *TokenValidationService) KeyCache() *KeyMaterialCache { return s.cache }

// Validate verifies the value of an Authorization header, which must have
// the form "Bearer <token>".
func (s *TokenValidationService) Validate(ctx context.Context, authorizationHeader string) (*ClaimsSet, error) {
	ctx, span := startSpan(ctx, s.tracer, "auth.Validate")
	defer span.End()

	token := ExtractBearerToken(authorizationHeader)
	if token == "" {
		err := newError(KindMissingBearerToken, "auth: missing bearer token")
		return nil, s.fail(ctx, span, s.now(), err)
	}
	return s.validate(ctx, span, token)
}

// ValidateToken verifies a bare compact token, for transports that have
// already stripped the scheme.
func (s *TokenValidationService) ValidateToken(ctx context.Context, rawToken string) (*ClaimsSet, error) {
	ctx, span := startSpan(ctx, s.tracer, "auth.Validate")
	defer span.End()

	if rawToken == "" {
		err := newError(KindMissingBearerToken, "auth: missing bearer token")
		return nil, s.fail(ctx, span, s.now(), err)
	}
	return s.validate(ctx, span, rawToken)
}

func (s *TokenValidationService) validate(ctx context.Context, span trace.Span, token string) (*ClaimsSet, error) {
	start := s.now()

	set, err := s.cache.GetKeySet(ctx)
	if err != nil {
		return nil, s.fail(ctx, span, start, err)
	}

	payload, err := s.verifier.Verify(token, set.Keys)
	if err != nil && KindOf(err) == KindKeyNotFound && s.cfg.RefreshOnUnknownKeyID {
		payload, err = s.retryWithFreshKeys(ctx, span, token, set, err)
	}
	if err != nil {
		return nil, s.fail(ctx, span, start, err)
	}

	if err := s.claims.Validate(payload); err != nil {
		return nil, s.fail(ctx, span, start, err)
	}

	cs := newClaimsSet(payload)
	span.SetAttributes(
		attribute.String("auth.subject", cs.Subject()),
		attribute.String("auth.authorized_party", cs.AuthorizedParty()),
	)
	s.metrics.observeValidation(outcomeOK, s.now().Sub(start))
	return cs, nil
}

// retryWithFreshKeys refetches the key set once after an unknown kid and
// verifies again. If the refresh is throttled or fails, the original
// KeyNotFound stands.
func (s *TokenValidationService) retryWithFreshKeys(ctx context.Context, span trace.Span, token string, stale *CachedKeySet, notFound error) (jwt.MapClaims, error) {
	fresh, err := s.cache.Refresh(ctx, stale)
	switch {
	case errors.Is(err, ErrRefreshThrottled):
		s.metrics.observeRefresh("throttled")
		span.SetAttributes(attribute.String("auth.refresh", "throttled"))
		return nil, notFound
	case err != nil:
		s.metrics.observeRefresh("failed")
		span.SetAttributes(attribute.String("auth.refresh", "failed"))
		s.logger.WarnContext(ctx, "auth: key set refresh after unknown kid failed", "error", err)
		return nil, notFound
	}
	s.metrics.observeRefresh("refreshed")
	span.SetAttributes(attribute.String("auth.refresh", "refreshed"))
	return s.verifier.Verify(token, fresh.Keys)
}

// fail records err on the span, the metrics and the log. Algorithm
// substitution is treated as a likely attack and logged at ERROR.
func (s *TokenValidationService) fail(ctx context.Context, span trace.Span, start time.Time, err error) error {
	kind := KindOf(err)
	span.SetAttributes(attribute.String("auth.failure", kind.String()))
	finishSpan(span, err)
	s.metrics.observeValidation(kind.String(), s.now().Sub(start))

	level := slog.LevelWarn
	if kind == KindAlgorithmNotAllowed {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "auth: bearer token rejected",
		"kind", kind.String(),
		"error", err,
	)
	return err
}

// ---------------------------------------------------------------------------
// Tracing helpers
// ---------------------------------------------------------------------------

func startSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// finishSpan marks span as failed when err is non-nil.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
