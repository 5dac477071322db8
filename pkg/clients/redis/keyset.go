package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/tallerpinturas/tallerpinturas-core/pkg/auth"
	sserr "github.com/tallerpinturas/tallerpinturas-core/pkg/errors"
)

const (
	// DefaultKeyPrefix namespaces cached JWKS documents.
	DefaultKeyPrefix = "tallerpinturas:jwks"

	// DefaultKeySetTTL bounds how stale a shared document can get.
	DefaultKeySetTTL = time.Hour
)

// KeySetSource is an [auth.KeySetSource] that shares the raw JWKS
// document between processes through Redis.
//
// Fetch reads Redis first and falls back to the upstream source on a miss,
// writing the fetched document back with the configured TTL. Only documents
// that parse as a usable key set are written or served from Redis. Redis is
// best effort: its failures are logged and never fail a fetch. Upstream
// errors are returned unchanged, so their auth kind survives.
//
// A document this source already handed out is never served from Redis a
// second time. The key cache only fetches again when the set it holds is
// missing a key-id or has aged out, and in both cases the shared copy is
// the one at fault, so the second Fetch goes upstream and overwrites it.
type KeySetSource struct {
	client   *Client
	upstream auth.KeySetSource
	key      string
	ttl      time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	served [sha256.Size]byte
}

var _ auth.KeySetSource = (*KeySetSource)(nil)

// KeySetOption configures a KeySetSource.
type KeySetOption func(*KeySetSource)

// WithKeySetLogger sets the logger. Defaults to slog.Default().
func WithKeySetLogger(l *slog.Logger) KeySetOption {
	return func(s *KeySetSource) { s.logger = l }
}

// NewKeySetSource decorates upstream. Key prefix and TTL come from the
// client's config.
func NewKeySetSource(client *Client, upstream auth.KeySetSource, opts ...KeySetOption) *KeySetSource {
	cfg := client.Config()
	prefix, ttl := cfg.KeyPrefix, cfg.KeySetTTL
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultKeySetTTL
	}
	s := &KeySetSource{
		client:   client,
		upstream: upstream,
		key:      KeySetCacheKey(prefix, upstream.SourceURL()),
		ttl:      ttl,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KeySetCacheKey returns the Redis key for the document published at
// jwksURL: prefix, a colon, and the hex SHA-256 of the URL.
func KeySetCacheKey(prefix, jwksURL string) string {
	sum := sha256.Sum256([]byte(jwksURL))
	return prefix + ":" + hex.EncodeToString(sum[:])
}

// SourceURL returns the upstream JWKS URL.
func (s *KeySetSource) SourceURL() string { return s.upstream.SourceURL() }

// Key returns the Redis key this source reads and writes.
func (s *KeySetSource) Key() string { return s.key }

// Fetch returns the shared document, or the upstream one when Redis has
// nothing usable.
func (s *KeySetSource) Fetch(ctx context.Context) ([]byte, error) {
	if body, ok := s.readShared(ctx); ok {
		return body, nil
	}

	body, err := s.upstream.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	// The key cache reports the malformed document; it is never shared.
	if _, err := auth.ParseKeySet(body); err != nil {
		s.logger.WarnContext(ctx, "redis: not sharing malformed key set",
			"key", s.key,
			"error", err,
		)
		return body, nil
	}
	s.markServed(body)

	if err := s.client.Set(ctx, s.key, body, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "redis: failed to share key set",
			"key", s.key,
			"error", err,
		)
	}
	return body, nil
}

// Invalidate removes the shared document.
func (s *KeySetSource) Invalidate(ctx context.Context) error {
	_, err := s.client.Del(ctx, s.key)
	return err
}

func (s *KeySetSource) readShared(ctx context.Context) ([]byte, bool) {
	val, err := s.client.Get(ctx, s.key)
	switch {
	case sserr.IsNotFound(err):
		return nil, false
	case err != nil:
		s.logger.WarnContext(ctx, "redis: shared key set unavailable, fetching upstream",
			"key", s.key,
			"error", err,
		)
		return nil, false
	}

	body := []byte(val)
	if _, err := auth.ParseKeySet(body); err != nil {
		s.logger.WarnContext(ctx, "redis: dropping malformed shared key set",
			"key", s.key,
			"error", err,
		)
		if _, err := s.client.Del(ctx, s.key); err != nil {
			s.logger.WarnContext(ctx, "redis: failed to drop malformed key set", "key", s.key, "error", err)
		}
		return nil, false
	}
	if !s.markServed(body) {
		return nil, false
	}
	return body, true
}

// markServed records body as the last document handed out and reports
// whether it differs from the previous one.
func (s *KeySetSource) markServed(body []byte) bool {
	sum := sha256.Sum256(body)
	s.mu.Lock()
	defer s.mu.Unlock()
	if sum == s.served {
		return false
	}
	s.served = sum
	return true
}
