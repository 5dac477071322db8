package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrRefreshThrottled is returned by [KeyMaterialCache.Refresh] when the
// previous forced refresh was too recent.
var ErrRefreshThrottled = errors.New("auth: key set refresh throttled")

// Fills and forced refreshes fly separately, so a GetKeySet never joins a
// refresh that the limiter turned away.
const (
	fillFlightKey    = "keyset"
	refreshFlightKey = "keyset-refresh"
)

// KeyMaterialCache owns the current [CachedKeySet]. Reads are lock-free;
// fills are single-flight, so however many goroutines find the cache
// empty at once, the source is fetched once.
//
// The zero value is not usable; call [NewKeyMaterialCache].
type KeyMaterialCache struct {
	source  KeySetSource
	current atomic.Pointer[CachedKeySet]
	group   singleflight.Group
	limiter *rate.Limiter
	maxAge  time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *Metrics
}

// CacheOption configures a KeyMaterialCache.
type CacheOption func(*KeyMaterialCache)

// WithMinRefreshInterval spaces forced refreshes at least d apart. Zero
// disables throttling.
func WithMinRefreshInterval(d time.Duration) CacheOption {
	return func(c *KeyMaterialCache) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithKeySetMaxAge makes a cached set stale after d. Zero never expires.
func WithKeySetMaxAge(d time.Duration) CacheOption {
	return func(c *KeyMaterialCache) { c.maxAge = d }
}

// WithCacheClock overrides time.Now.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *KeyMaterialCache) { c.now = now }
}

// WithCacheLogger sets the logger. Defaults to slog.Default().
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *KeyMaterialCache) { c.logger = l }
}

// WithCacheMetrics records fetch outcomes on m.
func WithCacheMetrics(m *Metrics) CacheOption {
	return func(c *KeyMaterialCache) { c.metrics = m }
}

// NewKeyMaterialCache returns an empty cache over source. Nothing is
// fetched until the first [KeyMaterialCache.GetKeySet].
func NewKeyMaterialCache(source KeySetSource, opts ...CacheOption) *KeyMaterialCache {
	c := &KeyMaterialCache{
		source:  source,
		limiter: rate.NewLimiter(rate.Every(30*time.Second), 1),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetKeySet returns the cached key set, fetching and parsing it first if
// the cache is empty or the set has outlived its max age.
//
// A fetch failure on an empty cache is returned as is and leaves the cache
// empty, so the next call tries again. A failed re-fetch of an aged set
// keeps serving the old set.
func (c *KeyMaterialCache) GetKeySet(ctx context.Context) (*CachedKeySet, error) {
	cur := c.current.Load()
	if cur != nil && !c.expired(cur) {
		return cur, nil
	}

	next, err := c.load(ctx, cur, false)
	if err != nil {
		if cur != nil {
			c.logger.WarnContext(ctx, "auth: key set re-fetch failed, keeping previous set",
				"error", err,
				"url", c.source.SourceURL(),
				"fetched_at", cur.FetchedAt,
			)
			return cur, nil
		}
		return nil, err
	}
	return next, nil
}

// Refresh forces a new fetch to replace stale. If another goroutine has
// already replaced stale, the newer set is returned without fetching. A
// refresh inside the minimum interval of the previous one returns
// ErrRefreshThrottled, unless the current set has outlived its max age.
// On failure the cache keeps its current set.
func (c *KeyMaterialCache) Refresh(ctx context.Context, stale *CachedKeySet) (*CachedKeySet, error) {
	if cur := c.current.Load(); cur != nil && cur != stale {
		return cur, nil
	}
	return c.load(ctx, stale, true)
}

// Invalidate drops the cached set; the next GetKeySet fetches again.
func (c *KeyMaterialCache) Invalidate() {
	c.current.Store(nil)
}

// Current returns the cached set without fetching, or nil.
func (c *KeyMaterialCache) Current() *CachedKeySet {
	return c.current.Load()
}

func (c *KeyMaterialCache) expired(s *CachedKeySet) bool {
	return c.maxAge > 0 && c.now().Sub(s.FetchedAt) >= c.maxAge
}

// load runs at most one fetch at a time. Inside the flight the cache is
// checked again: a set other than stale means somebody else already did
// the work. The fetch is detached from the caller's cancellation because
// other callers may be waiting on it; the caller itself stops waiting when
// its context ends.
func (c *KeyMaterialCache) load(ctx context.Context, stale *CachedKeySet, throttle bool) (*CachedKeySet, error) {
	fetchCtx := context.WithoutCancel(ctx)
	key := fillFlightKey
	if throttle {
		key = refreshFlightKey
	}
	ch := c.group.DoChan(key, func() (any, error) {
		cur := c.current.Load()
		if cur != nil && cur != stale {
			return cur, nil
		}
		if throttle && cur != nil && !c.expired(cur) && !c.limiter.Allow() {
			return nil, ErrRefreshThrottled
		}
		return c.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, wrapError(ctx.Err(), KindKeySourceUnavailable, "auth: gave up waiting for key set")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*CachedKeySet), nil
	}
}

func (c *KeyMaterialCache) fetch(ctx context.Context) (*CachedKeySet, error) {
	start := c.now()
	body, err := c.source.Fetch(ctx)
	if err != nil {
		if KindOf(err) == KindUnknown {
			err = wrapError(err, KindKeySourceUnavailable, "auth: key set source failed")
		}
		c.metrics.observeFetch(KindOf(err).String(), c.now().Sub(start))
		return nil, err
	}

	keys, err := ParseKeySet(body)
	if err != nil {
		kerr := wrapError(err, KindKeySetMalformed, "auth: JWKS document is malformed")
		c.metrics.observeFetch(KindKeySetMalformed.String(), c.now().Sub(start))
		return nil, kerr
	}

	set := &CachedKeySet{Keys: keys, FetchedAt: c.now(), SourceURL: c.source.SourceURL()}
	c.current.Store(set)
	c.metrics.observeFetch(outcomeOK, c.now().Sub(start))
	c.metrics.setKeys(keys.Len())
	c.logger.InfoContext(ctx, "auth: key set loaded",
		"url", set.SourceURL,
		"keys", keys.Len(),
	)
	return set, nil
}
