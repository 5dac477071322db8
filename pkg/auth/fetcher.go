package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxKeySetBytes caps how much of a JWKS response is read.
const maxKeySetBytes = 1 << 20

// KeySetSource supplies the raw JWKS document. [HTTPKeySetFetcher] is the
// production implementation; pkg/clients/redis decorates one with a
// shared cache.
//
// Fetch must return an error whose [Kind] is one of KindKeySourceUnavailable,
// KindKeySourceBadStatus or KindKeySourceEmptyBody when the document cannot
// be obtained.
type KeySetSource interface {
	Fetch(ctx context.Context) ([]byte, error)
	SourceURL() string
}

// HTTPClient abstracts the client used to reach the identity provider.
// The standard [http.Client] satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPKeySetFetcher performs one GET against a JWKS URL per Fetch call. It
// neither retries nor caches; [KeyMaterialCache] decides when to call it.
type HTTPKeySetFetcher struct {
	url    string
	client HTTPClient
	tracer trace.Tracer
}

var _ KeySetSource = (*HTTPKeySetFetcher)(nil)

// NewHTTPKeySetFetcher returns a fetcher for jwksURL. When client is nil a
// dedicated http.Client is built whose dialer and TLS handshake give up
// after connectTimeout and whose requests give up after requestTimeout.
// Zero timeouts fall back to 2s and 5s.
func NewHTTPKeySetFetcher(jwksURL string, connectTimeout, requestTimeout time.Duration, client HTTPClient) *HTTPKeySetFetcher {
	if client == nil {
		client = newHTTPClient(connectTimeout, requestTimeout)
	}
	return &HTTPKeySetFetcher{
		url:    jwksURL,
		client: client,
		tracer: otel.Tracer(tracerName),
	}
}

func newHTTPClient(connectTimeout, requestTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Second
	}
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: connectTimeout,
			MaxIdleConns:        2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// SourceURL returns the JWKS URL.
func (f *HTTPKeySetFetcher) SourceURL() string { return f.url }

// Fetch GETs the JWKS document and returns its body.
func (f *HTTPKeySetFetcher) Fetch(ctx context.Context) (body []byte, err error) {
	ctx, span := startSpan(ctx, f.tracer, "auth.FetchKeySet")
	defer func() {
		finishSpan(span, err)
		span.End()
	}()
	span.SetAttributes(attribute.String("auth.jwks_url", f.url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, wrapError(err, KindKeySourceUnavailable, "auth: failed to create JWKS request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, wrapError(err, KindKeySourceUnavailable,
			fmt.Sprintf("auth: JWKS endpoint %s unreachable", f.url)).
			WithDetail("timeout", isTimeout(err))
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, newErrorf(KindKeySourceBadStatus,
			"auth: JWKS endpoint returned status %d", resp.StatusCode).
			WithDetail("status", resp.StatusCode).
			WithDetail("url", f.url)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes+1))
	if err != nil {
		return nil, wrapError(err, KindKeySourceUnavailable, "auth: failed to read JWKS response")
	}
	if len(body) > maxKeySetBytes {
		return nil, newErrorf(KindKeySetMalformed, "auth: JWKS response exceeds %d bytes", maxKeySetBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, newError(KindKeySourceEmptyBody, "auth: JWKS endpoint returned an empty body")
	}
	return body, nil
}

// isTimeout reports whether err is a deadline or net timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
