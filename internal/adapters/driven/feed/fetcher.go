// Package feed fetches RSS and Atom documents over HTTP.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/juju/clock"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure Fetcher implements the interface.
var _ driven.FeedFetcher = (*Fetcher)(nil)

// DefaultMaxBodyBytes caps the size of a fetched feed.
const DefaultMaxBodyBytes = 10 << 20

const acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.1"

// Options configures a Fetcher.
type Options struct {
	// Client performs requests. Defaults to a client with a 30s timeout.
	Client *http.Client

	// UserAgent is sent with every request.
	UserAgent string

	// RequestsPerSecond limits fetches across all hosts. Zero is unlimited.
	RequestsPerSecond float64

	// MaxBodyBytes caps the body size. Defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64

	Clock clock.Clock
}

// Fetcher performs conditional GETs for feeds.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	limiter   *RateLimiter
	clock     clock.Clock
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts Options) *Fetcher {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	return &Fetcher{
		client:    opts.Client,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
		limiter:   NewRateLimiter(opts.RequestsPerSecond, 1, opts.Clock),
		clock:     opts.Clock,
	}
}

// Fetch performs an HTTP GET with conditional headers. Failures are
// returned as *domain.CrawlError, except for context cancellation.
func (f *Fetcher) Fetch(ctx context.Context, fr domain.FetchRequest) (*domain.FetchResult, error) {
	u, err := url.Parse(fr.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &domain.CrawlError{
			Type:  domain.CrawlErrUnexpected,
			URL:   fr.URL,
			Cause: fmt.Errorf("%w: not an http url", domain.ErrInvalidInput),
		}
	}

	if err := f.limiter.Wait(ctx, u.Host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fr.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("feed fetcher new request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if fr.ETag != "" {
		req.Header.Set("If-None-Match", fr.ETag)
	}
	if fr.LastModified != "" {
		req.Header.Set("If-Modified-Since", fr.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, ctxErr
		}
		return nil, domain.ClassifyNetworkError(err, fr.URL)
	}
	defer resp.Body.Close()

	result := &domain.FetchResult{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		FetchedAt:    f.clock.Now().UTC(),
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		result.NotModified = true
		// Servers may omit validators on a 304; keep the ones we sent.
		if result.ETag == "" {
			result.ETag = fr.ETag
		}
		if result.LastModified == "" {
			result.LastModified = fr.LastModified
		}
		return result, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		f.limiter.RecordRateLimit(u.Host, resp.Header.Get("Retry-After"))
		logger.Warn("feed: %s rate limited, backing off %s", u.Host, f.limiter.Backoff(u.Host))
		return nil, domain.ClassifyHTTPStatus(resp.StatusCode, fr.URL)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, domain.ClassifyHTTPStatus(resp.StatusCode, fr.URL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, domain.ClassifyNetworkError(fmt.Errorf("read body: %w", err), fr.URL)
	}
	if int64(len(body)) > f.maxBody {
		return nil, domain.ClassifyParseError(fmt.Errorf("body exceeds %d bytes", f.maxBody), fr.URL)
	}
	result.Body = body
	logger.Debug("feed: fetched %s (%d bytes)", fr.URL, len(body))
	return result, nil
}
