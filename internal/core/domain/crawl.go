package domain

import (
	"fmt"
	"time"
)

// FeedSource is a configured RSS or Atom feed to crawl.
type FeedSource struct {
	// ID is the unique identifier for the source.
	ID string

	// URL is the feed location.
	URL string

	// Name is the human-readable name for this source.
	Name string

	// Interval is how often the feed is polled. Zero uses the default.
	Interval time.Duration

	// Enabled indicates whether the source is crawled.
	Enabled bool

	// Mapping names the payload mapping, "rss" when empty.
	Mapping string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SourceIDForURL returns the stable source ID for a feed URL.
// Sources registered from config and from feed records share it.
func SourceIDForURL(feedURL string) string {
	return string(NewGUID(NamespaceFeed, feedURL))
}

// CrawlSchedule is the polling state of one feed source.
type CrawlSchedule struct {
	// SourceID links to the FeedSource.
	SourceID string

	// FeedURL is the location polled.
	FeedURL string

	// Interval defines how often the feed is polled.
	Interval time.Duration

	// LastRun is when the feed was last polled.
	LastRun time.Time

	// NextRun is when the feed should be polled next.
	NextRun time.Time

	// LastSuccess is when a poll last completed without error.
	LastSuccess time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastErrorType classifies LastError.
	LastErrorType CrawlErrorType

	// ConsecutiveFailures resets on success.
	ConsecutiveFailures int

	// ETag and LastModified are validators for conditional fetches.
	ETag         string
	LastModified string

	// Enabled indicates whether the schedule is active.
	Enabled bool
}

// Backoff returns the delay before the next poll: the interval doubled
// per consecutive failure, capped at max.
func (s CrawlSchedule) Backoff(max time.Duration) time.Duration {
	delay := s.Interval
	for i := 0; i < s.ConsecutiveFailures && delay < max; i++ {
		delay *= 2
	}
	if max > 0 && delay > max {
		delay = max
	}
	return delay
}

// CrawlResult represents the outcome of one feed poll.
type CrawlResult struct {
	// SourceID identifies which source was polled.
	SourceID string

	// StartedAt is when the poll started.
	StartedAt time.Time

	// EndedAt is when the poll completed.
	EndedAt time.Time

	// Success indicates whether the poll completed without error.
	Success bool

	// NotModified is set when the feed answered a conditional fetch with 304.
	NotModified bool

	// Error contains the error message if Success is false.
	Error string

	// ItemsSeen counts entries in the fetched feed.
	ItemsSeen int

	// ItemsWritten counts records that produced a new revision.
	ItemsWritten int

	// ItemsSkipped counts entries whose content was unchanged.
	ItemsSkipped int
}

// FetchRequest is a conditional GET for a feed.
type FetchRequest struct {
	URL          string
	ETag         string
	LastModified string
}

// FetchResult is the answer to a FetchRequest.
type FetchResult struct {
	// NotModified is set when the server answered 304. Body is empty.
	NotModified bool

	Body         []byte
	ETag         string
	LastModified string
	FetchedAt    time.Time
}

// CrawlErrorType classifies feed poll failures.
type CrawlErrorType string

const (
	CrawlErrRateLimited CrawlErrorType = "rate_limited"
	CrawlErrForbidden   CrawlErrorType = "forbidden"
	CrawlErrNotFound    CrawlErrorType = "not_found"
	CrawlErrGone        CrawlErrorType = "gone"
	CrawlErrUpstream    CrawlErrorType = "upstream_failure"
	CrawlErrNetwork     CrawlErrorType = "network"
	CrawlErrParse       CrawlErrorType = "parse_error"
	CrawlErrUnexpected  CrawlErrorType = "unexpected"
)

// CrawlError is a classified feed poll failure.
type CrawlError struct {
	Type       CrawlErrorType
	StatusCode int
	URL        string
	Cause      error
}

func (e *CrawlError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("feed poll %s: HTTP %d for %s", e.Type, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("feed poll %s: %v for %s", e.Type, e.Cause, e.URL)
}

// Unwrap exposes the cause. Network and upstream failures are also
// transport failures.
func (e *CrawlError) Unwrap() []error {
	errs := []error{}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	switch e.Type {
	case CrawlErrNetwork, CrawlErrUpstream, CrawlErrRateLimited:
		errs = append(errs, ErrTransport)
	}
	return errs
}

// ClassifyHTTPStatus creates a CrawlError from an HTTP status code.
func ClassifyHTTPStatus(statusCode int, url string) *CrawlError {
	e := &CrawlError{StatusCode: statusCode, URL: url, Cause: fmt.Errorf("HTTP %d", statusCode)}
	switch {
	case statusCode == 429:
		e.Type = CrawlErrRateLimited
	case statusCode == 403:
		e.Type = CrawlErrForbidden
	case statusCode == 404:
		e.Type = CrawlErrNotFound
	case statusCode == 410:
		e.Type = CrawlErrGone
	case statusCode >= 500 && statusCode <= 599:
		e.Type = CrawlErrUpstream
	default:
		e.Type = CrawlErrUnexpected
	}
	return e
}

// ClassifyNetworkError creates a CrawlError for DNS, dial or timeout failures.
func ClassifyNetworkError(cause error, url string) *CrawlError {
	return &CrawlError{Type: CrawlErrNetwork, URL: url, Cause: cause}
}

// ClassifyParseError creates a CrawlError for unreadable feed bodies.
func ClassifyParseError(cause error, url string) *CrawlError {
	return &CrawlError{Type: CrawlErrParse, URL: url, Cause: cause}
}

// disableThresholds maps error types to the number of consecutive
// failures before a source is auto-disabled. Rate limits and unexpected
// errors never disable a source.
var disableThresholds = map[CrawlErrorType]int{
	CrawlErrNotFound:  3,
	CrawlErrGone:      1,
	CrawlErrForbidden: 5,
	CrawlErrUpstream:  10,
	CrawlErrNetwork:   10,
	CrawlErrParse:     5,
}

// DisableThreshold returns the auto-disable threshold for an error type.
// Returns (0, false) if the type should never disable a source.
func DisableThreshold(t CrawlErrorType) (int, bool) {
	n, ok := disableThresholds[t]
	return n, ok
}
