package interfaces

import (
	"context"
	"time"
)

// FetchResult carries the response of a single HTTP fetch. Body is nil when
// the server answered with a non-2xx status; StatusCode is always set when
// the request reached a server (0 means the transport failed or retries
// were exhausted).
type FetchResult struct {
	Body       []byte
	StatusCode int
	FinalURL   string
}

// Fetcher performs rate-limited, retrying HTTP fetches. Implementations
// handle robots.txt checks, Retry-After backoff and per-host politeness so
// callers only reason about the final outcome.
type Fetcher interface {
	// Fetch retrieves a URL with the default timeout. A non-nil error means
	// the transport failed after retries; HTTP error statuses are reported
	// through FetchResult.StatusCode with a nil Body.
	Fetch(ctx context.Context, url string) (*FetchResult, error)

	// FetchWithTimeout retrieves a URL with an explicit per-request timeout.
	FetchWithTimeout(ctx context.Context, url string, timeout time.Duration) (*FetchResult, error)

	// Head issues a HEAD request following redirects. FinalURL reports where
	// the redirect chain landed.
	Head(ctx context.Context, url string) (*FetchResult, error)
}

// RateLimiter throttles outbound requests per host.
type RateLimiter interface {
	// Wait blocks until the host may be contacted again or the context is
	// cancelled.
	Wait(ctx context.Context, host string) error

	// ReportResult feeds the outcome of a request back so adaptive
	// implementations can speed up or back off.
	ReportResult(host string, statusCode int, err error)
}

// RenderService drives a headless browser for pages whose job lists only
// exist after JavaScript execution.
type RenderService interface {
	// Render navigates to the URL and returns the post-JavaScript HTML.
	Render(ctx context.Context, url string) (string, error)

	// Close releases the underlying browser resources.
	Close() error
}
