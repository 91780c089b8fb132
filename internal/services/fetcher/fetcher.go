package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/httpclient"
	"github.com/ternarybob/reperio/internal/interfaces"
)

const (
	defaultRetryAfter  = 60 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024
	robotsMaxBodySize  = 512 * 1024
)

// Service fetches pages politely: robots.txt checks, per-host pacing via the
// rate limiter, Retry-After backoff on 429 and exponential backoff on server
// errors. Client errors short-circuit without retrying so 404s surface
// immediately to callers that react to them.
type Service struct {
	client      *http.Client
	cfg         common.FetcherConfig
	rateLimiter interfaces.RateLimiter
	logger      arbor.ILogger

	robotsMu sync.RWMutex
	robots   map[string]*robotsRules // keyed by robots.txt URL; nil = unavailable
}

// NewService creates a fetcher backed by a shared crawl-tuned HTTP client.
func NewService(cfg common.FetcherConfig, rateLimiter interfaces.RateLimiter, logger arbor.ILogger) *Service {
	return &Service{
		client:      httpclient.NewCrawlClient(),
		cfg:         cfg,
		rateLimiter: rateLimiter,
		logger:      logger,
		robots:      make(map[string]*robotsRules),
	}
}

// Fetch retrieves a URL with the configured default timeout.
func (s *Service) Fetch(ctx context.Context, rawURL string) (*interfaces.FetchResult, error) {
	return s.fetch(ctx, rawURL, s.requestTimeout())
}

// FetchWithTimeout retrieves a URL with an explicit per-request timeout.
func (s *Service) FetchWithTimeout(ctx context.Context, rawURL string, timeout time.Duration) (*interfaces.FetchResult, error) {
	if timeout <= 0 {
		timeout = s.requestTimeout()
	}
	return s.fetch(ctx, rawURL, timeout)
}

// Head issues a single HEAD request following redirects. No robots check and
// no retries; callers use this for cheap existence probes.
func (s *Service) Head(ctx context.Context, rawURL string) (*interfaces.FetchResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	host := parsed.Hostname()

	if err := s.rateLimiter.Wait(ctx, host); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		s.rateLimiter.ReportResult(host, 0, err)
		return nil, fmt.Errorf("head %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	s.rateLimiter.ReportResult(host, resp.StatusCode, nil)

	return &interfaces.FetchResult{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

func (s *Service) fetch(ctx context.Context, rawURL string, timeout time.Duration) (*interfaces.FetchResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	host := parsed.Hostname()

	if s.cfg.FollowRobotsTxt && !s.allowed(ctx, parsed) {
		s.logger.Warn().Str("url", rawURL).Msg("Blocked by robots.txt")
		return &interfaces.FetchResult{StatusCode: http.StatusForbidden, FinalURL: rawURL}, nil
	}

	if err := s.rateLimiter.Wait(ctx, host); err != nil {
		return nil, err
	}

	attempts := s.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	retryDelay := s.cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	var lastErr error
	lastStatus := 0
	finalURL := rawURL

	for attempt := 0; attempt < attempts; attempt++ {
		res, err := s.attempt(ctx, rawURL, timeout)
		if err != nil {
			s.rateLimiter.ReportResult(host, 0, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			s.logger.Warn().
				Str("url", rawURL).
				Int("attempt", attempt).
				Err(err).
				Msg("Request error")
			if attempt < attempts-1 {
				if serr := sleepCtx(ctx, backoffDelay(retryDelay, attempt)); serr != nil {
					return nil, serr
				}
			}
			continue
		}

		lastErr = nil
		lastStatus = res.status
		finalURL = res.finalURL
		s.rateLimiter.ReportResult(host, res.status, nil)

		switch {
		case res.status >= 200 && res.status < 300:
			return &interfaces.FetchResult{
				Body:       res.body,
				StatusCode: res.status,
				FinalURL:   res.finalURL,
			}, nil

		case res.status == http.StatusTooManyRequests:
			wait := parseRetryAfter(res.retryAfter)
			s.logger.Warn().
				Str("url", rawURL).
				Int("attempt", attempt).
				Dur("retry_after", wait).
				Msg("Rate limited")
			if attempt < attempts-1 {
				if serr := sleepCtx(ctx, wait); serr != nil {
					return nil, serr
				}
			}

		case res.status >= 500:
			s.logger.Warn().
				Str("url", rawURL).
				Int("status", res.status).
				Int("attempt", attempt).
				Msg("Server error")
			if attempt < attempts-1 {
				if serr := sleepCtx(ctx, backoffDelay(retryDelay, attempt)); serr != nil {
					return nil, serr
				}
			}

		default:
			// Client errors are not retryable
			s.logger.Warn().
				Str("url", rawURL).
				Int("status", res.status).
				Msg("Client error")
			return &interfaces.FetchResult{StatusCode: res.status, FinalURL: res.finalURL}, nil
		}
	}

	if lastErr != nil {
		s.logger.Error().Str("url", rawURL).Err(lastErr).Msg("All retries failed")
		return nil, fmt.Errorf("fetch %s: %w", rawURL, lastErr)
	}

	s.logger.Error().Str("url", rawURL).Int("status", lastStatus).Msg("All retries failed")
	return &interfaces.FetchResult{StatusCode: lastStatus, FinalURL: finalURL}, nil
}

type attemptResult struct {
	body       []byte
	status     int
	finalURL   string
	retryAfter string
}

func (s *Service) attempt(ctx context.Context, rawURL string, timeout time.Duration) (*attemptResult, error) {
	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	res := &attemptResult{
		status:     resp.StatusCode,
		finalURL:   resp.Request.URL.String(),
		retryAfter: resp.Header.Get("Retry-After"),
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, int64(s.maxBodySize())))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		res.body = body
	}

	return res, nil
}

// allowed checks robots.txt for the URL's host, caching parsed rules per
// robots URL. Missing or unreachable robots.txt means allowed.
func (s *Service) allowed(ctx context.Context, u *url.URL) bool {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	s.robotsMu.RLock()
	rules, cached := s.robots[robotsURL]
	s.robotsMu.RUnlock()

	if !cached {
		rules = s.fetchRobots(ctx, robotsURL)
		s.robotsMu.Lock()
		s.robots[robotsURL] = rules
		s.robotsMu.Unlock()
	}

	if rules == nil {
		return true
	}
	return rules.Allowed(s.cfg.UserAgent, u.RequestURI())
}

func (s *Service) fetchRobots(ctx context.Context, robotsURL string) *robotsRules {
	reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug().Str("url", robotsURL).Err(err).Msg("Failed to fetch robots.txt")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBodySize))
	if err != nil {
		return nil
	}
	return parseRobots(string(body))
}

func (s *Service) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	// Accept-Encoding stays unset so the transport negotiates gzip and
	// decodes it transparently.
}

func (s *Service) requestTimeout() time.Duration {
	if s.cfg.RequestTimeout > 0 {
		return s.cfg.RequestTimeout
	}
	return 30 * time.Second
}

func (s *Service) maxBodySize() int {
	if s.cfg.MaxBodySize > 0 {
		return s.cfg.MaxBodySize
	}
	return defaultMaxBodySize
}

// parseRetryAfter interprets a Retry-After header value in seconds, falling
// back to 60s when absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultRetryAfter
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<uint(attempt))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Compile-time interface check
var _ interfaces.Fetcher = (*Service)(nil)
