package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

const startupTestTimeout = 30 * time.Second

// Service renders JavaScript-heavy careers pages through a small pool of
// headless Chrome instances. Each Render opens a fresh tab on a pooled
// browser, so concurrent renders never share page state.
type Service struct {
	browsers       []context.Context
	browserCancels []context.CancelFunc
	allocCancels   []context.CancelFunc
	mu             sync.Mutex
	next           int
	initialized    bool

	cfg       common.RenderConfig
	userAgent string
	logger    arbor.ILogger
}

// NewService creates a render service. Browsers launch lazily on the first
// Render call so deployments without Chrome only pay when rendering is used.
func NewService(cfg common.RenderConfig, userAgent string, logger arbor.ILogger) *Service {
	return &Service{
		cfg:       cfg,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Render navigates to the URL, waits for JavaScript to settle and returns
// the resulting HTML.
func (s *Service) Render(ctx context.Context, url string) (string, error) {
	browserCtx, err := s.acquire()
	if err != nil {
		return "", err
	}

	// Fresh tab per render
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	// Propagate caller cancellation into the tab
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	runCtx, cancel := context.WithTimeout(tabCtx, s.timeout())
	defer cancel()

	waitTime := s.cfg.WaitTime
	if waitTime <= 0 {
		waitTime = 3 * time.Second
	}

	start := time.Now()
	var html string
	err = chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(waitTime),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("render %s: %w", url, err)
	}

	s.logger.Debug().
		Str("url", url).
		Int("html_size", len(html)).
		Dur("duration", time.Since(start)).
		Msg("Page rendered")

	return html, nil
}

// Close shuts down all pooled browsers.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}

	count := len(s.browsers)
	done := make(chan struct{})
	go func() {
		s.cleanupLocked()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.logger.Warn().Int("browser_count", count).Msg("Browser pool shutdown timed out")
	}

	s.initialized = false
	s.logger.Info().Int("browsers_closed", count).Msg("Render pool shut down")
	return nil
}

// acquire returns a pooled browser context using round-robin allocation,
// initializing the pool on first use.
func (s *Service) acquire() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		if err := s.initLocked(); err != nil {
			return nil, err
		}
	}

	if len(s.browsers) == 0 {
		return nil, fmt.Errorf("no browser instances available")
	}

	browserCtx := s.browsers[s.next%len(s.browsers)]
	s.next = (s.next + 1) % len(s.browsers)
	return browserCtx, nil
}

func (s *Service) initLocked() error {
	poolSize := s.cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}

	s.logger.Info().
		Int("pool_size", poolSize).
		Bool("headless", s.cfg.Headless).
		Dur("js_wait_time", s.cfg.WaitTime).
		Msg("Initializing browser pool")

	successCount := 0
	var lastErr error
	for i := 0; i < poolSize; i++ {
		if err := s.createBrowserLocked(i); err != nil {
			lastErr = err
			s.logger.Warn().
				Err(err).
				Int("browser_index", i).
				Msg("Failed to create browser instance")
			continue
		}
		successCount++
	}

	if successCount == 0 {
		s.cleanupLocked()
		return fmt.Errorf("failed to create any browser instances: %w", lastErr)
	}

	s.initialized = true
	s.logger.Info().Int("browsers_created", successCount).Msg("Browser pool initialized")
	return nil
}

func (s *Service) createBrowserLocked(index int) error {
	start := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(s.userAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Startup test so a broken Chrome install fails fast
	testCtx, testCancel := context.WithTimeout(browserCtx, startupTestTimeout)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	s.browsers = append(s.browsers, browserCtx)
	s.browserCancels = append(s.browserCancels, browserCancel)
	s.allocCancels = append(s.allocCancels, allocCancel)

	s.logger.Debug().
		Int("browser_index", index).
		Dur("startup_time", time.Since(start)).
		Msg("Browser instance created")

	return nil
}

func (s *Service) cleanupLocked() {
	for _, cancel := range s.browserCancels {
		if cancel != nil {
			cancel()
		}
	}
	for _, cancel := range s.allocCancels {
		if cancel != nil {
			cancel()
		}
	}
	s.browsers = nil
	s.browserCancels = nil
	s.allocCancels = nil
	s.next = 0
}

func (s *Service) timeout() time.Duration {
	if s.cfg.Timeout > 0 {
		return s.cfg.Timeout
	}
	return 45 * time.Second
}

// Compile-time interface check
var _ interfaces.RenderService = (*Service)(nil)
