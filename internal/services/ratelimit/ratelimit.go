package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// Adaptive pacing bounds and adjustment factors. A burst of 429s halves a
// host's rate; server errors apply a gentler cut; each success nudges the
// rate back up.
const (
	speedupFactor = 1.1
	backoffFactor = 0.5
	errorFactor   = 0.75
)

// Service implements per-host request pacing. Every outbound request waits
// on its host's token bucket, so parallel crawls of many companies never
// concentrate traffic on a single ATS host.
type Service struct {
	hosts    map[string]*hostLimiter
	mu       sync.RWMutex
	initial  float64
	minRate  float64
	maxRate  float64
	adaptive bool
	logger   arbor.ILogger
}

// hostLimiter tracks pacing state for a single host
type hostLimiter struct {
	limiter *rate.Limiter
	rps     float64
	mu      sync.Mutex
}

// NewService creates a rate limiter from configuration. With adaptive mode
// off, every host is paced at the fixed default delay.
func NewService(cfg common.RateLimitConfig, logger arbor.ILogger) *Service {
	initial := 1.0
	if cfg.DefaultDelay > 0 {
		initial = float64(time.Second) / float64(cfg.DefaultDelay)
	}

	minRate := cfg.MinRate
	if minRate <= 0 {
		minRate = 0.1
	}
	maxRate := cfg.MaxRate
	if maxRate <= 0 {
		maxRate = 5.0
	}
	// The bounds only constrain adaptation; a fixed delay is honored exactly.
	if cfg.Adaptive {
		initial = clamp(initial, minRate, maxRate)
	}

	return &Service{
		hosts:    make(map[string]*hostLimiter),
		initial:  initial,
		minRate:  minRate,
		maxRate:  maxRate,
		adaptive: cfg.Adaptive,
		logger:   logger,
	}
}

// Wait blocks until a request to the host is permitted, or the context is
// cancelled. Accepts either a bare host or a full URL.
func (s *Service) Wait(ctx context.Context, host string) error {
	key := normalizeHost(host)
	if key == "" {
		return nil
	}

	hl := s.hostFor(key)

	hl.mu.Lock()
	limiter := hl.limiter
	hl.mu.Unlock()

	return limiter.Wait(ctx)
}

// ReportResult feeds a response back into the pacing state. Ignored unless
// adaptive mode is on.
func (s *Service) ReportResult(host string, statusCode int, err error) {
	if !s.adaptive {
		return
	}

	key := normalizeHost(host)
	if key == "" {
		return
	}

	hl := s.hostFor(key)
	hl.mu.Lock()
	defer hl.mu.Unlock()

	old := hl.rps
	switch {
	case statusCode == 429:
		hl.rps = clamp(hl.rps*backoffFactor, s.minRate, s.maxRate)
	case err != nil || statusCode >= 500:
		hl.rps = clamp(hl.rps*errorFactor, s.minRate, s.maxRate)
	case statusCode >= 200 && statusCode < 400:
		hl.rps = clamp(hl.rps*speedupFactor, s.minRate, s.maxRate)
	default:
		return
	}

	if hl.rps != old {
		hl.limiter.SetLimit(rate.Limit(hl.rps))
		if statusCode == 429 {
			s.logger.Info().
				Str("host", key).
				Float64("old_rps", old).
				Float64("new_rps", hl.rps).
				Msg("Backing off rate-limited host")
		}
	}
}

// CurrentRate returns the requests-per-second currently allowed for a host.
func (s *Service) CurrentRate(host string) float64 {
	key := normalizeHost(host)
	hl := s.hostFor(key)

	hl.mu.Lock()
	defer hl.mu.Unlock()
	return hl.rps
}

// Reset clears pacing state for one host, or all hosts when empty.
func (s *Service) Reset(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if host == "" {
		s.hosts = make(map[string]*hostLimiter)
		return
	}
	delete(s.hosts, normalizeHost(host))
}

func (s *Service) hostFor(key string) *hostLimiter {
	s.mu.RLock()
	hl, ok := s.hosts[key]
	s.mu.RUnlock()
	if ok {
		return hl
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if hl, ok := s.hosts[key]; ok {
		return hl
	}

	hl = &hostLimiter{
		limiter: rate.NewLimiter(rate.Limit(s.initial), 1),
		rps:     s.initial,
	}
	s.hosts[key] = hl
	return hl
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return ""
	}
	if strings.Contains(host, "://") {
		if parsed, err := url.Parse(host); err == nil {
			return parsed.Hostname()
		}
	}
	// Strip any path that slipped through
	if idx := strings.IndexAny(host, "/?"); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return host
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Compile-time interface check
var _ interfaces.RateLimiter = (*Service)(nil)
