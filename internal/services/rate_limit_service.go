package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/dian-gateway/internal/clock"
	"github.com/BradenHooton/dian-gateway/internal/models"
	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
)

const (
	// MaxRequestsPerWindow is the number of requests a client may make per window
	MaxRequestsPerWindow = 60
	// RateLimitWindow is the length of the fixed window
	RateLimitWindow = 60 * time.Second
)

type rateWindow struct {
	count     int
	resetTime time.Time
}

// RateLimitService is a fixed-window request limiter keyed by client IP.
// A burst straddling a window edge can admit up to twice the limit.
type RateLimitService struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	clock   clock.Clock
	logger  *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(clk clock.Clock, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		windows: make(map[string]*rateWindow),
		clock:   clk,
		logger:  logger,
	}
}

// CheckRateLimit counts a request from ip. It returns a *models.RateLimitError
// when the request exceeds MaxRequestsPerWindow in the current window.
func (s *RateLimitService) CheckRateLimit(ip string) error {
	ip = pkghttp.NormalizeIP(ip)
	now := s.clock.Now()

	s.mu.Lock()
	window, ok := s.windows[ip]
	if !ok || !window.resetTime.After(now) {
		window = &rateWindow{resetTime: now.Add(RateLimitWindow)}
		s.windows[ip] = window
	}
	window.count++
	count, resetTime := window.count, window.resetTime
	s.mu.Unlock()

	if count <= MaxRequestsPerWindow {
		return nil
	}

	retryAfter := ceilDiv(resetTime.Sub(now), time.Second)
	if count == MaxRequestsPerWindow+1 {
		s.logger.Warn("rate limit exceeded",
			slog.String("ip_address", ip),
			slog.Int("retry_after_seconds", retryAfter))
	}
	return &models.RateLimitError{RetryAfterSeconds: retryAfter}
}

// Cleanup drops expired windows. CheckRateLimit replaces expired windows on
// its own, this only bounds memory. Returns the number of windows removed.
func (s *RateLimitService) Cleanup() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ip, window := range s.windows {
		if !window.resetTime.After(now) {
			delete(s.windows, ip)
			removed++
		}
	}
	return removed
}
