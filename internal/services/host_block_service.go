package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/dian-gateway/internal/clock"
	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
)

const (
	// MaxLoginAttempts is the number of consecutive failures that blocks a host
	MaxLoginAttempts = 5
	// HostBlockDuration is measured from the latest failure, so failures during
	// an active block extend it
	HostBlockDuration = 5 * time.Minute
	// AttemptIdleTimeout forgets a host below MaxLoginAttempts once this long
	// has passed since its latest failure
	AttemptIdleTimeout = HostBlockDuration
)

// BlockHook is called once when a host crosses MaxLoginAttempts.
// It runs outside the service lock.
type BlockHook func(ip string, blockedUntil time.Time)

type blockEntry struct {
	attempts     int
	lastFailure  time.Time
	blockedUntil time.Time
}

// HostBlockService tracks consecutive login failures per client IP and blocks
// hosts that reach MaxLoginAttempts. State lives only in this process.
type HostBlockService struct {
	mu      sync.Mutex
	entries map[string]*blockEntry
	clock   clock.Clock
	logger  *slog.Logger
	onBlock BlockHook
}

// HostBlockOption configures a HostBlockService
type HostBlockOption func(*HostBlockService)

// WithBlockHook registers a callback for hosts entering the blocked state
func WithBlockHook(hook BlockHook) HostBlockOption {
	return func(s *HostBlockService) { s.onBlock = hook }
}

// NewHostBlockService creates a new HostBlockService
func NewHostBlockService(clk clock.Clock, logger *slog.Logger, opts ...HostBlockOption) *HostBlockService {
	s := &HostBlockService{
		entries: make(map[string]*blockEntry),
		clock:   clk,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsBlocked reports whether ip is currently blocked. Expired entries are
// removed, so the host starts over from zero attempts. Hosts still below
// MaxLoginAttempts keep their count until AttemptIdleTimeout passes.
func (s *HostBlockService) IsBlocked(ip string) bool {
	ip = pkghttp.NormalizeIP(ip)
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[ip]
	if !ok {
		return false
	}
	if s.expired(entry, now) {
		delete(s.entries, ip)
		return false
	}
	return entry.blockedUntil.After(now)
}

// RecordFailedAttempt counts a failed login for ip and (re)starts the block
// once MaxLoginAttempts is reached.
func (s *HostBlockService) RecordFailedAttempt(ip string) {
	ip = pkghttp.NormalizeIP(ip)
	now := s.clock.Now()

	s.mu.Lock()
	entry, ok := s.entries[ip]
	if !ok || s.expired(entry, now) {
		entry = &blockEntry{blockedUntil: now}
		s.entries[ip] = entry
	}

	entry.attempts++
	entry.lastFailure = now
	if entry.attempts >= MaxLoginAttempts {
		entry.blockedUntil = now.Add(HostBlockDuration)
	}
	attempts, until := entry.attempts, entry.blockedUntil
	s.mu.Unlock()

	if attempts < MaxLoginAttempts {
		return
	}

	s.logger.Warn("host blocked after failed logins",
		slog.String("ip_address", ip),
		slog.Int("attempts", attempts),
		slog.Time("blocked_until", until))

	if attempts == MaxLoginAttempts && s.onBlock != nil {
		s.onBlock(ip, until)
	}
}

// ResetAttempts forgets every failure recorded for ip
func (s *HostBlockService) ResetAttempts(ip string) {
	ip = pkghttp.NormalizeIP(ip)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, ip)
}

// GetRemainingBlockTime returns the whole minutes, rounded up, until ip is
// unblocked, or 0 when it is not blocked.
func (s *HostBlockService) GetRemainingBlockTime(ip string) int {
	ip = pkghttp.NormalizeIP(ip)
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[ip]
	if !ok || !entry.blockedUntil.After(now) {
		return 0
	}
	return ceilDiv(entry.blockedUntil.Sub(now), time.Minute)
}

// Cleanup drops hosts whose block has lapsed and hosts below the threshold
// idle for AttemptIdleTimeout. Returns the number of entries removed.
func (s *HostBlockService) Cleanup() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ip, entry := range s.entries {
		if s.expired(entry, now) {
			delete(s.entries, ip)
			removed++
		}
	}
	return removed
}

// expired reports an entry that can be forgotten: a block that is over, or
// failures below the threshold that went quiet. Below the threshold
// blockedUntil only records when tracking began.
func (s *HostBlockService) expired(entry *blockEntry, now time.Time) bool {
	if entry.attempts >= MaxLoginAttempts {
		return !entry.blockedUntil.After(now)
	}
	return now.Sub(entry.lastFailure) >= AttemptIdleTimeout
}

// ceilDiv divides a positive duration by unit, rounding up
func ceilDiv(d, unit time.Duration) int {
	return int((d + unit - 1) / unit)
}
