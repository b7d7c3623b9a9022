package services_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/dian-gateway/internal/clock"
	"github.com/BradenHooton/dian-gateway/internal/models"
	"github.com/BradenHooton/dian-gateway/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateLimitService() (*services.RateLimitService, *clock.Fake) {
	clk := clock.NewFake(testEpoch)
	return services.NewRateLimitService(clk, discardLogger()), clk
}

func requireAllowed(t *testing.T, s *services.RateLimitService, ip string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.CheckRateLimit(ip), "request %d", i+1)
	}
}

func TestRateLimitService_AllowsUpToLimit(t *testing.T) {
	s, _ := newRateLimitService()

	requireAllowed(t, s, "10.0.0.5", services.MaxRequestsPerWindow)
}

func TestRateLimitService_RejectsOverLimit(t *testing.T) {
	s, clk := newRateLimitService()
	ip := "10.0.0.5"

	requireAllowed(t, s, ip, services.MaxRequestsPerWindow)
	clk.Advance(20 * time.Second)

	err := s.CheckRateLimit(ip)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrRateLimitExceeded))
	assert.Contains(t, err.Error(), "Demasiadas solicitudes")

	var rle *models.RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 40, rle.RetryAfterSeconds)
}

func TestRateLimitService_RetryAfterRoundsUp(t *testing.T) {
	s, clk := newRateLimitService()
	ip := "10.0.0.5"

	requireAllowed(t, s, ip, services.MaxRequestsPerWindow)
	clk.Advance(59*time.Second + 500*time.Millisecond)

	var rle *models.RateLimitError
	require.True(t, errors.As(s.CheckRateLimit(ip), &rle))
	assert.Equal(t, 1, rle.RetryAfterSeconds)
}

func TestRateLimitService_WindowResets(t *testing.T) {
	s, clk := newRateLimitService()
	ip := "10.0.0.5"

	requireAllowed(t, s, ip, services.MaxRequestsPerWindow)
	require.Error(t, s.CheckRateLimit(ip))

	clk.Advance(services.RateLimitWindow)

	requireAllowed(t, s, ip, services.MaxRequestsPerWindow)
	assert.Error(t, s.CheckRateLimit(ip))
}

func TestRateLimitService_FixedWindowEdgeBurst(t *testing.T) {
	s, clk := newRateLimitService()
	ip := "10.0.0.5"

	// first request opens the window, the rest arrive right before it closes
	requireAllowed(t, s, ip, 1)
	clk.Advance(services.RateLimitWindow - time.Millisecond)
	requireAllowed(t, s, ip, services.MaxRequestsPerWindow-1)

	clk.Advance(time.Millisecond)
	requireAllowed(t, s, ip, services.MaxRequestsPerWindow)
}

func TestRateLimitService_LoopbackFormsShareWindow(t *testing.T) {
	s, _ := newRateLimitService()

	requireAllowed(t, s, "::1", 30)
	requireAllowed(t, s, "::ffff:127.0.0.1", 30)

	assert.Error(t, s.CheckRateLimit("127.0.0.1"))
}

func TestRateLimitService_IPsAreIndependent(t *testing.T) {
	s, _ := newRateLimitService()

	requireAllowed(t, s, "10.0.0.5", services.MaxRequestsPerWindow)
	require.Error(t, s.CheckRateLimit("10.0.0.5"))

	assert.NoError(t, s.CheckRateLimit("10.0.0.6"))
}

func TestRateLimitService_CleanupRemovesOnlyExpired(t *testing.T) {
	s, clk := newRateLimitService()

	requireAllowed(t, s, "10.0.0.5", 10)
	clk.Advance(30 * time.Second)
	requireAllowed(t, s, "10.0.0.6", services.MaxRequestsPerWindow)

	clk.Advance(30 * time.Second)
	assert.Equal(t, 1, s.Cleanup())

	// the live window keeps its count
	assert.Error(t, s.CheckRateLimit("10.0.0.6"))

	clk.Advance(30 * time.Second)
	assert.Equal(t, 1, s.Cleanup())
	assert.Equal(t, 0, s.Cleanup())
}

func TestRateLimitService_ConcurrentRequestsAreCounted(t *testing.T) {
	s, _ := newRateLimitService()
	ip := "10.0.0.7"
	const total = 200

	var rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.CheckRateLimit(ip) != nil {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(total-services.MaxRequestsPerWindow), rejected.Load())
}

func TestRateLimitService_Scenario(t *testing.T) {
	s, _ := newRateLimitService()
	ip := "10.0.0.5"

	requireAllowed(t, s, ip, 60)

	var rle *models.RateLimitError
	require.True(t, errors.As(s.CheckRateLimit(ip), &rle))
	assert.Greater(t, rle.RetryAfterSeconds, 0)
	assert.LessOrEqual(t, rle.RetryAfterSeconds, 60)
}
