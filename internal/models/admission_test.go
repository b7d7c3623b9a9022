package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("admission: %w", &RateLimitError{RetryAfterSeconds: 42})

	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
	assert.False(t, errors.Is(err, ErrHostBlocked))

	var rle *RateLimitError
	assert.True(t, errors.As(err, &rle))
	assert.Equal(t, 42*time.Second, rle.RetryAfter())
	assert.Contains(t, rle.Error(), "Demasiadas solicitudes")
	assert.Contains(t, rle.Error(), "42 segundos")
}

func TestHostBlockedError_MatchesSentinel(t *testing.T) {
	err := &HostBlockedError{RemainingMinutes: 5}

	assert.True(t, errors.Is(err, ErrHostBlocked))
	assert.False(t, errors.Is(err, ErrRateLimitExceeded))
	assert.Equal(t, 5*time.Minute, err.RetryAfter())
	assert.Contains(t, err.Error(), "5 minutos")
}
