package models

import (
	"fmt"
	"time"
)

// RateLimitError rejects a request whose client exhausted its request window.
// It matches ErrRateLimitExceeded with errors.Is.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Demasiadas solicitudes. Intente nuevamente en %d segundos.", e.RetryAfterSeconds)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// RetryAfter returns the wait as a duration
func (e *RateLimitError) RetryAfter() time.Duration {
	return time.Duration(e.RetryAfterSeconds) * time.Second
}

// HostBlockedError rejects a login from a host that failed too many times.
// It matches ErrHostBlocked with errors.Is.
type HostBlockedError struct {
	RemainingMinutes int
}

func (e *HostBlockedError) Error() string {
	return fmt.Sprintf("Demasiados intentos fallidos. Intente nuevamente en %d minutos.", e.RemainingMinutes)
}

func (e *HostBlockedError) Is(target error) bool {
	return target == ErrHostBlocked
}

func (e *HostBlockedError) RetryAfter() time.Duration {
	return time.Duration(e.RemainingMinutes) * time.Minute
}
