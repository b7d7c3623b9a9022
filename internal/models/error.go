package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	ErrAccountInactive = errors.New("account is inactive")

	// Admission denials, see RateLimitError and HostBlockedError
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrHostBlocked       = errors.New("host temporarily blocked")
)
