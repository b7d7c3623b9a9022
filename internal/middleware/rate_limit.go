package middleware

import (
	"net/http"
	"strconv"
	"time"

	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for per-route limits layered on top of
// the global admission control
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// RateLimitByIP limits a route group per normalized client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			retryAfter := time.Minute
			if v := w.Header().Get("Retry-After"); v != "" {
				if secs, err := strconv.Atoi(v); err == nil {
					retryAfter = time.Duration(secs) * time.Second
				}
			}
			pkghttp.WriteTooManyRequests(w, "rate_limit_exceeded",
				"Demasiadas solicitudes. Intente nuevamente más tarde.", retryAfter)
		}),
	)
}
