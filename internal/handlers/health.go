package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
)

// Pinger is satisfied by *database.DB
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Health handles GET /health
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
