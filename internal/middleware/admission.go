package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/BradenHooton/dian-gateway/internal/models"
	"github.com/BradenHooton/dian-gateway/internal/stats"
	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
	pkglogger "github.com/BradenHooton/dian-gateway/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const (
	statsRecordTimeout = 2 * time.Second
	// statsQueueSize bounds the events waiting for the stats worker. Events
	// arriving while the queue is full are dropped.
	statsQueueSize = 1024
)

// RequestLimiter is satisfied by services.RateLimitService
type RequestLimiter interface {
	CheckRateLimit(ip string) error
}

// AdmissionConfig wires the global admission middleware
type AdmissionConfig struct {
	Limiter  RequestLimiter
	Stats    stats.Store // optional
	IPConfig *pkghttp.IPConfig
	Audit    *pkglogger.AuditLogger
	Logger   *slog.Logger
	Now      func() time.Time
}

// AdmissionControl counts every request against the per-IP rate limit and
// answers 429 once the client's window is exhausted.
func AdmissionControl(cfg AdmissionConfig) func(http.Handler) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	var recorder *statsRecorder
	if cfg.Stats != nil {
		recorder = newStatsRecorder(cfg.Stats, cfg.Logger, statsQueueSize)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ClientIP(r, cfg.IPConfig)
			err := cfg.Limiter.CheckRateLimit(ip)

			if recorder != nil {
				recorder.enqueue(stats.Event{
					Key:     ip,
					Allowed: err == nil,
					Method:  r.Method,
					Path:    routePattern(r),
					At:      cfg.Now(),
				})
			}

			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			var rlErr *models.RateLimitError
			if !errors.As(err, &rlErr) {
				cfg.Logger.Error("admission check failed", slog.String("ip_address", ip), slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Error interno del servidor")
				return
			}

			if cfg.Audit != nil {
				cfg.Audit.LogAdmissionDenied("rate_limit_exceeded", ip, r.URL.Path, rlErr.RetryAfter())
			}
			pkghttp.WriteTooManyRequests(w, "rate_limit_exceeded", rlErr.Error(), rlErr.RetryAfter())
		})
	}
}

// statsRecorder feeds admission events to one worker through a bounded queue
type statsRecorder struct {
	store   stats.Store
	logger  *slog.Logger
	events  chan stats.Event
	dropped atomic.Uint64
}

func newStatsRecorder(store stats.Store, logger *slog.Logger, size int) *statsRecorder {
	rec := &statsRecorder{
		store:  store,
		logger: logger,
		events: make(chan stats.Event, size),
	}
	go rec.run()
	return rec
}

// enqueue never blocks. It reports false when the event was dropped.
func (rec *statsRecorder) enqueue(ev stats.Event) bool {
	select {
	case rec.events <- ev:
		return true
	default:
		if n := rec.dropped.Add(1); n == 1 || n%statsQueueSize == 0 {
			rec.logger.Warn("admission stats queue full, dropping events", slog.Uint64("dropped_total", n))
		}
		return false
	}
}

func (rec *statsRecorder) run() {
	for ev := range rec.events {
		ctx, cancel := context.WithTimeout(context.Background(), statsRecordTimeout)
		if err := rec.store.Record(ctx, ev); err != nil {
			rec.logger.Warn("failed to record admission stats", slog.Any("error", err))
		}
		cancel()
	}
}

// routePattern resolves the chi pattern for the request so stats keys stay
// bounded (e.g. /admin/hosts/{ip}/block rather than one key per IP)
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return "unmatched"
	}
	if pattern := rctx.Routes.Find(chi.NewRouteContext(), r.Method, r.URL.Path); pattern != "" {
		return pattern
	}
	return "unmatched"
}
