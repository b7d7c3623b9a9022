package handlers

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/dian-gateway/internal/auth"
	"github.com/BradenHooton/dian-gateway/internal/models"
	"github.com/BradenHooton/dian-gateway/internal/stats"
	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
	pkglogger "github.com/BradenHooton/dian-gateway/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// HostBlockInspector is the admin view of the host block guard
type HostBlockInspector interface {
	IsBlocked(ip string) bool
	GetRemainingBlockTime(ip string) int
	ResetAttempts(ip string)
}

// LoginAttemptLister lists the audit trail for a host
type LoginAttemptLister interface {
	ListRecentByIP(ctx context.Context, ipAddress string, limit int) ([]*models.LoginAttempt, error)
}

// AdminHandler serves admission control administration endpoints
type AdminHandler struct {
	hosts       HostBlockInspector
	attempts    LoginAttemptLister
	stats       stats.Store
	ipConfig    *pkghttp.IPConfig
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. attempts and store may be nil.
func NewAdminHandler(
	hosts HostBlockInspector,
	attempts LoginAttemptLister,
	store stats.Store,
	ipConfig *pkghttp.IPConfig,
	auditLogger *pkglogger.AuditLogger,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		hosts:       hosts,
		attempts:    attempts,
		stats:       store,
		ipConfig:    ipConfig,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// HostBlockStatus is the body of GET /admin/hosts/{ip}/block
type HostBlockStatus struct {
	IP               string `json:"ip"`
	Blocked          bool   `json:"blocked"`
	RemainingMinutes int    `json:"remaining_minutes"`
}

// GetHostBlock handles GET /admin/hosts/{ip}/block
func (h *AdminHandler) GetHostBlock(w http.ResponseWriter, r *http.Request) {
	ip, ok := hostParam(w, r)
	if !ok {
		return
	}

	blocked := h.hosts.IsBlocked(ip)
	status := HostBlockStatus{IP: ip, Blocked: blocked}
	if blocked {
		status.RemainingMinutes = h.hosts.GetRemainingBlockTime(ip)
	}
	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// ResetHostBlock handles DELETE /admin/hosts/{ip}/block
func (h *AdminHandler) ResetHostBlock(w http.ResponseWriter, r *http.Request) {
	ip, ok := hostParam(w, r)
	if !ok {
		return
	}

	h.hosts.ResetAttempts(ip)

	var adminID string
	if claims := auth.GetUserFromContext(r); claims != nil {
		adminID = claims.UserID
	}
	h.auditLogger.LogAccountAction("host_block_reset", adminID, pkghttp.ClientIP(r, h.ipConfig),
		map[string]string{"target_ip": ip})

	w.WriteHeader(http.StatusNoContent)
}

// ListHostAttempts handles GET /admin/hosts/{ip}/attempts
// Accepts optional query param ?limit=N (1-100, default 20).
func (h *AdminHandler) ListHostAttempts(w http.ResponseWriter, r *http.Request) {
	if h.attempts == nil {
		pkghttp.WriteNotImplemented(w, "Historial de intentos no disponible")
		return
	}

	ip, ok := hostParam(w, r)
	if !ok {
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	attempts, err := h.attempts.ListRecentByIP(r.Context(), ip, limit)
	if err != nil {
		h.logger.Error("failed to list login attempts", slog.String("ip_address", ip), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Error al consultar los intentos")
		return
	}

	out := make([]loginAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, toLoginAttemptResponse(a))
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"ip": ip, "attempts": out})
}

// GetAdmissionStats handles GET /admin/admission/stats
func (h *AdminHandler) GetAdmissionStats(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.stats.(stats.Snapshotter)
	if !ok {
		pkghttp.WriteNotImplemented(w, "Las estadísticas no se pueden consultar en este despliegue")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, snap.Snapshot())
}

type loginAttemptResponse struct {
	Email         string  `json:"email"`
	UserAgent     string  `json:"user_agent"`
	AttemptTime   string  `json:"attempt_time"`
	Success       bool    `json:"success"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

func toLoginAttemptResponse(a *models.LoginAttempt) loginAttemptResponse {
	return loginAttemptResponse{
		Email:         pkglogger.SanitizedEmail(a.Email),
		UserAgent:     a.UserAgent,
		AttemptTime:   a.AttemptTime.UTC().Format(time.RFC3339),
		Success:       a.Success,
		FailureReason: a.FailureReason,
	}
}

// hostParam reads and normalizes the {ip} URL parameter
func hostParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	ip := chi.URLParam(r, "ip")
	if net.ParseIP(ip) == nil {
		pkghttp.WriteBadRequest(w, "Dirección IP inválida")
		return "", false
	}
	return pkghttp.NormalizeIP(ip), true
}
