package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BradenHooton/dian-gateway/internal/models"
	"github.com/BradenHooton/dian-gateway/internal/services"
	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	authResp, err := h.service.Login(r.Context(), services.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: pkghttp.ClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	})
	if err != nil {
		var blocked *models.HostBlockedError
		switch {
		case errors.As(err, &blocked):
			pkghttp.WriteTooManyRequests(w, "host_blocked", blocked.Error(), blocked.RetryAfter())
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Credenciales inválidas")
		default:
			pkghttp.WriteInternalError(w, "Error interno del servidor")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, authResp)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	authResp, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrAccountInactive):
			pkghttp.WriteUnauthorized(w, "Token de actualización inválido")
		default:
			pkghttp.WriteInternalError(w, "Error interno del servidor")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, authResp)
}

// decodeAndValidate reads a JSON body into dst and writes a 400 on failure
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		pkghttp.WriteBadRequest(w, "Cuerpo de la solicitud inválido")
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}
