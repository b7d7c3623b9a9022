package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BradenHooton/dian-gateway/internal/auth"
	"github.com/BradenHooton/dian-gateway/internal/models"
	"github.com/BradenHooton/dian-gateway/internal/services"
	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
)

// ProfileService returns the profile of an authenticated user
type ProfileService interface {
	Me(ctx context.Context, userID string) (*services.UserResponse, error)
}

// UserHandler serves endpoints about the calling user
type UserHandler struct {
	service ProfileService
}

func NewUserHandler(service ProfileService) *UserHandler {
	return &UserHandler{service: service}
}

// Me handles GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "No autenticado")
		return
	}

	user, err := h.service.Me(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Usuario no encontrado")
			return
		}
		pkghttp.WriteInternalError(w, "Error interno del servidor")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}
