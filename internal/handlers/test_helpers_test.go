package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/dian-gateway/internal/auth"
	"github.com/BradenHooton/dian-gateway/internal/models"
	"github.com/BradenHooton/dian-gateway/internal/services"
	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRequest creates an HTTP request with a JSON body
func newTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withClaims adds token claims to the request context
func withClaims(req *http.Request, userID, role string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Role:   role,
		Type:   models.TokenTypeAccess,
	}
	return req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
}

// withURLParam sets a chi URL parameter on the request
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// assertErrorResponse checks the status and error code of a JSON error body
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// mockAuthService implements AuthServiceInterface and ProfileService
type mockAuthService struct {
	LoginFunc   func(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error)
	RefreshFunc func(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	MeFunc      func(ctx context.Context, userID string) (*services.UserResponse, error)
}

func (m *mockAuthService) Login(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, req)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshFunc(ctx, refreshToken)
}

func (m *mockAuthService) Me(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.MeFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.MeFunc(ctx, userID)
}
