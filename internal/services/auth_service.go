package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/dian-gateway/internal/auth"
	"github.com/BradenHooton/dian-gateway/internal/clock"
	"github.com/BradenHooton/dian-gateway/internal/models"
	pkgauth "github.com/BradenHooton/dian-gateway/pkg/auth"
	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
	pkglogger "github.com/BradenHooton/dian-gateway/pkg/logger"
)

// UserRepository defines the user lookups needed by the auth flow
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// LoginAttemptRecorder persists the login audit trail
type LoginAttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
}

// HostGuard is the part of HostBlockService the login flow depends on
type HostGuard interface {
	IsBlocked(ip string) bool
	RecordFailedAttempt(ip string)
	ResetAttempts(ip string)
	GetRemainingBlockTime(ip string) int
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	attempts    LoginAttemptRecorder
	hosts       HostGuard
	tm          *auth.TokenManager
	clock       clock.Clock
	retention   time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService. attempts may be nil, in which case
// the audit trail only goes to the audit log.
func NewAuthService(
	repo UserRepository,
	attempts LoginAttemptRecorder,
	hosts HostGuard,
	tm *auth.TokenManager,
	clk clock.Clock,
	retention time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:        repo,
		attempts:    attempts,
		hosts:       hosts,
		tm:          tm,
		clock:       clk,
		retention:   retention,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	User         *UserResponse `json:"user"`
}

// LoginRequest carries the credentials and the origin of a login
type LoginRequest struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// Login authenticates a user. A blocked host is refused with a
// *models.HostBlockedError before any credential is checked; bad credentials
// count against the host and return models.ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	ip := pkghttp.NormalizeIP(req.IPAddress)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if s.hosts.IsBlocked(ip) {
		minutes := s.hosts.GetRemainingBlockTime(ip)
		s.recordAttempt(ctx, email, ip, req.UserAgent, models.FailureHostBlocked)
		s.auditLogger.LogAdmissionDenied(models.FailureHostBlocked, ip, "/auth/login", time.Duration(minutes)*time.Minute)
		return nil, &models.HostBlockedError{RemainingMinutes: minutes}
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	var hash string
	if user != nil {
		hash = user.PasswordHash
	}
	// Always run bcrypt so unknown emails cost the same as wrong passwords
	passwordOK := pkgauth.VerifyPassword(hash, req.Password)

	switch {
	case user == nil || !passwordOK:
		return nil, s.fail(ctx, user, email, ip, req.UserAgent, models.FailureInvalidCredentials)
	case !user.Active:
		return nil, s.fail(ctx, user, email, ip, req.UserAgent, models.FailureAccountInactive)
	}

	s.hosts.ResetAttempts(ip)

	resp, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	s.recordAttempt(ctx, email, ip, req.UserAgent, "")
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login",
		UserID:    user.ID,
		Email:     email,
		IPAddress: ip,
		UserAgent: req.UserAgent,
		Success:   true,
	})
	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return resp, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The user is
// re-read so deactivated accounts cannot keep refreshing.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.tm.ValidateToken(refreshToken)
	if err != nil || claims.Type != models.TokenTypeRefresh {
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for refresh", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !user.Active {
		return nil, models.ErrAccountInactive
	}

	return s.issueTokens(user)
}

// Me returns the profile of the user identified by an access token
func (s *AuthService) Me(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *AuthService) fail(ctx context.Context, user *models.User, email, ip, userAgent, reason string) error {
	s.hosts.RecordFailedAttempt(ip)
	s.recordAttempt(ctx, email, ip, userAgent, reason)

	event := pkglogger.AuditEvent{
		EventType:     "login_failed",
		Email:         email,
		IPAddress:     ip,
		UserAgent:     userAgent,
		FailureReason: reason,
	}
	if user != nil {
		event.UserID = user.ID
	}
	s.auditLogger.LogAuthAttempt(event)
	return models.ErrUnauthorized
}

func (s *AuthService) issueTokens(user *models.User) (*AuthResponse, error) {
	accessToken, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		User:         toUserResponse(user),
	}, nil
}

// recordAttempt writes the audit row. Failures are logged and swallowed.
func (s *AuthService) recordAttempt(ctx context.Context, email, ip, userAgent, failureReason string) {
	if s.attempts == nil {
		return
	}

	now := s.clock.Now()
	attempt := &models.LoginAttempt{
		Email:       email,
		IPAddress:   ip,
		UserAgent:   userAgent,
		AttemptTime: now,
		Success:     failureReason == "",
		ExpiresAt:   now.Add(s.retention),
	}
	if failureReason != "" {
		attempt.FailureReason = &failureReason
	}

	if err := s.attempts.RecordAttempt(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("ip_address", ip),
			slog.Any("error", err))
	}
}

func toUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}
