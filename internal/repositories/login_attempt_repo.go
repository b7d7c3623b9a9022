package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/dian-gateway/internal/database"
	"github.com/BradenHooton/dian-gateway/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginAttemptRepository stores the login audit trail
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

// RecordAttempt records a login attempt in the database
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, ip_address, user_agent, success, failure_reason, attempt_time, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
		attempt.FailureReason,
		attempt.AttemptTime,
		attempt.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

// ListRecentByIP returns the latest attempts from ipAddress, newest first
func (r *LoginAttemptRepository) ListRecentByIP(ctx context.Context, ipAddress string, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id::text, email, ip_address, user_agent, attempt_time, success, failure_reason, expires_at
		FROM login_attempts
		WHERE ip_address = $1
		ORDER BY attempt_time DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, ipAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list login attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0, limit)
	for rows.Next() {
		var a models.LoginAttempt
		if err := rows.Scan(&a.ID, &a.Email, &a.IPAddress, &a.UserAgent, &a.AttemptTime, &a.Success, &a.FailureReason, &a.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login attempts: %w", err)
	}
	return attempts, nil
}

// DeleteExpired removes audit rows past their retention and returns how many went
func (r *LoginAttemptRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE expires_at <= CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired login attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}
