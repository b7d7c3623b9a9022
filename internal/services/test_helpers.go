package services

import (
	"context"
	"sync"

	"github.com/BradenHooton/dian-gateway/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

// MockLoginAttemptRecorder captures recorded attempts
type MockLoginAttemptRecorder struct {
	mu       sync.Mutex
	Attempts []*models.LoginAttempt
	Err      error
}

func (m *MockLoginAttemptRecorder) RecordAttempt(_ context.Context, attempt *models.LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts = append(m.Attempts, attempt)
	return m.Err
}

// Recorded returns a copy of the attempts seen so far
func (m *MockLoginAttemptRecorder) Recorded() []*models.LoginAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.LoginAttempt(nil), m.Attempts...)
}
