package database

import (
	"errors"
	"testing"

	"github.com/BradenHooton/dian-gateway/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPostgresError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, models.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, models.ErrConflict},
		{"fk violation", &pgconn.PgError{Code: "23503"}, models.ErrBadRequest},
		{"not null violation", &pgconn.PgError{Code: "23502"}, models.ErrBadRequest},
		{"other", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapPostgresError(tt.in))
		})
	}
}
