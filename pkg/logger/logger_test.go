package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"contador@empresa.com.co", "c*******@*******.***.co"},
		{"a@b.co", "a@*.co"},
		{"no-at-sign", "[invalid-email]"},
		{"a@b@c", "[invalid-email]"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizedEmail(tt.in))
		})
	}
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("refresh_TOKEN=abc"))
	assert.True(t, SanitizeQueryString("email=x@y.co"))
	assert.False(t, SanitizeQueryString("page=2&limit=10"))
	assert.False(t, SanitizeQueryString(""))
}

func newTestAuditLogger() (*AuditLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	al.now = func() time.Time { return time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC) }
	return al, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestLogAuthAttempt_MasksEmailAndWarnsOnFailure(t *testing.T) {
	al, buf := newTestAuditLogger()

	al.LogAuthAttempt(AuditEvent{
		EventType:     "login",
		Email:         "contador@empresa.co",
		IPAddress:     "192.168.1.1",
		FailureReason: "invalid_credentials",
	})

	line := decodeLine(t, buf)
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "c*******@*******.co", line["email"])
	assert.Equal(t, "192.168.1.1", line["ip_address"])
	assert.Equal(t, "2026-01-15T10:00:00Z", line["timestamp"])
	assert.NotContains(t, buf.String(), "contador@")
}

func TestLogAdmissionDenied(t *testing.T) {
	al, buf := newTestAuditLogger()

	al.LogAdmissionDenied("rate_limit_exceeded", "10.0.0.5", "/auth/login", 40*time.Second)

	line := decodeLine(t, buf)
	assert.Equal(t, "admission", line["audit_type"])
	assert.Equal(t, "rate_limit_exceeded", line["reason"])
	assert.Equal(t, float64(40), line["retry_after_seconds"])
}
