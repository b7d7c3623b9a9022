package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Email         string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
}

// AuditLogger writes security events to a dedicated slog stream
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// LogAuthAttempt logs authentication attempts. Emails are masked.
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := al.baseAttrs("auth", event.EventType)
	attrs = append(attrs, slog.Bool("success", event.Success))

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAdmissionDenied logs a request turned away by an admission guard
func (al *AuditLogger) LogAdmissionDenied(reason, ipAddress, path string, retryAfter time.Duration) {
	attrs := al.baseAttrs("admission", "request_denied")
	attrs = append(attrs,
		slog.String("reason", reason),
		slog.String("ip_address", ipAddress),
		slog.String("path", path),
		slog.Int64("retry_after_seconds", int64(retryAfter/time.Second)),
	)
	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}

// LogAccountAction logs administrative actions taken by a user
func (al *AuditLogger) LogAccountAction(eventType, userID, ipAddress string, metadata map[string]string) {
	attrs := al.baseAttrs("account", eventType)
	attrs = append(attrs, slog.String("user_id", userID))

	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}
	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

func (al *AuditLogger) baseAttrs(auditType, eventType string) []slog.Attr {
	return []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", eventType),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
}
