package audit

import (
	"context"
	"time"

	"github.com/edushield/edushield/pkg/contextkeys"
	"github.com/edushield/edushield/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes any buffered events
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextkeys.AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context, falling back
// to a no-op logger so call sites never have to nil-check.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return &noOpLogger{}
}

// NewEvent builds an event stamped with the request context
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	e := &Event{
		Timestamp: time.Now(),
		EventType: eventType,
		Status:    status,
		RequestID: observability.GetRequestID(ctx),
	}
	return e
}

// noOpLogger discards every event. Used when auditing is disabled or
// unconfigured.
type noOpLogger struct{}

// NewNoOpLogger returns a logger that discards all events
func NewNoOpLogger() Logger { return &noOpLogger{} }

func (l *noOpLogger) Log(ctx context.Context, event *Event) error { return nil }

func (l *noOpLogger) Close() error { return nil }
