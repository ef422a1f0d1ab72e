package audit

import (
	"context"

	"github.com/edushield/edushield/pkg/observability"
)

// SlogLogger writes audit events to the structured application log.
// The default sink when no database logger is configured.
type SlogLogger struct {
	logger *observability.Logger
}

// NewSlogLogger creates an audit logger backed by the structured logger
func NewSlogLogger(logger *observability.Logger) *SlogLogger {
	return &SlogLogger{logger: logger.WithField("component", "audit")}
}

func (l *SlogLogger) Log(ctx context.Context, event *Event) error {
	entry := l.logger.WithFields(map[string]interface{}{
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	})
	if event.UserID != nil {
		entry = entry.WithField("user_id", *event.UserID)
	}
	if event.Username != "" {
		entry = entry.WithField("username", event.Username)
	}
	if event.ResourceType != "" {
		entry = entry.WithField("resource_type", string(event.ResourceType))
	}
	if event.ResourceID != "" {
		entry = entry.WithField("resource_id", event.ResourceID)
	}
	if event.RequestID != "" {
		entry = entry.WithField("request_id", event.RequestID)
	}
	if event.IPAddress != "" {
		entry = entry.WithField("ip_address", event.IPAddress)
	}
	for k, v := range event.Metadata {
		entry = entry.WithField(k, v)
	}

	message := event.Message
	if message == "" {
		message = string(event.EventType)
	}
	entry.Info(message)
	return nil
}

func (l *SlogLogger) Close() error { return nil }
