package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DBLogger persists audit events to postgres for later review
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger
func NewDBLogger(db *sql.DB) *DBLogger {
	return &DBLogger{db: db}
}

// Migrate creates the audit_events table if missing
func (l *DBLogger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL DEFAULT NOW(),
			event_type VARCHAR(100) NOT NULL,
			status VARCHAR(20) NOT NULL,
			user_id BIGINT,
			username VARCHAR(255),
			resource_type VARCHAR(50),
			resource_id VARCHAR(255),
			request_id VARCHAR(64),
			ip_address VARCHAR(64),
			message TEXT,
			metadata JSONB
		);

		CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
		CREATE INDEX IF NOT EXISTS idx_audit_events_user_id ON audit_events(user_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create audit_events table: %w", err)
	}
	return nil
}

func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (timestamp, event_type, status, user_id, username, resource_type, resource_id, request_id, ip_address, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := l.db.QueryRowContext(ctx, query,
		event.Timestamp,
		event.EventType,
		event.Status,
		event.UserID,
		event.Username,
		event.ResourceType,
		event.ResourceID,
		event.RequestID,
		event.IPAddress,
		event.Message,
		nullableJSON(metadataJSON),
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (l *DBLogger) Close() error { return nil }

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// MultiLogger fans events out to several sinks; the first error wins
// but every sink still gets the event.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines multiple audit sinks
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (l *MultiLogger) Log(ctx context.Context, event *Event) error {
	var firstErr error
	for _, logger := range l.loggers {
		if err := logger.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *MultiLogger) Close() error {
	var firstErr error
	for _, logger := range l.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
