package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBLogger_Migrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_events").
		WillReturnResult(sqlmock.NewResult(0, 0))

	logger := NewDBLogger(db)
	assert.NoError(t, logger.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_Log(t *testing.T) {
	t.Run("inserts the event", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		userID := int64(9)
		event := &Event{
			Timestamp:    time.Now(),
			EventType:    EventTypeRoleDelete,
			Status:       EventStatusSuccess,
			UserID:       &userID,
			ResourceType: ResourceTypeRole,
			ResourceID:   "5",
			RequestID:    "req-1",
			Message:      "role deleted: auditor",
			Metadata:     map[string]interface{}{"name": "auditor"},
		}

		mock.ExpectQuery("INSERT INTO audit_events").
			WithArgs(
				event.Timestamp, event.EventType, event.Status,
				event.UserID, event.Username, event.ResourceType, event.ResourceID,
				event.RequestID, event.IPAddress, event.Message, sqlmock.AnyArg(),
			).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		logger := NewDBLogger(db)
		require.NoError(t, logger.Log(context.Background(), event))
		assert.Equal(t, int64(42), event.ID)
	})

	t.Run("nil metadata inserts NULL", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		event := NewEvent(context.Background(), EventTypeAuthLogout, EventStatusSuccess)
		mock.ExpectQuery("INSERT INTO audit_events").
			WithArgs(
				sqlmock.AnyArg(), event.EventType, event.Status,
				nil, "", event.ResourceType, "",
				"", "", "", nil,
			).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		logger := NewDBLogger(db)
		assert.NoError(t, logger.Log(context.Background(), event))
	})
}

func TestMultiLogger(t *testing.T) {
	t.Run("every sink sees the event", func(t *testing.T) {
		first := &recordingLogger{}
		second := &recordingLogger{}
		multi := NewMultiLogger(first, second)

		event := NewEvent(context.Background(), EventTypeAuthLogin, EventStatusSuccess)
		require.NoError(t, multi.Log(context.Background(), event))
		assert.Equal(t, 1, first.calls)
		assert.Equal(t, 1, second.calls)
	})

	t.Run("first error wins but all sinks still run", func(t *testing.T) {
		failing := &recordingLogger{err: errors.New("sink down")}
		healthy := &recordingLogger{}
		multi := NewMultiLogger(failing, healthy)

		err := multi.Log(context.Background(), NewEvent(context.Background(), EventTypeAuthLogin, EventStatusSuccess))
		assert.EqualError(t, err, "sink down")
		assert.Equal(t, 1, healthy.calls)
	})
}

type recordingLogger struct {
	calls int
	err   error
}

func (l *recordingLogger) Log(ctx context.Context, event *Event) error {
	l.calls++
	return l.err
}

func (l *recordingLogger) Close() error { return nil }
