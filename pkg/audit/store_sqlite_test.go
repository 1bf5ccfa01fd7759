package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/sentinel/pkg/audit"
	"github.com/havenmind/sentinel/pkg/contracts"
)

func newMockStore(t *testing.T) (*audit.SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_events").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := audit.NewSQLiteStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestSQLiteStore_Record(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), "sess-1", "crisis_detected", sqlmock.AnyArg(), `{"types":["self_harm"]}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Record(context.Background(), "sess-1", "crisis_detected", map[string]any{
		"types": []string{"self_harm"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_RecordTrail_SingleTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	trail := []contracts.AuditEvent{
		{Timestamp: time.Now(), Event: "validation_started"},
		{Timestamp: time.Now(), Event: "validation_completed"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), "sess-2", "validation_started", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), "sess-2", "validation_completed", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, store.RecordTrail(context.Background(), "sess-2", trail))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_RecordTrail_RollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	trail := []contracts.AuditEvent{
		{Timestamp: time.Now(), Event: "validation_started"},
		{Timestamp: time.Now(), Event: "validation_completed"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_events").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := store.RecordTrail(context.Background(), "sess-3", trail)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ListBySession(t *testing.T) {
	store, mock := newMockStore(t)

	ts := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"event_type", "timestamp", "details"}).
		AddRow("validation_started", ts.Format(time.RFC3339Nano), `{"text_length":12}`).
		AddRow("validation_completed", ts.Add(time.Millisecond).Format(time.RFC3339Nano), nil)

	mock.ExpectQuery("SELECT event_type, timestamp, details").
		WithArgs("sess-4", 10).
		WillReturnRows(rows)

	events, err := store.ListBySession(context.Background(), "sess-4", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "validation_started", events[0].Event)
	assert.True(t, events[0].Timestamp.Equal(ts))
	assert.Equal(t, float64(12), events[0].Detail["text_length"])

	assert.Equal(t, "validation_completed", events[1].Event)
	assert.Nil(t, events[1].Detail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_Count(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_events`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
