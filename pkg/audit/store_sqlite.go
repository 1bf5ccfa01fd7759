package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/havenmind/sentinel/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists audit events to an append-only SQLite table. There
// is no update or delete path; the trail is immutable once written.
type SQLiteStore struct {
	db    *sql.DB
	clock func() time.Time
}

// NewSQLiteStore wraps an open database handle and runs the schema
// migration.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, clock: time.Now}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS audit_events (
        event_id TEXT PRIMARY KEY,
        session_id TEXT NOT NULL,
        event_type TEXT NOT NULL,
        timestamp DATETIME NOT NULL,
        details JSON
    );
    CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_events (session_id, timestamp);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Record appends a single event.
func (s *SQLiteStore) Record(ctx context.Context, sessionID, eventType string, details map[string]any) error {
	query := `INSERT INTO audit_events (
		event_id, session_id, event_type, timestamp, details
	) VALUES (?, ?, ?, ?, ?)`

	detailsJSON, _ := json.Marshal(details)
	timestamp := s.clock().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(), sessionID, eventType, timestamp, string(detailsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// RecordTrail appends the events of one validation in order, preserving
// their original timestamps.
func (s *SQLiteStore) RecordTrail(ctx context.Context, sessionID string, trail []contracts.AuditEvent) error {
	query := `INSERT INTO audit_events (
		event_id, session_id, event_type, timestamp, details
	) VALUES (?, ?, ?, ?, ?)`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, ev := range trail {
		detailsJSON, _ := json.Marshal(ev.Detail)
		timestamp := ev.Timestamp.UTC().Format(time.RFC3339Nano)
		_, err := tx.ExecContext(ctx, query,
			uuid.New().String(), sessionID, ev.Event, timestamp, string(detailsJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}
	return tx.Commit()
}

// ListBySession returns at most limit events for a session, oldest first.
func (s *SQLiteStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]contracts.AuditEvent, error) {
	query := `
        SELECT event_type, timestamp, details
        FROM audit_events
        WHERE session_id = ?
        ORDER BY timestamp ASC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []contracts.AuditEvent
	for rows.Next() {
		var (
			eventType   string
			timestamp   string
			detailsJSON sql.NullString
		)
		if err := rows.Scan(&eventType, &timestamp, &detailsJSON); err != nil {
			return nil, err
		}

		var details map[string]any
		if detailsJSON.Valid && detailsJSON.String != "" {
			_ = json.Unmarshal([]byte(detailsJSON.String), &details)
		}

		events = append(events, contracts.AuditEvent{
			Event:     eventType,
			Timestamp: parseTime(timestamp),
			Detail:    details,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Count returns the total number of stored events.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&n)
	return n, err
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
