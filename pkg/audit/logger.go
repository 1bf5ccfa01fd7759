// Package audit records the validation and intervention audit trail as
// structured JSON events and offers an append-only SQLite sink for
// durable storage.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/havenmind/sentinel/pkg/contracts"
)

// Logger defines the interface for recording pipeline audit events.
type Logger interface {
	Record(ctx context.Context, sessionID, eventType string, details map[string]any) error
	RecordTrail(ctx context.Context, sessionID string, trail []contracts.AuditEvent) error
}

// jsonLogger implements Logger, writing structured JSON lines to a
// configurable Writer.
type jsonLogger struct {
	mu     sync.Mutex
	writer io.Writer
	clock  func() time.Time
}

// record is the on-wire shape of one audit line.
type record struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
// This allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &jsonLogger{writer: w, clock: time.Now}
}

func (l *jsonLogger) Record(ctx context.Context, sessionID, eventType string, details map[string]any) error {
	return l.write(record{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		EventType: eventType,
		Timestamp: l.clock(),
		Details:   details,
	})
}

func (l *jsonLogger) RecordTrail(ctx context.Context, sessionID string, trail []contracts.AuditEvent) error {
	for _, ev := range trail {
		err := l.write(record{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			EventType: ev.Event,
			Timestamp: ev.Timestamp,
			Details:   ev.Detail,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *jsonLogger) write(rec record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bytes, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(bytes, '\n')...))
	return err
}

// NopLogger discards all events.
type NopLogger struct{}

func (NopLogger) Record(context.Context, string, string, map[string]any) error { return nil }

func (NopLogger) RecordTrail(context.Context, string, []contracts.AuditEvent) error { return nil }
