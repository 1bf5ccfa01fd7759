package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/sentinel/pkg/audit"
	"github.com/havenmind/sentinel/pkg/contracts"
)

func TestRecord_WritesPrefixedJSONLine(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	err := logger.Record(context.Background(), "sess-1", "validation_started", map[string]any{
		"text_length": 42,
	})
	require.NoError(t, err)

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "AUDIT: "))
	require.True(t, strings.HasSuffix(line, "\n"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "AUDIT: ")), &rec))
	assert.Equal(t, "sess-1", rec["session_id"])
	assert.Equal(t, "validation_started", rec["event_type"])
	assert.NotEmpty(t, rec["id"])
	assert.NotEmpty(t, rec["timestamp"])
	details, ok := rec["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), details["text_length"])
}

func TestRecordTrail_OneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	ts := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	trail := []contracts.AuditEvent{
		{Timestamp: ts, Event: "validation_started", Detail: map[string]any{"text_length": 10}},
		{Timestamp: ts.Add(time.Millisecond), Event: "rules_evaluated"},
		{Timestamp: ts.Add(2 * time.Millisecond), Event: "validation_completed"},
	}
	require.NoError(t, logger.RecordTrail(context.Background(), "sess-2", trail))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	for i, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "AUDIT: ")), &rec))
		assert.Equal(t, "sess-2", rec["session_id"])
		assert.Equal(t, trail[i].Event, rec["event_type"])
	}

	// Original event timestamps are preserved, not rewritten.
	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[0], "AUDIT: ")), &first))
	parsed, err := time.Parse(time.RFC3339Nano, first["timestamp"].(string))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
}

func TestNewLoggerWithWriter_NilFallsBackToStdout(t *testing.T) {
	logger := audit.NewLoggerWithWriter(nil)
	assert.NotNil(t, logger)
}

func TestNopLogger(t *testing.T) {
	var logger audit.Logger = audit.NopLogger{}
	assert.NoError(t, logger.Record(context.Background(), "s", "e", nil))
	assert.NoError(t, logger.RecordTrail(context.Background(), "s", []contracts.AuditEvent{{Event: "e"}}))
}
