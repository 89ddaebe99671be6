package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(&Config{Level: "debug", Format: "json", Output: buf, ServiceName: "test"})
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &out))
	return out
}

func TestWithRun_TagsContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())
	ctx = WithRun(ctx, "run-1", "employee-roster")
	ctx = SetSource(ctx, "empleados.csv")

	FromContext(ctx).Info("Run started")

	line := lastLine(t, &buf)
	assert.Equal(t, "run-1", line[FieldRunID])
	assert.Equal(t, "employee-roster", line[FieldFileType])
	assert.Equal(t, "empleados.csv", line[FieldSource])
	assert.Equal(t, "test", line["service"])
	assert.Equal(t, "Run started", line["message"])
	assert.Equal(t, "run-1", RunID(ctx))
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
	assert.Equal(t, "", RunID(context.Background()))
}

func TestEntry_MergesMetricFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())

	base := With(Fields{FieldCount: 1})
	base.With(Fields{FieldCount: 3}).WithBatch(2).WithDuration(15).WithStatus("ok").Warn(ctx, "batch %d slow", 2)

	line := lastLine(t, &buf)
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "batch 2 slow", line["message"])
	assert.EqualValues(t, 3, line[FieldCount])
	assert.EqualValues(t, 2, line[FieldBatch])
	assert.EqualValues(t, 15, line[FieldDurationMs])
	assert.Equal(t, "ok", line[FieldStatus])
	// The parent entry is not mutated.
	assert.Equal(t, Fields{FieldCount: 1}, base.fields)
}

func TestNew_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "warn", Format: "text", Output: &buf, ServiceName: "svc"})
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "service=svc")
}

func TestSync_WithoutFileIsNoop(t *testing.T) {
	require.NoError(t, Sync())
}
