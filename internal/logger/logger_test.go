package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlogAdapter_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	l.Debug("savepoint created", "name", "sqlweave_sp_2")
	l.Info("connection opened", "conn_id", "c-1")
	l.Warn("pool exhausted, waiting", "max", 1)
	l.Error("rollback failed", "error", "conn reset")

	out := buf.String()
	assert.NotContains(t, out, "savepoint created")
	assert.Contains(t, out, `level=INFO msg="connection opened" conn_id=c-1`)
	assert.Contains(t, out, `level=WARN msg="pool exhausted, waiting" max=1`)
	assert.Contains(t, out, `level=ERROR msg="rollback failed" error="conn reset"`)
}

func TestSlogAdapterStatementRecord(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	logger := With(NewSlogAdapter(slog.New(handler)), "conn_id", "c-1")

	logger.Debug("statement executed",
		"sql", "SELECT * FROM users WHERE id = $1",
		"params", "[7]",
		"duration_ms", 15,
		"tx_depth", 0)

	output := buf.String()
	assert.Contains(t, output, `"msg":"statement executed"`)
	assert.Contains(t, output, `"conn_id":"c-1"`)
	assert.Contains(t, output, `"sql":"SELECT * FROM users WHERE id = $1"`)
	assert.Contains(t, output, `"duration_ms":15`)
	assert.Contains(t, output, `"tx_depth":0`)
}

type recordingLogger struct {
	NoopLogger
	args []any
}

func (r *recordingLogger) Warn(_ string, args ...any) { r.args = args }

func TestWith(t *testing.T) {
	t.Run("wraps plain loggers", func(t *testing.T) {
		rec := &recordingLogger{}
		l := With(rec, "pool", "bounded")
		l.Warn("waiting", "max", 1)
		assert.Equal(t, []any{"pool", "bounded", "max", 1}, rec.args)
	})

	t.Run("noop stays noop", func(t *testing.T) {
		_, ok := With(&NoopLogger{}, "k", "v").(*NoopLogger)
		assert.True(t, ok)
		_, ok = With(nil, "k", "v").(*NoopLogger)
		assert.True(t, ok)
	})

	t.Run("no fields returns same logger", func(t *testing.T) {
		rec := &recordingLogger{}
		assert.Same(t, rec, With(rec).(*recordingLogger))
	})
}

func BenchmarkWith(b *testing.B) {
	l := With(&recordingLogger{}, "conn_id", "c-1")
	for i := 0; i < b.N; i++ {
		l.Warn("statement failed", "sql", "SELECT 1", "duration_ms", 15)
	}
}
