package tracer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestTracer(t *testing.T) (*OtelTracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOtelTracer(tp.Tracer("test")), exporter
}

func attrMap(kvs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func TestNoopTracer(t *testing.T) {
	tracer := &NoopTracer{}
	ctx := context.Background()

	got, span := tracer.StartSpan(ctx, SpanQuery)
	assert.Equal(t, ctx, got)
	assert.NotNil(t, span)

	span.SetAttributes(attribute.String("key", "value"))
	span.RecordError(errors.New("test error"))
	span.SetStatus(codes.Error, "error")
	span.End()
}

func TestOtelTracer_ClientSpan(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	_, span := tracer.StartSpan(context.Background(), SpanCommand)
	span.SetAttributes(attribute.String("key", "value"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "sqlweave.command", spans[0].Name)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind)
	assert.Equal(t, "value", attrMap(spans[0].Attributes)["key"])
}

func TestAddStatementAttributes_Success(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	_, span := tracer.StartSpan(context.Background(), SpanQuery)
	AddStatementAttributes(span, &StatementMetadata{
		Statement:    "SELECT * FROM users WHERE id = $1",
		Database:     "postgres",
		Operation:    "SELECT",
		ConnectionID: "c-1",
		BatchIndex:   2,
		TxDepth:      1,
		Duration:     15 * time.Millisecond,
		RowsAffected: 1,
	})
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	attrs := attrMap(spans[0].Attributes)

	assert.Equal(t, "postgres", attrs["db.system"])
	assert.Equal(t, "SELECT * FROM users WHERE id = $1", attrs["db.statement"])
	assert.Equal(t, "SELECT", attrs["db.operation"])
	assert.Equal(t, "c-1", attrs["db.connection.id"])
	assert.Equal(t, int64(2), attrs["db.batch.index"])
	assert.Equal(t, int64(1), attrs["db.transaction.depth"])
	assert.Equal(t, int64(1), attrs["db.rows_affected"])
	assert.InDelta(t, 15.0, attrs["db.duration_ms"], 0.1)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
}

func TestAddStatementAttributes_WithError(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	_, span := tracer.StartSpan(context.Background(), SpanQuery)
	AddStatementAttributes(span, &StatementMetadata{
		Statement:  "SELECT * FORM users",
		Database:   "sqlite",
		Operation:  "SELECT",
		BatchIndex: -1,
		Error:      errors.New("syntax error"),
	})
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "syntax error", spans[0].Status.Description)
	assert.Len(t, spans[0].Events, 1)

	attrs := attrMap(spans[0].Attributes)
	assert.NotContains(t, attrs, "db.batch.index")
	assert.NotContains(t, attrs, "db.connection.id")
}

func TestDetectOperation(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT * FROM users WHERE id = ?", "SELECT"},
		{"  \n  select name FROM users", "SELECT"},
		{"WITH stats AS (SELECT 1) SELECT * FROM stats", "SELECT"},
		{"InSeRt INTO users VALUES (?)", "INSERT"},
		{"UPDATE users SET name = ?", "UPDATE"},
		{"DELETE FROM users", "DELETE"},
		{"SAVEPOINT sqlweave_sp_1", "SAVEPOINT"},
		{"RELEASE SAVEPOINT sqlweave_sp_1", "RELEASE"},
		{"SET statement_timeout = 100", "SET"},
		{"PRAGMA busy_timeout = 100", "PRAGMA"},
		{"EXPLAIN SELECT 1", "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectOperation(tt.sql))
		})
	}
}

func BenchmarkAddStatementAttributes(b *testing.B) {
	tracer := NewOtelTracer(sdktrace.NewTracerProvider().Tracer("benchmark"))
	ctx := context.Background()
	meta := &StatementMetadata{
		Statement:  "SELECT * FROM users WHERE id = ?",
		Database:   "postgres",
		Operation:  "SELECT",
		BatchIndex: -1,
		Duration:   15 * time.Millisecond,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.StartSpan(ctx, SpanQuery)
		AddStatementAttributes(span, meta)
		span.End()
	}
}
