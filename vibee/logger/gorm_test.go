package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibeelabs/vibee-go/vibee"
	"gorm.io/gorm/logger"
)

type capturedEntry struct {
	level string
	msg   string
}

// captureLogger records entries so tests can assert on routing.
type captureLogger struct {
	entries []capturedEntry
}

func (c *captureLogger) Debug(msg string, args ...any) { c.record("debug", msg) }
func (c *captureLogger) Info(msg string, args ...any)  { c.record("info", msg) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.record("warn", msg) }
func (c *captureLogger) Error(msg string, args ...any) { c.record("error", msg) }
func (c *captureLogger) With(args ...any) vibee.Logger { return c }

func (c *captureLogger) record(level, msg string) {
	c.entries = append(c.entries, capturedEntry{level: level, msg: msg})
}

func queryFn(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestGormLoggerTraceError(t *testing.T) {
	sink := &captureLogger{}
	gl := NewGormLogger(sink, logger.Warn, 200*time.Millisecond)

	gl.Trace(context.Background(), time.Now(), queryFn("SELECT 1"), errors.New("locked"))

	require.Len(t, sink.entries, 1)
	assert.Equal(t, "error", sink.entries[0].level)
	assert.Equal(t, "query failed", sink.entries[0].msg)
}

func TestGormLoggerTraceRecordNotFoundIsQuiet(t *testing.T) {
	sink := &captureLogger{}
	gl := NewGormLogger(sink, logger.Warn, 200*time.Millisecond)

	gl.Trace(context.Background(), time.Now(), queryFn("SELECT 1"), logger.ErrRecordNotFound)

	assert.Empty(t, sink.entries)
}

func TestGormLoggerTraceSlowQuery(t *testing.T) {
	sink := &captureLogger{}
	gl := NewGormLogger(sink, logger.Warn, 200*time.Millisecond)

	began := time.Now().Add(-time.Second)
	gl.Trace(context.Background(), began, queryFn("SELECT 1"), nil)

	require.Len(t, sink.entries, 1)
	assert.Equal(t, "warn", sink.entries[0].level)
	assert.Equal(t, "slow query", sink.entries[0].msg)
}

func TestGormLoggerZeroThresholdDisablesSlowLog(t *testing.T) {
	sink := &captureLogger{}
	gl := NewGormLogger(sink, logger.Warn, 0)

	began := time.Now().Add(-time.Second)
	gl.Trace(context.Background(), began, queryFn("SELECT 1"), nil)

	assert.Empty(t, sink.entries)
}

func TestGormLoggerSilentDropsEverything(t *testing.T) {
	sink := &captureLogger{}
	gl := NewGormLogger(sink, logger.Silent, 200*time.Millisecond)

	gl.Trace(context.Background(), time.Now().Add(-time.Second), queryFn("SELECT 1"), errors.New("locked"))
	gl.Info(context.Background(), "hello")
	gl.Warn(context.Background(), "hello")
	gl.Error(context.Background(), "hello")

	assert.Empty(t, sink.entries)
}

func TestGormLoggerLogModeReturnsCopy(t *testing.T) {
	sink := &captureLogger{}
	gl := NewGormLogger(sink, logger.Warn, 200*time.Millisecond)

	quiet := gl.LogMode(logger.Silent)
	quiet.Error(context.Background(), "dropped")
	assert.Empty(t, sink.entries)

	// The original keeps its level.
	gl.Error(context.Background(), "kept")
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "error", sink.entries[0].level)
}
