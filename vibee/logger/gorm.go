package logger

import (
	"context"
	"errors"
	"time"

	"github.com/vibeelabs/vibee-go/vibee"
	"gorm.io/gorm/logger"
)

// GormLogger adapts vibee.Logger to gorm's logger.Interface so query
// logs land in the same sinks as the rest of the module.
type GormLogger struct {
	logger        vibee.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger creates a GORM logger. Successful queries slower than
// slowThreshold are logged at warn level; zero disables slow-query
// logging.
func NewGormLogger(base vibee.Logger, level logger.LogLevel, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		logger:        base,
		level:         level,
		slowThreshold: slowThreshold,
	}
}

func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.logger.Info(msg, "data", data)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.logger.Warn(msg, "data", data)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.logger.Error(msg, "data", data)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level == logger.Silent {
		return
	}

	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, logger.ErrRecordNotFound):
		sql, rows := fc()
		l.logger.Error("query failed",
			"error", err,
			"elapsed", elapsed,
			"rows", rows,
			"sql", sql,
		)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		l.logger.Warn("slow query",
			"elapsed", elapsed,
			"rows", rows,
			"sql", sql,
		)
	case l.level == logger.Info:
		sql, rows := fc()
		l.logger.Info("query",
			"elapsed", elapsed,
			"rows", rows,
			"sql", sql,
		)
	}
}
