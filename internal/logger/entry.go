package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Entry accumulates measurement fields (duration, counts, status) for one log line.
// The tracing fields come from the context passed at emit time.
type Entry struct {
	base   *Logger
	fields Fields
}

// With starts an Entry.
// Example: logger.With(logger.Fields{logger.FieldCount: n}).Info(ctx, "batch %d written", i)
func With(fields Fields) *Entry {
	return &Entry{base: GetDefault(), fields: fields}
}

// With returns a copy of e with fields merged over the existing ones.
func (e *Entry) With(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for _, src := range []Fields{e.fields, fields} {
		for k, v := range src {
			merged[k] = v
		}
	}
	return &Entry{base: e.base, fields: merged}
}

func (e *Entry) WithDuration(ms int64) *Entry { return e.With(Fields{FieldDurationMs: ms}) }

func (e *Entry) WithCount(n int) *Entry { return e.With(Fields{FieldCount: n}) }

func (e *Entry) WithStatus(status string) *Entry { return e.With(Fields{FieldStatus: status}) }

func (e *Entry) WithBatch(index int) *Entry { return e.With(Fields{FieldBatch: index}) }

func (e *Entry) emit(ctx context.Context, level logrus.Level, format string, args []interface{}) {
	l := e.base
	if ctx != nil {
		l = FromContext(ctx)
	}
	l.WithFields(e.fields).Logf(level, format, args...)
}

// Debug logs at debug level.
func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	e.emit(ctx, logrus.DebugLevel, format, args)
}

// Info logs at info level.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	e.emit(ctx, logrus.InfoLevel, format, args)
}

// Warn logs at warning level.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	e.emit(ctx, logrus.WarnLevel, format, args)
}

// Error logs at error level.
func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	e.emit(ctx, logrus.ErrorLevel, format, args)
}
