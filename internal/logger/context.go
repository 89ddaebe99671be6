package logger

import (
	"context"
	"sync/atomic"
)

type ctxKey struct{}

var fallback atomic.Pointer[Logger]

func init() {
	fallback.Store(New(nil))
}

// GetDefault returns the logger used when a context carries none.
func GetDefault() *Logger {
	return fallback.Load()
}

// SetDefaultLogger replaces the process-wide logger. A nil logger is ignored.
func SetDefaultLogger(l *Logger) {
	if l != nil {
		fallback.Store(l)
	}
}

// WithContext attaches l to ctx.
// Parameters:
//   - ctx: parent context.
// Returns:
//   - context.Context: child context carrying l.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return GetDefault()
	}
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return GetDefault()
}

// WithFields derives a context whose logger carries fields.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// WithRun tags every line logged under ctx with the run id and its file type.
func WithRun(ctx context.Context, runID, fileType string) context.Context {
	return WithFields(ctx, Fields{FieldRunID: runID, FieldFileType: fileType})
}

// SetSource tags the context logger with the remote file name.
func SetSource(ctx context.Context, name string) context.Context {
	return WithFields(ctx, Fields{FieldSource: name})
}

// SetComponent tags the context logger with a component name.
func SetComponent(ctx context.Context, name string) context.Context {
	return WithFields(ctx, Fields{FieldComponent: name})
}

// RunID returns the run id the context logger was tagged with, if any.
func RunID(ctx context.Context) string {
	id, _ := FromContext(ctx).Data[FieldRunID].(string)
	return id
}
