package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds pipeline-scoped logging context: which file, which
// batch, and which upload attempt a log line belongs to.
type LogContext struct {
	TraceID       string // OpenTelemetry trace ID
	SpanID        string // OpenTelemetry span ID
	SourceFile    string // path of the file currently being processed
	BatchID       string // batch instance id
	CorrelationID string // upload correlation id (SAS request -> PUT -> notify)
	DeviceID      string
	StartTime     time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a file-processing run.
func NewLogContext(sourceFile string) *LogContext {
	return &LogContext{
		SourceFile: sourceFile,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithBatch returns a copy with the batch id set
func (lc *LogContext) WithBatch(batchID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.BatchID = batchID
	}
	return clone
}

// WithCorrelation returns a copy with the upload correlation id and device id set
func (lc *LogContext) WithCorrelation(correlationID, deviceID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.CorrelationID = correlationID
		clone.DeviceID = deviceID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
