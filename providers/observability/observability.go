package observability

import (
	"context"
	"fmt"
	"time"
)

// Logger provides structured logging capabilities. Every component in the
// pipeline receives a Logger explicitly; there is no package-level default,
// so parallel pipelines and tests can carry independent sinks.
type Logger interface {
	Debug(ctx context.Context, msg string, attrs ...Attribute)
	Info(ctx context.Context, msg string, attrs ...Attribute)
	Warn(ctx context.Context, msg string, attrs ...Attribute)
	Error(ctx context.Context, msg string, attrs ...Attribute)
}

// Attribute represents a key-value pair for metadata
type Attribute struct {
	Key   string
	Value interface{}
}

// String creates a string attribute
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an integer attribute
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Float64 creates a float64 attribute
func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value}
}

// Error creates an error attribute
func Error(err error) Attribute {
	if err == nil {
		return Attribute{Key: "error", Value: ""}
	}
	return Attribute{Key: "error", Value: fmt.Sprintf("%v", err)}
}

// NoopLogger discards everything. It is the fallback when a component is
// constructed without a logger.
type NoopLogger struct{}

var _ Logger = NoopLogger{}

func (NoopLogger) Debug(context.Context, string, ...Attribute) {}
func (NoopLogger) Info(context.Context, string, ...Attribute)  {}
func (NoopLogger) Warn(context.Context, string, ...Attribute)  {}
func (NoopLogger) Error(context.Context, string, ...Attribute) {}
