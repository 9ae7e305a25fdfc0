// Package observability provides the orchestrator's structured logging,
// metrics, and tracing facades.
package observability

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging interface every orchestrator component takes at
// construction.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger with additional fields bound for every subsequent call.
	With(fields ...Field) Logger

	// WithContext pulls commander/sub-task/agent identifiers out of ctx, if present.
	WithContext(ctx context.Context) Logger
}

// Field represents a log field.
type Field struct {
	Key   string
	Value interface{}
}

// LogLevel represents the log level.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Level      LogLevel
	JSONOutput bool
	Output     io.Writer
	WithCaller bool
}

// DefaultLoggerConfig returns default logger configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:      LogLevelInfo,
		JSONOutput: true,
		Output:     os.Stdout,
		WithCaller: true,
	}
}

// ZerologLogger is a zerolog-based Logger implementation.
type ZerologLogger struct {
	logger zerolog.Logger
}

// contextKey is a typed context key; unlike raw strings it can't collide
// with keys set by unrelated packages sharing the same context.Context.
type contextKey string

const (
	ctxKeyCommanderID contextKey = "commander_id"
	ctxKeySubtaskIdx  contextKey = "subtask_index"
	ctxKeyAgentID     contextKey = "agent_id"
)

// WithCommanderID returns a context carrying a commander identifier for logging.
func WithCommanderID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCommanderID, id)
}

// WithSubtaskIndex returns a context carrying a sub-task index for logging.
func WithSubtaskIndex(ctx context.Context, idx int) context.Context {
	return context.WithValue(ctx, ctxKeySubtaskIdx, idx)
}

// WithAgentID returns a context carrying a sub-agent identifier for logging.
func WithAgentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyAgentID, id)
}

// NewLogger creates a new Logger.
func NewLogger(config *LoggerConfig) Logger {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer = config.Output
	if !config.JSONOutput {
		output = zerolog.ConsoleWriter{
			Out:        config.Output,
			TimeFormat: time.RFC3339,
		}
	}

	var level zerolog.Level
	switch config.Level {
	case LogLevelDebug:
		level = zerolog.DebugLevel
	case LogLevelInfo:
		level = zerolog.InfoLevel
	case LogLevelWarn:
		level = zerolog.WarnLevel
	case LogLevelError:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp()

	if config.WithCaller {
		logger = logger.Caller()
	}

	return &ZerologLogger{logger: logger.Logger()}
}

func (l *ZerologLogger) Debug(msg string, fields ...Field) {
	event := l.logger.Debug()
	for _, field := range fields {
		event = event.Interface(field.Key, field.Value)
	}
	event.Msg(msg)
}

func (l *ZerologLogger) Info(msg string, fields ...Field) {
	event := l.logger.Info()
	for _, field := range fields {
		event = event.Interface(field.Key, field.Value)
	}
	event.Msg(msg)
}

func (l *ZerologLogger) Warn(msg string, fields ...Field) {
	event := l.logger.Warn()
	for _, field := range fields {
		event = event.Interface(field.Key, field.Value)
	}
	event.Msg(msg)
}

func (l *ZerologLogger) Error(msg string, fields ...Field) {
	event := l.logger.Error()
	for _, field := range fields {
		event = event.Interface(field.Key, field.Value)
	}
	event.Msg(msg)
}

func (l *ZerologLogger) With(fields ...Field) Logger {
	ctx := l.logger.With()
	for _, field := range fields {
		ctx = ctx.Interface(field.Key, field.Value)
	}
	return &ZerologLogger{logger: ctx.Logger()}
}

func (l *ZerologLogger) WithContext(ctx context.Context) Logger {
	newLogger := l.logger

	if v := ctx.Value(ctxKeyCommanderID); v != nil {
		newLogger = newLogger.With().Str("commander_id", v.(string)).Logger()
	}
	if v := ctx.Value(ctxKeySubtaskIdx); v != nil {
		newLogger = newLogger.With().Int("subtask_index", v.(int)).Logger()
	}
	if v := ctx.Value(ctxKeyAgentID); v != nil {
		newLogger = newLogger.With().Str("agent_id", v.(string)).Logger()
	}

	return &ZerologLogger{logger: newLogger}
}

// String creates a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Err creates an error field.
func Err(err error) Field { return Field{Key: "error", Value: err.Error()} }

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// NoOpLogger discards everything; used in tests that don't assert on log output.
type NoOpLogger struct{}

// NewNoOpLogger creates a no-op logger.
func NewNoOpLogger() Logger { return &NoOpLogger{} }

func (l *NoOpLogger) Debug(msg string, fields ...Field)      {}
func (l *NoOpLogger) Info(msg string, fields ...Field)       {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)       {}
func (l *NoOpLogger) Error(msg string, fields ...Field)      {}
func (l *NoOpLogger) With(fields ...Field) Logger            { return l }
func (l *NoOpLogger) WithContext(ctx context.Context) Logger { return l }
