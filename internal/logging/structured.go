package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StructuredLogger provides JSON structured logging with correlation IDs.
type StructuredLogger struct {
	zl    *zap.Logger
	level zap.AtomicLevel
}

// NewStructuredLogger creates a structured logger writing to stderr.
func NewStructuredLogger(service, version, level string) *StructuredLogger {
	return NewStructuredLoggerWithWriter(os.Stderr, service, version, level)
}

// NewStructuredLoggerWithWriter creates a structured logger writing to w.
func NewStructuredLoggerWithWriter(w io.Writer, service, version, level string) *StructuredLogger {
	return newStructuredLogger(zapcore.AddSync(w), service, version, level)
}

// NewNopLogger returns a logger that discards everything. Used by tests and
// as the fallback when no logger is configured.
func NewNopLogger() *StructuredLogger {
	return &StructuredLogger{zl: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.ErrorLevel)}
}

func newStructuredLogger(ws zapcore.WriteSyncer, service, version, level string) *StructuredLogger {
	atom := zap.NewAtomicLevelAt(toZapLevel(parseLevel(level)))
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), ws, atom)

	fields := []zap.Field{zap.String("service", service)}
	if version != "" {
		fields = append(fields, zap.String("version", version))
	}

	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).With(fields...)
	return &StructuredLogger{zl: zl, level: atom}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.LevelKey = "level"
	cfg.CallerKey = "caller"
	cfg.StacktraceKey = ""
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func fromZapLevel(l zapcore.Level) Level {
	switch {
	case l <= zapcore.DebugLevel:
		return DebugLevel
	case l == zapcore.InfoLevel:
		return InfoLevel
	case l == zapcore.WarnLevel:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

// WithContext returns a logger with correlation and request IDs from context.
func (l *StructuredLogger) WithContext(ctx context.Context) ContextLogger {
	var fields []zap.Field
	if correlationID, ok := CorrelationIDFromContext(ctx); ok {
		fields = append(fields, zap.String("correlation_id", correlationID))
	}
	if requestID, ok := RequestIDFromContext(ctx); ok {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if len(fields) == 0 {
		return l
	}
	return &StructuredLogger{zl: l.zl.With(fields...), level: l.level}
}

// WithFields returns a logger with additional fields.
func (l *StructuredLogger) WithFields(fields map[string]interface{}) ContextLogger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return &StructuredLogger{zl: l.zl.With(zf...), level: l.level}
}

// WithField returns a logger with an additional field.
func (l *StructuredLogger) WithField(key string, value interface{}) ContextLogger {
	return &StructuredLogger{zl: l.zl.With(zap.Any(key, value)), level: l.level}
}

func (l *StructuredLogger) SetLevel(level Level) {
	l.level.SetLevel(toZapLevel(level))
}

func (l *StructuredLogger) GetLevel() Level {
	return fromZapLevel(l.level.Level())
}

// Sync flushes buffered entries.
func (l *StructuredLogger) Sync() error {
	return l.zl.Sync()
}

func (l *StructuredLogger) Debug(format string, args ...interface{}) {
	l.log(zapcore.DebugLevel, format, args)
}

func (l *StructuredLogger) Info(format string, args ...interface{}) {
	l.log(zapcore.InfoLevel, format, args)
}

func (l *StructuredLogger) Warn(format string, args ...interface{}) {
	l.log(zapcore.WarnLevel, format, args)
}

func (l *StructuredLogger) Error(format string, args ...interface{}) {
	l.log(zapcore.ErrorLevel, format, args)
}

// Fatal logs and exits with status 1.
func (l *StructuredLogger) Fatal(format string, args ...interface{}) {
	l.log(zapcore.FatalLevel, format, args)
}

// log accepts either printf style arguments or a message followed by
// key/value pairs. Arguments beyond the verbs in format are treated as pairs.
func (l *StructuredLogger) log(level zapcore.Level, format string, args []interface{}) {
	ce := l.zl.Check(level, "")
	if ce == nil {
		return
	}

	verbs := countVerbs(format)
	if verbs > len(args) {
		verbs = 0
	}
	msg := format
	if verbs > 0 {
		msg = fmt.Sprintf(format, args[:verbs]...)
	}
	ce.Message = msg

	rest := args[verbs:]
	fields := make([]zap.Field, 0, len(rest)/2+1)
	for i := 0; i < len(rest); i += 2 {
		if i+1 >= len(rest) {
			fields = append(fields, zap.Any("extra", rest[i]))
			break
		}
		key, ok := rest[i].(string)
		if !ok {
			key = fmt.Sprint(rest[i])
		}
		fields = append(fields, zap.Any(key, rest[i+1]))
	}
	ce.Write(fields...)
}
