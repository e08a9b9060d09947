package logging

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// LoggerAdapter adapts the text Logger to the ContextLogger interface.
type LoggerAdapter struct {
	*Logger
	fields map[string]interface{}
}

// NewLoggerAdapter creates a new adapter for the text logger.
func NewLoggerAdapter(logger *Logger) *LoggerAdapter {
	return &LoggerAdapter{
		Logger: logger,
		fields: make(map[string]interface{}),
	}
}

func (l *LoggerAdapter) clone() *LoggerAdapter {
	n := &LoggerAdapter{
		Logger: l.Logger,
		fields: make(map[string]interface{}, len(l.fields)+1),
	}
	for k, v := range l.fields {
		n.fields[k] = v
	}
	return n
}

// WithContext returns a new logger carrying the correlation and request IDs
// found in ctx.
func (l *LoggerAdapter) WithContext(ctx context.Context) ContextLogger {
	n := l.clone()
	if correlationID, ok := CorrelationIDFromContext(ctx); ok {
		n.fields["correlation_id"] = correlationID
	}
	if requestID, ok := RequestIDFromContext(ctx); ok {
		n.fields["request_id"] = requestID
	}
	return n
}

// WithField returns a new logger with an additional field.
func (l *LoggerAdapter) WithField(key string, value interface{}) ContextLogger {
	n := l.clone()
	n.fields[key] = value
	return n
}

// WithFields returns a new logger with additional fields.
func (l *LoggerAdapter) WithFields(fields map[string]interface{}) ContextLogger {
	n := l.clone()
	for k, v := range fields {
		n.fields[k] = v
	}
	return n
}

func (l *LoggerAdapter) Debug(format string, args ...interface{}) {
	l.Logger.print(DebugLevel, l.formatWithFields(format, args))
}

func (l *LoggerAdapter) Info(format string, args ...interface{}) {
	l.Logger.print(InfoLevel, l.formatWithFields(format, args))
}

func (l *LoggerAdapter) Warn(format string, args ...interface{}) {
	l.Logger.print(WarnLevel, l.formatWithFields(format, args))
}

func (l *LoggerAdapter) Error(format string, args ...interface{}) {
	l.Logger.print(ErrorLevel, l.formatWithFields(format, args))
}

func (l *LoggerAdapter) Fatal(format string, args ...interface{}) {
	l.Logger.fatal(l.formatWithFields(format, args))
}

// formatWithFields renders the message and appends the adapter's fields in
// key order.
func (l *LoggerAdapter) formatWithFields(format string, args []interface{}) string {
	msg := formatMessage(format, args)
	if len(l.fields) == 0 {
		return msg
	}

	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, l.fields[k]))
	}
	return fmt.Sprintf("%s [%s]", msg, strings.Join(parts, " "))
}
