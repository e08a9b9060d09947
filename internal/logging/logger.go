package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the plain text logger used for the "text" format.
type Logger struct {
	out    io.Writer
	logger *log.Logger
	level  Level
	mu     sync.RWMutex
}

// NewLogger creates a text logger writing to stderr.
func NewLogger(prefix string, level string) *Logger {
	return NewLoggerWithWriter(os.Stderr, prefix, level)
}

// NewLoggerWithWriter creates a text logger writing to w.
func NewLoggerWithWriter(w io.Writer, prefix string, level string) *Logger {
	return &Logger{
		out:    w,
		logger: log.New(w, prefix, log.LstdFlags|log.Lmicroseconds),
		level:  parseLevel(level),
	}
}

func parseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) shouldLog(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *Logger) output(level Level, format string, v ...interface{}) {
	if !l.shouldLog(level) {
		return
	}
	l.print(level, formatMessage(format, v))
}

func (l *Logger) print(level Level, msg string) {
	if !l.shouldLog(level) {
		return
	}
	l.logger.Print("[" + level.String() + "] " + msg)
}

func (l *Logger) Debug(format string, v ...interface{}) { l.output(DebugLevel, format, v...) }
func (l *Logger) Info(format string, v ...interface{})  { l.output(InfoLevel, format, v...) }
func (l *Logger) Warn(format string, v ...interface{})  { l.output(WarnLevel, format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.output(ErrorLevel, format, v...) }

// WithPrefix returns a logger sharing level and output with an extended prefix.
func (l *Logger) WithPrefix(extra string) *Logger {
	return &Logger{
		out:    l.out,
		logger: log.New(l.out, fmt.Sprintf("%s[%s] ", l.logger.Prefix(), extra), log.LstdFlags|log.Lmicroseconds),
		level:  l.GetLevel(),
	}
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.fatal(formatMessage(format, v))
}

func (l *Logger) fatal(msg string) {
	l.logger.Fatal("[FATAL] " + msg)
}

// formatMessage renders printf verbs when present and appends any remaining
// arguments as key=value pairs.
func formatMessage(format string, args []interface{}) string {
	verbs := countVerbs(format)
	if verbs > len(args) {
		verbs = 0
	}
	msg := format
	if verbs > 0 {
		msg = fmt.Sprintf(format, args[:verbs]...)
	}
	rest := args[verbs:]
	if len(rest) == 0 {
		return msg
	}

	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(rest); i += 2 {
		if i+1 >= len(rest) {
			fmt.Fprintf(&sb, " extra=%v", rest[i])
			break
		}
		fmt.Fprintf(&sb, " %v=%v", rest[i], rest[i+1])
	}
	return sb.String()
}

// countVerbs counts printf verbs, ignoring %%.
func countVerbs(format string) int {
	n := 0
	for i := 0; i < len(format)-1; i++ {
		if format[i] != '%' {
			continue
		}
		if format[i+1] == '%' {
			i++
			continue
		}
		n++
	}
	return n
}
