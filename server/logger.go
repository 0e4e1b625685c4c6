package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// LogContext provides context for log messages
type LogContext struct {
	RunID     string
	Model     string
	PromptID  string
	Operation string
}

// Logger provides structured logging with proper output streams. When
// LOG_FORMAT=json every entry is emitted as one JSON object per line for
// log aggregation; otherwise entries are human-readable.
type Logger struct {
	debug  *log.Logger
	info   *log.Logger
	warn   *log.Logger
	error  *log.Logger
	fatal  *log.Logger
	asJSON bool
}

// JSONLogEntry represents a structured log entry
type JSONLogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Context   *LogContext            `json:"context,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Global logger instance
var AppLogger = NewLogger()

// NewLogger creates a new structured logger
func NewLogger() *Logger {
	asJSON := strings.EqualFold(os.Getenv("LOG_FORMAT"), "json")

	// Normal logs (DEBUG, INFO, WARN) go to stdout, errors to stderr
	stdout := os.Stdout
	stderr := os.Stderr

	return &Logger{
		debug:  log.New(stdout, "[DEBUG] ", log.LstdFlags|log.Lshortfile),
		info:   log.New(stdout, "[INFO]  ", log.LstdFlags|log.Lshortfile),
		warn:   log.New(stdout, "[WARN]  ", log.LstdFlags|log.Lshortfile),
		error:  log.New(stderr, "[ERROR] ", log.LstdFlags|log.Lshortfile),
		fatal:  log.New(stderr, "[FATAL] ", log.LstdFlags|log.Lshortfile),
		asJSON: asJSON,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.asJSON {
		l.logJSON(DEBUG, format, nil, nil, v...)
	} else {
		l.debug.Printf(format, v...)
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.asJSON {
		l.logJSON(INFO, format, nil, nil, v...)
	} else {
		l.info.Printf(format, v...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	if l.asJSON {
		l.logJSON(WARN, format, nil, nil, v...)
	} else {
		l.warn.Printf(format, v...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.asJSON {
		l.logJSON(ERROR, format, nil, nil, v...)
	} else {
		l.error.Printf(format, v...)
	}
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(format string, v ...interface{}) {
	if l.asJSON {
		l.logJSON(FATAL, format, nil, nil, v...)
	} else {
		l.fatal.Printf(format, v...)
	}
	os.Exit(1)
}

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(ctx *LogContext, format string, v ...interface{}) {
	if l.asJSON {
		l.logJSON(INFO, format, ctx, nil, v...)
	} else {
		l.info.Printf(l.formatContext(ctx)+format, v...)
	}
}

// WarnWithContext logs a warning message with context
func (l *Logger) WarnWithContext(ctx *LogContext, format string, v ...interface{}) {
	if l.asJSON {
		l.logJSON(WARN, format, ctx, nil, v...)
	} else {
		l.warn.Printf(l.formatContext(ctx)+format, v...)
	}
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx *LogContext, format string, v ...interface{}) {
	if l.asJSON {
		l.logJSON(ERROR, format, ctx, nil, v...)
	} else {
		l.error.Printf(l.formatContext(ctx)+format, v...)
	}
}

// InfoWithFields logs an info message with structured fields
func (l *Logger) InfoWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	if l.asJSON {
		l.logJSON(INFO, format, nil, fields, v...)
	} else {
		l.info.Printf(format+l.formatFields(fields), v...)
	}
}

// ErrorWithFields logs an error message with structured fields
func (l *Logger) ErrorWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	if l.asJSON {
		l.logJSON(ERROR, format, nil, fields, v...)
	} else {
		l.error.Printf(format+l.formatFields(fields), v...)
	}
}

// logJSON logs a structured JSON message
func (l *Logger) logJSON(level LogLevel, format string, ctx *LogContext, fields map[string]interface{}, v ...interface{}) {
	message := format
	if len(v) > 0 {
		message = fmt.Sprintf(format, v...)
	}

	entry := JSONLogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   message,
		Context:   ctx,
		Fields:    fields,
	}

	var output io.Writer
	if level >= ERROR {
		output = os.Stderr
	} else {
		output = os.Stdout
	}

	encoder := json.NewEncoder(output)
	encoder.SetEscapeHTML(false)
	encoder.Encode(entry)
}

// formatContext formats context for human-readable logs
func (l *Logger) formatContext(ctx *LogContext) string {
	if ctx == nil {
		return ""
	}

	var parts []string
	if ctx.RunID != "" {
		parts = append(parts, fmt.Sprintf("[Run:%s]", ctx.RunID))
	}
	if ctx.Model != "" {
		parts = append(parts, fmt.Sprintf("[Model:%s]", ctx.Model))
	}
	if ctx.PromptID != "" {
		parts = append(parts, fmt.Sprintf("[Prompt:%s]", ctx.PromptID))
	}
	if ctx.Operation != "" {
		parts = append(parts, fmt.Sprintf("[Op:%s]", ctx.Operation))
	}

	if len(parts) > 0 {
		return strings.Join(parts, "") + " "
	}
	return ""
}

// formatFields formats structured fields for human-readable logs
func (l *Logger) formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}

	fieldStr := " |"
	for k, v := range fields {
		fieldStr += fmt.Sprintf(" %s=%v", k, v)
	}
	return fieldStr
}
