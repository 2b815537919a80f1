package logging

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// Logger is the logging collaborator passed into operations that need to
// report progress or warnings. Implementations must be safe for use from a
// single goroutine at a time.
type Logger interface {
	Info(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
}

type event struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// JSONLogger writes one JSON object per line to out.
type JSONLogger struct {
	out io.Writer
}

func New(out io.Writer) *JSONLogger {
	return &JSONLogger{out: out}
}

func (l *JSONLogger) Info(message string, fields map[string]interface{}) {
	l.write("info", message, fields)
}

func (l *JSONLogger) Warn(message string, fields map[string]interface{}) {
	l.write("warn", message, fields)
}

func (l *JSONLogger) Error(message string, fields map[string]interface{}) {
	l.write("error", message, fields)
}

func (l *JSONLogger) write(level, message string, fields map[string]interface{}) {
	evt := event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Message:   message,
		Fields:    fields,
	}
	payload, _ := json.Marshal(evt)
	payload = append(payload, '\n')
	_, _ = l.out.Write(payload)
}

var defaultLogger Logger = New(os.Stderr)

// Default returns the process-wide logger. Callers that embed this package
// should pass their own Logger instead of relying on the default.
func Default() Logger { return defaultLogger }

type nopLogger struct{}

func (nopLogger) Info(string, map[string]interface{})  {}
func (nopLogger) Warn(string, map[string]interface{})  {}
func (nopLogger) Error(string, map[string]interface{}) {}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() Logger { return nopLogger{} }
