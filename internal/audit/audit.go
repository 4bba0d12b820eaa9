package audit

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Level      string    `json:"level,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	Tool       string    `json:"tool,omitempty"`
	Toolset    string    `json:"toolset,omitempty"`
	Resources  []string  `json:"resources,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	DurationMs int64     `json:"durationMs"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
}

var jsonMarshal = json.Marshal

type Logger struct {
	out   io.Writer
	level Level
	mu    sync.Mutex
}

func NewLogger(out io.Writer, level Level) *Logger {
	if out == nil {
		out = io.Discard
	}
	return &Logger{out: out, level: level}
}

// Log records a tool invocation event at info level. Invocation events are
// always emitted unless the logger is set above info.
func (l *Logger) Log(event Event) {
	l.write(LevelInfo, event)
}

func (l *Logger) Debugf(tool, message string) {
	l.write(LevelDebug, Event{Timestamp: time.Now().UTC(), Tool: tool, Message: message})
}

func (l *Logger) Errorf(tool, message string) {
	l.write(LevelError, Event{Timestamp: time.Now().UTC(), Tool: tool, Message: message})
}

func (l *Logger) write(level Level, event Event) {
	if l == nil || level < l.level {
		return
	}
	if event.Level == "" {
		event.Level = levelName(level)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	data, err := jsonMarshal(event)
	if err != nil {
		return
	}
	_, _ = l.out.Write(append(data, '\n'))
}

func levelName(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}
