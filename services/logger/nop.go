package logsvc

import (
	"fmt"
	"sync"

	"github.com/trezcool/madrasa/core"
)

// Entry is one message kept by a RecordingLogger.
type Entry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// RecordingLogger keeps messages in memory. Fatal records and panics instead of exiting.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []Entry
}

var _ core.Logger = (*RecordingLogger)(nil)

func NewNopLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) record(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg, Args: args})
}

// Entries returns the messages logged at level, or every message when level is empty.
func (l *RecordingLogger) Entries(level string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			entries = append(entries, e)
		}
	}
	return entries
}

func (l *RecordingLogger) Debug(msg string, args ...interface{}) { l.record("debug", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...interface{})  { l.record("info", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...interface{})  { l.record("warn", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...interface{}) { l.record("error", msg, args) }

func (l *RecordingLogger) Fatal(msg string, args ...interface{}) {
	l.record("fatal", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}
