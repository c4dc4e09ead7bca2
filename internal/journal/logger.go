package journal

import (
	"fmt"
	"log"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes a human-readable sprint log with size-based rotation.
type Logger struct {
	sink *lumberjack.Logger
	log  *log.Logger
}

// NewLogger creates a rotating log at <stateRoot>/logs/sprint.log.
func NewLogger(stateRoot string) *Logger {
	sink := &lumberjack.Logger{
		Filename:   filepath.Join(stateRoot, "logs", "sprint.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	return &Logger{
		sink: sink,
		log:  log.New(sink, "", log.LstdFlags|log.LUTC),
	}
}

// Printf writes one formatted line.
func (l *Logger) Printf(format string, args ...any) {
	l.log.Printf(format, args...)
}

// Event writes one sprint-run event line.
func (l *Logger) Event(sprintID, taskID, typ, message string) {
	if taskID != "" {
		l.log.Printf("[%s] %s %s: %s", sprintID, taskID, typ, message)
		return
	}
	l.log.Printf("[%s] %s: %s", sprintID, typ, message)
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	if err := l.sink.Close(); err != nil {
		return fmt.Errorf("close sprint log: %w", err)
	}
	return nil
}
