package social

import (
	"context"
	"log/slog"
	"sync"
)

// Level is the severity of a transient notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier shows dismissable, non-blocking messages to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// LogNotifier writes notifications to a slog logger. A nil Logger uses slog.Default.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(level Level, message string) {
	l := n.Logger
	if l == nil {
		l = slog.Default()
	}
	var lvl slog.Level
	switch level {
	case LevelError:
		lvl = slog.LevelError
	case LevelWarning:
		lvl = slog.LevelWarn
	default:
		lvl = slog.LevelInfo
	}
	l.Log(context.Background(), lvl, message, "notification", true)
}

// Note is one recorded notification.
type Note struct {
	Level   Level
	Message string
}

// RecordingNotifier keeps every notification in memory.
type RecordingNotifier struct {
	mu    sync.Mutex
	notes []Note
}

func (r *RecordingNotifier) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, Note{Level: level, Message: message})
}

// Notes returns a copy of what has been recorded so far.
func (r *RecordingNotifier) Notes() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Note, len(r.notes))
	copy(out, r.notes)
	return out
}

func orLogNotifier(n Notifier) Notifier {
	if n == nil {
		return LogNotifier{}
	}
	return n
}
