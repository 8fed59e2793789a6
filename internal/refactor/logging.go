package refactor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// RunLogger provides structured logging for refactoring runs. Entries are
// retained in an in-memory ring so "run failed, see log" flows can show
// recent history; user-facing output goes through a separate print channel.
type RunLogger struct {
	logger  *slog.Logger
	handler *runLogHandler
	out     io.Writer
	outMu   sync.Mutex
}

// LogEntry is a single retained log entry.
type LogEntry struct {
	Time    time.Time         `json:"time"`
	Level   slog.Level        `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs"`
}

// NewRunLogger creates a logger retaining at most maxEntries entries. out
// receives user-facing print output; it may be nil.
func NewRunLogger(out io.Writer, maxEntries int) *RunLogger {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	handler := &runLogHandler{
		entries: make([]LogEntry, 0, maxEntries),
		maxSize: maxEntries,
	}
	return &RunLogger{
		logger:  slog.New(handler),
		handler: handler,
		out:     out,
	}
}

// Logger returns the slog interface backed by the ring buffer.
func (l *RunLogger) Logger() *slog.Logger { return l.logger }

type runLogHandler struct {
	entries []LogEntry
	maxSize int
	mutex   sync.RWMutex
}

// Enabled implements slog.Handler.
func (h *runLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle implements slog.Handler.
func (h *runLogHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	attrs := make(map[string]string)
	record.Attrs(func(attr slog.Attr) bool {
		attrs[attr.Key] = attr.Value.String()
		return true
	})

	h.entries = append(h.entries, LogEntry{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[1:]
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *runLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }

// WithGroup implements slog.Handler.
func (h *runLogHandler) WithGroup(name string) slog.Handler { return h }

// Print writes a message to the user-facing output channel.
func (l *RunLogger) Print(msg string) {
	l.outMu.Lock()
	defer l.outMu.Unlock()
	if l.out == nil {
		return
	}
	l.out.Write([]byte(msg))
	if !strings.HasSuffix(msg, "\n") {
		l.out.Write([]byte("\n"))
	}
}

// Printf writes a formatted message to the user-facing output channel.
func (l *RunLogger) Printf(format string, args ...interface{}) {
	l.Print(fmt.Sprintf(format, args...))
}

// Logs returns a copy of all retained entries.
func (l *RunLogger) Logs() []LogEntry {
	l.handler.mutex.RLock()
	defer l.handler.mutex.RUnlock()
	logs := make([]LogEntry, len(l.handler.entries))
	copy(logs, l.handler.entries)
	return logs
}

// RecentLogs returns the most recent count entries.
func (l *RunLogger) RecentLogs(count int) []LogEntry {
	l.handler.mutex.RLock()
	defer l.handler.mutex.RUnlock()
	if count <= 0 || count > len(l.handler.entries) {
		count = len(l.handler.entries)
	}
	start := len(l.handler.entries) - count
	logs := make([]LogEntry, count)
	copy(logs, l.handler.entries[start:])
	return logs
}

// ClearLogs removes all retained entries.
func (l *RunLogger) ClearLogs() {
	l.handler.mutex.Lock()
	defer l.handler.mutex.Unlock()
	l.handler.entries = l.handler.entries[:0]
}
