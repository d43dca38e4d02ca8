// Package activity keeps the append-only activity log shown on the dashboard.
// Entries are held in memory for the UI and the bridge, and can be mirrored to
// a journal file so operators can inspect a session after it closes.
package activity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies an entry for colouring and filtering.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Tag returns the fixed-width tag written to the journal file.
func (s Severity) Tag() string {
	switch s {
	case SeveritySuccess:
		return "OK"
	case SeverityWarning:
		return "WARN"
	case SeverityError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Entry is one immutable log line.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
}

// Option customizes a Log.
type Option func(*Log)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(l *Log) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithJournal mirrors every entry to a text file at path.
func WithJournal(path string) Option {
	return func(l *Log) {
		l.journal = strings.TrimSpace(path)
	}
}

// Log is the ordered, append-only activity record.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	subs    map[int]chan Entry
	nextSub int
	clock   func() time.Time
	journal string
}

// New creates an empty log.
func New(opts ...Option) (*Log, error) {
	l := &Log{
		subs:  map[int]chan Entry{},
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.journal != "" {
		if err := os.MkdirAll(filepath.Dir(l.journal), 0o755); err != nil {
			return nil, fmt.Errorf("activity: ensure journal dir: %w", err)
		}
	}
	return l, nil
}

// Append records a new entry at the end of the log. Timestamps never go
// backwards even if the clock does.
func (l *Log) Append(message string, severity Severity) Entry {
	l.mu.Lock()
	now := l.clock()
	if n := len(l.entries); n > 0 && now.Before(l.entries[n-1].Timestamp) {
		now = l.entries[n-1].Timestamp
	}
	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: now,
		Message:   strings.TrimSpace(message),
		Severity:  severity,
	}
	l.entries = append(l.entries, entry)
	l.writeJournal(entry)
	for _, ch := range l.subs {
		select {
		case ch <- entry:
		default:
		}
	}
	l.mu.Unlock()
	return entry
}

// Info appends an informational entry.
func (l *Log) Info(format string, args ...any) Entry {
	return l.Append(fmt.Sprintf(format, args...), SeverityInfo)
}

// Success appends a success entry.
func (l *Log) Success(format string, args ...any) Entry {
	return l.Append(fmt.Sprintf(format, args...), SeveritySuccess)
}

// Warn appends a warning entry.
func (l *Log) Warn(format string, args ...any) Entry {
	return l.Append(fmt.Sprintf(format, args...), SeverityWarning)
}

// Error appends an error entry.
func (l *Log) Error(format string, args ...any) Entry {
	return l.Append(fmt.Sprintf(format, args...), SeverityError)
}

// Entries returns every entry in creation order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Tail returns up to n of the most recent entries.
func (l *Log) Tail(n int) []Entry {
	if n <= 0 {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	start := 0
	if len(l.entries) > n {
		start = len(l.entries) - n
	}
	out := make([]Entry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Subscribe returns a channel receiving every entry appended after the call.
// Delivery never blocks Append: a full channel misses the notification, and
// the subscriber can always re-read Entries. The returned func unsubscribes
// and closes the channel.
func (l *Log) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Entry, buffer)
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}

// JournalPath returns the file mirroring this log, if any.
func (l *Log) JournalPath() string {
	return l.journal
}

// writeJournal must be called with l.mu held so lines keep log order.
func (l *Log) writeJournal(entry Entry) {
	if l.journal == "" {
		return
	}
	line := fmt.Sprintf("%s %-5s %s\n",
		entry.Timestamp.UTC().Format(time.RFC3339),
		entry.Severity.Tag(),
		entry.Message,
	)
	file, err := os.OpenFile(l.journal, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}
