// Package background runs orchestration requests on a fixed worker pool and
// exposes their results and progress logs for polling.
package background

import (
	"sync"
	"time"
)

// StatusEntry is one progress line appended during a background run.
type StatusEntry struct {
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusLog keeps an append-only progress log per chat id, plus a delivery
// cursor so pollers only see lines appended since their last call. The
// lifecycle is tied to the chat id, not to a request: clearing is explicit.
type StatusLog struct {
	mu      sync.Mutex
	entries map[string][]StatusEntry
	cursor  map[string]int
}

// NewStatusLog creates an empty StatusLog.
func NewStatusLog() *StatusLog {
	return &StatusLog{
		entries: make(map[string][]StatusEntry),
		cursor:  make(map[string]int),
	}
}

// Append adds a progress line for the chat.
func (l *StatusLog) Append(chatID, message, level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[chatID] = append(l.entries[chatID], StatusEntry{
		Message:   message,
		Level:     level,
		Timestamp: time.Now(),
	})
}

// DrainNew returns the lines appended since the previous DrainNew call for
// this chat and advances the cursor past them.
func (l *StatusLog) DrainNew(chatID string) []StatusEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.entries[chatID]
	from := l.cursor[chatID]
	if from >= len(entries) {
		return nil
	}
	fresh := make([]StatusEntry, len(entries)-from)
	copy(fresh, entries[from:])
	l.cursor[chatID] = len(entries)
	return fresh
}

// Clear drops the chat's log and resets its cursor.
func (l *StatusLog) Clear(chatID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, chatID)
	delete(l.cursor, chatID)
}
