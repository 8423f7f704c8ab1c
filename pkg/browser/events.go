// Package browser runs browser verification sessions: it loads a generated
// extension into a persistent automation context, exercises it with scripted
// probes, and records a structured event trail used as feedback for later
// fixes.
package browser

import (
	"sync"
	"time"
)

// Category classifies a captured runtime event.
type Category string

const (
	CategoryClick        Category = "click"
	CategoryKeyboard     Category = "keyboard"
	CategoryNavigation   Category = "navigation"
	CategoryConsole      Category = "console"
	CategoryError        Category = "error"
	CategoryNetworkError Category = "network-error"
	CategoryLifecycle    Category = "lifecycle"
)

// Event is one captured runtime observation.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Category  Category  `json:"category"`
	Payload   string    `json:"payload"`
}

// EventLog is an append-only ordered log of captured events. Appends come
// from listener callbacks on the automation backend's own goroutines, so the
// log is safe for concurrent use.
type EventLog struct {
	mu     sync.Mutex
	events []Event
}

// NewEventLog creates an empty log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append records an event with the current timestamp.
func (l *EventLog) Append(category Category, payload string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, Event{
		Timestamp: time.Now(),
		Category:  category,
		Payload:   payload,
	})
}

// Snapshot returns a copy of the accumulated events in capture order. The
// read is non-destructive.
func (l *EventLog) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Counts returns the number of captured events per category.
func (l *EventLog) Counts() map[Category]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[Category]int)
	for _, ev := range l.events {
		counts[ev.Category]++
	}
	return counts
}

// Len returns the number of captured events.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
