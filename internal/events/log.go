// Package events keeps a ring-buffered log of notable world occurrences.
// The WebSocket gateway polls it with a sequence cursor to relay new
// events to connected clients.
package events

import (
	"sync"
	"time"
)

// Event is a notable occurrence in the world.
type Event struct {
	Seq         uint64    `json:"seq"`
	Tick        uint64    `json:"tick"`
	Description string    `json:"description"`
	Category    string    `json:"category"` // "diplomacy", "faction", "admin", etc.
	At          time.Time `json:"at"`
}

// Log is a bounded in-memory event log. Sequence numbers are monotonic
// even after old entries are trimmed.
type Log struct {
	mu      sync.Mutex
	entries []Event
	nextSeq uint64
	max     int
}

// NewLog creates a log that keeps at most max entries.
func NewLog(max int) *Log {
	if max <= 0 {
		max = 1000
	}
	return &Log{nextSeq: 1, max: max}
}

// Append records an event and returns its sequence number.
func (l *Log) Append(tick uint64, description, category string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.nextSeq
	l.nextSeq++
	l.entries = append(l.entries, Event{
		Seq:         seq,
		Tick:        tick,
		Description: description,
		Category:    category,
		At:          time.Now(),
	})
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	return seq
}

// Recent returns up to n of the most recent events, oldest first.
func (l *Log) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := 0
	if len(l.entries) > n {
		start = len(l.entries) - n
	}
	out := make([]Event, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Since returns all retained events with a sequence number greater than seq.
func (l *Log) Since(seq uint64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := len(l.entries)
	for i, e := range l.entries {
		if e.Seq > seq {
			idx = i
			break
		}
	}
	out := make([]Event, len(l.entries)-idx)
	copy(out, l.entries[idx:])
	return out
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
