// Package events keeps a bounded in-memory ring of engine events for the
// operator surface. Not a durable log: restarts start empty.
package events

import (
	"sync"
	"time"
)

const ringSize = 500

// Event is one engine happening worth showing an operator.
type Event struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"` // cycle | trade | discovery | train | budget | error
	Ticker string    `json:"ticker,omitempty"`
	Text   string    `json:"text"`
}

// Log is the shared ring.
type Log struct {
	mu   sync.RWMutex
	ring []Event
}

// NewLog creates an empty ring.
func NewLog() *Log {
	return &Log{}
}

// Add appends an event, evicting the oldest past capacity.
func (l *Log) Add(kind, ticker, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring = append(l.ring, Event{At: time.Now(), Kind: kind, Ticker: ticker, Text: text})
	if len(l.ring) > ringSize {
		l.ring = l.ring[len(l.ring)-ringSize:]
	}
}

// Recent returns up to n events, newest first.
func (l *Log) Recent(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.ring) {
		n = len(l.ring)
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = l.ring[len(l.ring)-1-i]
	}
	return out
}
