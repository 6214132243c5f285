package alerting

import (
	"sync"

	"github.com/smukkama/env-monitor/internal/protocol"
)

// DefaultFeedCapacity is the number of events kept in the feed
const DefaultFeedCapacity = 50

// Feed is the in-memory, newest-first list of alert events shown to users.
type Feed struct {
	mu       sync.RWMutex
	capacity int
	events   []protocol.AlertEvent
}

// NewFeed creates an empty feed holding at most capacity events
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &Feed{capacity: capacity}
}

// Add prepends the events of one pass, keeping their order, then drops the
// oldest entries beyond capacity.
func (f *Feed) Add(events []protocol.AlertEvent) {
	if len(events) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	combined := make([]protocol.AlertEvent, 0, len(events)+len(f.events))
	combined = append(combined, events...)
	combined = append(combined, f.events...)
	if len(combined) > f.capacity {
		combined = combined[:f.capacity]
	}
	f.events = combined
}

// Remove dismisses the events with the given id
func (f *Feed) Remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.events[:0]
	removed := false
	for _, ev := range f.events {
		if ev.ID == id {
			removed = true
			continue
		}
		kept = append(kept, ev)
	}
	f.events = kept
	return removed
}

// Clear removes every event and returns how many were dropped
func (f *Feed) Clear() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.events)
	f.events = nil
	return n
}

// List returns the events, newest first. An empty severity returns all.
func (f *Feed) List(severity protocol.Severity) []protocol.AlertEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]protocol.AlertEvent, 0, len(f.events))
	for _, ev := range f.events {
		if severity == "" || ev.Severity == severity {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of events held
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.events)
}

// Counts summarises the feed by severity
type Counts struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

func (f *Feed) Counts() Counts {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c := Counts{Total: len(f.events)}
	for _, ev := range f.events {
		switch ev.Severity {
		case protocol.SeverityCritical:
			c.Critical++
		case protocol.SeverityWarning:
			c.Warning++
		case protocol.SeverityInfo:
			c.Info++
		}
	}
	return c
}
