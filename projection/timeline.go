// Package projection builds local views from observed relay events.
// It does not emit events or interact with routing.
package projection

import (
	"context"
	"sync"
	"time"

	"relay-lab/domain/event"
)

// Entry is one observed event in a session's timeline.
type Entry struct {
	Tag  string    `json:"tag"`
	Dest []string  `json:"dest"`
	At   time.Time `json:"at"`
}

// Timeline keeps the most recent events per session, oldest dropped first.
// It backs the debug endpoint; losing entries is acceptable.
type Timeline struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string][]Entry
}

func NewTimeline(capacity int) *Timeline {
	return &Timeline{
		capacity: capacity,
		entries:  make(map[string][]Entry),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.Tagged) error {
	if e.SessionID == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	// A closed session will never produce events again; forgetting it here
	// keeps the projection bounded by the number of live sessions.
	if _, closed := e.Event.(event.SessionClosed); closed {
		delete(t.entries, e.SessionID)
		return nil
	}

	list := append(t.entries[e.SessionID], Entry{
		Tag:  e.Event.EventTag(),
		Dest: e.Dest,
		At:   time.Now().UTC(),
	})
	if len(list) > t.capacity {
		list = list[len(list)-t.capacity:]
	}
	t.entries[e.SessionID] = list
	return nil
}

// Snapshot returns a copy of the timeline of one session, oldest first.
func (t *Timeline) Snapshot(sessionID string) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	list := t.entries[sessionID]
	out := make([]Entry, len(list))
	copy(out, list)
	return out
}

// Sessions lists the session ids currently holding timeline entries.
func (t *Timeline) Sessions() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	return ids
}
