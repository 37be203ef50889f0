// internal/events/recorder.go
package events

import (
	"context"
	"sync"
)

// Recorder keeps published events in memory. Tests use it to assert on what was emitted.
type Recorder struct {
	mu     sync.Mutex
	events []DealEvent
}

func (r *Recorder) Publish(_ context.Context, event DealEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() {}

func (r *Recorder) Events() []DealEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DealEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.EventType)
	}
	return types
}
