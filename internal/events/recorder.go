package events

import (
	"slices"
	"sync"

	"arbradar/internal/model"
)

// DefaultHistory is the number of events a Recorder keeps by default.
const DefaultHistory = 5000

// Recorder keeps a bounded in-memory history of events and per-level counts.
type Recorder struct {
	mu     sync.Mutex
	max    int
	events []model.Event
	counts map[model.EventLevel]int
}

// NewRecorder creates a recorder keeping at most max events; max <= 0 uses DefaultHistory.
func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = DefaultHistory
	}
	return &Recorder{max: max, counts: make(map[model.EventLevel]int)}
}

func (r *Recorder) Emit(event model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if over := len(r.events) - r.max; over > 0 {
		r.events = slices.Delete(r.events, 0, over)
	}
	r.counts[event.Level]++
}

// Events returns the retained history, oldest first.
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// ByLevel returns the retained events of one level, oldest first.
func (r *Recorder) ByLevel(level model.EventLevel) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, e := range r.events {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events of a level were emitted since the last Clear.
// Trimmed history does not reduce the count.
func (r *Recorder) Count(level model.EventLevel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[level]
}

// Clear drops the history and resets counts.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	clear(r.counts)
}
