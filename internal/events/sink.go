// Package events delivers the radar's leveled event stream (INFO, SIGNAL,
// ERROR) to any number of destinations.
package events

import (
	"arbradar/internal/model"
)

// Sink receives radar events. Emit must not block for long: it is called
// from inside the scan tick.
type Sink interface {
	Emit(event model.Event)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(model.Event) {}

// Fanout delivers each event to every sink in order.
type Fanout []Sink

func (f Fanout) Emit(event model.Event) {
	for _, s := range f {
		s.Emit(event)
	}
}

// LevelFilter forwards only events of the listed levels.
type LevelFilter struct {
	Next   Sink
	Levels []model.EventLevel
}

func (f LevelFilter) Emit(event model.Event) {
	for _, l := range f.Levels {
		if l == event.Level {
			f.Next.Emit(event)
			return
		}
	}
}
