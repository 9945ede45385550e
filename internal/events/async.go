package events

import (
	"context"
	"sync/atomic"

	"arbradar/internal/model"
)

// Async decouples a slow sink from the tick. Events are queued in a bounded
// buffer; when it is full the oldest queued event is dropped.
type Async struct {
	next    Sink
	ch      chan model.Event
	dropped atomic.Int64
}

// NewAsync wraps next with a queue of the given size.
func NewAsync(next Sink, size int) *Async {
	if size <= 0 {
		size = 256
	}
	return &Async{next: next, ch: make(chan model.Event, size)}
}

func (a *Async) Emit(event model.Event) {
	for {
		select {
		case a.ch <- event:
			return
		default:
		}
		select {
		case <-a.ch:
			a.dropped.Add(1)
		default:
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Run forwards queued events until ctx is cancelled, then flushes what is left.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-a.ch:
					a.next.Emit(e)
				default:
					return nil
				}
			}
		case e := <-a.ch:
			a.next.Emit(e)
		}
	}
}
