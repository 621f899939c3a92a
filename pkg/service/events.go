package service

import (
	"sync"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
)

// Emitter fans pipeline events out to subscribers. One emitter is shared by
// the service, executor, worker and reconciler so observers see the whole
// job lifecycle on one channel.
type Emitter struct {
	mu   sync.RWMutex
	subs []chan core.Event
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// Events returns a channel for receiving pipeline events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (e *Emitter) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events().
// The channel is not closed; callers must stop reading before calling
// Unsubscribe. After Unsubscribe returns, no further events will be sent to
// the channel.
func (e *Emitter) Unsubscribe(ch <-chan core.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, sub := range e.subs {
		if sub == ch {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}

// Emit broadcasts an event to all subscribers. Slow consumers drop events
// rather than block the pipeline.
func (e *Emitter) Emit(ev core.Event) {
	e.mu.RLock()
	subs := make([]chan core.Event, len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
