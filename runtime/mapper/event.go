package mapper

import (
	"sync"

	"github.com/lattixio/lattix/internal/idgen"
	"github.com/lattixio/lattix/internal/strict"
)

// Event is a one-shot synchronization token visible to mapper logic.
// It starts pending and stays triggered forever once triggered; there
// is no reset. Waiting uses the same pause/resume discipline as
// AutoLock so a blocked call does not hold its worker.
type Event struct {
	id string

	mu        sync.Mutex
	triggered bool
	ready     chan struct{}
}

// NewEvent allocates a fresh pending event.
func NewEvent() *Event {
	return &Event{id: idgen.New(), ready: make(chan struct{})}
}

// ID returns the event identity.
func (e *Event) ID() string { return e.id }

// HasTriggered is a non-blocking poll.
func (e *Event) HasTriggered() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.triggered
}

// Trigger transitions the event from pending to triggered, releasing
// all waiters. Triggering an already-triggered event is a programming
// error caught in strict mode; otherwise it has no effect.
func (e *Event) Trigger() {
	e.mu.Lock()
	if e.triggered {
		e.mu.Unlock()
		strict.Check(false, "mapper event %s triggered twice", e.id)
		return
	}
	e.triggered = true
	close(e.ready)
	e.mu.Unlock()
}

// Wait blocks the calling mapper call until the event triggers,
// bracketing the wait with exactly one pause/resume pair. It returns
// immediately when the event has already triggered.
func (e *Event) Wait(ctx *Context) {
	e.mu.Lock()
	if e.triggered {
		e.mu.Unlock()
		return
	}
	ready := e.ready
	e.mu.Unlock()

	ctx.manager.PauseCall(ctx)
	<-ready
	ctx.manager.ResumeCall(ctx)
}
