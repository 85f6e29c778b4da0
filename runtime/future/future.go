// Package future holds task result values that mappers may need to
// inspect while making mapping decisions. A future's payload becomes
// readable once the producing task completes; AcquireFuture on the
// mapper runtime materialises the payload into a chosen memory first.
package future

import (
	"sync"

	"github.com/lattixio/lattix/internal/idgen"
	"github.com/lattixio/lattix/runtime/instance"
)

// Future is a one-shot container for a task result.
type Future struct {
	id string

	mu       sync.Mutex
	value    []byte
	complete bool
	ready    chan struct{}
	// materialised instances keyed by memory id; each holds one
	// resource reference owned by the future.
	local map[uint64]instance.PhysicalInstance
}

// New creates a pending future.
func New() *Future {
	return &Future{
		id:    idgen.New(),
		ready: make(chan struct{}),
		local: make(map[uint64]instance.PhysicalInstance),
	}
}

// ID returns the future identity.
func (f *Future) ID() string { return f.id }

// Complete stores the result value and releases waiters. Completing a
// future twice is ignored; the first value wins.
func (f *Future) Complete(value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.complete {
		return
	}
	f.value = value
	f.complete = true
	close(f.ready)
}

// Ready returns a channel closed once the result is available.
func (f *Future) Ready() <-chan struct{} { return f.ready }

// IsComplete is a non-blocking poll.
func (f *Future) IsComplete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete
}

// Value returns the result payload; ok is false while pending.
func (f *Future) Value() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.complete
}

// Size returns the payload byte size, 0 while pending.
func (f *Future) Size() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.value))
}

// Instance returns the materialised copy of the payload in the given
// memory; ok is false when none has been made there yet.
func (f *Future) Instance(memoryID uint64) (instance.PhysicalInstance, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.local[memoryID]
	return inst, ok
}

// SetInstance records a materialised copy, taking ownership of the
// handle's reference.
func (f *Future) SetInstance(memoryID uint64, inst instance.PhysicalInstance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.local[memoryID]; ok {
		prev.Release()
	}
	f.local[memoryID] = inst
}
