// Package mapper implements the mapper call runtime: per-mapper-
// instance call serialization with cooperative pause/resume, the
// AutoLock blocking discipline, one-shot mapper events and the
// instance-allocation protocol façade mappers program against.
//
// A mapper instance executes at most one call at a time. A call that
// blocks (on an AutoLock or a mapper event) pauses instead of holding
// its worker: the manager is told the call is pausing, the worker is
// free to run other work, and the call resumes once its wait
// completes. With reentrancy enabled, other calls of the same mapper
// may interleave at those pause points; without it they queue until
// the current call finishes.
package mapper

import (
	"sync"

	"github.com/lattixio/lattix/internal/idgen"
	"github.com/lattixio/lattix/internal/strict"
)

// Context is the capability bound to one in-flight mapper call. It is
// valid only for the duration of that call and carries a pointer to
// the owning manager; it is passed explicitly to every protocol
// operation rather than stored as ambient state.
type Context struct {
	id      string
	call    string
	manager *Manager

	// holds tracks acquire references taken by this call, keyed by
	// instance id. Releases with no matching hold are no-ops.
	holdMu sync.Mutex
	holds  map[uint64]*hold

	// lock bookkeeping for the strict-mode reacquire check.
	lockMu       sync.Mutex
	heldLocks    []*AutoLock
	lastReleased *AutoLock
}

type hold struct {
	inst  interface{ RemoveGCReference() }
	count int
}

// ID returns the call identity.
func (c *Context) ID() string { return c.id }

// Call returns the mapper-call name this context was created for.
func (c *Context) Call() string { return c.call }

// Manager returns the owning call manager.
func (c *Context) Manager() *Manager { return c.manager }

type pendingCall struct {
	ctx   *Context
	ready chan struct{}
}

// Stats exposes manager counters for diagnostics and tests.
type Stats struct {
	Started int
	Paused  int
	Resumed int
	Ended   int
}

// Manager serializes the calls of one mapper instance.
type Manager struct {
	mapperID string

	mu        sync.Mutex
	running   int // number of actively executing (not paused) calls; at most 1
	paused    int
	reentrant bool
	lockedBy  *Context

	startQ  []*pendingCall
	resumeQ []*pendingCall

	stats Stats

	// onPause/onResume hand a dispatcher worker slot back when a call
	// suspends and reclaim one when it continues.
	onPause  func()
	onResume func()
}

// NewManager creates a call manager for one mapper instance.
func NewManager(mapperID string) *Manager {
	return &Manager{mapperID: mapperID}
}

// MapperID returns the mapper instance this manager serializes.
func (m *Manager) MapperID() string { return m.mapperID }

// SetSuspendHooks installs callbacks bracketing a call's suspension:
// onPause runs once the call stops executing, onResume once it is
// admitted to continue. Install before the manager admits calls.
func (m *Manager) SetSuspendHooks(onPause, onResume func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPause = onPause
	m.onResume = onResume
}

// BeginCall admits a new mapper call, blocking until the serialization
// discipline lets it run, and returns its context.
func (m *Manager) BeginCall(call string) *Context {
	ctx, wait := m.EnqueueCall(call)
	wait()
	return ctx
}

// EnqueueCall registers a call in issue order and returns its context
// together with a wait function that blocks until the call is
// admitted. Splitting registration from the wait lets a dispatcher
// preserve call-issue order without stalling on admission.
func (m *Manager) EnqueueCall(call string) (*Context, func()) {
	ctx := &Context{
		id:      idgen.New(),
		call:    call,
		manager: m,
		holds:   make(map[uint64]*hold),
	}
	m.mu.Lock()
	if m.admitLocked() {
		m.running++
		m.stats.Started++
		m.mu.Unlock()
		return ctx, func() {}
	}
	pending := &pendingCall{ctx: ctx, ready: make(chan struct{})}
	m.startQ = append(m.startQ, pending)
	m.mu.Unlock()
	return ctx, func() { <-pending.ready }
}

// EndCall retires a call, releasing any holds it still owns and
// admitting the next queued call.
func (m *Manager) EndCall(ctx *Context) {
	ctx.releaseAllHolds()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running--
	m.stats.Ended++
	if m.lockedBy == ctx {
		m.lockedBy = nil
	}
	m.dispatchLocked()
}

// PauseCall tells the manager the call is about to block. The worker
// executing the call is handed back afterwards; with reentrancy
// enabled the next queued call may start.
func (m *Manager) PauseCall(ctx *Context) {
	m.mu.Lock()
	m.running--
	m.paused++
	m.stats.Paused++
	m.dispatchLocked()
	onPause := m.onPause
	m.mu.Unlock()
	if onPause != nil {
		onPause()
	}
}

// ResumeCall blocks until the paused call may continue, then marks it
// running again and reclaims a worker slot.
func (m *Manager) ResumeCall(ctx *Context) {
	m.mu.Lock()
	onResume := m.onResume
	if m.resumableLocked(ctx) {
		m.paused--
		m.running++
		m.stats.Resumed++
		m.mu.Unlock()
		if onResume != nil {
			onResume()
		}
		return
	}
	pending := &pendingCall{ctx: ctx, ready: make(chan struct{})}
	m.resumeQ = append(m.resumeQ, pending)
	m.mu.Unlock()
	<-pending.ready
	if onResume != nil {
		onResume()
	}
}

// EnableReentrant lets other calls of this mapper interleave while the
// current call is paused.
func (m *Manager) EnableReentrant(ctx *Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reentrant = true
	m.dispatchLocked()
}

// DisableReentrant restores strict call serialization.
func (m *Manager) DisableReentrant(ctx *Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reentrant = false
}

// IsReentrant reports whether reentrancy is currently enabled.
func (m *Manager) IsReentrant(ctx *Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reentrant
}

// LockMapper prevents any other call from running, even at pause
// points, until UnlockMapper or the call's end. Locking overrides
// reentrancy.
func (m *Manager) LockMapper(ctx *Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	strict.Check(m.lockedBy == nil || m.lockedBy == ctx, "mapper %s already locked by another call", m.mapperID)
	m.lockedBy = ctx
}

// UnlockMapper releases an explicit mapper lock.
func (m *Manager) UnlockMapper(ctx *Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockedBy == ctx {
		m.lockedBy = nil
		m.dispatchLocked()
	}
}

// IsLocked reports whether the mapper is explicitly locked.
func (m *Manager) IsLocked(ctx *Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockedBy != nil
}

// Snapshot returns the current counters.
func (m *Manager) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// admitLocked decides whether a brand-new call may start now.
func (m *Manager) admitLocked() bool {
	if m.running > 0 || m.lockedBy != nil {
		return false
	}
	return m.paused == 0 || m.reentrant
}

// resumableLocked decides whether a paused call may continue now.
func (m *Manager) resumableLocked(ctx *Context) bool {
	if m.running > 0 {
		return false
	}
	return m.lockedBy == nil || m.lockedBy == ctx
}

// dispatchLocked admits waiting resumes first, then new calls.
func (m *Manager) dispatchLocked() {
	for len(m.resumeQ) > 0 && m.resumableLocked(m.resumeQ[0].ctx) {
		next := m.resumeQ[0]
		m.resumeQ = m.resumeQ[1:]
		m.paused--
		m.running++
		m.stats.Resumed++
		close(next.ready)
	}
	for len(m.startQ) > 0 && m.admitLocked() {
		next := m.startQ[0]
		m.startQ = m.startQ[1:]
		m.running++
		m.stats.Started++
		close(next.ready)
	}
}

// addHold records an acquire reference owned by this call.
func (c *Context) addHold(id uint64, inst interface{ RemoveGCReference() }) {
	c.holdMu.Lock()
	defer c.holdMu.Unlock()
	if h, ok := c.holds[id]; ok {
		h.count++
		return
	}
	c.holds[id] = &hold{inst: inst, count: 1}
}

// dropHold removes one acquire reference if this call owns any;
// returns false otherwise.
func (c *Context) dropHold(id uint64) bool {
	c.holdMu.Lock()
	defer c.holdMu.Unlock()
	h, ok := c.holds[id]
	if !ok {
		return false
	}
	h.count--
	h.inst.RemoveGCReference()
	if h.count == 0 {
		delete(c.holds, id)
	}
	return true
}

// releaseAllHolds drops every hold still owned at call end.
func (c *Context) releaseAllHolds() {
	c.holdMu.Lock()
	defer c.holdMu.Unlock()
	for id, h := range c.holds {
		for ; h.count > 0; h.count-- {
			h.inst.RemoveGCReference()
		}
		delete(c.holds, id)
	}
}
