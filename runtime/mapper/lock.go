package mapper

import (
	"sync"

	"github.com/lattixio/lattix/internal/strict"
)

// AutoLock is a read/write lock with cooperative blocking: a call that
// cannot take the lock does not park its worker thread. Instead the
// acquire obtains a readiness channel, tells its manager it is pausing
// exactly once, waits, tells the manager it is resuming, and retries.
// The freed worker can service other mapper calls in the meantime.
type AutoLock struct {
	mu      sync.Mutex
	writer  *Context
	readers map[*Context]int
	waiters []chan struct{}
}

// NewAutoLock creates an unheld lock.
func NewAutoLock() *AutoLock {
	return &AutoLock{readers: make(map[*Context]int)}
}

// Lock acquires the lock exclusively, pausing the call while another
// context holds it.
func (l *AutoLock) Lock(ctx *Context) {
	for {
		l.mu.Lock()
		if l.writer == nil && len(l.readers) == 0 {
			l.writer = ctx
			ctx.recordAcquire(l)
			l.mu.Unlock()
			return
		}
		self := l.writer == ctx
		ready := make(chan struct{})
		l.waiters = append(l.waiters, ready)
		l.mu.Unlock()
		strict.Check(!self, "reentrant exclusive acquire of an AutoLock")

		// Exactly one pause/resume pair per blocked attempt.
		ctx.manager.PauseCall(ctx)
		<-ready
		ctx.manager.ResumeCall(ctx)
	}
}

// RLock acquires the lock shared, pausing the call while a writer
// holds it.
func (l *AutoLock) RLock(ctx *Context) {
	for {
		l.mu.Lock()
		if l.writer == nil {
			l.readers[ctx]++
			if l.readers[ctx] == 1 {
				ctx.recordAcquire(l)
			}
			l.mu.Unlock()
			return
		}
		self := l.writer == ctx
		ready := make(chan struct{})
		l.waiters = append(l.waiters, ready)
		l.mu.Unlock()
		strict.Check(!self, "shared acquire of an AutoLock already held exclusively by this call")

		ctx.manager.PauseCall(ctx)
		<-ready
		ctx.manager.ResumeCall(ctx)
	}
}

// Unlock releases an exclusive hold and wakes every waiter to retry.
func (l *AutoLock) Unlock(ctx *Context) {
	l.mu.Lock()
	held := l.writer == ctx
	var waiters []chan struct{}
	if held {
		l.writer = nil
		ctx.recordRelease(l)
		waiters = l.waiters
		l.waiters = nil
	}
	l.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
	strict.Check(held, "unlock of an AutoLock not held exclusively by this call")
}

// RUnlock releases a shared hold and, when the lock becomes free,
// wakes every waiter to retry.
func (l *AutoLock) RUnlock(ctx *Context) {
	l.mu.Lock()
	count, ok := l.readers[ctx]
	if !ok {
		l.mu.Unlock()
		strict.Check(false, "read-unlock of an AutoLock not held by this call")
		return
	}
	if count == 1 {
		delete(l.readers, ctx)
		ctx.recordRelease(l)
	} else {
		l.readers[ctx] = count - 1
	}
	var waiters []chan struct{}
	if len(l.readers) == 0 {
		waiters = l.waiters
		l.waiters = nil
	}
	l.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

// Reacquire takes the lock exclusively again after an explicit
// release. The strict-mode check catches reentrant-lock misuse: the
// reacquired lock must be the one the call released most recently, so
// the previous lock ordering is preserved.
func (l *AutoLock) Reacquire(ctx *Context) {
	ctx.lockMu.Lock()
	last := ctx.lastReleased
	ctx.lockMu.Unlock()
	strict.Check(last == l, "reacquire out of order: a different lock was released after this one")
	l.Lock(ctx)
}

// Held reports whether any context currently holds the lock.
func (l *AutoLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer != nil || len(l.readers) > 0
}

func (c *Context) recordAcquire(l *AutoLock) {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	c.heldLocks = append(c.heldLocks, l)
}

func (c *Context) recordRelease(l *AutoLock) {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	for i := len(c.heldLocks) - 1; i >= 0; i-- {
		if c.heldLocks[i] == l {
			c.heldLocks = append(c.heldLocks[:i], c.heldLocks[i+1:]...)
			break
		}
	}
	c.lastReleased = l
}
