package lattix

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/lattixio/lattix/extension"
	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/model/task"
	"github.com/lattixio/lattix/runtime/mapper"
	"github.com/lattixio/lattix/service/messaging"
	"github.com/lattixio/lattix/tracing"
)

// call is one unit of work for the dispatcher: a named mapper call to
// run under the target mapper's call serialization.
type call struct {
	mapperID string
	name     string
	invoke   func(ctx *mapper.Context, rt *mapper.Runtime) error
	done     chan error
}

// Runtime drives mapper execution. A dispatcher consumes queued calls
// and runs each on its own goroutine under its mapper's manager; a
// pump delivers inter-space messages to mapper HandleMessage
// callbacks. Worker slots bound how many calls execute at once: a
// call that pauses hands its slot back and reclaims one on resume, so
// paused calls never starve the pool.
type Runtime struct {
	space    mem.AddressSpace
	protocol *mapper.Runtime
	mappers  *extension.Mappers
	exchange *messaging.Exchange
	calls    messaging.Queue[call]
	workers  int
	slots    chan struct{}

	managers map[string]*mapper.Manager
	mux      sync.Mutex

	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Protocol returns the mapper-facing protocol façade.
func (r *Runtime) Protocol() *mapper.Runtime { return r.protocol }

// AddressSpace returns the local address space.
func (r *Runtime) AddressSpace() mem.AddressSpace { return r.space }

// Manager returns the call manager for the given mapper, creating it on
// first use so each mapper instance gets exactly one serialization
// domain.
func (r *Runtime) Manager(mapperID string) *mapper.Manager {
	r.mux.Lock()
	defer r.mux.Unlock()
	mgr, ok := r.managers[mapperID]
	if !ok {
		mgr = mapper.NewManager(mapperID)
		mgr.SetSuspendHooks(r.releaseSlot, r.acquireSlot)
		r.managers[mapperID] = mgr
	}
	return mgr
}

// Start launches the call dispatcher and the message pump. It is
// idempotent.
func (r *Runtime) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}
	if r.slots == nil {
		r.slots = make(chan struct{}, r.workers)
		for i := 0; i < r.workers; i++ {
			r.slots <- struct{}{}
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(2)
	go r.dispatch(runCtx)
	go r.pump(runCtx)
	return nil
}

// Shutdown stops the dispatcher and the pump. Calls already in flight
// finish in the background; their callers observe completion through
// InvokeMapperCall's result or their own context.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if !r.started.CompareAndSwap(true, false) {
		return nil
	}
	r.cancel()
	r.wg.Wait()
	return nil
}

func (r *Runtime) acquireSlot() { <-r.slots }

func (r *Runtime) releaseSlot() { r.slots <- struct{}{} }

// dispatch consumes queued calls and runs each on its own goroutine.
// Registration with the mapper's manager happens here, on a single
// goroutine, so calls of one mapper are admitted in issue order. A
// call holds a worker slot only while it executes; waiting for
// admission or being paused holds none.
func (r *Runtime) dispatch(ctx context.Context) {
	defer r.wg.Done()
	for {
		msg, err := r.calls.Consume(ctx)
		if err != nil {
			return
		}
		c := msg.T()
		mgr := r.Manager(c.mapperID)
		callCtx, wait := mgr.EnqueueCall(c.name)
		go func() {
			wait()
			r.acquireSlot()
			err := c.invoke(callCtx, r.protocol)
			mgr.EndCall(callCtx)
			r.releaseSlot()
			_ = msg.Ack()
			c.done <- err
		}()
	}
}

// pump delivers envelopes addressed to this space. Delivery is
// sequential per space, preserving send order for each peer mapper.
func (r *Runtime) pump(ctx context.Context) {
	defer r.wg.Done()
	for {
		msg, err := r.exchange.Consume(ctx, r.space)
		if err != nil {
			return
		}
		env := msg.T()
		if mp := r.mappers.Lookup(env.MapperID); mp != nil {
			if err := r.InvokeMapperCall(ctx, env.MapperID, "handleMessage",
				func(callCtx *mapper.Context, rt *mapper.Runtime) error {
					mp.HandleMessage(callCtx, rt, *env)
					return nil
				}); err != nil && ctx.Err() == nil {
				log.Printf("pump: failed to deliver message to mapper %s: %v", env.MapperID, err)
			}
		} else {
			log.Printf("pump: no mapper %s for message from space %d", env.MapperID, env.Source)
		}
		_ = msg.Ack()
	}
}

// InvokeMapperCall schedules fn as one serialized call of the given
// mapper and waits for it to finish. The call runs on a dispatcher
// worker; fn may pause cooperatively through the protocol façade.
func (r *Runtime) InvokeMapperCall(ctx context.Context, mapperID, name string,
	fn func(callCtx *mapper.Context, rt *mapper.Runtime) error) error {
	if !r.started.Load() {
		return fmt.Errorf("runtime not started")
	}
	c := call{mapperID: mapperID, name: name, invoke: fn, done: make(chan error, 1)}
	if err := r.calls.Publish(ctx, &c); err != nil {
		return err
	}
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MapTask asks the named mapper to place one task. A nil error with a
// non-nil Failure means the mapper found no feasible placement; that is
// an expected outcome, not an error.
func (r *Runtime) MapTask(ctx context.Context, mapperID string, t *task.Task) (*task.Assignment, *task.Failure, error) {
	mp := r.mappers.Lookup(mapperID)
	if mp == nil {
		return nil, nil, fmt.Errorf("unknown mapper %q", mapperID)
	}
	spanCtx, span := tracing.StartSpan(ctx, "runtime.mapTask", "INTERNAL")
	var assignment *task.Assignment
	var failure *task.Failure
	err := r.InvokeMapperCall(spanCtx, mapperID, "mapTask",
		func(callCtx *mapper.Context, rt *mapper.Runtime) error {
			var err error
			assignment, failure, err = mp.MapTask(callCtx, rt, t)
			return err
		})
	tracing.EndSpan(span, err)
	return assignment, failure, err
}
