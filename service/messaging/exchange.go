package messaging

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lattixio/lattix/model/mem"
)

// Exchange routes envelopes between address spaces. Each space owns
// one inbound queue; send targets exactly one space, broadcast fans
// out to every space except the sender.
type Exchange struct {
	mu     sync.RWMutex
	queues map[mem.AddressSpace]Queue[Envelope]
}

// NewExchange creates an exchange over the supplied per-space queues.
func NewExchange(queues map[mem.AddressSpace]Queue[Envelope]) *Exchange {
	if queues == nil {
		queues = make(map[mem.AddressSpace]Queue[Envelope])
	}
	return &Exchange{queues: queues}
}

// Attach registers the inbound queue for an address space.
func (e *Exchange) Attach(space mem.AddressSpace, queue Queue[Envelope]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queues[space] = queue
}

// Spaces lists all attached address spaces in ascending order.
func (e *Exchange) Spaces() []mem.AddressSpace {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]mem.AddressSpace, 0, len(e.queues))
	for space := range e.queues {
		out = append(out, space)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Send delivers the envelope to its target space's queue.
func (e *Exchange) Send(ctx context.Context, env Envelope) error {
	e.mu.RLock()
	queue, ok := e.queues[env.Target]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no queue attached for address space %d", env.Target)
	}
	return queue.Publish(ctx, &env)
}

// Broadcast delivers the envelope to every space except the sender.
func (e *Exchange) Broadcast(ctx context.Context, env Envelope) error {
	env.Broadcast = true
	for _, space := range e.Spaces() {
		if space == env.Source {
			continue
		}
		out := env
		out.Target = space
		if err := e.Send(ctx, out); err != nil {
			return err
		}
	}
	return nil
}

// Consume retrieves one envelope addressed to the given space.
func (e *Exchange) Consume(ctx context.Context, space mem.AddressSpace) (Message[Envelope], error) {
	e.mu.RLock()
	queue, ok := e.queues[space]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no queue attached for address space %d", space)
	}
	return queue.Consume(ctx)
}
