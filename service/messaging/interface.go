// Package messaging defines the queue contract used by the mapper-call
// dispatcher and the inter-mapper exchange. Delivery and ordering are
// this layer's contract; payload interpretation belongs to the caller.
package messaging

import (
	"context"

	"github.com/lattixio/lattix/model/mem"
)

// Vendor names a queue implementation.
type Vendor string

// Queue is an abstract message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue.
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue, blocking until
	// one is available or the context is done.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a message retrieved from a queue.
type Message[T any] interface {
	// T returns the payload of this message.
	T() *T

	// Ack acknowledges successful processing of this message.
	Ack() error

	// Nack indicates failure in processing this message.
	Nack(err error) error
}

// Envelope is the wire payload exchanged between mappers on different
// address spaces. Kind is an application-defined message tag; the
// runtime does not interpret Payload.
type Envelope struct {
	Source    mem.AddressSpace `json:"source"`
	Target    mem.AddressSpace `json:"target"`
	MapperID  string           `json:"mapperId"`
	Kind      int              `json:"kind"`
	Payload   []byte           `json:"payload"`
	Broadcast bool             `json:"broadcast"`
}
