package node

import (
	"github.com/google/uuid"
)

// Node is anything that participates in the dataflow graph.
type Node interface {
	// ID returns the node's stable identifier, assigned at construction.
	ID() string

	// Name returns the human-readable node name used in logs and
	// provenance.
	Name() string

	// Upstreams returns the nodes this node receives from, in wiring order.
	Upstreams() []Node
}

// Consumer is a node that accepts pushed values.
type Consumer interface {
	Node

	// Consume processes one value. An error aborts propagation for the
	// current input and travels back up the synchronous call chain.
	Consume(v any) error
}

// Producer is a node that pushes values to subscribers.
type Producer interface {
	Node

	// Subscribe registers c to receive every subsequently emitted value.
	Subscribe(c Consumer)
}

// Emitter implements the Producer half of a node. It is meant to be
// embedded; the embedding type supplies Consume or other entry points that
// call Emit.
type Emitter struct {
	id        string
	name      string
	upstreams []Node
	consumers []Consumer
}

// NewEmitter creates an Emitter with a fresh stable identifier.
func NewEmitter(name string, upstreams ...Node) Emitter {
	return Emitter{
		id:        uuid.New().String(),
		name:      name,
		upstreams: upstreams,
	}
}

// ID implements Node.
func (e *Emitter) ID() string { return e.id }

// Name implements Node.
func (e *Emitter) Name() string { return e.name }

// Upstreams implements Node.
func (e *Emitter) Upstreams() []Node {
	out := make([]Node, len(e.upstreams))
	copy(out, e.upstreams)
	return out
}

// Subscribe implements Producer.
func (e *Emitter) Subscribe(c Consumer) {
	e.consumers = append(e.consumers, c)
}

// Emit delivers v synchronously to every subscriber in subscription order.
// The first consumer error aborts delivery and is returned.
func (e *Emitter) Emit(v any) error {
	for _, c := range e.consumers {
		if err := c.Consume(v); err != nil {
			return err
		}
	}
	return nil
}
