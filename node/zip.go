package node

import (
	"fmt"

	"github.com/google/uuid"
)

// ZipNode aligns values across several upstreams. It queues values per
// upstream and emits a tuple ([]any, one slot per upstream in wiring order)
// whenever every slot has at least one pending value. Failure Results skip
// alignment and pass through immediately so a run can be closed without
// waiting for the other branches; the values that would have paired with
// the failed element are discarded so no tuple ever straddles a failure.
type ZipNode struct {
	Emitter
	queues [][]any
	skips  []int // pending drops per slot for partners of failed elements
}

// zipInlet adapts one upstream to its slot in the ZipNode. Inlets are
// plumbing, not graph nodes: nothing lists them as an upstream, so they
// never appear in lineage walks.
type zipInlet struct {
	id   string
	zip  *ZipNode
	slot int
}

// Zip creates a ZipNode over the given upstreams.
func Zip(name string, upstreams ...Producer) *ZipNode {
	nodes := make([]Node, len(upstreams))
	for i, u := range upstreams {
		nodes[i] = u
	}
	z := &ZipNode{
		Emitter: NewEmitter(name, nodes...),
		queues:  make([][]any, len(upstreams)),
		skips:   make([]int, len(upstreams)),
	}
	for i, u := range upstreams {
		u.Subscribe(&zipInlet{id: uuid.New().String(), zip: z, slot: i})
	}
	return z
}

func (in *zipInlet) ID() string   { return in.id }
func (in *zipInlet) Name() string { return fmt.Sprintf("%s[%d]", in.zip.Name(), in.slot) }

func (in *zipInlet) Upstreams() []Node { return nil }

func (in *zipInlet) Consume(v any) error {
	return in.zip.consumeSlot(in.slot, v)
}

func (z *ZipNode) consumeSlot(slot int, v any) error {
	if r, ok := v.(Result); ok && r.Failed() {
		// A failure standing in for an already-dropped partner must not
		// trigger another round of drops.
		if z.skips[slot] > 0 {
			z.skips[slot]--
		} else {
			z.dropPartners(slot)
		}
		return z.Emit(r)
	}

	if z.skips[slot] > 0 {
		z.skips[slot]--
		return nil
	}

	z.queues[slot] = append(z.queues[slot], v)

	for _, q := range z.queues {
		if len(q) == 0 {
			return nil
		}
	}

	tuple := make([]any, len(z.queues))
	for i := range z.queues {
		tuple[i] = z.queues[i][0]
		z.queues[i] = z.queues[i][1:]
	}
	return z.Emit(tuple)
}

// dropPartners discards the value paired with a failed element in every
// other slot: from the queue when already buffered, otherwise from that
// slot's next arrival.
func (z *ZipNode) dropPartners(failed int) {
	for i := range z.queues {
		if i == failed {
			continue
		}
		if len(z.queues[i]) > 0 {
			z.queues[i] = z.queues[i][1:]
			continue
		}
		z.skips[i]++
	}
}
