package node

// MapNode applies a user transformation to each value pushed through it.
// A transformation error is not propagated as an error: it is converted
// into a failure Result and emitted downstream, where an assembler turns
// it into a failure RunStop.
type MapNode struct {
	Emitter
	fn func(any) (any, error)
}

// Map creates a MapNode applying fn and subscribes it to upstream.
func Map(name string, upstream Producer, fn func(any) (any, error)) *MapNode {
	m := &MapNode{
		Emitter: NewEmitter(name, upstream),
		fn:      fn,
	}
	upstream.Subscribe(m)
	return m
}

// Consume implements Consumer.
func (m *MapNode) Consume(v any) error {
	// Failures from further upstream pass through untransformed.
	if r, ok := v.(Result); ok {
		if r.Failed() {
			return m.Emit(r)
		}
		v = r.Value()
	}

	out, err := m.fn(v)
	if err != nil {
		return m.Emit(Failure(err.Error()))
	}
	return m.Emit(out)
}
