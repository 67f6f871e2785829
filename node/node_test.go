package node

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture is a test consumer recording everything pushed to it.
type capture struct {
	Emitter
	values []any
	err    error
}

func newCapture(name string) *capture {
	return &capture{Emitter: NewEmitter(name)}
}

func (c *capture) Consume(v any) error {
	c.values = append(c.values, v)
	return c.err
}

func TestEmitter_StableIdentity(t *testing.T) {
	a := NewEmitter("a")
	b := NewEmitter("a")

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "a", a.Name())
}

func TestEmitter_FanOut(t *testing.T) {
	src := NewEmitter("src")

	first := newCapture("first")
	second := newCapture("second")
	src.Subscribe(first)
	src.Subscribe(second)

	require.NoError(t, src.Emit(1))
	require.NoError(t, src.Emit(2))

	assert.Equal(t, []any{1, 2}, first.values)
	assert.Equal(t, []any{1, 2}, second.values)
}

func TestEmitter_ConsumerErrorAbortsFanOut(t *testing.T) {
	src := NewEmitter("src")
	boom := errors.New("boom")

	failing := newCapture("failing")
	failing.err = boom
	after := newCapture("after")

	src.Subscribe(failing)
	src.Subscribe(after)

	err := src.Emit(1)
	require.ErrorIs(t, err, boom)
	assert.Len(t, failing.values, 1)
	assert.Empty(t, after.values, "consumers after the failing one must not run")
}

func TestMap_Transforms(t *testing.T) {
	src := NewEmitter("src")
	doubled := Map("double", &src, func(v any) (any, error) {
		return v.(int) * 2, nil
	})
	out := newCapture("out")
	doubled.Subscribe(out)

	require.NoError(t, src.Emit(3))
	require.NoError(t, src.Emit(4))

	assert.Equal(t, []any{6, 8}, out.values)
}

func TestMap_ErrorBecomesFailureResult(t *testing.T) {
	src := NewEmitter("src")
	failing := Map("failing", &src, func(any) (any, error) {
		return nil, errors.New("division by zero")
	})
	out := newCapture("out")
	failing.Subscribe(out)

	require.NoError(t, src.Emit(1))

	require.Len(t, out.values, 1)
	r, ok := out.values[0].(Result)
	require.True(t, ok)
	assert.True(t, r.Failed())
	assert.Equal(t, "division by zero", r.Reason())
}

func TestMap_FailurePassesThrough(t *testing.T) {
	src := NewEmitter("src")
	called := false
	m := Map("noop", &src, func(v any) (any, error) {
		called = true
		return v, nil
	})
	out := newCapture("out")
	m.Subscribe(out)

	require.NoError(t, src.Emit(Failure("upstream broke")))

	assert.False(t, called, "transformation must not run on a failure")
	require.Len(t, out.values, 1)
	assert.True(t, out.values[0].(Result).Failed())
}

func TestMap_UnwrapsOKResult(t *testing.T) {
	src := NewEmitter("src")
	m := Map("inc", &src, func(v any) (any, error) {
		return v.(int) + 1, nil
	})
	out := newCapture("out")
	m.Subscribe(out)

	require.NoError(t, src.Emit(OK(1)))
	assert.Equal(t, []any{2}, out.values)
}

func TestZip_AlignsTuples(t *testing.T) {
	left := NewEmitter("left")
	right := NewEmitter("right")
	z := Zip("pair", &left, &right)
	out := newCapture("out")
	z.Subscribe(out)

	require.NoError(t, left.Emit(1))
	assert.Empty(t, out.values, "nothing until both slots have a value")

	require.NoError(t, right.Emit("a"))
	require.Equal(t, []any{[]any{1, "a"}}, out.values)

	// Queued values pair up in arrival order.
	require.NoError(t, left.Emit(2))
	require.NoError(t, left.Emit(3))
	require.NoError(t, right.Emit("b"))
	require.NoError(t, right.Emit("c"))

	assert.Equal(t, []any{
		[]any{1, "a"},
		[]any{2, "b"},
		[]any{3, "c"},
	}, out.values)
}

func TestZip_FailureSkipsAlignment(t *testing.T) {
	left := NewEmitter("left")
	right := NewEmitter("right")
	z := Zip("pair", &left, &right)
	out := newCapture("out")
	z.Subscribe(out)

	require.NoError(t, left.Emit(Failure("bad branch")))

	require.Len(t, out.values, 1)
	r, ok := out.values[0].(Result)
	require.True(t, ok)
	assert.True(t, r.Failed())
}

func TestZip_FailureDropsQueuedPartner(t *testing.T) {
	left := NewEmitter("left")
	right := NewEmitter("right")
	z := Zip("pair", &left, &right)
	out := newCapture("out")
	z.Subscribe(out)

	require.NoError(t, left.Emit(1))
	require.NoError(t, right.Emit(Failure("bad branch")))

	// The value queued as the failed element's partner is gone, so the next
	// pair is made of post-failure values only.
	require.NoError(t, left.Emit(2))
	require.NoError(t, right.Emit("b"))

	require.Len(t, out.values, 2)
	assert.True(t, out.values[0].(Result).Failed())
	assert.Equal(t, []any{2, "b"}, out.values[1])
}

func TestZip_FailureDropsLatePartner(t *testing.T) {
	left := NewEmitter("left")
	right := NewEmitter("right")
	z := Zip("pair", &left, &right)
	out := newCapture("out")
	z.Subscribe(out)

	// Failure arrives before its partner; the partner is dropped on arrival.
	require.NoError(t, right.Emit(Failure("bad branch")))
	require.NoError(t, left.Emit(1))
	require.NoError(t, left.Emit(2))
	require.NoError(t, right.Emit("b"))

	require.Len(t, out.values, 2)
	assert.True(t, out.values[0].(Result).Failed())
	assert.Equal(t, []any{2, "b"}, out.values[1])
}

func TestZip_PairedFailuresDoNotEatValues(t *testing.T) {
	left := NewEmitter("left")
	right := NewEmitter("right")
	z := Zip("pair", &left, &right)
	out := newCapture("out")
	z.Subscribe(out)

	// Both branches fail on the same generation: the second failure stands
	// in for the first one's dropped partner, so later values still pair.
	require.NoError(t, left.Emit(Failure("left broke")))
	require.NoError(t, right.Emit(Failure("right broke")))
	require.NoError(t, left.Emit(1))
	require.NoError(t, right.Emit("a"))

	require.Len(t, out.values, 3)
	assert.True(t, out.values[0].(Result).Failed())
	assert.True(t, out.values[1].(Result).Failed())
	assert.Equal(t, []any{1, "a"}, out.values[2])
}

func TestZip_UpstreamsPreserveWiringOrder(t *testing.T) {
	left := NewEmitter("left")
	right := NewEmitter("right")
	z := Zip("pair", &left, &right)

	ups := z.Upstreams()
	require.Len(t, ups, 2)
	assert.Equal(t, left.ID(), ups[0].ID())
	assert.Equal(t, right.ID(), ups[1].ID())
}
