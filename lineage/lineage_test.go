package lineage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/docstreams/node"
)

// fakeSource is a minimal Source for graph tests.
type fakeSource struct {
	node.Emitter
	principal bool
	run       string
}

func newFakeSource(name string, principal bool, upstreams ...node.Node) *fakeSource {
	return &fakeSource{
		Emitter:   node.NewEmitter(name, upstreams...),
		principal: principal,
		run:       "run-" + name,
	}
}

func (f *fakeSource) Principal() bool     { return f.principal }
func (f *fakeSource) RunStartUID() string { return f.run }

// plain is a non-boundary intermediate node.
type plain struct {
	node.Emitter
}

func newPlain(name string, upstreams ...node.Node) *plain {
	return &plain{Emitter: node.NewEmitter(name, upstreams...)}
}

func TestBuild_LinearChain(t *testing.T) {
	src := newFakeSource("src", true)
	mid := newPlain("mid", src)
	root := newPlain("root", mid)

	g := Build(root)

	assert.Equal(t, 3, g.Len())
	assert.Len(t, g.Edges(), 2)
	require.Len(t, g.Sources(), 1)
	assert.Equal(t, src.ID(), g.Sources()[0].ID())
}

func TestBuild_StopsAtSourceBoundary(t *testing.T) {
	// Raw-acquisition topology upstream of the source must stay out of the
	// graph.
	acquisition := newPlain("acquisition")
	src := newFakeSource("src", true, acquisition)
	root := newPlain("root", src)

	g := Build(root)

	assert.Equal(t, 2, g.Len())
	assert.Nil(t, g.Node(acquisition.ID()))
}

func TestBuild_DiamondDedupe(t *testing.T) {
	src := newFakeSource("src", true)
	left := newPlain("left", src)
	right := newPlain("right", src)
	root := newPlain("root", left, right)

	g := Build(root)

	assert.Equal(t, 4, g.Len())
	assert.Len(t, g.Edges(), 4, "diamond wiring must not duplicate edges")
}

func TestBuild_DuplicateUpstreamEdge(t *testing.T) {
	src := newFakeSource("src", true)
	root := newPlain("root", src, src)

	g := Build(root)

	assert.Equal(t, 2, g.Len())
	assert.Len(t, g.Edges(), 1, "same relation wired twice is one edge")
}

func TestPrincipals_FiltersNonPrincipal(t *testing.T) {
	p := newFakeSource("alpha", true)
	np := newFakeSource("beta", false)
	root := newPlain("root", p, np)

	g := Build(root)

	require.Len(t, g.Sources(), 2)
	principals := g.Principals()
	require.Len(t, principals, 1)
	assert.Equal(t, p.ID(), principals[0].ID())
}

func TestSources_DeterministicOrder(t *testing.T) {
	b := newFakeSource("beta", true)
	a := newFakeSource("alpha", true)
	root := newPlain("root", b, a)

	g := Build(root)

	sources := g.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, "alpha", sources[0].Name())
	assert.Equal(t, "beta", sources[1].Name())
}

func TestSerialize_Deterministic(t *testing.T) {
	src := newFakeSource("src", true)
	left := newPlain("left", src)
	right := newPlain("right", src)
	root := newPlain("root", left, right)

	g := Build(root)

	first := g.Serialize()
	second := g.Serialize()
	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
	for _, line := range first {
		assert.Contains(t, line, " -> ")
	}
}
