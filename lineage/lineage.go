// Package lineage discovers the dependency graph between an assembler and
// the value sources that govern its run boundaries. The graph is built once
// at assembler construction time by walking the node graph backward, and is
// serialized into RunStart provenance for reproducibility.
package lineage

import (
	"fmt"
	"sort"

	"github.com/c360/docstreams/node"
)

// Source is a graph boundary: a node that translates documents into values
// and owns run-identity state. The backward walk never descends past a
// Source, so raw-acquisition topology upstream of it stays out of
// derived-stream provenance.
type Source interface {
	node.Node

	// Principal reports whether this source's run boundaries drive a
	// downstream assembler's resynchronization decisions.
	Principal() bool

	// RunStartUID returns the uid of the source's current run, or "" when
	// no run is open.
	RunStartUID() string
}

// Edge is a "receives from" relation between two nodes, keyed by their
// stable identifiers.
type Edge struct {
	From string // upstream node id
	To   string // downstream node id
}

// Graph is the discovered dependency graph.
type Graph struct {
	nodes map[string]node.Node
	edges map[Edge]struct{}
}

// Build walks the node graph backward from root, assigning graph membership
// by stable node identity and deduplicating edges so diamond-shaped wiring
// yields a simple graph. Recursion stops descending past any Source.
func Build(root node.Node) *Graph {
	g := &Graph{
		nodes: make(map[string]node.Node),
		edges: make(map[Edge]struct{}),
	}
	g.walk(root, nil)
	return g
}

func (g *Graph) walk(n, downstream node.Node) {
	if n == nil {
		return
	}
	g.nodes[n.ID()] = n

	if downstream != nil {
		e := Edge{From: n.ID(), To: downstream.ID()}
		if _, seen := g.edges[e]; seen {
			return
		}
		g.edges[e] = struct{}{}
		if _, boundary := n.(Source); boundary {
			return
		}
	}

	for _, up := range n.Upstreams() {
		g.walk(up, n)
	}
}

// Node returns the graph node with the given id, or nil.
func (g *Graph) Node(id string) node.Node {
	return g.nodes[id]
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Sources returns every Source node in the graph, ordered by name then id
// for deterministic downstream behavior.
func (g *Graph) Sources() []Source {
	var out []Source
	for _, n := range g.nodes {
		if s, ok := n.(Source); ok {
			out = append(out, s)
		}
	}
	sortSources(out)
	return out
}

// Principals returns the subset of Sources whose run identity governs
// resynchronization.
func (g *Graph) Principals() []Source {
	var out []Source
	for _, s := range g.Sources() {
		if s.Principal() {
			out = append(out, s)
		}
	}
	return out
}

// Edges returns the deduplicated edge list in deterministic order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Serialize renders the graph as a deterministic, human-readable edge list
// suitable for embedding into RunStart provenance.
func (g *Graph) Serialize() []string {
	edges := g.Edges()
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = fmt.Sprintf("%s[%s] -> %s[%s]",
			g.nodeName(e.From), e.From, g.nodeName(e.To), e.To)
	}
	return out
}

func (g *Graph) nodeName(id string) string {
	if n, ok := g.nodes[id]; ok {
		return n.Name()
	}
	return "unknown"
}

func sortSources(sources []Source) {
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Name() != sources[j].Name() {
			return sources[i].Name() < sources[j].Name()
		}
		return sources[i].ID() < sources[j].ID()
	})
}
