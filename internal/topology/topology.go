package topology

import (
	"fmt"
	"slices"
	"strings"
)

// Kind names a built-in topology in configuration files.
type Kind string

const (
	// KindComplete connects every pair of distinct nodes.
	KindComplete Kind = "complete"

	// KindRing connects each node to its two adjacent nodes.
	KindRing Kind = "ring"
)

// Kinds lists the built-in topology kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindComplete, KindRing}
}

// ParseKind resolves a configuration name to a Kind. Empty means complete.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindComplete:
		return KindComplete, nil
	case KindRing:
		return KindRing, nil
	default:
		return "", fmt.Errorf("unknown topology %q (want one of %v)", s, Kinds())
	}
}

// Build constructs the topology of the given kind over n nodes.
func Build(kind Kind, n int) (*Graph, error) {
	switch kind {
	case "", KindComplete:
		return Complete(n), nil
	case KindRing:
		return Ring(n), nil
	default:
		return nil, fmt.Errorf("unknown topology %q", kind)
	}
}

// Topology is the contact graph consumed by the simulation engine.
type Topology interface {
	// Size returns the number of nodes.
	Size() int

	// Neighbors returns the neighbors of node in ascending order.
	// The returned slice must not be modified.
	Neighbors(node int) []int

	// Edges returns every undirected edge once, sorted.
	Edges() []Edge
}

// Edge is an undirected edge. Source <= Target.
type Edge struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// Graph is an adjacency-list Topology.
type Graph struct {
	adj   [][]int
	edges []Edge
}

// Complete returns the complete graph on n nodes.
func Complete(n int) *Graph {
	edges := make([]Edge, 0, max(n*(n-1)/2, 0))
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			edges = append(edges, Edge{Source: i, Target: j})
		}
	}
	g, _ := FromEdges(n, edges)
	return g
}

// Ring returns the cycle graph on n nodes. Ring(2) is a single edge.
func Ring(n int) *Graph {
	var edges []Edge
	switch {
	case n == 2:
		edges = []Edge{{Source: 0, Target: 1}}
	case n > 2:
		for i := 0; i < n; i++ {
			edges = append(edges, Edge{Source: i, Target: (i + 1) % n})
		}
	}
	g, _ := FromEdges(n, edges)
	return g
}

// FromEdges builds a graph over n nodes from an edge list.
//
// Duplicate edges are collapsed. Self-loops are kept: a node with a
// self-loop lists itself as a neighbor, which the engine rejects when the
// node's agent draws it.
func FromEdges(n int, edges []Edge) (*Graph, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative node count %d", n)
	}
	adj := make([][]int, n)
	seen := make(map[Edge]bool, len(edges))
	norm := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.Source < 0 || e.Source >= n || e.Target < 0 || e.Target >= n {
			return nil, fmt.Errorf("edge %d-%d out of range [0, %d)", e.Source, e.Target, n)
		}
		if e.Source > e.Target {
			e.Source, e.Target = e.Target, e.Source
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		norm = append(norm, e)
		adj[e.Source] = append(adj[e.Source], e.Target)
		if e.Source != e.Target {
			adj[e.Target] = append(adj[e.Target], e.Source)
		}
	}
	for i := range adj {
		slices.Sort(adj[i])
	}
	slices.SortFunc(norm, compareEdges)
	return &Graph{adj: adj, edges: norm}, nil
}

// Size implements Topology.
func (g *Graph) Size() int { return len(g.adj) }

// Neighbors implements Topology. Out-of-range nodes have no neighbors.
func (g *Graph) Neighbors(node int) []int {
	if node < 0 || node >= len(g.adj) {
		return nil
	}
	return g.adj[node]
}

// Edges implements Topology.
func (g *Graph) Edges() []Edge { return g.edges }

// Isolated returns the nodes of t that have no neighbor other than
// themselves, in ascending order.
//
// Every node needs at least one proper neighbor when t has more than one
// node. Callers treat a non-empty result as a configuration error.
func Isolated(t Topology) []int {
	var out []int
	for node := 0; node < t.Size(); node++ {
		if !slices.ContainsFunc(t.Neighbors(node), func(m int) bool { return m != node }) {
			out = append(out, node)
		}
	}
	return out
}

// Validate checks that t can host a simulation of more than one agent.
func Validate(t Topology) error {
	if t.Size() <= 1 {
		return nil
	}
	if iso := Isolated(t); len(iso) > 0 {
		return fmt.Errorf("nodes without neighbors: %v", iso)
	}
	return nil
}

func compareEdges(a, b Edge) int {
	if a.Source != b.Source {
		return a.Source - b.Source
	}
	return a.Target - b.Target
}
