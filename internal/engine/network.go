package engine

import (
	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/topology"
)

// Node is one node of the live-state projection: the node's agent id and
// state.
type Node struct {
	ID    ir.AgentID `json:"id"`
	State ir.State   `json:"state"`
}

// Network is a read-only projection of a model for visualization.
type Network struct {
	Tick  int             `json:"tick"`
	Nodes []Node          `json:"nodes"`
	Edges []topology.Edge `json:"edges"`
}

// Network returns the current state of every node and the edge list.
// It does not change the model.
func (m *Model) Network() Network {
	nodes := make([]Node, len(m.agents))
	for i, a := range m.agents {
		nodes[i] = Node{ID: a.id, State: a.state}
	}
	edges := m.topology.Edges()
	return Network{
		Tick:  m.clock.Current(),
		Nodes: nodes,
		Edges: append([]topology.Edge(nil), edges...),
	}
}

// InfectedCount returns the number of currently infected agents.
func (m *Model) InfectedCount() int {
	n := 0
	for _, a := range m.agents {
		if a.state == ir.Infected {
			n++
		}
	}
	return n
}
