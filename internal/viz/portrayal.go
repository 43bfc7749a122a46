package viz

import (
	"fmt"

	"github.com/roach88/contagion/internal/engine"
	"github.com/roach88/contagion/internal/ir"
)

// Node colours and sizes of the projection.
const (
	ColorInfected = "#FF0000"
	ColorHealthy  = "#008000"
	ColorEdge     = "#e8e8e8"
	NodeSize      = 6
	EdgeWidth     = 2
)

// NodeView is one drawable node.
type NodeView struct {
	ID      ir.AgentID `json:"id"`
	State   ir.State   `json:"state"`
	Color   string     `json:"color"`
	Size    int        `json:"size"`
	Tooltip string     `json:"tooltip"`
}

// EdgeView is one drawable edge.
type EdgeView struct {
	Source int    `json:"source"`
	Target int    `json:"target"`
	Color  string `json:"color"`
	Width  int    `json:"width"`
}

// View is the drawable projection of a model at one tick.
type View struct {
	Tick     int        `json:"tick"`
	Infected int        `json:"infected"`
	Nodes    []NodeView `json:"nodes"`
	Edges    []EdgeView `json:"edges"`
}

// Portray projects a network into drawable nodes and edges.
func Portray(net engine.Network) View {
	v := View{
		Tick:  net.Tick,
		Nodes: make([]NodeView, len(net.Nodes)),
		Edges: make([]EdgeView, len(net.Edges)),
	}
	for i, n := range net.Nodes {
		color := ColorHealthy
		if n.State == ir.Infected {
			color = ColorInfected
			v.Infected++
		}
		v.Nodes[i] = NodeView{
			ID:      n.ID,
			State:   n.State,
			Color:   color,
			Size:    NodeSize,
			Tooltip: fmt.Sprintf("id: %d<br>state: %s", n.ID, n.State),
		}
	}
	for i, e := range net.Edges {
		v.Edges[i] = EdgeView{
			Source: e.Source,
			Target: e.Target,
			Color:  ColorEdge,
			Width:  EdgeWidth,
		}
	}
	return v
}
