package model

import (
	"encoding/json"
	"fmt"
)

// ElementKind discriminates the FlowElement variants
type ElementKind int

const (
	KindNode ElementKind = iota
	KindEdge
)

func (k ElementKind) String() string {
	if k == KindEdge {
		return "edge"
	}
	return "node"
}

// Position is a canvas coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData holds the pipeline-step configuration of a node
type NodeData map[string]interface{}

// Clone returns a deep copy of the data
func (d NodeData) Clone() NodeData {
	return NodeData(cloneMap(d))
}

// Node is a pipeline step on the canvas
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type,omitempty"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge connects two nodes of the same chart
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
}

// Element is either a Node or an Edge, selected by Kind
type Element struct {
	Kind ElementKind
	Node *Node
	Edge *Edge
}

// NodeElement wraps n as an element
func NodeElement(n Node) Element {
	return Element{Kind: KindNode, Node: &n}
}

// EdgeElement wraps e as an element
func EdgeElement(e Edge) Element {
	return Element{Kind: KindEdge, Edge: &e}
}

// ID returns the id of the wrapped node or edge
func (e Element) ID() string {
	switch {
	case e.Kind == KindEdge && e.Edge != nil:
		return e.Edge.ID
	case e.Kind == KindNode && e.Node != nil:
		return e.Node.ID
	}
	return ""
}

// IsNode reports whether the element is a node
func (e Element) IsNode() bool { return e.Kind == KindNode && e.Node != nil }

// IsEdge reports whether the element is an edge
func (e Element) IsEdge() bool { return e.Kind == KindEdge && e.Edge != nil }

// Touches reports whether the element is an edge with nodeID as an endpoint
func (e Element) Touches(nodeID string) bool {
	return e.IsEdge() && (e.Edge.Source == nodeID || e.Edge.Target == nodeID)
}

// Clone returns a deep copy of the element
func (e Element) Clone() Element {
	out := Element{Kind: e.Kind}
	if e.Node != nil {
		n := *e.Node
		n.Data = e.Node.Data.Clone()
		out.Node = &n
	}
	if e.Edge != nil {
		edge := *e.Edge
		out.Edge = &edge
	}
	return out
}

// MarshalJSON writes the canvas library's flat element object
func (e Element) MarshalJSON() ([]byte, error) {
	if e.Kind == KindEdge {
		if e.Edge == nil {
			return json.Marshal(Edge{})
		}
		return json.Marshal(e.Edge)
	}
	if e.Node == nil {
		return json.Marshal(Node{})
	}
	return json.Marshal(e.Node)
}

// UnmarshalJSON classifies objects with a source or target as edges
func (e *Element) UnmarshalJSON(data []byte) error {
	var probe struct {
		Source *string `json:"source"`
		Target *string `json:"target"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("invalid flow element: %w", err)
	}

	if probe.Source != nil || probe.Target != nil {
		var edge Edge
		if err := json.Unmarshal(data, &edge); err != nil {
			return fmt.Errorf("invalid edge: %w", err)
		}
		*e = EdgeElement(edge)
		return nil
	}

	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("invalid node: %w", err)
	}
	*e = NodeElement(node)
	return nil
}

// FlowChart is the graph behind a flow's canvas
type FlowChart struct {
	Elements []Element `json:"elements"`
}

// Clone returns a deep copy of the chart
func (c FlowChart) Clone() FlowChart {
	if c.Elements == nil {
		return FlowChart{}
	}
	out := FlowChart{Elements: make([]Element, len(c.Elements))}
	for i, el := range c.Elements {
		out.Elements[i] = el.Clone()
	}
	return out
}

// IndexOf returns the position of the element with the given id, or -1
func (c FlowChart) IndexOf(id string) int {
	for i, el := range c.Elements {
		if el.ID() == id {
			return i
		}
	}
	return -1
}

// NodeIndex returns the position of the node with the given id, or -1
func (c FlowChart) NodeIndex(id string) int {
	for i, el := range c.Elements {
		if el.IsNode() && el.Node.ID == id {
			return i
		}
	}
	return -1
}

// HasNode reports whether a node with the given id exists
func (c FlowChart) HasNode(id string) bool {
	return c.NodeIndex(id) >= 0
}

// Nodes returns the nodes in element order
func (c FlowChart) Nodes() []Node {
	var nodes []Node
	for _, el := range c.Elements {
		if el.IsNode() {
			nodes = append(nodes, *el.Node)
		}
	}
	return nodes
}

// Edges returns the edges in element order
func (c FlowChart) Edges() []Edge {
	var edges []Edge
	for _, el := range c.Elements {
		if el.IsEdge() {
			edges = append(edges, *el.Edge)
		}
	}
	return edges
}

// Validate checks element ids and edge endpoints
func (c FlowChart) Validate() error {
	ids := make(map[string]bool)
	nodeIDs := make(map[string]bool)
	for i, el := range c.Elements {
		id := el.ID()
		if id == "" {
			return fmt.Errorf("%s at index %d has empty ID", el.Kind, i)
		}
		if ids[id] {
			return fmt.Errorf("duplicate element ID: %s", id)
		}
		ids[id] = true
		if el.IsNode() {
			nodeIDs[id] = true
		}
	}

	for _, edge := range c.Edges() {
		if !nodeIDs[edge.Source] {
			return fmt.Errorf("edge '%s' references non-existent source node: %s", edge.ID, edge.Source)
		}
		if !nodeIDs[edge.Target] {
			return fmt.Errorf("edge '%s' references non-existent target node: %s", edge.ID, edge.Target)
		}
	}
	return nil
}
