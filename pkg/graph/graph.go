package graph

import (
	"github.com/google/uuid"

	"pipeline-chat-be/pkg/catalog"
)

// Role is the position a node occupies in the pipeline chain.
type Role string

const (
	RoleSource      Role = "source"
	RoleTransform   Role = "transform"
	RoleDestination Role = "destination"
)

// Node is one step of the pipeline. A dummy transform has no backing
// connector and no configurable fields; it is a pure structural
// placeholder.
type Node struct {
	ID        uuid.UUID          `json:"id"`
	Role      Role               `json:"role"`
	Connector *catalog.Connector `json:"connector,omitempty"`
	Dummy     bool               `json:"dummy,omitempty"`
	Fields    map[string]string  `json:"fields"`
}

// Edge is a directed link between two nodes.
type Edge struct {
	From uuid.UUID `json:"from"`
	To   uuid.UUID `json:"to"`
}

// Snapshot is an immutable view of the graph handed to the canvas.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Graph owns the node and edge sets of one pipeline draft. Mutations
// are atomic: every entry point validates the resulting state before
// committing, so a rejected call leaves the graph exactly as it was.
// Not safe for concurrent use; the owning session serializes access.
type Graph struct {
	nodes []Node
	edges []Edge
}

func New() *Graph {
	return &Graph{}
}

// AddNode places a new node at the end of the linear chain and wires
// the connecting edge in the same commit. Returns the stable node id.
func (g *Graph) AddNode(role Role, connector *catalog.Connector, dummy bool) (uuid.UUID, error) {
	switch role {
	case RoleSource:
		if g.Source() != nil {
			return uuid.Nil, violation(InvariantSingleEndpoints, "source already present")
		}
	case RoleDestination:
		if g.Destination() != nil {
			return uuid.Nil, violation(InvariantSingleEndpoints, "destination already present")
		}
		if g.Source() == nil {
			return uuid.Nil, violation(InvariantSourceBeforeDest, "destination requires an existing source")
		}
	case RoleTransform:
		if g.Source() == nil {
			return uuid.Nil, violation(InvariantLinearChain, "transform requires an existing source")
		}
		if g.Destination() != nil {
			return uuid.Nil, violation(InvariantLinearChain, "chain already terminated by a destination")
		}
	default:
		return uuid.Nil, violation(InvariantLinearChain, "unknown role %q", role)
	}

	node := Node{
		ID:        uuid.New(),
		Role:      role,
		Connector: connector,
		Dummy:     dummy,
		Fields:    make(map[string]string),
	}

	// Commit: the new node always attaches to the current chain tail.
	var tail *Node
	if len(g.nodes) > 0 {
		tail = &g.nodes[len(g.nodes)-1]
	}
	g.nodes = append(g.nodes, node)
	if tail != nil {
		g.edges = append(g.edges, Edge{From: tail.ID, To: node.ID})
	}
	return node.ID, nil
}

// SetField records a configured field value on a node. Setting the
// same value twice is a no-op. Dummy transforms carry no configuration
// and reject field writes.
func (g *Graph) SetField(id uuid.UUID, key, value string) error {
	node := g.byID(id)
	if node == nil {
		return violation(InvariantStableIDs, "unknown node id %s", id)
	}
	if node.Dummy {
		return violation(InvariantLinearChain, "dummy transform has no configurable fields")
	}
	node.Fields[key] = value
	return nil
}

// Source returns the source node, or nil.
func (g *Graph) Source() *Node {
	return g.byRole(RoleSource)
}

// Destination returns the destination node, or nil.
func (g *Graph) Destination() *Node {
	return g.byRole(RoleDestination)
}

// NodeByID returns the node with the given id, or nil.
func (g *Graph) NodeByID(id uuid.UUID) *Node {
	return g.byID(id)
}

// Transforms returns the transform nodes in chain order.
func (g *Graph) Transforms() []*Node {
	var out []*Node
	for i := range g.nodes {
		if g.nodes[i].Role == RoleTransform {
			out = append(out, &g.nodes[i])
		}
	}
	return out
}

// MissingFields lists required fields not yet configured on a node,
// in the order the catalog declares them.
func (g *Graph) MissingFields(id uuid.UUID) []string {
	node := g.byID(id)
	if node == nil || node.Connector == nil || node.Dummy {
		return nil
	}
	var missing []string
	for _, key := range node.Connector.RequiredFields {
		if _, ok := node.Fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// Snapshot deep-copies the graph for the canvas. Later mutations are
// never observable through a snapshot already handed out.
func (g *Graph) Snapshot() Snapshot {
	snap := Snapshot{
		Nodes: make([]Node, len(g.nodes)),
		Edges: make([]Edge, len(g.edges)),
	}
	copy(snap.Edges, g.edges)
	for i, n := range g.nodes {
		fields := make(map[string]string, len(n.Fields))
		for k, v := range n.Fields {
			fields[k] = v
		}
		n.Fields = fields
		if n.Connector != nil {
			c := *n.Connector
			n.Connector = &c
		}
		snap.Nodes[i] = n
	}
	return snap
}

func (g *Graph) byRole(role Role) *Node {
	for i := range g.nodes {
		if g.nodes[i].Role == role {
			return &g.nodes[i]
		}
	}
	return nil
}

func (g *Graph) byID(id uuid.UUID) *Node {
	for i := range g.nodes {
		if g.nodes[i].ID == id {
			return &g.nodes[i]
		}
	}
	return nil
}
