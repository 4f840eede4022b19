package story

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidConnection = errors.New("invalid connection")
	ErrDuplicateNode     = errors.New("duplicate node id")
	ErrDuplicateVariable = errors.New("duplicate variable")
	ErrNodeNotFound      = errors.New("node not found")
)

// ViewState is editor pan/zoom. The engine ignores it.
type ViewState struct {
	OffsetX float64
	OffsetY float64
	Scale   float64
}

// Graph is an authored story: nodes, connections, variable declarations and
// metadata. A graph is safe to share read-only between concurrent runs; it
// is not safe to mutate while runs use it.
type Graph struct {
	ID          string
	Name        string
	Description string
	// EntryNodeID designates the start node. When empty the first Start
	// node is used.
	EntryNodeID string
	View        ViewState

	registry    *Registry
	nodes       []Node
	byID        map[string]Node
	connections []*Connection
	links       map[portKey][]*Connection
	variables   []VariableDecl
}

// NewGraph creates an empty graph using reg to build nodes. A nil reg uses
// DefaultRegistry.
func NewGraph(name string, reg *Registry) *Graph {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Graph{
		ID:       uuid.NewString(),
		Name:     name,
		View:     ViewState{Scale: 1},
		registry: reg,
		byID:     make(map[string]Node),
		links:    make(map[portKey][]*Connection),
	}
}

// Registry returns the registry the graph builds nodes with.
func (g *Graph) Registry() *Registry { return g.registry }

// CreateNode builds a node of kind with a fresh ID and adds it.
func (g *Graph) CreateNode(kind Kind, pos Position) (Node, error) {
	n, err := g.registry.New(kind)
	if err != nil {
		return nil, err
	}
	b := n.Base()
	b.ID = uuid.NewString()
	b.Name = string(kind)
	b.Position = pos
	n.SetupPorts()
	g.nodes = append(g.nodes, n)
	g.byID[b.ID] = n
	return n, nil
}

// AddNode adds an already built node. Ports are set up if the node has none.
func (g *Graph) AddNode(n Node) error {
	b := n.Base()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if _, exists := g.byID[b.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, b.ID)
	}
	if len(b.inputs) == 0 && len(b.outputs) == 0 {
		n.SetupPorts()
	}
	g.nodes = append(g.nodes, n)
	g.byID[b.ID] = n
	return nil
}

// RemoveNode removes a node and every connection touching it.
func (g *Graph) RemoveNode(nodeID string) bool {
	if _, ok := g.byID[nodeID]; !ok {
		return false
	}
	delete(g.byID, nodeID)
	for i, n := range g.nodes {
		if n.Base().ID == nodeID {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			break
		}
	}
	kept := g.connections[:0]
	for _, c := range g.connections {
		if c.Touches(nodeID) {
			g.unlink(c)
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(g.connections); i++ {
		g.connections[i] = nil
	}
	g.connections = kept
	if g.EntryNodeID == nodeID {
		g.EntryNodeID = ""
	}
	return true
}

// GetNode returns the node with the given ID, or nil.
func (g *Graph) GetNode(nodeID string) Node {
	return g.byID[nodeID]
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Connections returns the connections in creation order.
func (g *Graph) Connections() []*Connection {
	out := make([]*Connection, len(g.connections))
	copy(out, g.connections)
	return out
}

// CreateConnection connects an output port to an input port. It returns
// ErrInvalidConnection, leaving the graph untouched, when an endpoint is
// missing, directions do not oppose, both ports are on the same node, or a
// single-capacity port is already connected.
func (g *Graph) CreateConnection(outNodeID, outPortID, inNodeID, inPortID string) (*Connection, error) {
	return g.connect(uuid.NewString(), outNodeID, outPortID, inNodeID, inPortID)
}

func (g *Graph) connect(id, outNodeID, outPortID, inNodeID, inPortID string) (*Connection, error) {
	if err := g.checkConnection(outNodeID, outPortID, inNodeID, inPortID); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	c := &Connection{
		ID:           id,
		OutputNodeID: outNodeID,
		OutputPortID: outPortID,
		InputNodeID:  inNodeID,
		InputPortID:  inPortID,
	}
	g.connections = append(g.connections, c)
	out := portKey{outNodeID, outPortID}
	in := portKey{inNodeID, inPortID}
	g.links[out] = append(g.links[out], c)
	g.links[in] = append(g.links[in], c)
	return c, nil
}

func (g *Graph) checkConnection(outNodeID, outPortID, inNodeID, inPortID string) error {
	if outNodeID == inNodeID {
		return fmt.Errorf("%w: %s connects to itself", ErrInvalidConnection, outNodeID)
	}
	outNode, inNode := g.byID[outNodeID], g.byID[inNodeID]
	if outNode == nil {
		return fmt.Errorf("%w: output node %s not found", ErrInvalidConnection, outNodeID)
	}
	if inNode == nil {
		return fmt.Errorf("%w: input node %s not found", ErrInvalidConnection, inNodeID)
	}
	outPort := outNode.Base().Port(outPortID)
	if outPort == nil {
		return fmt.Errorf("%w: node %s has no port %s", ErrInvalidConnection, outNodeID, outPortID)
	}
	inPort := inNode.Base().Port(inPortID)
	if inPort == nil {
		return fmt.Errorf("%w: node %s has no port %s", ErrInvalidConnection, inNodeID, inPortID)
	}
	if outPort.Direction != DirectionOutput || inPort.Direction != DirectionInput {
		return fmt.Errorf("%w: %s.%s -> %s.%s is not output to input",
			ErrInvalidConnection, outNodeID, outPortID, inNodeID, inPortID)
	}
	if outPort.Capacity == CapacitySingle && len(g.links[portKey{outNodeID, outPortID}]) > 0 {
		return fmt.Errorf("%w: port %s.%s is already connected", ErrInvalidConnection, outNodeID, outPortID)
	}
	if inPort.Capacity == CapacitySingle && len(g.links[portKey{inNodeID, inPortID}]) > 0 {
		return fmt.Errorf("%w: port %s.%s is already connected", ErrInvalidConnection, inNodeID, inPortID)
	}
	return nil
}

// RemoveConnection removes a connection by ID.
func (g *Graph) RemoveConnection(connectionID string) bool {
	for i, c := range g.connections {
		if c.ID == connectionID {
			g.unlink(c)
			g.connections = append(g.connections[:i], g.connections[i+1:]...)
			return true
		}
	}
	return false
}

func (g *Graph) unlink(c *Connection) {
	for _, k := range []portKey{{c.OutputNodeID, c.OutputPortID}, {c.InputNodeID, c.InputPortID}} {
		list := g.links[k]
		for i, other := range list {
			if other == c {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(g.links, k)
		} else {
			g.links[k] = list
		}
	}
}

// ConnectionsAt returns the connections attached to a node's port.
func (g *Graph) ConnectionsAt(nodeID, portID string) []*Connection {
	list := g.links[portKey{nodeID, portID}]
	out := make([]*Connection, len(list))
	copy(out, list)
	return out
}

// GetConnectedNode follows the outgoing connection of an output port and
// returns the node on the other end, or nil at a dead end.
func (g *Graph) GetConnectedNode(nodeID, portID string) Node {
	for _, c := range g.links[portKey{nodeID, portID}] {
		if c.OutputNodeID == nodeID && c.OutputPortID == portID {
			return g.byID[c.InputNodeID]
		}
	}
	return nil
}

// GetStartNode returns the designated entry node, or the first Start node.
func (g *Graph) GetStartNode() Node {
	if g.EntryNodeID != "" {
		if n := g.byID[g.EntryNodeID]; n != nil {
			return n
		}
	}
	for _, n := range g.nodes {
		if n.Kind() == KindStart {
			return n
		}
	}
	return nil
}

// AddVariable declares a variable.
func (g *Graph) AddVariable(decl VariableDecl) error {
	if decl.Name == "" {
		return fmt.Errorf("%w: empty name", ErrDuplicateVariable)
	}
	if _, ok := g.Variable(decl.Name); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateVariable, decl.Name)
	}
	if v, ok := decl.Default.Convert(decl.Type); ok {
		decl.Default = v
	} else {
		decl.Default, _ = ParseValue(decl.Type, "")
	}
	g.variables = append(g.variables, decl)
	return nil
}

// RemoveVariable removes a declaration by name.
func (g *Graph) RemoveVariable(name string) bool {
	for i, v := range g.variables {
		if v.Name == name {
			g.variables = append(g.variables[:i], g.variables[i+1:]...)
			return true
		}
	}
	return false
}

// Variable looks up a declaration by name.
func (g *Graph) Variable(name string) (VariableDecl, bool) {
	for _, v := range g.variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableDecl{}, false
}

// Variables returns the declarations in declaration order.
func (g *Graph) Variables() []VariableDecl {
	out := make([]VariableDecl, len(g.variables))
	copy(out, g.variables)
	return out
}
