package story

// Direction is the flow direction of a port.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Capacity limits how many connections a port may take part in.
type Capacity string

const (
	CapacitySingle Capacity = "single"
	CapacityMulti  Capacity = "multi"
)

// Standard port IDs.
const (
	PortInput  = "input"
	PortOutput = "output"
	PortTrue   = "true"
	PortFalse  = "false"
)

// Port is a named attachment point on a node.
type Port struct {
	ID        string
	Name      string
	Direction Direction
	Capacity  Capacity
}

// Connection is a directed edge from an output port to an input port.
type Connection struct {
	ID           string `json:"connectionId" yaml:"connectionId"`
	OutputNodeID string `json:"outputNodeId" yaml:"outputNodeId"`
	OutputPortID string `json:"outputPortId" yaml:"outputPortId"`
	InputNodeID  string `json:"inputNodeId" yaml:"inputNodeId"`
	InputPortID  string `json:"inputPortId" yaml:"inputPortId"`
}

// Touches reports whether the connection references nodeID on either end.
func (c *Connection) Touches(nodeID string) bool {
	return c.OutputNodeID == nodeID || c.InputNodeID == nodeID
}

type portKey struct {
	nodeID string
	portID string
}
