package story

// Kind is the registry tag of a node type, as written in documents.
type Kind string

const (
	KindStart     Kind = "start"
	KindDialogue  Kind = "dialogue"
	KindChoice    Kind = "choice"
	KindCondition Kind = "condition"
	KindWait      Kind = "wait"
	KindVariable  Kind = "variable"
	KindEvent     Kind = "event"
	KindAudio     Kind = "audio"
	KindCamera    Kind = "camera"
	KindCutscene  Kind = "cutscene"
	KindEnd       Kind = "end"
)

// Position is the editor position of a node. It has no runtime meaning.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is one step of story behavior.
type Node interface {
	// Base exposes the fields shared by every kind.
	Base() *NodeBase
	Kind() Kind

	// SetupPorts (re)declares the ports this kind requires. It is called on
	// creation and after loading serialized data.
	SetupPorts()

	OnEnter(env *Environment)
	Execute(env *Environment) Result
	OnExit(env *Environment)

	// Validate returns static authoring problems. It never runs logic.
	Validate() []string

	SerializationData() map[string]any
	LoadSerializationData(data map[string]any)
}

// NodeBase holds identity, display fields and ports. Kinds embed it.
type NodeBase struct {
	ID          string
	Name        string
	Description string
	Position    Position

	inputs  []*Port
	outputs []*Port
}

func (b *NodeBase) Base() *NodeBase { return b }

// OnEnter is a no-op unless a kind overrides it.
func (b *NodeBase) OnEnter(*Environment) {}

// OnExit is a no-op unless a kind overrides it.
func (b *NodeBase) OnExit(*Environment) {}

// Inputs returns the node's input ports.
func (b *NodeBase) Inputs() []*Port { return b.inputs }

// Outputs returns the node's output ports.
func (b *NodeBase) Outputs() []*Port { return b.outputs }

// Port finds a port by ID in either direction.
func (b *NodeBase) Port(id string) *Port {
	for _, p := range b.inputs {
		if p.ID == id {
			return p
		}
	}
	for _, p := range b.outputs {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// OutputPort finds an output port by ID.
func (b *NodeBase) OutputPort(id string) *Port {
	for _, p := range b.outputs {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ClearPorts drops every port. SetupPorts implementations start with it.
func (b *NodeBase) ClearPorts() {
	b.inputs = nil
	b.outputs = nil
}

// AddInput declares a multi-capacity input port.
func (b *NodeBase) AddInput(id, name string) *Port {
	p := &Port{ID: id, Name: name, Direction: DirectionInput, Capacity: CapacityMulti}
	b.inputs = append(b.inputs, p)
	return p
}

// AddOutput declares a single-capacity output port.
func (b *NodeBase) AddOutput(id, name string) *Port {
	p := &Port{ID: id, Name: name, Direction: DirectionOutput, Capacity: CapacitySingle}
	b.outputs = append(b.outputs, p)
	return p
}

// DisplayName returns Name, or the ID when Name is empty.
func (b *NodeBase) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return b.ID
}

// standardPorts declares the common "input" -> "output" shape.
func (b *NodeBase) standardPorts() {
	b.ClearPorts()
	b.AddInput(PortInput, "In")
	b.AddOutput(PortOutput, "Out")
}
