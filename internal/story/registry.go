package story

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownNodeType is returned when no factory is registered for a type.
var ErrUnknownNodeType = errors.New("unknown node type")

// Factory builds an empty node of one kind.
type Factory func() Node

// Registry maps node type tags to factories.
type Registry struct {
	factories map[Kind]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Kind]Factory)}
}

// DefaultRegistry returns a registry with every built-in kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindStart, func() Node { return &StartNode{} })
	r.Register(KindDialogue, func() Node { return &DialogueNode{WaitForInput: true} })
	r.Register(KindChoice, func() Node { return &ChoiceNode{} })
	r.Register(KindCondition, func() Node { return &ConditionNode{ConditionSet: ConditionSet{Logic: LogicAnd}} })
	r.Register(KindWait, func() Node { return &WaitNode{WaitType: WaitTime, Seconds: 1, Condition: Condition{Operator: OpEquals}} })
	r.Register(KindVariable, func() Node { return &VariableNode{} })
	r.Register(KindEvent, func() Node { return &EventNode{Parameters: map[string]string{}} })
	r.Register(KindAudio, func() Node { return &AudioNode{Action: "play", Volume: 1} })
	r.Register(KindCamera, func() Node { return &CameraNode{Action: "focus", Intensity: 1} })
	r.Register(KindCutscene, func() Node { return &CutsceneNode{Skippable: true, WaitForCompletion: true} })
	r.Register(KindEnd, func() Node { return &EndNode{} })
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind Kind, f Factory) {
	r.factories[kind] = f
}

// New builds a node of the given kind. Ports are not set up.
func (r *Registry) New(kind Kind) (Node, error) {
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, kind)
	}
	return f(), nil
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
