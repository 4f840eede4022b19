package story

import "github.com/google/uuid"

// Effect is an opaque side-effect record handed to presentation systems
// (event handlers, audio, camera, cutscene players). The engine never
// interprets it.
type Effect struct {
	ID     string            `json:"id"`
	Kind   Kind              `json:"kind"`
	Name   string            `json:"name"`
	NodeID string            `json:"node_id"`
	Params map[string]string `json:"params,omitempty"`
}

func newEffect(kind Kind, name, nodeID string, params map[string]string) Effect {
	return Effect{
		ID:     uuid.NewString(),
		Kind:   kind,
		Name:   name,
		NodeID: nodeID,
		Params: params,
	}
}

// EffectSink receives effects dispatched by nodes.
type EffectSink interface {
	Dispatch(e Effect) error
}

// EffectSinkFunc adapts a function to EffectSink.
type EffectSinkFunc func(e Effect) error

func (f EffectSinkFunc) Dispatch(e Effect) error { return f(e) }

// discardSink drops every effect.
type discardSink struct{}

func (discardSink) Dispatch(Effect) error { return nil }
