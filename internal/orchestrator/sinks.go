package orchestrator

import (
	"context"
	"errors"

	"github.com/AaronLay10/StoryEngine/internal/events"
	"github.com/AaronLay10/StoryEngine/internal/observe"
	"github.com/AaronLay10/StoryEngine/internal/story"
)

// MultiSink dispatches to every sink in order and joins their errors.
type MultiSink []story.EffectSink

func (m MultiSink) Dispatch(e story.Effect) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Dispatch(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BusSink reports effects as effect.dispatched events.
type BusSink struct {
	Bus        *events.Bus
	InstanceID string
}

func (s BusSink) Dispatch(e story.Effect) error {
	fields := map[string]any{
		"instance_id": s.InstanceID,
		"effect_id":   e.ID,
		"kind":        string(e.Kind),
		"name":        e.Name,
		"node_id":     e.NodeID,
	}
	if len(e.Params) > 0 {
		params := make(map[string]any, len(e.Params))
		for k, v := range e.Params {
			params[k] = v
		}
		fields["params"] = params
	}
	_, err := s.Bus.Emit("info", "effect.dispatched", e.Name, fields)
	return err
}

// MetricsSink counts dispatched effects by kind.
type MetricsSink struct {
	Metrics *observe.Metrics
}

func (s MetricsSink) Dispatch(e story.Effect) error {
	s.Metrics.RecordEffect(context.Background(), string(e.Kind))
	return nil
}
