package orchestrator

import (
	"context"

	"github.com/AaronLay10/StoryEngine/internal/events"
	"github.com/AaronLay10/StoryEngine/internal/observe"
	"github.com/AaronLay10/StoryEngine/internal/story"
)

// BusListener reports run progress on an event bus.
type BusListener struct {
	Bus *events.Bus
}

func (l BusListener) emit(rt *Runtime, level, name, msg string, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}
	fields["instance_id"] = rt.ID()
	if g := rt.Graph(); g != nil {
		fields["graph_id"] = g.ID
	}
	// Unknown names are a programming error caught by tests.
	_, _ = l.Bus.Emit(level, name, msg, fields)
}

func (l BusListener) StoryStart(rt *Runtime) {
	l.emit(rt, "info", "story.started", "story started", nil)
}

func (l BusListener) StoryEnd(rt *Runtime, success bool) {
	fields := map[string]any{"success": success}
	switch rt.State() {
	case StateComplete:
		if env := rt.Environment(); env != nil {
			if v, ok := env.Temp(story.TempOutcome); ok {
				fields["outcome"] = v
			}
		}
		l.emit(rt, "info", "story.completed", "story completed", fields)
	case StateDeadEnd:
		l.emit(rt, "warn", "story.dead_end", "story reached an unconnected output", fields)
	default:
		l.emit(rt, "info", "story.stopped", "story stopped", fields)
	}
}

func (l BusListener) NodeEnter(rt *Runtime, node story.Node) {
	b := node.Base()
	l.emit(rt, "info", "node.entered", b.DisplayName(), map[string]any{
		"node_id":   b.ID,
		"node_kind": string(node.Kind()),
	})

	env := rt.Environment()
	switch n := node.(type) {
	case *story.DialogueNode:
		if v, ok := env.Temp(story.TempDialogue); ok {
			if line, ok := v.(story.DialogueLine); ok {
				l.emit(rt, "info", "dialogue.line", line.Text, map[string]any{
					"node_id":    b.ID,
					"speaker":    line.Speaker,
					"text":       line.Text,
					"voice_clip": line.VoiceClip,
				})
			}
		}
	case *story.ChoiceNode:
		available := n.AvailableChoices(env)
		choices := make([]any, 0, len(available))
		for i, ac := range available {
			choices = append(choices, map[string]any{"index": i, "text": ac.Choice.Text})
		}
		l.emit(rt, "info", "choice.presented", n.Prompt, map[string]any{
			"node_id": b.ID,
			"choices": choices,
		})
	}
}

func (l BusListener) NodeExit(rt *Runtime, node story.Node) {
	l.emit(rt, "debug", "node.exited", node.Base().DisplayName(), map[string]any{
		"node_id":   node.Base().ID,
		"node_kind": string(node.Kind()),
	})
}

func (l BusListener) Error(rt *Runtime, msg string) {
	l.emit(rt, "error", "story.error", msg, nil)
}

// MetricsListener records run and node counters.
type MetricsListener struct {
	Metrics *observe.Metrics
}

func (l MetricsListener) StoryStart(*Runtime) {
	l.Metrics.RecordRunStart(context.Background())
}

func (l MetricsListener) StoryEnd(rt *Runtime, _ bool) {
	l.Metrics.RecordRunEnd(context.Background(), string(rt.State()))
}

func (l MetricsListener) NodeEnter(_ *Runtime, node story.Node) {
	l.Metrics.RecordNodeEnter(context.Background(), string(node.Kind()))
}

func (MetricsListener) NodeExit(*Runtime, story.Node) {}

func (MetricsListener) Error(*Runtime, string) {}
