package orchestrator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/StoryEngine/internal/story"
)

// addNode creates a named node of kind, applies set and redeclares ports.
func addNode[T story.Node](t *testing.T, g *story.Graph, kind story.Kind, name string, set func(T)) T {
	t.Helper()
	n, err := g.CreateNode(kind, story.Position{})
	require.NoError(t, err)
	typed, ok := n.(T)
	require.True(t, ok, "node kind %s has type %T", kind, n)
	typed.Base().Name = name
	if set != nil {
		set(typed)
		typed.SetupPorts()
	}
	return typed
}

func link(t *testing.T, g *story.Graph, out story.Node, port string, in story.Node) {
	t.Helper()
	_, err := g.CreateConnection(out.Base().ID, port, in.Base().ID, story.PortInput)
	require.NoError(t, err)
}

func declare(t *testing.T, g *story.Graph, name string, v story.Value) {
	t.Helper()
	require.NoError(t, g.AddVariable(story.VariableDecl{Name: name, Type: v.Type(), Default: v}))
}

// recorder is a Listener that writes a compact trace.
type recorder struct {
	trace []string
}

func (r *recorder) StoryStart(*Runtime) { r.trace = append(r.trace, "start") }

func (r *recorder) StoryEnd(rt *Runtime, success bool) {
	r.trace = append(r.trace, fmt.Sprintf("end:%s:%t", rt.State(), success))
}

func (r *recorder) NodeEnter(_ *Runtime, n story.Node) {
	r.trace = append(r.trace, "enter:"+n.Base().Name)
}

func (r *recorder) NodeExit(_ *Runtime, n story.Node) {
	r.trace = append(r.trace, "exit:"+n.Base().Name)
}

func (r *recorder) Error(_ *Runtime, msg string) {
	r.trace = append(r.trace, "error:"+msg)
}

// effectLog collects dispatched effects.
type effectLog struct {
	effects []story.Effect
}

func (l *effectLog) Dispatch(e story.Effect) error {
	l.effects = append(l.effects, e)
	return nil
}

func newRecordedRuntime(opts ...Option) (*Runtime, *recorder) {
	rec := &recorder{}
	return NewRuntime(append(opts, WithID("test"), WithListener(rec))...), rec
}

// waitingDialogueGraph is start -> dialogue (waits for input) -> end.
func waitingDialogueGraph(t *testing.T) (*story.Graph, *story.DialogueNode, *story.EndNode) {
	t.Helper()
	g := story.NewGraph("dialogue", nil)
	declare(t, g, "gold", story.IntValue(1))
	start := addNode[*story.StartNode](t, g, story.KindStart, "start", nil)
	dlg := addNode(t, g, story.KindDialogue, "hello", func(n *story.DialogueNode) {
		n.Speaker = "Guide"
		n.Text = "You have {gold} gold"
		n.WaitForInput = true
	})
	end := addNode[*story.EndNode](t, g, story.KindEnd, "end", nil)
	link(t, g, start, story.PortOutput, dlg)
	link(t, g, dlg, story.PortOutput, end)
	return g, dlg, end
}

// choiceGraph is start -> choice{left, right gated on unlocked} -> two ends.
func choiceGraph(t *testing.T, unlocked bool) (*story.Graph, *story.ChoiceNode) {
	t.Helper()
	g := story.NewGraph("choice", nil)
	declare(t, g, "unlocked", story.BoolValue(unlocked))
	declare(t, g, "gold", story.IntValue(0))
	start := addNode[*story.StartNode](t, g, story.KindStart, "start", nil)
	choice := addNode(t, g, story.KindChoice, "fork", func(n *story.ChoiceNode) {
		n.Prompt = "Which way?"
		n.Choices = []story.Choice{
			{ID: "l", Text: "Left"},
			{ID: "r", Text: "Right", ConditionVariable: "unlocked", SetVariable: "gold", SetValue: "10"},
		}
	})
	left := addNode(t, g, story.KindEnd, "left", func(n *story.EndNode) { n.Outcome = "left" })
	right := addNode(t, g, story.KindEnd, "right", func(n *story.EndNode) { n.Outcome = "right" })
	link(t, g, start, story.PortOutput, choice)
	link(t, g, choice, story.ChoicePortID(0), left)
	link(t, g, choice, story.ChoicePortID(1), right)
	return g, choice
}

// waitGraph is start -> wait (configured by set) -> end.
func waitGraph(t *testing.T, set func(*story.WaitNode)) *story.Graph {
	t.Helper()
	g := story.NewGraph("wait", nil)
	declare(t, g, "gold", story.IntValue(0))
	start := addNode[*story.StartNode](t, g, story.KindStart, "start", nil)
	wait := addNode(t, g, story.KindWait, "wait", set)
	end := addNode[*story.EndNode](t, g, story.KindEnd, "end", nil)
	link(t, g, start, story.PortOutput, wait)
	link(t, g, wait, story.PortOutput, end)
	return g
}

// boomNode panics when executed. With exitPanics set, OnExit panics too.
type boomNode struct {
	story.NodeBase
	exitPanics bool
	exits      int
}

func (n *boomNode) OnExit(*story.Environment) {
	n.exits++
	if n.exitPanics {
		panic("exit kaboom")
	}
}

func (n *boomNode) Kind() story.Kind { return "boom" }

func (n *boomNode) SetupPorts() {
	n.ClearPorts()
	n.AddInput(story.PortInput, "In")
	n.AddOutput(story.PortOutput, "Out")
}

func (n *boomNode) Execute(*story.Environment) story.Result { panic("kaboom") }
func (n *boomNode) Validate() []string { return nil }
func (n *boomNode) SerializationData() map[string]any { return nil }
func (n *boomNode) LoadSerializationData(map[string]any) {}
