package story

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestNode creates a node of kind and applies set before ports are set up
// again, so kinds with data-driven ports (choice) get the right ports.
func newTestNode[T Node](t *testing.T, g *Graph, kind Kind, set func(T)) T {
	t.Helper()
	n, err := g.CreateNode(kind, Position{})
	require.NoError(t, err)
	typed, ok := n.(T)
	require.True(t, ok, "node kind %s has type %T", kind, n)
	if set != nil {
		set(typed)
		typed.SetupPorts()
	}
	return typed
}

func mustConnect(t *testing.T, g *Graph, out Node, outPort string, in Node) *Connection {
	t.Helper()
	c, err := g.CreateConnection(out.Base().ID, outPort, in.Base().ID, PortInput)
	require.NoError(t, err)
	return c
}

func testEnv(decls ...VariableDecl) *Environment {
	return NewEnvironment(decls, WithRand(rand.New(rand.NewSource(1))))
}

// sampleGraph builds a graph that uses every node kind.
func sampleGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph("sample", nil)
	g.Description = "every kind"
	g.View = ViewState{OffsetX: 10, OffsetY: -4.5, Scale: 1.25}
	require.NoError(t, g.AddVariable(VariableDecl{Name: "hp", Type: TypeFloat, Default: FloatValue(5)}))
	require.NoError(t, g.AddVariable(VariableDecl{Name: "gold", Type: TypeInt, Default: IntValue(3)}))
	require.NoError(t, g.AddVariable(VariableDecl{Name: "unlocked", Type: TypeBool, Default: BoolValue(false)}))
	require.NoError(t, g.AddVariable(VariableDecl{Name: "hero", Type: TypeString, Default: StringValue("Ann")}))

	start := newTestNode[*StartNode](t, g, KindStart, nil)
	dlg := newTestNode(t, g, KindDialogue, func(n *DialogueNode) {
		n.Speaker = "Guide"
		n.Text = "Hello {hero}"
		n.VoiceClip = "vo_01"
		n.AutoAdvanceDelay = 0.5
		n.Position = Position{X: 120, Y: 40}
	})
	choice := newTestNode(t, g, KindChoice, func(n *ChoiceNode) {
		n.Prompt = "Where to?"
		n.Choices = []Choice{
			{ID: "c0", Text: "Left"},
			{ID: "c1", Text: "Right", ConditionVariable: "unlocked", SetVariable: "gold", SetValue: "10"},
		}
	})
	cond := newTestNode(t, g, KindCondition, func(n *ConditionNode) {
		n.Logic = LogicOr
		n.Conditions = []Condition{
			{Variable: "hp", Operator: OpGreaterThan, Value: "3"},
			{Variable: "unlocked", Operator: OpIsTrue},
		}
	})
	wait := newTestNode(t, g, KindWait, func(n *WaitNode) {
		n.WaitType = WaitCondition
		n.Condition = Condition{Variable: "gold", Operator: OpGreaterOrEqual, Value: "5"}
	})
	vars := newTestNode(t, g, KindVariable, func(n *VariableNode) {
		n.Operations = []VariableOperation{
			{Variable: "gold", Operation: VarAdd, Value: "2"},
			{Variable: "hero", Operation: VarAppend, Value: "!"},
		}
	})
	event := newTestNode(t, g, KindEvent, func(n *EventNode) {
		n.EventName = "door_open"
		n.Parameters = map[string]string{"door": "north"}
		n.WaitForCompletion = true
	})
	audio := newTestNode(t, g, KindAudio, func(n *AudioNode) {
		n.Clip = "theme"
		n.Channel = "music"
		n.Volume = 0.8
		n.Loop = true
	})
	camera := newTestNode(t, g, KindCamera, func(n *CameraNode) {
		n.Action = "shake"
		n.Seconds = 1.5
		n.Intensity = 0.3
	})
	cut := newTestNode(t, g, KindCutscene, func(n *CutsceneNode) {
		n.Cutscene = "intro"
		n.Skippable = false
	})
	end := newTestNode(t, g, KindEnd, func(n *EndNode) { n.Outcome = "good" })

	mustConnect(t, g, start, PortOutput, dlg)
	mustConnect(t, g, dlg, PortOutput, choice)
	mustConnect(t, g, choice, ChoicePortID(0), cond)
	mustConnect(t, g, choice, ChoicePortID(1), wait)
	mustConnect(t, g, cond, PortTrue, vars)
	mustConnect(t, g, cond, PortFalse, event)
	mustConnect(t, g, wait, PortOutput, vars)
	mustConnect(t, g, vars, PortOutput, event)
	mustConnect(t, g, event, PortOutput, audio)
	mustConnect(t, g, audio, PortOutput, camera)
	mustConnect(t, g, camera, PortOutput, cut)
	mustConnect(t, g, cut, PortOutput, end)
	return g
}
