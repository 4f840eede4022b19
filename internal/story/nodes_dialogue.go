package story

import (
	"fmt"
	"strconv"
	"strings"
)

// DialogueLine is the temp record a DialogueNode leaves for listeners.
type DialogueLine struct {
	NodeID    string `json:"node_id"`
	Speaker   string `json:"speaker,omitempty"`
	Text      string `json:"text"`
	VoiceClip string `json:"voice_clip,omitempty"`
}

// DialogueNode presents a line of dialogue.
type DialogueNode struct {
	NodeBase
	Speaker   string
	Text      string
	VoiceClip string
	// WaitForInput holds the line until the player advances. When false the
	// line auto-advances after AutoAdvanceDelay seconds (or immediately).
	WaitForInput     bool
	AutoAdvanceDelay float64
}

func (n *DialogueNode) Kind() Kind { return KindDialogue }

func (n *DialogueNode) SetupPorts() { n.standardPorts() }

func (n *DialogueNode) OnEnter(env *Environment) {
	env.SetTemp(TempDialogue, DialogueLine{
		NodeID:    n.ID,
		Speaker:   n.Speaker,
		Text:      env.Interpolate(n.Text),
		VoiceClip: n.VoiceClip,
	})
}

func (n *DialogueNode) Execute(*Environment) Result {
	if n.WaitForInput {
		return WaitForInput(PortOutput)
	}
	if n.AutoAdvanceDelay > 0 {
		return WaitSeconds(n.AutoAdvanceDelay, PortOutput)
	}
	return Continue(PortOutput)
}

func (n *DialogueNode) OnExit(env *Environment) {
	env.ClearTemp(TempDialogue)
}

func (n *DialogueNode) Validate() []string {
	var errs []string
	if strings.TrimSpace(n.Text) == "" {
		errs = append(errs, fmt.Sprintf("Dialogue node %s has no text", n.DisplayName()))
	}
	if n.AutoAdvanceDelay < 0 {
		errs = append(errs, fmt.Sprintf("Dialogue node %s has negative auto-advance delay", n.DisplayName()))
	}
	return errs
}

func (n *DialogueNode) SerializationData() map[string]any {
	return map[string]any{
		"speaker":          n.Speaker,
		"text":             n.Text,
		"voiceClip":        n.VoiceClip,
		"waitForInput":     n.WaitForInput,
		"autoAdvanceDelay": n.AutoAdvanceDelay,
	}
}

func (n *DialogueNode) LoadSerializationData(data map[string]any) {
	n.Speaker = getString(data, "speaker")
	n.Text = getString(data, "text")
	n.VoiceClip = getString(data, "voiceClip")
	n.WaitForInput = getBool(data, "waitForInput", true)
	n.AutoAdvanceDelay = getFloat(data, "autoAdvanceDelay", 0)
}

// Choice is one option of a ChoiceNode.
type Choice struct {
	ID   string
	Text string
	// ConditionVariable names a bool variable gating visibility. Empty means
	// always visible.
	ConditionVariable string
	// SetVariable/SetValue are applied when the choice is selected.
	SetVariable string
	SetValue    string
}

// AvailableChoice is a visible choice together with its declared index.
type AvailableChoice struct {
	Index  int
	Choice Choice
}

// ChoiceNode presents options and waits for the player to pick one.
type ChoiceNode struct {
	NodeBase
	Prompt  string
	Choices []Choice
}

// ChoicePortID returns the output port of the declared choice at index i.
func ChoicePortID(i int) string { return "choice_" + strconv.Itoa(i) }

func (n *ChoiceNode) Kind() Kind { return KindChoice }

func (n *ChoiceNode) SetupPorts() {
	n.ClearPorts()
	n.AddInput(PortInput, "In")
	for i, c := range n.Choices {
		name := c.Text
		if name == "" {
			name = fmt.Sprintf("Choice %d", i+1)
		}
		n.AddOutput(ChoicePortID(i), name)
	}
}

// AddChoice appends a choice and declares its port.
func (n *ChoiceNode) AddChoice(c Choice) {
	if c.ID == "" {
		c.ID = fmt.Sprintf("%s_%d", n.ID, len(n.Choices))
	}
	n.Choices = append(n.Choices, c)
	n.AddOutput(ChoicePortID(len(n.Choices)-1), c.Text)
}

// OnEnter computes the visible choices and stores them as temp data, so
// runs sharing the graph never see each other's lists. A choice gated on a
// variable that is not set stays hidden.
func (n *ChoiceNode) OnEnter(env *Environment) {
	available := make([]AvailableChoice, 0, len(n.Choices))
	for i, c := range n.Choices {
		if c.ConditionVariable != "" {
			v, ok := env.Get(c.ConditionVariable)
			if !ok || !v.Truthy() {
				continue
			}
		}
		available = append(available, AvailableChoice{Index: i, Choice: c})
	}
	env.SetTemp(TempChoices, available)
}

// AvailableChoices returns the choices computed by the last OnEnter in env.
func (n *ChoiceNode) AvailableChoices(env *Environment) []AvailableChoice {
	v, ok := env.Temp(TempChoices)
	if !ok {
		return nil
	}
	available, _ := v.([]AvailableChoice)
	out := make([]AvailableChoice, len(available))
	copy(out, available)
	return out
}

func (n *ChoiceNode) Execute(*Environment) Result { return WaitForInput("") }

func (n *ChoiceNode) OnExit(env *Environment) {
	env.ClearTemp(TempChoices)
}

// SelectChoice applies the side effect of the index-th available choice,
// records choice_<NodeID> and returns the port to resume with.
func (n *ChoiceNode) SelectChoice(index int, env *Environment) (string, bool) {
	available := n.AvailableChoices(env)
	if index < 0 || index >= len(available) {
		return "", false
	}
	ac := available[index]
	if ac.Choice.SetVariable != "" {
		v, ok := env.Resolve(ac.Choice.SetValue)
		if ok {
			if cur, exists := env.Get(ac.Choice.SetVariable); exists {
				if conv, cok := v.Convert(cur.Type()); cok {
					v = conv
				}
			}
			env.Set(ac.Choice.SetVariable, v)
		}
	}
	env.Set("choice_"+n.ID, IntValue(int64(index)))
	return ChoicePortID(ac.Index), true
}

func (n *ChoiceNode) Validate() []string {
	var errs []string
	if len(n.Choices) == 0 {
		errs = append(errs, fmt.Sprintf("Choice node %s has no choices", n.DisplayName()))
	}
	for i, c := range n.Choices {
		if strings.TrimSpace(c.Text) == "" {
			errs = append(errs, fmt.Sprintf("Choice node %s choice %d has no text", n.DisplayName(), i))
		}
	}
	return errs
}

func (n *ChoiceNode) SerializationData() map[string]any {
	choices := make([]any, 0, len(n.Choices))
	for _, c := range n.Choices {
		choices = append(choices, map[string]any{
			"choiceId":          c.ID,
			"text":              c.Text,
			"conditionVariable": c.ConditionVariable,
			"setVariable":       c.SetVariable,
			"setValue":          c.SetValue,
		})
	}
	return map[string]any{
		"prompt":  n.Prompt,
		"choices": choices,
	}
}

func (n *ChoiceNode) LoadSerializationData(data map[string]any) {
	n.Prompt = getString(data, "prompt")
	n.Choices = nil
	for i, m := range getMaps(data, "choices") {
		c := Choice{
			ID:                getString(m, "choiceId"),
			Text:              getString(m, "text"),
			ConditionVariable: getString(m, "conditionVariable"),
			SetVariable:       getString(m, "setVariable"),
			SetValue:          getString(m, "setValue"),
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("%s_%d", n.ID, i)
		}
		n.Choices = append(n.Choices, c)
	}
}
