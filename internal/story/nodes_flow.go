package story

import (
	"fmt"
	"strings"
)

// StartNode is the entry point of a story. It has no input port.
type StartNode struct {
	NodeBase
}

func (n *StartNode) Kind() Kind { return KindStart }

func (n *StartNode) SetupPorts() {
	n.ClearPorts()
	n.AddOutput(PortOutput, "Out")
}

func (n *StartNode) Execute(*Environment) Result { return Continue(PortOutput) }

func (n *StartNode) Validate() []string { return nil }

func (n *StartNode) SerializationData() map[string]any { return map[string]any{} }

func (n *StartNode) LoadSerializationData(map[string]any) {}

// EndNode terminates the story. It has no output port.
type EndNode struct {
	NodeBase
	// Outcome is an optional label (e.g. "good_ending") exposed to listeners.
	Outcome string
}

func (n *EndNode) Kind() Kind { return KindEnd }

func (n *EndNode) SetupPorts() {
	n.ClearPorts()
	n.AddInput(PortInput, "In")
}

func (n *EndNode) Execute(env *Environment) Result {
	if n.Outcome != "" {
		env.SetTemp(TempOutcome, n.Outcome)
	}
	env.MarkComplete()
	return End()
}

func (n *EndNode) Validate() []string { return nil }

func (n *EndNode) SerializationData() map[string]any {
	return map[string]any{"outcome": n.Outcome}
}

func (n *EndNode) LoadSerializationData(data map[string]any) {
	n.Outcome = getString(data, "outcome")
}

// ConditionNode branches to "true" or "false" without suspending.
type ConditionNode struct {
	NodeBase
	ConditionSet
}

func (n *ConditionNode) Kind() Kind { return KindCondition }

func (n *ConditionNode) SetupPorts() {
	n.ClearPorts()
	n.AddInput(PortInput, "In")
	n.AddOutput(PortTrue, "True")
	n.AddOutput(PortFalse, "False")
}

func (n *ConditionNode) Execute(env *Environment) Result {
	if n.ConditionSet.Evaluate(env) {
		return Continue(PortTrue)
	}
	return Continue(PortFalse)
}

func (n *ConditionNode) Validate() []string {
	var errs []string
	if n.Logic != LogicAnd && n.Logic != LogicOr {
		errs = append(errs, fmt.Sprintf("Condition node %s has unknown logic %q", n.DisplayName(), n.Logic))
	}
	for i, c := range n.Conditions {
		for _, e := range c.Validate() {
			errs = append(errs, fmt.Sprintf("Condition node %s condition %d: %s", n.DisplayName(), i, e))
		}
	}
	return errs
}

func (n *ConditionNode) SerializationData() map[string]any {
	conds := make([]any, 0, len(n.Conditions))
	for _, c := range n.Conditions {
		conds = append(conds, conditionToData(c))
	}
	return map[string]any{
		"logic":      string(n.Logic),
		"conditions": conds,
	}
}

func (n *ConditionNode) LoadSerializationData(data map[string]any) {
	n.Logic = parseLogic(getString(data, "logic"))
	n.Conditions = nil
	for _, m := range getMaps(data, "conditions") {
		n.Conditions = append(n.Conditions, conditionFromData(m))
	}
}

func parseLogic(s string) Logic {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and":
		return LogicAnd
	case "or":
		return LogicOr
	}
	return Logic(s)
}

// WaitType selects what a WaitNode waits for.
type WaitType string

const (
	WaitTime      WaitType = "Time"
	WaitInput     WaitType = "Input"
	WaitCondition WaitType = "Condition"
	WaitFrame     WaitType = "Frame"
)

func parseWaitType(s string) WaitType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "time":
		return WaitTime
	case "input":
		return WaitInput
	case "condition":
		return WaitCondition
	case "frame":
		return WaitFrame
	}
	return WaitType(s)
}

// WaitNode suspends the run for time, input, a variable condition or a
// single tick.
type WaitNode struct {
	NodeBase
	WaitType WaitType
	// Seconds is the duration of a Time wait.
	Seconds   float64
	Condition Condition
}

func (n *WaitNode) Kind() Kind { return KindWait }

func (n *WaitNode) SetupPorts() { n.standardPorts() }

func (n *WaitNode) Execute(*Environment) Result {
	switch n.WaitType {
	case WaitInput:
		return WaitForInput(PortOutput)
	case WaitCondition:
		cond := n.Condition
		return WaitForCondition(cond.Evaluate, PortOutput)
	case WaitFrame:
		return Wait(0, PortOutput)
	}
	return WaitSeconds(n.Seconds, PortOutput)
}

func (n *WaitNode) Validate() []string {
	var errs []string
	switch n.WaitType {
	case WaitTime:
		if n.Seconds < 0 {
			errs = append(errs, fmt.Sprintf("Wait node %s has negative duration", n.DisplayName()))
		}
	case WaitCondition:
		for _, e := range n.Condition.Validate() {
			errs = append(errs, fmt.Sprintf("Wait node %s: %s", n.DisplayName(), e))
		}
	case WaitInput, WaitFrame:
	default:
		errs = append(errs, fmt.Sprintf("Wait node %s has unknown wait type %q", n.DisplayName(), n.WaitType))
	}
	return errs
}

func (n *WaitNode) SerializationData() map[string]any {
	return map[string]any{
		"waitType":  string(n.WaitType),
		"duration":  n.Seconds,
		"condition": conditionToData(n.Condition),
	}
}

func (n *WaitNode) LoadSerializationData(data map[string]any) {
	n.WaitType = parseWaitType(getString(data, "waitType"))
	n.Seconds = getFloat(data, "duration", 0)
	if m, ok := data["condition"].(map[string]any); ok {
		n.Condition = conditionFromData(m)
	} else {
		n.Condition = Condition{Operator: OpEquals}
	}
}
