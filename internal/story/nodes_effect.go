package story

import (
	"fmt"
	"strconv"
	"strings"
)

// completion waits until the presentation side signals the node's ID.
func completion(nodeID string) func(*Environment) bool {
	return func(env *Environment) bool { return env.ConsumeSignal(nodeID) }
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// EventNode raises a named game event with string parameters.
type EventNode struct {
	NodeBase
	EventName         string
	Parameters        map[string]string
	WaitForCompletion bool
}

func (n *EventNode) Kind() Kind { return KindEvent }

func (n *EventNode) SetupPorts() { n.standardPorts() }

// OnEnter drops completion signals left over from an earlier visit.
func (n *EventNode) OnEnter(env *Environment) { env.ConsumeSignal(n.ID) }

func (n *EventNode) Execute(env *Environment) Result {
	params := make(map[string]string, len(n.Parameters))
	for k, v := range n.Parameters {
		params[k] = env.Interpolate(v)
	}
	env.Dispatch(newEffect(KindEvent, n.EventName, n.ID, params))
	if n.WaitForCompletion {
		return WaitForCondition(completion(n.ID), PortOutput)
	}
	return Continue(PortOutput)
}

func (n *EventNode) Validate() []string {
	if strings.TrimSpace(n.EventName) == "" {
		return []string{fmt.Sprintf("Event node %s has no event name", n.DisplayName())}
	}
	return nil
}

func (n *EventNode) SerializationData() map[string]any {
	return map[string]any{
		"eventName":         n.EventName,
		"parameters":        stringMapToData(n.Parameters),
		"waitForCompletion": n.WaitForCompletion,
	}
}

func (n *EventNode) LoadSerializationData(data map[string]any) {
	n.EventName = getString(data, "eventName")
	n.Parameters = getStringMap(data, "parameters")
	n.WaitForCompletion = getBool(data, "waitForCompletion", false)
}

// AudioNode asks the audio system to play, stop, pause or resume a clip.
type AudioNode struct {
	NodeBase
	Action            string
	Clip              string
	Channel           string
	Volume            float64
	Loop              bool
	FadeSeconds       float64
	WaitForCompletion bool
}

var audioActions = []string{"play", "stop", "pause", "resume"}

func (n *AudioNode) Kind() Kind { return KindAudio }

func (n *AudioNode) SetupPorts() { n.standardPorts() }

func (n *AudioNode) OnEnter(env *Environment) { env.ConsumeSignal(n.ID) }

func (n *AudioNode) Execute(env *Environment) Result {
	env.Dispatch(newEffect(KindAudio, n.Action, n.ID, map[string]string{
		"clip":    n.Clip,
		"channel": n.Channel,
		"volume":  formatFloat(n.Volume),
		"loop":    strconv.FormatBool(n.Loop),
		"fade":    formatFloat(n.FadeSeconds),
	}))
	// Looping clips never report completion.
	if n.WaitForCompletion && !n.Loop && strings.EqualFold(n.Action, "play") {
		return WaitForCondition(completion(n.ID), PortOutput)
	}
	return Continue(PortOutput)
}

func (n *AudioNode) Validate() []string {
	var errs []string
	if !containsFold(audioActions, n.Action) {
		errs = append(errs, fmt.Sprintf("Audio node %s has unknown action %q", n.DisplayName(), n.Action))
	}
	if strings.EqualFold(n.Action, "play") && strings.TrimSpace(n.Clip) == "" {
		errs = append(errs, fmt.Sprintf("Audio node %s has no clip", n.DisplayName()))
	}
	if n.Volume < 0 || n.Volume > 1 {
		errs = append(errs, fmt.Sprintf("Audio node %s volume %v outside [0,1]", n.DisplayName(), n.Volume))
	}
	return errs
}

func (n *AudioNode) SerializationData() map[string]any {
	return map[string]any{
		"action":            n.Action,
		"clip":              n.Clip,
		"channel":           n.Channel,
		"volume":            n.Volume,
		"loop":              n.Loop,
		"fadeDuration":      n.FadeSeconds,
		"waitForCompletion": n.WaitForCompletion,
	}
}

func (n *AudioNode) LoadSerializationData(data map[string]any) {
	n.Action = getString(data, "action")
	if n.Action == "" {
		n.Action = "play"
	}
	n.Clip = getString(data, "clip")
	n.Channel = getString(data, "channel")
	n.Volume = getFloat(data, "volume", 1)
	n.Loop = getBool(data, "loop", false)
	n.FadeSeconds = getFloat(data, "fadeDuration", 0)
	n.WaitForCompletion = getBool(data, "waitForCompletion", false)
}

// CameraNode asks the camera system to focus, shake, move, zoom or reset.
type CameraNode struct {
	NodeBase
	Action            string
	Target            string
	Seconds           float64
	Intensity         float64
	WaitForCompletion bool
}

var cameraActions = []string{"focus", "shake", "move", "zoom", "reset"}

func (n *CameraNode) Kind() Kind { return KindCamera }

func (n *CameraNode) SetupPorts() { n.standardPorts() }

func (n *CameraNode) Execute(env *Environment) Result {
	env.Dispatch(newEffect(KindCamera, n.Action, n.ID, map[string]string{
		"target":    n.Target,
		"duration":  formatFloat(n.Seconds),
		"intensity": formatFloat(n.Intensity),
	}))
	if n.WaitForCompletion && n.Seconds > 0 {
		return WaitSeconds(n.Seconds, PortOutput)
	}
	return Continue(PortOutput)
}

func (n *CameraNode) Validate() []string {
	var errs []string
	if !containsFold(cameraActions, n.Action) {
		errs = append(errs, fmt.Sprintf("Camera node %s has unknown action %q", n.DisplayName(), n.Action))
	}
	if n.Seconds < 0 {
		errs = append(errs, fmt.Sprintf("Camera node %s has negative duration", n.DisplayName()))
	}
	return errs
}

func (n *CameraNode) SerializationData() map[string]any {
	return map[string]any{
		"action":            n.Action,
		"target":            n.Target,
		"duration":          n.Seconds,
		"intensity":         n.Intensity,
		"waitForCompletion": n.WaitForCompletion,
	}
}

func (n *CameraNode) LoadSerializationData(data map[string]any) {
	n.Action = getString(data, "action")
	if n.Action == "" {
		n.Action = "focus"
	}
	n.Target = getString(data, "target")
	n.Seconds = getFloat(data, "duration", 0)
	n.Intensity = getFloat(data, "intensity", 1)
	n.WaitForCompletion = getBool(data, "waitForCompletion", false)
}

// CutsceneNode hands a cutscene to the timeline player.
type CutsceneNode struct {
	NodeBase
	Cutscene          string
	Skippable         bool
	WaitForCompletion bool
}

func (n *CutsceneNode) Kind() Kind { return KindCutscene }

func (n *CutsceneNode) SetupPorts() { n.standardPorts() }

func (n *CutsceneNode) OnEnter(env *Environment) { env.ConsumeSignal(n.ID) }

func (n *CutsceneNode) Execute(env *Environment) Result {
	env.Dispatch(newEffect(KindCutscene, n.Cutscene, n.ID, map[string]string{
		"skippable": strconv.FormatBool(n.Skippable),
	}))
	if n.WaitForCompletion {
		return WaitForCondition(completion(n.ID), PortOutput)
	}
	return Continue(PortOutput)
}

func (n *CutsceneNode) Validate() []string {
	if strings.TrimSpace(n.Cutscene) == "" {
		return []string{fmt.Sprintf("Cutscene node %s has no cutscene", n.DisplayName())}
	}
	return nil
}

func (n *CutsceneNode) SerializationData() map[string]any {
	return map[string]any{
		"cutscene":          n.Cutscene,
		"skippable":         n.Skippable,
		"waitForCompletion": n.WaitForCompletion,
	}
}

func (n *CutsceneNode) LoadSerializationData(data map[string]any) {
	n.Cutscene = getString(data, "cutscene")
	n.Skippable = getBool(data, "skippable", true)
	n.WaitForCompletion = getBool(data, "waitForCompletion", true)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
