package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// story lifecycle
	"story.started":   {},
	"story.completed": {},
	"story.stopped":   {},
	"story.dead_end":  {},
	"story.error":     {},

	// node
	"node.entered": {},
	"node.exited":  {},

	// presentation
	"dialogue.line":     {},
	"choice.presented":  {},
	"effect.dispatched": {},

	// operator
	"operator.input":    {},
	"operator.choice":   {},
	"operator.port":     {},
	"operator.complete": {},
	"operator.jump":     {},
	"operator.pause":    {},
	"operator.resume":   {},
	"operator.stop":     {},
	"operator.save":     {},
	"operator.restore":  {},

	// instance
	"instance.launched": {},
	"instance.removed":  {},

	// graph
	"graph.stored": {},

	// transport
	"mqtt.connected":    {},
	"mqtt.disconnected": {},
	"mqtt.input":        {},
	"mqtt.error":        {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

// Validate reports whether event is a known event name.
func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
