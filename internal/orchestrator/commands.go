package orchestrator

import (
	"errors"
	"fmt"
)

// ErrBadCommand is returned for a CommandRequest that names no usable action
// or lacks the argument its action needs.
var ErrBadCommand = errors.New("bad command")

// CommandRequest is the transport form of an operator command, shared by
// the HTTP API and the MQTT input topic.
type CommandRequest struct {
	Action string `json:"action"`
	Index  *int   `json:"index,omitempty"`
	Port   string `json:"port,omitempty"`
	Signal string `json:"signal,omitempty"`
	NodeID string `json:"node_id,omitempty"`
}

// Func maps the request to a runtime command.
func (c CommandRequest) Func() (func(*Runtime) error, error) {
	switch c.Action {
	case "input":
		return (*Runtime).SendInput, nil
	case "choice":
		if c.Index == nil {
			return nil, fmt.Errorf("%w: choice without index", ErrBadCommand)
		}
		index := *c.Index
		return func(rt *Runtime) error { return rt.SelectChoice(index) }, nil
	case "port":
		if c.Port == "" {
			return nil, fmt.Errorf("%w: port without port id", ErrBadCommand)
		}
		port := c.Port
		return func(rt *Runtime) error { return rt.SelectPort(port) }, nil
	case "complete":
		signal := c.Signal
		return func(rt *Runtime) error { return rt.Complete(signal) }, nil
	case "jump":
		if c.NodeID == "" {
			return nil, fmt.Errorf("%w: jump without node id", ErrBadCommand)
		}
		nodeID := c.NodeID
		return func(rt *Runtime) error { return rt.JumpToNode(nodeID) }, nil
	case "pause":
		return (*Runtime).Pause, nil
	case "resume":
		return (*Runtime).Resume, nil
	case "stop":
		return (*Runtime).Stop, nil
	}
	return nil, fmt.Errorf("%w: unknown action %q", ErrBadCommand, c.Action)
}

// Fields returns the request's arguments as event fields.
func (c CommandRequest) Fields() map[string]any {
	f := map[string]any{}
	if c.Index != nil {
		f["index"] = *c.Index
	}
	if c.Port != "" {
		f["port"] = c.Port
	}
	if c.Signal != "" {
		f["signal"] = c.Signal
	}
	if c.NodeID != "" {
		f["node_id"] = c.NodeID
	}
	return f
}
