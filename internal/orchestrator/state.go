package orchestrator

// State is the lifecycle state of one story run.
type State string

const (
	StateIdle            State = "idle"
	StateRunning         State = "running"
	StateWaiting         State = "waiting"
	StateWaitingForInput State = "waiting_for_input"
	StateComplete        State = "complete"
	StateStopped         State = "stopped"
	// StateDeadEnd means traversal reached an output port with no
	// connection before any End node.
	StateDeadEnd State = "dead_end"
)

// Active reports whether the run has started and not yet terminated.
func (s State) Active() bool {
	return s == StateRunning || s == StateWaiting || s == StateWaitingForInput
}

// Terminal reports whether the run has ended.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateStopped || s == StateDeadEnd
}
