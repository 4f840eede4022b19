package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/AaronLay10/StoryEngine/internal/story"
)

// DefaultMaxStepsPerTick bounds how many nodes one Tick may execute before
// yielding, so Continue cycles cannot monopolise a tick.
const DefaultMaxStepsPerTick = 1000

var (
	ErrNoStartNode        = errors.New("no start node")
	ErrNoGraph            = errors.New("no graph loaded")
	ErrNotActive          = errors.New("story is not running")
	ErrNotWaitingForInput = errors.New("story is not waiting for input")
	ErrInvalidSelection   = errors.New("invalid selection")
	ErrGraphMismatch      = errors.New("save state belongs to another graph")
)

// Chooser is implemented by nodes that resume on a player choice.
type Chooser interface {
	SelectChoice(index int, env *story.Environment) (string, bool)
}

// Runtime executes one story graph. It is a resumable state machine: every
// call either makes progress synchronously or records what it is waiting
// for, and Tick drives time. A Runtime is not safe for concurrent use; the
// Manager serializes access to it.
type Runtime struct {
	id        string
	logger    *slog.Logger
	sink      story.EffectSink
	rng       *rand.Rand
	listeners []Listener
	maxSteps  int

	graph   *story.Graph
	env     *story.Environment
	state   State
	paused  bool
	current story.Node
	entered bool

	// wait bookkeeping for the current node
	pendingPort string
	remaining   time.Duration
	predicate   func(*story.Environment) bool

	steps int64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithID sets the instance ID reported to listeners.
func WithID(id string) Option {
	return func(r *Runtime) { r.id = id }
}

// WithListener registers l.
func WithListener(l Listener) Option {
	return func(r *Runtime) {
		if l != nil {
			r.listeners = append(r.listeners, l)
		}
	}
}

// WithSink routes dispatched effects of every run to s.
func WithSink(s story.EffectSink) Option {
	return func(r *Runtime) { r.sink = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRand seeds variable randomness. Each run shares the source.
func WithRand(rng *rand.Rand) Option {
	return func(r *Runtime) { r.rng = rng }
}

func WithMaxStepsPerTick(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}

// NewRuntime creates an idle runtime.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{
		logger:   slog.Default(),
		maxSteps: DefaultMaxStepsPerTick,
		state:    StateIdle,
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With("instance_id", r.id)
	return r
}

// AddListener registers l for subsequent notifications.
func (r *Runtime) AddListener(l Listener) {
	if l != nil {
		r.listeners = append(r.listeners, l)
	}
}

func (r *Runtime) ID() string { return r.id }
func (r *Runtime) State() State { return r.state }
func (r *Runtime) Paused() bool { return r.paused }
func (r *Runtime) CurrentNode() story.Node { return r.current }
func (r *Runtime) Environment() *story.Environment { return r.env }
func (r *Runtime) Graph() *story.Graph { return r.graph }

// Steps returns how many node executions this runtime has performed.
func (r *Runtime) Steps() int64 { return r.steps }

func (r *Runtime) newEnvironment(g *story.Graph) *story.Environment {
	return story.NewEnvironment(g.Variables(),
		story.WithSink(r.sink),
		story.WithRand(r.rng),
		story.WithEnvLogger(r.logger),
	)
}

// Play starts g from startNodeID, or from the graph's start node when
// startNodeID is empty. An active run is stopped first.
func (r *Runtime) Play(g *story.Graph, startNodeID string) error {
	if g == nil {
		return ErrNoGraph
	}
	if r.state.Active() {
		_ = r.Stop()
	}

	r.graph = g
	r.env = r.newEnvironment(g)
	r.paused = false
	r.clearWait()

	var start story.Node
	if startNodeID != "" {
		start = g.GetNode(startNodeID)
	} else {
		start = g.GetStartNode()
	}
	if start == nil {
		msg := "no start node found"
		if startNodeID != "" {
			msg = fmt.Sprintf("start node %s not found", startNodeID)
		}
		r.logger.Error(msg, "graph_id", g.ID)
		r.current = nil
		r.state = StateIdle
		r.notifyError(msg)
		return fmt.Errorf("%w: graph %s", ErrNoStartNode, g.ID)
	}

	r.logger.Info("story started", "graph_id", g.ID, "node_id", start.Base().ID)
	r.begin(start)
	return nil
}

// begin marks the run active, notifies StoryStart and enters node.
func (r *Runtime) begin(node story.Node) {
	r.state = StateRunning
	for _, l := range r.listeners {
		l.StoryStart(r)
	}
	r.current = node
	r.entered = false
	r.run()
}

// run executes nodes until the story suspends, ends, is paused or the step
// limit is reached.
func (r *Runtime) run() {
	for n := 0; r.state == StateRunning && !r.paused && r.current != nil; n++ {
		if n >= r.maxSteps {
			r.logger.Debug("step limit reached, yielding", "limit", r.maxSteps)
			return
		}
		r.step()
	}
}

func (r *Runtime) step() {
	node := r.current
	defer func() {
		if p := recover(); p != nil {
			msg := fmt.Sprintf("node %s panicked: %v", node.Base().ID, p)
			r.logger.Error("node execution failed", "node_id", node.Base().ID, "panic", p)
			r.notifyError(msg)
			r.exitAfterPanic()
			r.finish(StateStopped, false)
		}
	}()

	if !r.entered {
		r.entered = true
		node.OnEnter(r.env)
		for _, l := range r.listeners {
			l.NodeEnter(r, node)
		}
	}
	r.steps++
	r.apply(node.Execute(r.env))
}

func (r *Runtime) apply(res story.Result) {
	switch res.Kind {
	case story.ResultContinue:
		r.advance(res.Port)
	case story.ResultWait:
		r.state = StateWaiting
		r.pendingPort = res.Port
		r.remaining = res.Duration
	case story.ResultWaitForInput:
		r.state = StateWaitingForInput
		r.pendingPort = res.Port
	case story.ResultWaitForCondition:
		if res.Predicate == nil {
			r.advance(res.Port)
			return
		}
		r.state = StateWaiting
		r.pendingPort = res.Port
		r.predicate = res.Predicate
	case story.ResultEnd:
		r.exitCurrent()
		r.env.MarkComplete()
		r.logger.Info("story completed", "graph_id", r.graph.ID)
		r.finish(StateComplete, true)
	default:
		r.logger.Error("unknown result kind", "kind", res.Kind.String())
		r.finish(StateStopped, false)
	}
}

// advance leaves the current node through port. A port with no connection
// is a dead end.
func (r *Runtime) advance(port string) {
	from := r.current
	r.exitCurrent()
	r.clearWait()
	r.state = StateRunning

	next := r.graph.GetConnectedNode(from.Base().ID, port)
	if next == nil {
		r.logger.Warn("dead end: output port not connected",
			"node_id", from.Base().ID, "port", port)
		r.finish(StateDeadEnd, false)
		return
	}
	r.current = next
	r.entered = false
}

func (r *Runtime) exitCurrent() {
	if r.current == nil || !r.entered {
		return
	}
	node := r.current
	node.OnExit(r.env)
	r.entered = false
	for _, l := range r.listeners {
		l.NodeExit(r, node)
	}
}

// exitAfterPanic runs exitCurrent for a node that panicked. A second panic
// from OnExit or a listener is logged and dropped.
func (r *Runtime) exitAfterPanic() {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("node exit failed", "panic", p)
			r.entered = false
		}
	}()
	r.exitCurrent()
}

func (r *Runtime) clearWait() {
	r.pendingPort = ""
	r.remaining = 0
	r.predicate = nil
}

func (r *Runtime) finish(state State, success bool) {
	r.state = state
	r.current = nil
	r.entered = false
	r.clearWait()
	for _, l := range r.listeners {
		l.StoryEnd(r, success)
	}
}

func (r *Runtime) notifyError(msg string) {
	for _, l := range r.listeners {
		l.Error(r, msg)
	}
}

// Tick advances time by dt. Time waits count down, condition waits are
// polled once, and a running story continues where the step limit stopped
// it. A frame wait resumes on the first tick after it began.
func (r *Runtime) Tick(dt time.Duration) {
	if r.paused || !r.state.Active() {
		return
	}
	switch r.state {
	case StateRunning:
		r.run()
	case StateWaiting:
		if r.predicate != nil {
			if !r.predicate(r.env) {
				return
			}
		} else {
			r.remaining -= dt
			if r.remaining > 0 {
				return
			}
		}
		r.advance(r.pendingPort)
		r.run()
	}
}

// Pause suspends execution and time. Commands are still accepted but the
// story does not move until Resume.
func (r *Runtime) Pause() error {
	if !r.state.Active() {
		return ErrNotActive
	}
	r.paused = true
	return nil
}

func (r *Runtime) Resume() error {
	if !r.state.Active() {
		return ErrNotActive
	}
	r.paused = false
	r.run()
	return nil
}

// Stop ends the run. Listeners see success only if an End node had
// already marked the environment complete.
func (r *Runtime) Stop() error {
	if !r.state.Active() {
		return ErrNotActive
	}
	r.exitCurrent()
	r.paused = false
	r.logger.Info("story stopped")
	r.finish(StateStopped, r.env.IsComplete())
	return nil
}

// SendInput resumes a node waiting for plain input, such as a dialogue line.
func (r *Runtime) SendInput() error {
	if r.state != StateWaitingForInput {
		return ErrNotWaitingForInput
	}
	if r.pendingPort == "" {
		return fmt.Errorf("%w: node %s needs a selection", ErrInvalidSelection, r.current.Base().ID)
	}
	r.advance(r.pendingPort)
	r.run()
	return nil
}

// SelectChoice picks the index-th available choice of the current node.
func (r *Runtime) SelectChoice(index int) error {
	if r.state != StateWaitingForInput {
		return ErrNotWaitingForInput
	}
	ch, ok := r.current.(Chooser)
	if !ok {
		return fmt.Errorf("%w: node %s offers no choices", ErrInvalidSelection, r.current.Base().ID)
	}
	port, ok := ch.SelectChoice(index, r.env)
	if !ok {
		return fmt.Errorf("%w: choice %d", ErrInvalidSelection, index)
	}
	r.advance(port)
	r.run()
	return nil
}

// SelectPort resumes a node waiting for input through an explicit output.
func (r *Runtime) SelectPort(portID string) error {
	if r.state != StateWaitingForInput {
		return ErrNotWaitingForInput
	}
	if r.current.Base().OutputPort(portID) == nil {
		return fmt.Errorf("%w: node %s has no output %q", ErrInvalidSelection, r.current.Base().ID, portID)
	}
	r.advance(portID)
	r.run()
	return nil
}

// Complete signals that presentation work finished. An empty signal targets
// the current node. The waiting node observes it on the next Tick.
func (r *Runtime) Complete(signal string) error {
	if !r.state.Active() {
		return ErrNotActive
	}
	if signal == "" {
		if r.current == nil {
			return fmt.Errorf("%w: no current node", ErrInvalidSelection)
		}
		signal = r.current.Base().ID
	}
	r.env.Signal(signal)
	return nil
}

// JumpToNode moves execution to nodeID, keeping the variables. A finished
// or stopped story restarts there.
func (r *Runtime) JumpToNode(nodeID string) error {
	if r.graph == nil {
		return ErrNoGraph
	}
	node := r.graph.GetNode(nodeID)
	if node == nil {
		return fmt.Errorf("%w: %s", story.ErrNodeNotFound, nodeID)
	}
	r.logger.Info("jumping to node", "node_id", nodeID)

	if r.state.Active() {
		r.exitCurrent()
		r.clearWait()
		r.state = StateRunning
		r.current = node
		r.entered = false
		r.run()
		return nil
	}

	env := r.newEnvironment(r.graph)
	if r.env != nil {
		env.Restore(r.env.Variables())
	}
	r.env = env
	r.paused = false
	r.clearWait()
	r.begin(node)
	return nil
}

// Status is a point-in-time view of a runtime.
type Status struct {
	InstanceID      string              `json:"instance_id"`
	GraphID         string              `json:"graph_id,omitempty"`
	State           State               `json:"state"`
	Paused          bool                `json:"paused"`
	CurrentNodeID   string              `json:"current_node_id,omitempty"`
	CurrentNodeKind story.Kind          `json:"current_node_kind,omitempty"`
	Variables       map[string]any      `json:"variables,omitempty"`
	Dialogue        *story.DialogueLine `json:"dialogue,omitempty"`
	Choices         []ChoiceView        `json:"choices,omitempty"`
	Outcome         string              `json:"outcome,omitempty"`
	Steps           int64               `json:"steps"`
}

// ChoiceView is one selectable choice. Index is the value to pass to
// SelectChoice.
type ChoiceView struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Status snapshots the runtime.
func (r *Runtime) Status() Status {
	s := Status{
		InstanceID: r.id,
		State:      r.state,
		Paused:     r.paused,
		Steps:      r.steps,
	}
	if r.graph != nil {
		s.GraphID = r.graph.ID
	}
	if r.current != nil {
		s.CurrentNodeID = r.current.Base().ID
		s.CurrentNodeKind = r.current.Kind()
	}
	if r.env == nil {
		return s
	}
	vars := r.env.Variables()
	s.Variables = make(map[string]any, len(vars))
	for name, v := range vars {
		s.Variables[name] = plainValue(v)
	}
	if v, ok := r.env.Temp(story.TempDialogue); ok {
		if line, ok := v.(story.DialogueLine); ok {
			s.Dialogue = &line
		}
	}
	if ch, ok := r.current.(*story.ChoiceNode); ok {
		for i, ac := range ch.AvailableChoices(r.env) {
			s.Choices = append(s.Choices, ChoiceView{Index: i, Text: ac.Choice.Text})
		}
	}
	if v, ok := r.env.Temp(story.TempOutcome); ok {
		s.Outcome, _ = v.(string)
	}
	return s
}

func plainValue(v story.Value) any {
	switch v.Type() {
	case story.TypeFloat:
		return v.Float()
	case story.TypeInt:
		return v.Int()
	case story.TypeBool:
		return v.Bool()
	}
	return v.String()
}
