package main

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AaronLay10/StoryEngine/internal/config"
	"github.com/AaronLay10/StoryEngine/internal/orchestrator"
	"github.com/AaronLay10/StoryEngine/internal/story"
)

// maxSettleTicks bounds the simulated ticks spent between two prompts, so a
// condition wait nothing can satisfy hands control back to the player.
const maxSettleTicks = 100_000

const playHelp = `commands:
  <enter>, next        advance dialogue or a waiting node
  N, choice N          pick choice N
  port ID              leave the current node through port ID
  complete [SIGNAL]    finish an event or cutscene
  jump NODE            move to another node
  pause, resume, stop
  status, vars, help, quit
`

func playCmd(args []string, in io.Reader, out, errOut io.Writer) error {
	fs := newFlagSet("run", errOut)
	start := fs.String("start", "", "start node ID (default: the graph's start node)")
	seed := fs.Int64("seed", 0, "random seed for variable nodes (0 picks one)")
	tick := fs.Duration("tick", orchestrator.DefaultTickInterval, "simulated time per tick")
	trace := fs.Bool("trace", false, "print every node entered")
	if exit, err := parseFlags(fs, args); exit || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return &ExitError{Code: 2, Message: "run: want exactly one FILE"}
	}

	logger := config.NewLogger("warn", "text", errOut)
	g, err := story.LoadFile(fs.Arg(0), story.DefaultRegistry(), logger)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	p := &player{out: out, tick: *tick, trace: *trace}
	p.rt = orchestrator.NewRuntime(
		orchestrator.WithID("storyctl"),
		orchestrator.WithLogger(logger),
		orchestrator.WithRand(rand.New(rand.NewSource(*seed))),
		orchestrator.WithSink(story.EffectSinkFunc(p.effect)),
		orchestrator.WithListener(orchestrator.ListenerFuncs{
			OnNodeEnter: p.nodeEnter,
			OnError:     func(_ *orchestrator.Runtime, msg string) { fmt.Fprintf(p.out, "error: %s\n", msg) },
		}),
	)
	if err := p.rt.Play(g, *start); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	p.settle()

	sc := bufio.NewScanner(in)
	for !p.rt.State().Terminal() {
		p.prompt()
		if !sc.Scan() {
			break
		}
		if quit := p.exec(sc.Text()); quit {
			break
		}
		p.settle()
	}
	p.summary()
	return sc.Err()
}

// player drives one Runtime from line commands on a simulated clock.
type player struct {
	rt    *orchestrator.Runtime
	out   io.Writer
	tick  time.Duration
	trace bool
}

func (p *player) settle() {
	for i := 0; i < maxSettleTicks; i++ {
		s := p.rt.State()
		if p.rt.Paused() || (s != orchestrator.StateRunning && s != orchestrator.StateWaiting) {
			return
		}
		p.rt.Tick(p.tick)
	}
}

func (p *player) nodeEnter(rt *orchestrator.Runtime, n story.Node) {
	if p.trace {
		fmt.Fprintf(p.out, "-> %s %s\n", n.Kind(), n.Base().DisplayName())
	}
	if n.Kind() != story.KindDialogue {
		return
	}
	if v, ok := rt.Environment().Temp(story.TempDialogue); ok {
		if line, ok := v.(story.DialogueLine); ok {
			if line.Speaker != "" {
				fmt.Fprintf(p.out, "%s: %s\n", line.Speaker, line.Text)
			} else {
				fmt.Fprintln(p.out, line.Text)
			}
		}
	}
}

func (p *player) effect(e story.Effect) error {
	if len(e.Params) == 0 {
		fmt.Fprintf(p.out, "* %s %s\n", e.Kind, e.Name)
		return nil
	}
	fmt.Fprintf(p.out, "* %s %s %v\n", e.Kind, e.Name, e.Params)
	return nil
}

func (p *player) prompt() {
	st := p.rt.Status()
	switch {
	case st.Paused:
		fmt.Fprintln(p.out, "(paused)")
	case st.State == orchestrator.StateWaiting:
		fmt.Fprintln(p.out, "(waiting on a condition)")
	case st.CurrentNodeKind == story.KindChoice:
		if ch, ok := p.rt.CurrentNode().(*story.ChoiceNode); ok && ch.Prompt != "" {
			fmt.Fprintln(p.out, p.rt.Environment().Interpolate(ch.Prompt))
		}
		for _, c := range st.Choices {
			fmt.Fprintf(p.out, "  [%d] %s\n", c.Index, c.Text)
		}
	case st.CurrentNodeKind != story.KindDialogue:
		fmt.Fprintf(p.out, "(waiting at %s %s)\n", st.CurrentNodeKind, p.rt.CurrentNode().Base().DisplayName())
	}
	fmt.Fprint(p.out, "> ")
}

// exec runs one command line and reports whether the player asked to quit.
func (p *player) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		fields = []string{"next"}
	}
	verb, arg := fields[0], ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	var req orchestrator.CommandRequest
	switch verb {
	case "q", "quit", "exit":
		return true
	case "help", "?":
		fmt.Fprint(p.out, playHelp)
		return false
	case "status":
		p.status()
		return false
	case "vars":
		p.vars()
		return false
	case "next", "input":
		req.Action = "input"
	case "choice":
		i, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintf(p.out, "error: choice wants a number, got %q\n", arg)
			return false
		}
		req.Action, req.Index = "choice", &i
	case "port":
		req.Action, req.Port = "port", arg
	case "complete":
		req.Action, req.Signal = "complete", arg
	case "jump":
		req.Action, req.NodeID = "jump", arg
	default:
		if i, err := strconv.Atoi(verb); err == nil {
			req.Action, req.Index = "choice", &i
		} else {
			req.Action = verb
		}
	}

	fn, err := req.Func()
	if err == nil {
		err = fn(p.rt)
	}
	if err != nil {
		fmt.Fprintf(p.out, "error: %v\n", err)
	}
	return false
}

func (p *player) status() {
	st := p.rt.Status()
	fmt.Fprintf(p.out, "state: %s", st.State)
	if st.Paused {
		fmt.Fprint(p.out, " (paused)")
	}
	if st.CurrentNodeID != "" {
		fmt.Fprintf(p.out, ", node: %s (%s)", st.CurrentNodeID, st.CurrentNodeKind)
	}
	fmt.Fprintf(p.out, ", steps: %d\n", st.Steps)
}

func (p *player) vars() {
	st := p.rt.Status()
	names := make([]string, 0, len(st.Variables))
	for name := range st.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(p.out, "  %s = %v\n", name, st.Variables[name])
	}
}

func (p *player) summary() {
	st := p.rt.Status()
	fmt.Fprintf(p.out, "\nstory %s", st.State)
	if st.Outcome != "" {
		fmt.Fprintf(p.out, " (outcome: %s)", st.Outcome)
	}
	fmt.Fprintln(p.out)
}
