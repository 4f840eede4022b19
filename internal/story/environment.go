package story

import (
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

// Temp data keys written by nodes for listeners.
const (
	TempDialogue = "current_dialogue"
	TempChoices  = "current_choices"
	TempOutcome  = "end_outcome"
)

// Environment is the variable state of one running story. It is not safe
// for concurrent use; a run owns exactly one.
type Environment struct {
	vars     map[string]Value
	temp     map[string]any
	signals  map[string]struct{}
	complete bool

	sink   EffectSink
	rng    *rand.Rand
	logger *slog.Logger
}

// EnvOption configures an Environment.
type EnvOption func(*Environment)

// WithSink routes dispatched effects to s.
func WithSink(s EffectSink) EnvOption {
	return func(e *Environment) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithRand sets the random source used by Random variable operations.
func WithRand(r *rand.Rand) EnvOption {
	return func(e *Environment) {
		if r != nil {
			e.rng = r
		}
	}
}

// WithEnvLogger sets the logger used for dispatch failures.
func WithEnvLogger(l *slog.Logger) EnvOption {
	return func(e *Environment) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEnvironment creates an environment seeded with the defaults of decls.
func NewEnvironment(decls []VariableDecl, opts ...EnvOption) *Environment {
	e := &Environment{
		vars:    make(map[string]Value, len(decls)),
		temp:    make(map[string]any),
		signals: make(map[string]struct{}),
		sink:    discardSink{},
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	for _, d := range decls {
		v, ok := d.Default.Convert(d.Type)
		if !ok {
			v, _ = ParseValue(d.Type, "")
		}
		e.vars[d.Name] = v
	}
	return e
}

// Get returns the value of a variable.
func (e *Environment) Get(name string) (Value, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Has reports whether a variable is set.
func (e *Environment) Has(name string) bool {
	_, ok := e.vars[name]
	return ok
}

// Set assigns a variable, creating it if needed.
func (e *Environment) Set(name string, v Value) {
	e.vars[name] = v
}

// Variables returns a copy of the persistent variable mapping.
func (e *Environment) Variables() map[string]Value {
	out := make(map[string]Value, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}

// Restore overwrites variables with the given mapping. Variables not in vars
// keep their current value.
func (e *Environment) Restore(vars map[string]Value) {
	for k, v := range vars {
		e.vars[k] = v
	}
}

// SetTemp stores ephemeral per-node data. Temp data is never saved.
func (e *Environment) SetTemp(key string, v any) { e.temp[key] = v }

// Temp returns ephemeral data stored under key.
func (e *Environment) Temp(key string) (any, bool) {
	v, ok := e.temp[key]
	return v, ok
}

// ClearTemp removes one temp entry.
func (e *Environment) ClearTemp(key string) { delete(e.temp, key) }

// MarkComplete flags the run as having reached an End node.
func (e *Environment) MarkComplete() { e.complete = true }

// IsComplete reports whether an End node was reached.
func (e *Environment) IsComplete() bool { return e.complete }

// Signal records an external completion signal.
func (e *Environment) Signal(key string) { e.signals[key] = struct{}{} }

// ConsumeSignal reports whether key was signalled and clears it.
func (e *Environment) ConsumeSignal(key string) bool {
	if _, ok := e.signals[key]; !ok {
		return false
	}
	delete(e.signals, key)
	return true
}

// Dispatch hands an effect to the configured sink. Sink failures are logged
// and otherwise ignored.
func (e *Environment) Dispatch(ef Effect) {
	if err := e.sink.Dispatch(ef); err != nil {
		e.logger.Warn("effect dispatch failed",
			"kind", string(ef.Kind), "name", ef.Name, "node_id", ef.NodeID, "err", err)
	}
}

// Rand returns the environment's random source.
func (e *Environment) Rand() *rand.Rand { return e.rng }

// Resolve returns the literal as a value, or the referenced variable's value
// when the literal has the form "$name". Unknown references resolve to false.
func (e *Environment) Resolve(literal string) (Value, bool) {
	if name, ok := strings.CutPrefix(strings.TrimSpace(literal), "$"); ok {
		return e.Get(name)
	}
	return InferValue(literal), true
}

// Interpolate replaces {name} placeholders with variable values. Unknown
// names are left as written.
func (e *Environment) Interpolate(text string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	var b strings.Builder
	for {
		open := strings.IndexByte(text, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(text[open:], '}')
		if end < 0 {
			break
		}
		end += open
		b.WriteString(text[:open])
		name := text[open+1 : end]
		if v, ok := e.vars[name]; ok && name != "" {
			b.WriteString(v.String())
		} else {
			b.WriteString(text[open : end+1])
		}
		text = text[end+1:]
	}
	b.WriteString(text)
	return b.String()
}
