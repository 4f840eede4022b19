package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AaronLay10/StoryEngine/internal/story"
)

// ErrNoSaveState is returned by a SaveStore holding nothing for an instance.
var ErrNoSaveState = errors.New("no save state")

// SavedValue is a typed variable in a save state.
type SavedValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SaveState is the persistent part of a run: where it was and the
// variables. Temp data and pending waits are not saved; restoring re-enters
// the saved node, which recomputes them.
type SaveState struct {
	InstanceID    string                `json:"instance_id"`
	GraphID       string                `json:"graph_id"`
	CurrentNodeID string                `json:"current_node_id"`
	Variables     map[string]SavedValue `json:"variables"`
	SavedAt       time.Time             `json:"saved_at"`
}

// EncodeVariables converts environment variables to their saved form.
func EncodeVariables(vars map[string]story.Value) map[string]SavedValue {
	out := make(map[string]SavedValue, len(vars))
	for name, v := range vars {
		out[name] = SavedValue{Type: v.Type().String(), Value: v.String()}
	}
	return out
}

// Values decodes the saved variables. Entries with an unknown type or an
// unparsable value are logged and skipped.
func (s SaveState) Values(logger *slog.Logger) map[string]story.Value {
	if logger == nil {
		logger = slog.Default()
	}
	out := make(map[string]story.Value, len(s.Variables))
	for name, sv := range s.Variables {
		t, err := story.ParseVarType(sv.Type)
		if err != nil {
			logger.Warn("skipping saved variable", "name", name, "err", err)
			continue
		}
		v, err := story.ParseValue(t, sv.Value)
		if err != nil {
			logger.Warn("skipping saved variable", "name", name, "err", err)
			continue
		}
		out[name] = v
	}
	return out
}

// SaveState captures the current run.
func (r *Runtime) SaveState() (SaveState, error) {
	if r.graph == nil || r.env == nil {
		return SaveState{}, ErrNoGraph
	}
	s := SaveState{
		InstanceID: r.id,
		GraphID:    r.graph.ID,
		Variables:  EncodeVariables(r.env.Variables()),
		SavedAt:    time.Now().UTC(),
	}
	if r.current != nil {
		s.CurrentNodeID = r.current.Base().ID
	}
	return s, nil
}

// LoadState resumes a saved run on g. Variables are restored over the
// graph's defaults and the saved node is entered afresh.
func (r *Runtime) LoadState(s SaveState, g *story.Graph) error {
	if g == nil {
		return ErrNoGraph
	}
	if s.GraphID != "" && s.GraphID != g.ID {
		return fmt.Errorf("%w: saved %s, got %s", ErrGraphMismatch, s.GraphID, g.ID)
	}
	if s.CurrentNodeID == "" {
		return fmt.Errorf("%w: save state has no current node", story.ErrNodeNotFound)
	}
	node := g.GetNode(s.CurrentNodeID)
	if node == nil {
		return fmt.Errorf("%w: %s", story.ErrNodeNotFound, s.CurrentNodeID)
	}
	if r.state.Active() {
		_ = r.Stop()
	}

	r.graph = g
	r.env = r.newEnvironment(g)
	r.env.Restore(s.Values(r.logger))
	r.paused = false
	r.clearWait()

	r.logger.Info("story restored", "graph_id", g.ID, "node_id", s.CurrentNodeID)
	r.begin(node)
	return nil
}

// SaveStore persists save states by instance.
type SaveStore interface {
	Save(ctx context.Context, s SaveState) error
	Load(ctx context.Context, instanceID string) (SaveState, error)
}

// MemoryStore is an in-process SaveStore.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]SaveState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]SaveState)}
}

func (m *MemoryStore) Save(_ context.Context, s SaveState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vars := make(map[string]SavedValue, len(s.Variables))
	for k, v := range s.Variables {
		vars[k] = v
	}
	s.Variables = vars
	m.states[s.InstanceID] = s
	return nil
}

func (m *MemoryStore) Load(_ context.Context, instanceID string) (SaveState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[instanceID]
	if !ok {
		return SaveState{}, fmt.Errorf("%w: %s", ErrNoSaveState, instanceID)
	}
	return s, nil
}
