package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AaronLay10/StoryEngine/internal/story"
)

// ErrGraphNotFound is returned by GraphStore.GetGraph for unknown IDs.
var ErrGraphNotFound = errors.New("graph not found")

// GraphInfo summarises a stored graph.
type GraphInfo struct {
	ID        string    `json:"graph_id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GraphStore keeps authored graph documents by graph ID.
type GraphStore interface {
	PutGraph(ctx context.Context, g *story.Graph) error
	GetGraph(ctx context.Context, id string) (*story.Graph, error)
	ListGraphs(ctx context.Context) ([]GraphInfo, error)
}

type storedGraph struct {
	info GraphInfo
	doc  []byte
}

// MemoryGraphStore is a GraphStore holding encoded documents in memory.
// GetGraph decodes a fresh copy on every call, so callers never share
// mutable graphs with the store.
type MemoryGraphStore struct {
	registry *story.Registry

	mu     sync.RWMutex
	graphs map[string]storedGraph
}

// NewMemoryGraphStore decodes graphs with reg, or the default registry.
func NewMemoryGraphStore(reg *story.Registry) *MemoryGraphStore {
	return &MemoryGraphStore{registry: reg, graphs: make(map[string]storedGraph)}
}

func (m *MemoryGraphStore) PutGraph(_ context.Context, g *story.Graph) error {
	doc, err := story.ToText(g)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[g.ID] = storedGraph{
		info: GraphInfo{ID: g.ID, Name: g.Name, UpdatedAt: time.Now().UTC()},
		doc:  doc,
	}
	return nil
}

func (m *MemoryGraphStore) GetGraph(_ context.Context, id string) (*story.Graph, error) {
	m.mu.RLock()
	sg, ok := m.graphs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, id)
	}
	return story.FromText(sg.doc, m.registry, nil)
}

// ListGraphs returns stored graphs ordered by name, then ID.
func (m *MemoryGraphStore) ListGraphs(context.Context) ([]GraphInfo, error) {
	m.mu.RLock()
	out := make([]GraphInfo, 0, len(m.graphs))
	for _, sg := range m.graphs {
		out = append(out, sg.info)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
