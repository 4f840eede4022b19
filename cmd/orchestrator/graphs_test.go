package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/StoryEngine/internal/orchestrator"
	"github.com/AaronLay10/StoryEngine/internal/story"
)

func writeGraph(t *testing.T, path, name string) *story.Graph {
	t.Helper()
	g := story.NewGraph(name, nil)
	start, err := g.CreateNode(story.KindStart, story.Position{})
	require.NoError(t, err)
	end, err := g.CreateNode(story.KindEnd, story.Position{X: 200})
	require.NoError(t, err)
	_, err = g.CreateConnection(start.Base().ID, story.PortOutput, end.Base().ID, story.PortInput)
	require.NoError(t, err)
	require.NoError(t, story.WriteFile(path, g))
	return g
}

func TestLoadGraphDir(t *testing.T) {
	dir := t.TempDir()
	a := writeGraph(t, filepath.Join(dir, "attic.json"), "Attic")
	b := writeGraph(t, filepath.Join(dir, "cellar.yaml"), "Cellar")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a graph"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "drafts"), 0o755))

	reg := story.DefaultRegistry()
	store := orchestrator.NewMemoryGraphStore(reg)
	n, err := loadGraphDir(context.Background(), dir, store, reg, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	infos, err := store.ListGraphs(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "Attic", infos[0].Name)
	assert.Equal(t, a.ID, infos[0].ID)
	assert.Equal(t, b.ID, infos[1].ID)

	got, err := store.GetGraph(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Len(t, got.Nodes(), 2)
	assert.Len(t, got.Connections(), 1)
}

func TestLoadGraphDirFailsOnBrokenFile(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, filepath.Join(dir, "good.json"), "Good")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))

	reg := story.DefaultRegistry()
	store := orchestrator.NewMemoryGraphStore(reg)
	_, err := loadGraphDir(context.Background(), dir, store, reg, slog.Default())
	require.ErrorIs(t, err, story.ErrParse)
	assert.Contains(t, err.Error(), "broken.json")

	infos, err := store.ListGraphs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestLoadGraphDirMissing(t *testing.T) {
	reg := story.DefaultRegistry()
	_, err := loadGraphDir(context.Background(), filepath.Join(t.TempDir(), "nope"), orchestrator.NewMemoryGraphStore(reg), reg, slog.Default())
	require.Error(t, err)
}
