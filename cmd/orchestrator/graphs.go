package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/StoryEngine/internal/orchestrator"
	"github.com/AaronLay10/StoryEngine/internal/story"
)

// maxParallelLoads bounds how many graph files are decoded at once.
const maxParallelLoads = 4

// loadGraphDir decodes every .json, .yaml and .yml file in dir and stores
// the result. A file that cannot be read or decoded aborts the load.
func loadGraphDir(ctx context.Context, dir string, store orchestrator.GraphStore, reg *story.Registry, logger *slog.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read graphs dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}

	graphs := make([]*story.Graph, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			graph, err := story.LoadFile(path, reg, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			graphs[i] = graph
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	for i, graph := range graphs {
		if problems := graph.Validate(); len(problems) > 0 {
			logger.Warn("graph has problems", "file", filepath.Base(paths[i]), "graph_id", graph.ID, "problems", problems)
		}
		if err := store.PutGraph(ctx, graph); err != nil {
			return 0, fmt.Errorf("store %s: %w", graph.ID, err)
		}
	}
	return len(graphs), nil
}
