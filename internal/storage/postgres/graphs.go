package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AaronLay10/StoryEngine/internal/orchestrator"
	"github.com/AaronLay10/StoryEngine/internal/story"
)

var _ orchestrator.GraphStore = (*Client)(nil)

// PutGraph stores g's document, replacing any previous version.
func (c *Client) PutGraph(ctx context.Context, g *story.Graph) error {
	doc, err := story.ToText(g)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO graphs (graph_id, name, document, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (graph_id) DO UPDATE
		SET name = EXCLUDED.name, document = EXCLUDED.document, updated_at = now()
	`
	_, err = c.db.ExecContext(ctx, query, g.ID, g.Name, doc)
	return err
}

// GetGraph loads and decodes a stored graph.
func (c *Client) GetGraph(ctx context.Context, id string) (*story.Graph, error) {
	var doc []byte
	err := c.db.QueryRowContext(ctx, `SELECT document FROM graphs WHERE graph_id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s: %w", orchestrator.ErrGraphNotFound, id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return story.FromText(doc, c.registry, c.logger)
}

// ListGraphs returns stored graphs ordered by name.
func (c *Client) ListGraphs(ctx context.Context) ([]orchestrator.GraphInfo, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT graph_id, name, updated_at FROM graphs ORDER BY name, graph_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orchestrator.GraphInfo
	for rows.Next() {
		var gi orchestrator.GraphInfo
		if err := rows.Scan(&gi.ID, &gi.Name, &gi.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, gi)
	}
	return out, rows.Err()
}
