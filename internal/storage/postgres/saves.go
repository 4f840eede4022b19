package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AaronLay10/StoryEngine/internal/orchestrator"
)

var _ orchestrator.SaveStore = (*Client)(nil)

// Save upserts the save state of s.InstanceID.
func (c *Client) Save(ctx context.Context, s orchestrator.SaveState) error {
	vars, err := json.Marshal(s.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}
	query := `
		INSERT INTO save_states (instance_id, graph_id, current_node_id, variables, saved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instance_id) DO UPDATE
		SET graph_id = EXCLUDED.graph_id,
		    current_node_id = EXCLUDED.current_node_id,
		    variables = EXCLUDED.variables,
		    saved_at = EXCLUDED.saved_at
	`
	_, err = c.db.ExecContext(ctx, query, s.InstanceID, s.GraphID, s.CurrentNodeID, vars, s.SavedAt)
	return err
}

// Load returns the save state of instanceID.
func (c *Client) Load(ctx context.Context, instanceID string) (orchestrator.SaveState, error) {
	s := orchestrator.SaveState{InstanceID: instanceID}
	var vars []byte
	err := c.db.QueryRowContext(ctx, `
		SELECT graph_id, current_node_id, variables, saved_at
		FROM save_states
		WHERE instance_id = $1
	`, instanceID).Scan(&s.GraphID, &s.CurrentNodeID, &vars, &s.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return orchestrator.SaveState{}, fmt.Errorf("%w: %s", orchestrator.ErrNoSaveState, instanceID)
	}
	if err != nil {
		return orchestrator.SaveState{}, err
	}
	if err := json.Unmarshal(vars, &s.Variables); err != nil {
		return orchestrator.SaveState{}, fmt.Errorf("failed to unmarshal variables: %w", err)
	}
	return s, nil
}
