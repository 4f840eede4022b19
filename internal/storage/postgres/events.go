package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AaronLay10/StoryEngine/internal/events"
)

var _ events.Appender = (*Client)(nil)

const (
	defaultQueryLimit = 200
	maxQueryLimit     = 10000
)

// EventRow is an event stored in Postgres.
type EventRow struct {
	EventID    int64          `json:"event_id"`
	Timestamp  time.Time      `json:"ts"`
	Level      string         `json:"level"`
	Event      string         `json:"event"`
	Message    *string        `json:"msg,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	InstanceID *string        `json:"instance_id,omitempty"`
}

// Append inserts an event. It satisfies events.Appender.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]any, instanceID string) error {
	var fieldsJSON []byte
	if fields != nil {
		var err error
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, instance_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := c.db.Exec(query, ts, level, event, nullString(msg), fieldsJSON, nullString(instanceID))
	return err
}

// clampLimit bounds a requested row count.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

// QueryEvents returns the latest events, newest first. An empty instanceID
// returns events of every instance.
func (c *Client) QueryEvents(ctx context.Context, instanceID string, limit int) ([]EventRow, error) {
	query := `
		SELECT event_id, ts, level, event, msg, fields, instance_id
		FROM events
		WHERE ($1 = '' OR instance_id = $1)
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, query, instanceID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, instance sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &instance); err != nil {
			return nil, err
		}
		if msg.Valid {
			e.Message = &msg.String
		}
		if instance.Valid {
			e.InstanceID = &instance.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
