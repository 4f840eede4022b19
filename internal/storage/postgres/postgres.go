package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/StoryEngine/internal/story"
)

// ErrNotFound is returned when a graph or save state does not exist.
var ErrNotFound = errors.New("not found")

// Config holds connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// ConnString renders cfg as a lib/pq key=value connection string. Empty
// settings are omitted.
func (cfg Config) ConnString() string {
	params := map[string]string{
		"host":     cfg.Host,
		"user":     cfg.User,
		"password": cfg.Password,
		"dbname":   cfg.Database,
		"sslmode":  cfg.SSLMode,
	}
	if cfg.Port > 0 {
		params["port"] = fmt.Sprint(cfg.Port)
	}

	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+quoteParam(params[k]))
	}
	return strings.Join(parts, " ")
}

func quoteParam(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Client stores events, graph documents and save states.
type Client struct {
	db       *sql.DB
	registry *story.Registry
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRegistry sets the node registry used to decode stored graphs.
func WithRegistry(r *story.Registry) Option {
	return func(c *Client) { c.registry = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Open connects, pings and creates the schema.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	db, err := sql.Open("postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	c := NewWithDB(db, opts...)
	if err := c.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return c, nil
}

// NewWithDB wraps an open database. The schema is not created.
func NewWithDB(db *sql.DB, opts ...Option) *Client {
	c := &Client{
		db:       db,
		registry: story.DefaultRegistry(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

const schema = `
	CREATE TABLE IF NOT EXISTS events (
		event_id    BIGSERIAL PRIMARY KEY,
		ts          TIMESTAMPTZ NOT NULL,
		level       TEXT NOT NULL,
		event       TEXT NOT NULL,
		msg         TEXT,
		fields      JSONB,
		instance_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
	CREATE INDEX IF NOT EXISTS idx_events_instance_id ON events(instance_id);

	CREATE TABLE IF NOT EXISTS graphs (
		graph_id   TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		document   JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS save_states (
		instance_id     TEXT PRIMARY KEY,
		graph_id        TEXT NOT NULL,
		current_node_id TEXT NOT NULL,
		variables       JSONB NOT NULL,
		saved_at        TIMESTAMPTZ NOT NULL
	);
`

func (c *Client) createTables(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
