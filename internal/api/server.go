package api

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/AaronLay10/StoryEngine/internal/events"
	"github.com/AaronLay10/StoryEngine/internal/observe"
	"github.com/AaronLay10/StoryEngine/internal/orchestrator"
	"github.com/AaronLay10/StoryEngine/internal/story"
	"github.com/AaronLay10/StoryEngine/internal/version"
)

const (
	shutdownTimeout = 5 * time.Second
	maxBodyBytes    = 4 << 20
)

// Engine runs story instances. *orchestrator.Manager implements it.
type Engine interface {
	Launch(ctx context.Context, id string, g *story.Graph, startNodeID string) (string, error)
	Command(ctx context.Context, id, name string, extra map[string]any, fn func(*orchestrator.Runtime) error) error
	Get(ctx context.Context, id string) (orchestrator.Status, error)
	IDs() []string
	Remove(ctx context.Context, id string) error
	Save(ctx context.Context, id string) (orchestrator.SaveState, error)
	Restore(ctx context.Context, id string, g *story.Graph) error
	SavedGraphID(ctx context.Context, id string) (string, error)
}

// Check is a named readiness probe. An optional check that fails reports
// "degraded" without failing /ready.
type Check struct {
	Name     string
	Optional bool
	Probe    func(ctx context.Context) error
}

// Config wires a Server. Engine and Graphs are required.
type Config struct {
	Engine   Engine
	Graphs   orchestrator.GraphStore
	Bus      *events.Bus
	Registry *story.Registry
	Auth     *Auth
	Metrics  *observe.Metrics
	// MetricsHandler serves /metrics. Defaults to observe.Handler().
	MetricsHandler http.Handler
	Checks         []Check
	Service        string
	Logger         *slog.Logger
}

// Server is the HTTP API of the engine.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	handler http.Handler
}

// NewServer builds the API routes.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	if cfg.Service == "" {
		cfg.Service = "storyengine"
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = observe.Handler()
	}
	s := &Server{cfg: cfg, logger: cfg.Logger}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	anyRole := s.cfg.Auth.RequireAnyRole
	admin := s.cfg.Auth.RequireAdmin

	s.handle(mux, "GET /health", s.healthHandler)
	s.handle(mux, "GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", s.cfg.MetricsHandler)

	s.handle(mux, "GET /events", anyRole(s.eventsHandler))
	s.handle(mux, "GET /ws/events", anyRole(s.wsEventsHandler))

	s.handle(mux, "GET /graphs", anyRole(s.listGraphsHandler))
	s.handle(mux, "POST /graphs", admin(s.putGraphHandler))
	s.handle(mux, "GET /graphs/{id}", anyRole(s.getGraphHandler))
	s.handle(mux, "GET /graphs/{id}/validate", anyRole(s.validateGraphHandler))

	s.handle(mux, "GET /instances", anyRole(s.listInstancesHandler))
	s.handle(mux, "POST /instances", anyRole(s.launchHandler))
	s.handle(mux, "GET /instances/{id}", anyRole(s.instanceHandler))
	s.handle(mux, "DELETE /instances/{id}", admin(s.removeHandler))
	s.handle(mux, "POST /instances/{id}/save", anyRole(s.saveHandler))
	s.handle(mux, "POST /instances/{id}/restore", anyRole(s.restoreHandler))
	s.handle(mux, "POST /instances/{id}/{action}", anyRole(s.commandHandler))
	return mux
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. A non-nil tlsCfg serves HTTPS.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tlsCfg *tls.Config) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		if tlsCfg != nil {
			s.logger.Info("api listening", "addr", addr, "scheme", "https")
			errc <- srv.ListenAndServeTLS("", "")
			return
		}
		s.logger.Info("api listening", "addr", addr, "scheme", "http")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.cfg.Bus.CloseAllSubscribers()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}

// Response is the envelope of every JSON API reply.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{OK: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{OK: false, Error: msg})
}

// writeErr maps engine errors to HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrUnknownInstance),
		errors.Is(err, orchestrator.ErrGraphNotFound),
		errors.Is(err, orchestrator.ErrNoSaveState),
		errors.Is(err, story.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrBadCommand),
		errors.Is(err, orchestrator.ErrNoGraph),
		errors.Is(err, story.ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrNotActive),
		errors.Is(err, orchestrator.ErrNotWaitingForInput),
		errors.Is(err, orchestrator.ErrInvalidSelection),
		errors.Is(err, orchestrator.ErrGraphMismatch):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrNoStartNode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orchestrator.ErrManagerClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func (s *Server) emit(level, name, msg string, fields map[string]any) {
	if _, err := s.cfg.Bus.Emit(level, name, msg, fields); err != nil {
		s.logger.Warn("event rejected", "event", name, "err", err)
	}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   s.cfg.Service,
		Version:   version.Version,
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// CheckResult is one entry of a readiness report.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ReadinessResponse struct {
	Ready  bool                   `json:"ready"`
	Checks map[string]CheckResult `json:"checks"`
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	resp := ReadinessResponse{Ready: true, Checks: make(map[string]CheckResult, len(s.cfg.Checks))}
	for _, c := range s.cfg.Checks {
		err := c.Probe(r.Context())
		switch {
		case err == nil:
			resp.Checks[c.Name] = CheckResult{Status: "ok"}
		case c.Optional:
			resp.Checks[c.Name] = CheckResult{Status: "degraded", Error: err.Error()}
		default:
			resp.Checks[c.Name] = CheckResult{Status: "not_ready", Error: err.Error()}
			resp.Ready = false
		}
	}
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// eventsHandler returns buffered events, oldest first. ?instance_id filters
// by instance; ?limit keeps only the newest entries.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	all := s.cfg.Bus.Snapshot()
	out := all
	if id := q.Get("instance_id"); id != "" {
		out = make([]events.Event, 0, len(all))
		for _, e := range all {
			if e.InstanceID() == id {
				out = append(out, e)
			}
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	writeJSON(w, http.StatusOK, out)
}
