package api

import (
	"net/http"

	"github.com/AaronLay10/StoryEngine/internal/orchestrator"
)

// LaunchRequest is the body of POST /instances.
type LaunchRequest struct {
	InstanceID  string `json:"instance_id"`
	GraphID     string `json:"graph_id"`
	StartNodeID string `json:"start_node_id"`
}

// RestoreRequest is the optional body of POST /instances/{id}/restore. An
// empty GraphID restores onto the graph the instance was saved from.
type RestoreRequest struct {
	GraphID string `json:"graph_id"`
}

func (s *Server) listInstancesHandler(w http.ResponseWriter, r *http.Request) {
	ids := s.cfg.Engine.IDs()
	out := make([]orchestrator.Status, 0, len(ids))
	for _, id := range ids {
		st, err := s.cfg.Engine.Get(r.Context(), id)
		if err != nil {
			// Removed since IDs was taken.
			continue
		}
		out = append(out, st)
	}
	writeOK(w, out)
}

func (s *Server) launchHandler(w http.ResponseWriter, r *http.Request) {
	var req LaunchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.GraphID == "" {
		writeError(w, http.StatusBadRequest, "graph_id required")
		return
	}

	g, err := s.cfg.Graphs.GetGraph(r.Context(), req.GraphID)
	if err != nil {
		writeErr(w, err)
		return
	}
	id, err := s.cfg.Engine.Launch(r.Context(), req.InstanceID, g, req.StartNodeID)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.writeStatus(w, r, id)
}

func (s *Server) instanceHandler(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, r, r.PathValue("id"))
}

func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request, id string) {
	st, err := s.cfg.Engine.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, st)
}

func (s *Server) removeHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Engine.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil)
}

// commandHandler runs /instances/{id}/{action}. The body carries the
// action's arguments (index, port_id, node_id, signal).
func (s *Server) commandHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		orchestrator.CommandRequest
		PortID string `json:"port_id"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := body.CommandRequest
	req.Action = r.PathValue("action")
	if req.Port == "" {
		req.Port = body.PortID
	}

	fn, err := req.Func()
	if err != nil {
		writeErr(w, err)
		return
	}
	id := r.PathValue("id")
	if err := s.cfg.Engine.Command(r.Context(), id, req.Action, req.Fields(), fn); err != nil {
		writeErr(w, err)
		return
	}
	s.writeStatus(w, r, id)
}

func (s *Server) saveHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, err := s.cfg.Engine.Save(r.Context(), id)
	if err != nil {
		s.emit("warn", "operator.save", "save", map[string]any{"instance_id": id, "ok": false, "error": err.Error()})
		writeErr(w, err)
		return
	}
	s.emit("info", "operator.save", "save", map[string]any{
		"instance_id": id,
		"ok":          true,
		"node_id":     state.CurrentNodeID,
	})
	writeOK(w, state)
}

func (s *Server) restoreHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req RestoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.restore(r, id, req.GraphID)
	fields := map[string]any{"instance_id": id, "ok": err == nil}
	if err != nil {
		fields["error"] = err.Error()
		s.emit("warn", "operator.restore", "restore", fields)
		writeErr(w, err)
		return
	}
	s.emit("info", "operator.restore", "restore", fields)
	s.writeStatus(w, r, id)
}

func (s *Server) restore(r *http.Request, id, graphID string) error {
	ctx := r.Context()
	if graphID == "" {
		var err error
		if graphID, err = s.cfg.Engine.SavedGraphID(ctx, id); err != nil {
			return err
		}
	}
	g, err := s.cfg.Graphs.GetGraph(ctx, graphID)
	if err != nil {
		return err
	}
	return s.cfg.Engine.Restore(ctx, id, g)
}
