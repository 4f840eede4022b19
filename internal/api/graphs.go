package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/AaronLay10/StoryEngine/internal/story"
)

// GraphStored is the reply to POST /graphs.
type GraphStored struct {
	GraphID  string   `json:"graph_id"`
	Name     string   `json:"name"`
	Problems []string `json:"problems"`
}

// ValidationReport is the reply to GET /graphs/{id}/validate.
type ValidationReport struct {
	GraphID  string   `json:"graph_id"`
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

func wantsYAML(r *http.Request) bool {
	return r.URL.Query().Get("format") == "yaml" ||
		strings.Contains(r.Header.Get("Content-Type"), "yaml")
}

func (s *Server) listGraphsHandler(w http.ResponseWriter, r *http.Request) {
	infos, err := s.cfg.Graphs.ListGraphs(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, infos)
}

// putGraphHandler stores a graph document. Drafts with authoring problems
// are stored too; the problems are returned to the author.
func (s *Server) putGraphHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}

	var g *story.Graph
	if wantsYAML(r) {
		g, err = story.FromYAML(body, s.cfg.Registry, s.logger)
	} else {
		g, err = story.FromText(body, s.cfg.Registry, s.logger)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.cfg.Graphs.PutGraph(r.Context(), g); err != nil {
		writeErr(w, err)
		return
	}

	problems := nonNil(g.Validate())
	s.emit("info", "graph.stored", g.Name, map[string]any{
		"graph_id": g.ID,
		"name":     g.Name,
		"problems": len(problems),
	})
	writeOK(w, GraphStored{GraphID: g.ID, Name: g.Name, Problems: problems})
}

func (s *Server) getGraphHandler(w http.ResponseWriter, r *http.Request) {
	g, err := s.cfg.Graphs.GetGraph(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}

	if wantsYAML(r) {
		doc, err := story.ToYAML(g)
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(doc)
		return
	}

	doc, err := story.ToText(g)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, json.RawMessage(doc))
}

func (s *Server) validateGraphHandler(w http.ResponseWriter, r *http.Request) {
	g, err := s.cfg.Graphs.GetGraph(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	problems := nonNil(g.Validate())
	writeOK(w, ValidationReport{GraphID: g.ID, Valid: len(problems) == 0, Problems: problems})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
