package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/StoryEngine/internal/events"
	"github.com/AaronLay10/StoryEngine/internal/orchestrator"
	"github.com/AaronLay10/StoryEngine/internal/story"
	"github.com/AaronLay10/StoryEngine/internal/version"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, Config{Service: "lighthouse"})

	w := send(t, env.srv.Handler(), "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "lighthouse", resp.Service)
	assert.Equal(t, version.Version, resp.Version)
}

func TestReadyEndpoint(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("all ready", func(t *testing.T) {
		env := newTestEnv(t, Config{Checks: []Check{{Name: "engine", Probe: ok}, {Name: "postgres", Probe: ok}}})
		w := send(t, env.srv.Handler(), "GET", "/ready", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Ready)
		assert.Equal(t, "ok", resp.Checks["postgres"].Status)
	})

	t.Run("optional check degraded", func(t *testing.T) {
		env := newTestEnv(t, Config{Checks: []Check{{Name: "engine", Probe: ok}, {Name: "mqtt", Optional: true, Probe: down}}})
		w := send(t, env.srv.Handler(), "GET", "/ready", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Ready)
		assert.Equal(t, CheckResult{Status: "degraded", Error: "connection refused"}, resp.Checks["mqtt"])
	})

	t.Run("required check fails", func(t *testing.T) {
		env := newTestEnv(t, Config{Checks: []Check{{Name: "postgres", Probe: down}}})
		w := send(t, env.srv.Handler(), "GET", "/ready", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Ready)
		assert.Equal(t, "not_ready", resp.Checks["postgres"].Status)
	})
}

func TestGraphEndpoints(t *testing.T) {
	env := newTestEnv(t, Config{})
	h := env.srv.Handler()
	g := tavernGraph(t)
	doc, err := story.ToText(g)
	require.NoError(t, err)

	code, stored := call[GraphStored](t, h, "POST", "/graphs", doc)
	require.Equal(t, http.StatusOK, code, stored.Error)
	assert.True(t, stored.OK)
	assert.Equal(t, g.ID, stored.Data.GraphID)
	assert.Equal(t, "tavern", stored.Data.Name)
	assert.Empty(t, stored.Data.Problems)
	assert.Contains(t, eventNames(env.bus), "graph.stored")

	code, list := call[[]orchestrator.GraphInfo](t, h, "GET", "/graphs", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list.Data, 1)
	assert.Equal(t, g.ID, list.Data[0].ID)

	code, got := call[map[string]any](t, h, "GET", "/graphs/"+g.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, g.ID, got.Data["graphId"])
	assert.Len(t, got.Data["nodes"], 5)

	w := send(t, h, "GET", "/graphs/"+g.ID+"?format=yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	fromYAML, err := story.FromYAML(w.Body.Bytes(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, g.ID, fromYAML.ID)

	code, report := call[ValidationReport](t, h, "GET", "/graphs/"+g.ID+"/validate", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, report.Data.Valid)
	assert.Equal(t, []string{}, report.Data.Problems)

	code, missing := call[any](t, h, "GET", "/graphs/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, missing.OK)

	code, bad := call[any](t, h, "POST", "/graphs", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, bad.Error)
}

func TestDraftGraphReportsProblems(t *testing.T) {
	env := newTestEnv(t, Config{})
	draft := story.NewGraph("draft", nil)
	_, err := draft.CreateNode(story.KindDialogue, story.Position{})
	require.NoError(t, err)
	doc, err := story.ToText(draft)
	require.NoError(t, err)

	code, stored := call[GraphStored](t, env.srv.Handler(), "POST", "/graphs", doc)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, stored.Data.Problems, "graph has no start node")

	code, report := call[ValidationReport](t, env.srv.Handler(), "GET", "/graphs/"+draft.ID+"/validate", nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, report.Data.Valid)
}

func TestInstanceLifecycle(t *testing.T) {
	env := newTestEnv(t, Config{})
	h := env.srv.Handler()
	g := tavernGraph(t)
	env.storeGraph(t, g)

	code, launched := call[orchestrator.Status](t, h, "POST", "/instances",
		LaunchRequest{InstanceID: "room-1", GraphID: g.ID})
	require.Equal(t, http.StatusOK, code, launched.Error)
	assert.Equal(t, "room-1", launched.Data.InstanceID)
	assert.Equal(t, orchestrator.StateWaitingForInput, launched.Data.State)
	require.NotNil(t, launched.Data.Dialogue)
	assert.Equal(t, "You have 3 gold.", launched.Data.Dialogue.Text)
	assert.Equal(t, "Barkeep", launched.Data.Dialogue.Speaker)

	code, afterInput := call[orchestrator.Status](t, h, "POST", "/instances/room-1/input", nil)
	require.Equal(t, http.StatusOK, code, afterInput.Error)
	assert.Equal(t, story.KindChoice, afterInput.Data.CurrentNodeKind)
	assert.Equal(t, []orchestrator.ChoiceView{{Index: 0, Text: "Ale"}, {Index: 1, Text: "Wine"}}, afterInput.Data.Choices)

	code, done := call[orchestrator.Status](t, h, "POST", "/instances/room-1/choice", map[string]any{"index": 1})
	require.Equal(t, http.StatusOK, code, done.Error)
	assert.Equal(t, orchestrator.StateComplete, done.Data.State)
	assert.Equal(t, "wine", done.Data.Outcome)

	code, list := call[[]orchestrator.Status](t, h, "GET", "/instances", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list.Data, 1)

	names := eventNames(env.bus)
	assert.Contains(t, names, "instance.launched")
	assert.Contains(t, names, "operator.input")
	assert.Contains(t, names, "operator.choice")
	assert.Contains(t, names, "story.completed")

	code, _ = call[any](t, h, "DELETE", "/instances/room-1", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = call[any](t, h, "GET", "/instances/room-1", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestInstanceErrors(t *testing.T) {
	env := newTestEnv(t, Config{})
	h := env.srv.Handler()
	g := tavernGraph(t)
	env.storeGraph(t, g)

	tests := []struct {
		desc   string
		method string
		path   string
		body   any
		status int
	}{
		{"launch without graph", "POST", "/instances", LaunchRequest{InstanceID: "x"}, http.StatusBadRequest},
		{"launch unknown graph", "POST", "/instances", LaunchRequest{GraphID: "nope"}, http.StatusNotFound},
		{"launch unknown start node", "POST", "/instances", LaunchRequest{GraphID: g.ID, StartNodeID: "nope"}, http.StatusUnprocessableEntity},
		{"command unknown instance", "POST", "/instances/ghost/pause", nil, http.StatusNotFound},
		{"unknown action", "POST", "/instances/room-2/dance", nil, http.StatusBadRequest},
		{"choice without index", "POST", "/instances/room-2/choice", nil, http.StatusBadRequest},
		{"choice while on dialogue", "POST", "/instances/room-2/choice", map[string]any{"index": 0}, http.StatusConflict},
		{"jump to missing node", "POST", "/instances/room-2/jump", map[string]any{"node_id": "nope"}, http.StatusNotFound},
		{"restore without save", "POST", "/instances/room-2/restore", nil, http.StatusNotFound},
		{"malformed body", "POST", "/instances/room-2/choice", "{", http.StatusBadRequest},
	}

	_, err := env.manager.Launch(context.Background(), "room-2", g, "")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			code, resp := call[any](t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code, resp.Error)
			assert.False(t, resp.OK)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestPortCommandAcceptsPortID(t *testing.T) {
	env := newTestEnv(t, Config{})
	g := story.NewGraph("gate", nil)
	start, err := g.CreateNode(story.KindStart, story.Position{})
	require.NoError(t, err)
	wait, err := g.CreateNode(story.KindWait, story.Position{})
	require.NoError(t, err)
	wait.(*story.WaitNode).WaitType = story.WaitInput
	wait.SetupPorts()
	end, err := g.CreateNode(story.KindEnd, story.Position{})
	require.NoError(t, err)
	_, err = g.CreateConnection(start.Base().ID, story.PortOutput, wait.Base().ID, story.PortInput)
	require.NoError(t, err)
	_, err = g.CreateConnection(wait.Base().ID, story.PortOutput, end.Base().ID, story.PortInput)
	require.NoError(t, err)
	env.storeGraph(t, g)

	h := env.srv.Handler()
	code, resp := call[orchestrator.Status](t, h, "POST", "/instances", LaunchRequest{InstanceID: "gate", GraphID: g.ID})
	require.Equal(t, http.StatusOK, code, resp.Error)
	require.Equal(t, orchestrator.StateWaitingForInput, resp.Data.State)

	code, resp = call[orchestrator.Status](t, h, "POST", "/instances/gate/port", map[string]any{"port_id": story.PortOutput})
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, orchestrator.StateComplete, resp.Data.State)
}

func TestSaveAndRestore(t *testing.T) {
	env := newTestEnv(t, Config{})
	h := env.srv.Handler()
	g := tavernGraph(t)
	env.storeGraph(t, g)

	code, _ := call[orchestrator.Status](t, h, "POST", "/instances", LaunchRequest{InstanceID: "room-1", GraphID: g.ID})
	require.Equal(t, http.StatusOK, code)
	code, _ = call[orchestrator.Status](t, h, "POST", "/instances/room-1/input", nil)
	require.Equal(t, http.StatusOK, code)

	code, saved := call[orchestrator.SaveState](t, h, "POST", "/instances/room-1/save", nil)
	require.Equal(t, http.StatusOK, code, saved.Error)
	assert.Equal(t, g.ID, saved.Data.GraphID)
	assert.Equal(t, orchestrator.SavedValue{Type: "int", Value: "3"}, saved.Data.Variables["gold"])

	code, _ = call[any](t, h, "DELETE", "/instances/room-1", nil)
	require.Equal(t, http.StatusOK, code)

	code, restored := call[orchestrator.Status](t, h, "POST", "/instances/room-1/restore", nil)
	require.Equal(t, http.StatusOK, code, restored.Error)
	assert.Equal(t, orchestrator.StateWaitingForInput, restored.Data.State)
	assert.Equal(t, saved.Data.CurrentNodeID, restored.Data.CurrentNodeID)
	assert.Len(t, restored.Data.Choices, 2)

	names := eventNames(env.bus)
	assert.Contains(t, names, "operator.save")
	assert.Contains(t, names, "operator.restore")
}

func TestEventsEndpointFilters(t *testing.T) {
	env := newTestEnv(t, Config{})
	for _, id := range []string{"a", "b", "a", "a"} {
		_, err := env.bus.Emit("info", "instance.launched", "", map[string]any{"instance_id": id})
		require.NoError(t, err)
	}
	h := env.srv.Handler()

	var all []events.Event
	w := send(t, h, "GET", "/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 4)

	var filtered []events.Event
	w = send(t, h, "GET", "/events?instance_id=a&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filtered))
	require.Len(t, filtered, 2)
	for _, e := range filtered {
		assert.Equal(t, "a", e.InstanceID())
	}

	w = send(t, h, "GET", "/events?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
