package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/StoryEngine/internal/events"
	"github.com/AaronLay10/StoryEngine/internal/orchestrator"
	"github.com/AaronLay10/StoryEngine/internal/story"
)

type testEnv struct {
	srv     *Server
	manager *orchestrator.Manager
	graphs  *orchestrator.MemoryGraphStore
	bus     *events.Bus
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	bus := events.NewBus()
	m := orchestrator.NewManager(orchestrator.ManagerConfig{Bus: bus})
	t.Cleanup(m.Close)
	graphs := orchestrator.NewMemoryGraphStore(nil)

	cfg.Engine = m
	cfg.Graphs = graphs
	cfg.Bus = bus
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = http.NotFoundHandler()
	}
	return &testEnv{srv: NewServer(cfg), manager: m, graphs: graphs, bus: bus}
}

// tavernGraph is start -> greeting (waits for input) -> choice -> left/right ends.
func tavernGraph(t *testing.T) *story.Graph {
	t.Helper()
	g := story.NewGraph("tavern", nil)
	require.NoError(t, g.AddVariable(story.VariableDecl{Name: "gold", Type: story.TypeInt, Default: story.IntValue(3)}))

	create := func(kind story.Kind) story.Node {
		n, err := g.CreateNode(kind, story.Position{})
		require.NoError(t, err)
		return n
	}
	link := func(out story.Node, port string, in story.Node) {
		_, err := g.CreateConnection(out.Base().ID, port, in.Base().ID, story.PortInput)
		require.NoError(t, err)
	}

	start := create(story.KindStart)
	greet := create(story.KindDialogue).(*story.DialogueNode)
	greet.Speaker = "Barkeep"
	greet.Text = "You have {gold} gold."
	choice := create(story.KindChoice).(*story.ChoiceNode)
	choice.Prompt = "Order?"
	choice.Choices = []story.Choice{{ID: "ale", Text: "Ale"}, {ID: "wine", Text: "Wine"}}
	choice.SetupPorts()
	left := create(story.KindEnd).(*story.EndNode)
	left.Outcome = "ale"
	right := create(story.KindEnd).(*story.EndNode)
	right.Outcome = "wine"

	link(start, story.PortOutput, greet)
	link(greet, story.PortOutput, choice)
	link(choice, story.ChoicePortID(0), left)
	link(choice, story.ChoicePortID(1), right)
	return g
}

func (e *testEnv) storeGraph(t *testing.T, g *story.Graph) {
	t.Helper()
	require.NoError(t, e.graphs.PutGraph(context.Background(), g))
}

type envelope[T any] struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Data  T      `json:"data"`
}

type requestOption func(*http.Request)

func asUser(user, pass string) requestOption {
	return func(r *http.Request) { r.SetBasicAuth(user, pass) }
}

// send performs a request against h and returns the recorder.
func send(t *testing.T, h http.Handler, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// call performs a request and decodes the envelope.
func call[T any](t *testing.T, h http.Handler, method, path string, body any, opts ...requestOption) (int, envelope[T]) {
	t.Helper()
	w := send(t, h, method, path, body, opts...)
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w.Code, env
}

func eventNames(bus *events.Bus) []string {
	var names []string
	for _, e := range bus.Snapshot() {
		names = append(names, e.Name)
	}
	return names
}
