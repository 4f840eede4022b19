package story

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nodeSummary struct {
	ID, Name, Description string
	Kind                  Kind
	Position              Position
	Data                  map[string]any
}

type graphSummary struct {
	ID, Name, Description, Entry string
	Nodes                        []nodeSummary
	Connections                  []Connection
	Variables                    []VariableDecl
}

func summarize(g *Graph) graphSummary {
	s := graphSummary{ID: g.ID, Name: g.Name, Description: g.Description, Entry: g.EntryNodeID}
	for _, n := range g.Nodes() {
		b := n.Base()
		s.Nodes = append(s.Nodes, nodeSummary{
			ID: b.ID, Name: b.Name, Description: b.Description,
			Kind: n.Kind(), Position: b.Position, Data: n.SerializationData(),
		})
	}
	for _, c := range g.Connections() {
		s.Connections = append(s.Connections, *c)
	}
	sort.Slice(s.Connections, func(i, j int) bool { return s.Connections[i].ID < s.Connections[j].ID })
	s.Variables = g.Variables()
	return s
}

func TestTextRoundTrip(t *testing.T) {
	g := sampleGraph(t)
	g.EntryNodeID = g.GetStartNode().Base().ID

	data, err := ToText(g)
	require.NoError(t, err)

	back, err := FromText(data, nil, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(summarize(g), summarize(back)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, g.View.OffsetY, back.View.OffsetY, 1e-9)
	assert.InDelta(t, g.View.Scale, back.View.Scale, 1e-9)
}

func TestYAMLRoundTrip(t *testing.T) {
	g := sampleGraph(t)

	data, err := ToYAML(g)
	require.NoError(t, err)

	back, err := FromYAML(data, nil, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(summarize(g), summarize(back)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDocumentShape(t *testing.T) {
	g := NewGraph("shape", nil)
	newTestNode[*StartNode](t, g, KindStart, nil)
	data, err := ToText(g)
	require.NoError(t, err)

	for _, key := range []string{`"graphId"`, `"graphName"`, `"nodes"`, `"connections"`, `"variables"`,
		`"viewState"`, `"nodeId"`, `"nodeType": "start"`, `"position"`} {
		assert.Contains(t, string(data), key)
	}
	assert.NotContains(t, string(data), "entryNodeId")
}

func TestFromTextSkipsBadElements(t *testing.T) {
	doc := `{
	  "graphId": "g1",
	  "graphName": "drafty",
	  "nodes": [
	    {"nodeId": "s", "nodeType": "start"},
	    {"nodeType": "end", "nodeName": "anonymous"},
	    {"nodeId": "x", "nodeType": "hologram"},
	    {"nodeId": "s", "nodeType": "end"},
	    "not an object"
	  ],
	  "connections": [
	    {"connectionId": "c1", "outputNodeId": "s", "outputPortId": "output", "inputNodeId": "missing", "inputPortId": "input"},
	    {"connectionId": "c2", "outputNodeId": "s", "outputPortId": "bogus", "inputNodeId": "s", "inputPortId": "input"},
	    42
	  ],
	  "variables": [
	    {"name": "hp", "type": "float", "defaultValue": 7},
	    {"name": "pos", "type": "vector3", "defaultValue": "0,0,0"},
	    {"name": "hp", "type": "int", "defaultValue": 1},
	    {"name": "lucky", "type": "int", "defaultValue": "seven"}
	  ]
	}`
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	g, err := FromText([]byte(doc), nil, logger)
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)

	nodes := g.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, KindStart, nodes[0].Kind())
	assert.Equal(t, KindEnd, nodes[1].Kind())
	assert.NotEmpty(t, nodes[1].Base().ID)
	assert.Empty(t, g.Connections())

	vars := g.Variables()
	require.Len(t, vars, 2)
	assert.True(t, FloatValue(7).Equal(vars[0].Default))
	assert.Equal(t, "lucky", vars[1].Name)
	assert.True(t, IntValue(0).Equal(vars[1].Default))

	assert.Contains(t, logs.String(), "hologram")
	assert.Contains(t, logs.String(), "skipping connection")
}

func TestFromTextRejectsGarbage(t *testing.T) {
	_, err := FromText([]byte("{nodes: ]"), nil, nil)
	require.ErrorIs(t, err, ErrParse)

	_, err = FromYAML([]byte("nodes: [unterminated"), nil, nil)
	require.ErrorIs(t, err, ErrParse)
}

type explodingNode struct{ StartNode }

func (n *explodingNode) LoadSerializationData(map[string]any) { panic("corrupt payload") }

func TestFromTextRecoversPanics(t *testing.T) {
	reg := DefaultRegistry()
	reg.Register(KindStart, func() Node { return &explodingNode{} })

	_, err := FromText([]byte(`{"nodes":[{"nodeId":"s","nodeType":"start"}]}`), reg, nil)
	require.ErrorIs(t, err, ErrParse)
}

func TestLoadAndWriteFile(t *testing.T) {
	dir := t.TempDir()
	g := sampleGraph(t)

	for _, name := range []string{"story.json", "story.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteFile(path, g))

		back, err := LoadFile(path, nil, nil)
		require.NoError(t, err, name)
		if diff := cmp.Diff(summarize(g), summarize(back)); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}

	_, err := LoadFile(filepath.Join(dir, "absent.json"), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
