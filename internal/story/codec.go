package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrParse is returned when a graph document cannot be read at all.
var ErrParse = errors.New("parse graph document")

type document struct {
	GraphID     string        `json:"graphId" yaml:"graphId"`
	GraphName   string        `json:"graphName" yaml:"graphName"`
	Description string        `json:"description" yaml:"description"`
	EntryNodeID string        `json:"entryNodeId,omitempty" yaml:"entryNodeId,omitempty"`
	Nodes       []nodeDoc     `json:"nodes" yaml:"nodes"`
	Connections []*Connection `json:"connections" yaml:"connections"`
	Variables   []variableDoc `json:"variables" yaml:"variables"`
	ViewState   viewDoc       `json:"viewState" yaml:"viewState"`
}

type nodeDoc struct {
	NodeID          string         `json:"nodeId" yaml:"nodeId"`
	NodeType        string         `json:"nodeType" yaml:"nodeType"`
	NodeName        string         `json:"nodeName" yaml:"nodeName"`
	NodeDescription string         `json:"nodeDescription" yaml:"nodeDescription"`
	Position        Position       `json:"position" yaml:"position"`
	Data            map[string]any `json:"data" yaml:"data"`
}

type variableDoc struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type" yaml:"type"`
	DefaultValue any    `json:"defaultValue" yaml:"defaultValue"`
}

type viewDoc struct {
	Offset Position `json:"offset" yaml:"offset"`
	Scale  float64  `json:"scale" yaml:"scale"`
}

// looseDocument is the read side. Entries stay untyped so one malformed
// element does not fail the whole document.
type looseDocument struct {
	GraphID     string         `json:"graphId" yaml:"graphId"`
	GraphName   string         `json:"graphName" yaml:"graphName"`
	Description string         `json:"description" yaml:"description"`
	EntryNodeID string         `json:"entryNodeId" yaml:"entryNodeId"`
	Nodes       []any          `json:"nodes" yaml:"nodes"`
	Connections []any          `json:"connections" yaml:"connections"`
	Variables   []any          `json:"variables" yaml:"variables"`
	ViewState   map[string]any `json:"viewState" yaml:"viewState"`
}

// ToText encodes g as an indented JSON document.
func ToText(g *Graph) ([]byte, error) {
	return json.MarshalIndent(toDocument(g), "", "  ")
}

// ToYAML encodes g as a YAML document with the same shape as ToText.
func ToYAML(g *Graph) ([]byte, error) {
	return yaml.Marshal(toDocument(g))
}

// FromText decodes a JSON document. Elements that cannot be used (unknown
// node types, invalid connections, bad variable types) are logged and
// skipped; only an unreadable document fails with ErrParse.
func FromText(data []byte, reg *Registry, logger *slog.Logger) (*Graph, error) {
	var doc looseDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return fromDocument(&doc, reg, logger)
}

// FromYAML decodes a YAML document with FromText's tolerance rules.
func FromYAML(data []byte, reg *Registry, logger *slog.Logger) (*Graph, error) {
	var doc looseDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return fromDocument(&doc, reg, logger)
}

// LoadFile reads a graph document from disk. Files ending in .yaml or .yml
// are decoded as YAML, anything else as JSON.
func LoadFile(path string, reg *Registry, logger *slog.Logger) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FromYAML(data, reg, logger)
	default:
		return FromText(data, reg, logger)
	}
}

// WriteFile encodes g to path, choosing the format by extension.
func WriteFile(path string, g *Graph) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = ToYAML(g)
	default:
		data, err = ToText(g)
	}
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func toDocument(g *Graph) *document {
	doc := &document{
		GraphID:     g.ID,
		GraphName:   g.Name,
		Description: g.Description,
		EntryNodeID: g.EntryNodeID,
		Nodes:       make([]nodeDoc, 0, len(g.nodes)),
		Connections: make([]*Connection, 0, len(g.connections)),
		Variables:   make([]variableDoc, 0, len(g.variables)),
		ViewState: viewDoc{
			Offset: Position{X: g.View.OffsetX, Y: g.View.OffsetY},
			Scale:  g.View.Scale,
		},
	}
	for _, n := range g.nodes {
		b := n.Base()
		doc.Nodes = append(doc.Nodes, nodeDoc{
			NodeID:          b.ID,
			NodeType:        string(n.Kind()),
			NodeName:        b.Name,
			NodeDescription: b.Description,
			Position:        b.Position,
			Data:            n.SerializationData(),
		})
	}
	for _, c := range g.connections {
		cc := *c
		doc.Connections = append(doc.Connections, &cc)
	}
	for _, v := range g.variables {
		doc.Variables = append(doc.Variables, variableDoc{
			Name:         v.Name,
			Type:         v.Type.String(),
			DefaultValue: valueToData(v.Default),
		})
	}
	return doc
}

func valueToData(v Value) any {
	switch v.Type() {
	case TypeFloat:
		return v.Float()
	case TypeInt:
		return v.Int()
	case TypeBool:
		return v.Bool()
	default:
		return v.String()
	}
}

func fromDocument(doc *looseDocument, reg *Registry, logger *slog.Logger) (g *Graph, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			g = nil
			err = fmt.Errorf("%w: %v", ErrParse, r)
		}
	}()

	g = NewGraph(doc.GraphName, reg)
	if doc.GraphID != "" {
		g.ID = doc.GraphID
	}
	g.Description = doc.Description
	g.EntryNodeID = doc.EntryNodeID
	if doc.ViewState != nil {
		if off, ok := doc.ViewState["offset"].(map[string]any); ok {
			g.View.OffsetX = getFloat(off, "x", 0)
			g.View.OffsetY = getFloat(off, "y", 0)
		}
		g.View.Scale = getFloat(doc.ViewState, "scale", 1)
	}
	log := logger.With("graph_id", g.ID)

	for i, item := range doc.Nodes {
		m, ok := item.(map[string]any)
		if !ok {
			log.Warn("skipping malformed node entry", "index", i)
			continue
		}
		kind := Kind(getString(m, "nodeType"))
		n, nerr := g.registry.New(kind)
		if nerr != nil {
			log.Warn("skipping node", "index", i, "node_type", kind, "error", nerr)
			continue
		}
		b := n.Base()
		b.ID = getString(m, "nodeId")
		if b.ID == "" {
			b.ID = uuid.NewString()
			log.Warn("node has no id, generated one", "index", i, "node_id", b.ID)
		}
		b.Name = getString(m, "nodeName")
		b.Description = getString(m, "nodeDescription")
		if pos, ok := m["position"].(map[string]any); ok {
			b.Position = Position{X: getFloat(pos, "x", 0), Y: getFloat(pos, "y", 0)}
		}
		data, _ := m["data"].(map[string]any)
		if data == nil {
			data = map[string]any{}
		}
		n.LoadSerializationData(data)
		n.SetupPorts()
		if aerr := g.AddNode(n); aerr != nil {
			log.Warn("skipping node", "index", i, "node_id", b.ID, "error", aerr)
		}
	}

	seen := make(map[string]bool)
	for i, item := range doc.Connections {
		m, ok := item.(map[string]any)
		if !ok {
			log.Warn("skipping malformed connection entry", "index", i)
			continue
		}
		id := getString(m, "connectionId")
		if id != "" && seen[id] {
			log.Warn("skipping duplicate connection", "connection_id", id)
			continue
		}
		c, cerr := g.connect(id,
			getString(m, "outputNodeId"), getString(m, "outputPortId"),
			getString(m, "inputNodeId"), getString(m, "inputPortId"))
		if cerr != nil {
			log.Warn("skipping connection", "index", i, "connection_id", id, "error", cerr)
			continue
		}
		seen[c.ID] = true
	}

	for i, item := range doc.Variables {
		m, ok := item.(map[string]any)
		if !ok {
			log.Warn("skipping malformed variable entry", "index", i)
			continue
		}
		name := getString(m, "name")
		t, terr := ParseVarType(getString(m, "type"))
		if terr != nil {
			log.Warn("skipping variable", "name", name, "error", terr)
			continue
		}
		var def Value
		if raw, present := m["defaultValue"]; present && raw != nil {
			v, perr := ParseValue(t, getString(m, "defaultValue"))
			if perr != nil {
				log.Warn("variable default unreadable, using zero value", "name", name, "error", perr)
			}
			def = v
		}
		if verr := g.AddVariable(VariableDecl{Name: name, Type: t, Default: def}); verr != nil {
			log.Warn("skipping variable", "name", name, "error", verr)
		}
	}

	return g, nil
}
