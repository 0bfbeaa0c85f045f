package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// CanvasDocument is the editor's saved canvas: React-Flow nodes and edges with
// tool metadata under data.
type CanvasDocument struct {
	Nodes []CanvasNode `json:"nodes"`
	Edges []CanvasEdge `json:"edges"`
}

// CanvasNode is one React-Flow node.
type CanvasNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type,omitempty"`
	Data     CanvasNodeData `json:"data"`
	Position Position       `json:"position"`
}

// CanvasNodeData carries the tool label and user settings.
type CanvasNodeData struct {
	Label string `json:"label"`
	// Parameters is either a JSON object or free text the user typed.
	Parameters    json.RawMessage `json:"parameters,omitempty"`
	DockerVersion string          `json:"dockerVersion,omitempty"`
	IsDummy       bool            `json:"isDummy,omitempty"`
}

// CanvasEdge is one React-Flow edge.
type CanvasEdge struct {
	ID     string         `json:"id,omitempty"`
	Source string         `json:"source"`
	Target string         `json:"target"`
	Data   CanvasEdgeData `json:"data"`
}

// CanvasEdgeData carries the output -> input mappings of an edge.
type CanvasEdgeData struct {
	Mappings []CanvasMapping `json:"mappings,omitempty"`
}

// CanvasMapping is the editor's spelling of Mapping.
type CanvasMapping struct {
	SourceOutput string `json:"sourceOutput"`
	TargetInput  string `json:"targetInput"`
}

// ParseCanvas decodes an editor canvas snapshot into a Graph.
func ParseCanvas(data []byte) (*Graph, error) {
	var doc CanvasDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal canvas: %w", err)
	}
	return doc.Graph(), nil
}

// LoadCanvasFile reads and decodes a canvas JSON file.
func LoadCanvasFile(filename string) (*Graph, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseCanvas(data)
}

// Graph converts the canvas into the compiler's graph model. Edges saved
// without an id get "<source>-<target>-<index>".
func (d *CanvasDocument) Graph() *Graph {
	g := &Graph{
		Nodes: make([]Node, 0, len(d.Nodes)),
		Edges: make([]Edge, 0, len(d.Edges)),
	}
	for _, cn := range d.Nodes {
		n := Node{
			ID:            cn.ID,
			Label:         cn.Data.Label,
			DockerVersion: cn.Data.DockerVersion,
			Position:      cn.Position,
			Placeholder:   cn.Data.IsDummy,
		}
		n.Parameters, n.RawParameters = decodeParameters(cn.Data.Parameters)
		g.Nodes = append(g.Nodes, n)
	}
	for i, ce := range d.Edges {
		e := Edge{
			ID:     ce.ID,
			Source: ce.Source,
			Target: ce.Target,
		}
		if e.ID == "" {
			e.ID = fmt.Sprintf("%s-%s-%d", ce.Source, ce.Target, i)
		}
		for _, m := range ce.Data.Mappings {
			e.Mappings = append(e.Mappings, Mapping(m))
		}
		g.Edges = append(g.Edges, e)
	}
	return g
}

// Canvas converts a graph back into the editor's snapshot shape.
func (g *Graph) Canvas() *CanvasDocument {
	d := &CanvasDocument{
		Nodes: make([]CanvasNode, 0, len(g.Nodes)),
		Edges: make([]CanvasEdge, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		d.Nodes = append(d.Nodes, CanvasNode{
			ID:   n.ID,
			Type: "default",
			Data: CanvasNodeData{
				Label:         n.Label,
				Parameters:    encodeParameters(n.Parameters, n.RawParameters),
				DockerVersion: n.DockerVersion,
				IsDummy:       n.Placeholder,
			},
			Position: n.Position,
		})
	}
	for _, e := range g.Edges {
		ce := CanvasEdge{ID: e.ID, Source: e.Source, Target: e.Target}
		for _, m := range e.Mappings {
			ce.Data.Mappings = append(ce.Data.Mappings, CanvasMapping(m))
		}
		d.Edges = append(d.Edges, ce)
	}
	return d
}

// MarshalCanvas encodes a graph as indented canvas JSON.
func MarshalCanvas(g *Graph) ([]byte, error) {
	return json.MarshalIndent(g.Canvas(), "", "  ")
}

func decodeParameters(raw json.RawMessage) (map[string]any, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ""
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err == nil {
		return params, ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		// the editor stores typed JSON as a string until it parses
		if err := json.Unmarshal([]byte(text), &params); err == nil {
			return params, ""
		}
		return nil, text
	}
	return nil, string(raw)
}

func encodeParameters(params map[string]any, raw string) json.RawMessage {
	if params != nil {
		if data, err := json.Marshal(params); err == nil {
			return data
		}
	}
	if raw != "" {
		data, _ := json.Marshal(raw)
		return data
	}
	return nil
}
