package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCanvas = `{
  "nodes": [
    {"id": "1700000000001", "type": "default", "position": {"x": 10, "y": 20},
     "data": {"label": "bet", "parameters": {"frac": 0.4}, "dockerVersion": "6.0.7", "isDummy": false}},
    {"id": "1700000000002", "position": {"x": 200, "y": 20},
     "data": {"label": "fast", "parameters": "{\"nclass\": 3}"}},
    {"id": "1700000000003", "position": {"x": 0, "y": 0},
     "data": {"label": "Note", "parameters": "", "isDummy": true}},
    {"id": "1700000000004", "position": {"x": 0, "y": 0},
     "data": {"label": "mcflirt", "parameters": "not json"}}
  ],
  "edges": [
    {"id": "e1", "source": "1700000000001", "target": "1700000000002",
     "data": {"mappings": [{"sourceOutput": "brain_extraction", "targetInput": "input"}]}},
    {"source": "1700000000003", "target": "1700000000001"}
  ]
}`

func TestParseCanvas(t *testing.T) {
	g, err := ParseCanvas([]byte(sampleCanvas))
	require.NoError(t, err)

	require.Len(t, g.Nodes, 4)
	bet := g.Nodes[0]
	assert.Equal(t, "bet", bet.Label)
	assert.Equal(t, "6.0.7", bet.DockerVersion)
	assert.Equal(t, map[string]any{"frac": 0.4}, bet.Parameters)
	assert.Equal(t, Position{X: 10, Y: 20}, bet.Position)

	// parameters saved as a JSON string are decoded
	assert.Equal(t, map[string]any{"nclass": float64(3)}, g.Nodes[1].Parameters)
	assert.Equal(t, "latest", g.Nodes[1].Version())

	assert.True(t, g.Nodes[2].Placeholder)
	assert.Nil(t, g.Nodes[2].Parameters)
	assert.Empty(t, g.Nodes[2].RawParameters)

	assert.Nil(t, g.Nodes[3].Parameters)
	assert.Equal(t, "not json", g.Nodes[3].RawParameters)

	require.Len(t, g.Edges, 2)
	assert.Equal(t, []Mapping{{SourceOutput: "brain_extraction", TargetInput: "input"}}, g.Edges[0].Mappings)
	assert.Equal(t, "1700000000003-1700000000001-1", g.Edges[1].ID)
	assert.Empty(t, g.Edges[1].Mappings)

	require.NoError(t, g.Validate())
}

func TestParseCanvas_Invalid(t *testing.T) {
	_, err := ParseCanvas([]byte(`{"nodes": [`))
	assert.Error(t, err)
}

func TestCanvas_RoundTrip(t *testing.T) {
	g, err := ParseCanvas([]byte(sampleCanvas))
	require.NoError(t, err)

	data, err := MarshalCanvas(g)
	require.NoError(t, err)

	again, err := ParseCanvas(data)
	require.NoError(t, err)
	assert.Equal(t, g.Fingerprint(), again.Fingerprint())
	assert.Equal(t, g.Nodes[0].Parameters, again.Nodes[0].Parameters)
	assert.Equal(t, "not json", again.Nodes[3].RawParameters)
	assert.True(t, again.Nodes[2].Placeholder)
	assert.Empty(t, again.Nodes[1].DockerVersion)
}

func TestLoadCanvasFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canvas.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleCanvas), 0o600))

	g, err := LoadCanvasFile(path)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 4)

	_, err = LoadCanvasFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
