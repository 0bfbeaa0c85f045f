package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// DefaultDockerVersion is the tag used when a node does not pin one.
const DefaultDockerVersion = "latest"

// Graph editing errors.
var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrDuplicateNode    = errors.New("duplicate node id")
	ErrEdgeNotFound     = errors.New("edge not found")
	ErrNoMappings       = errors.New("edge requires at least one mapping")
	ErrSelfLoop         = errors.New("edge cannot connect a node to itself")
	ErrDuplicateMapping = errors.New("target input mapped more than once")
)

// Position is a node's canvas coordinate. It has no effect on compilation.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one tool instance on the canvas.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// Parameters holds user-entered optional parameter values.
	Parameters map[string]any `json:"parameters,omitempty"`
	// RawParameters keeps parameter text that was not valid JSON.
	RawParameters string   `json:"raw_parameters,omitempty"`
	DockerVersion string   `json:"docker_version,omitempty"`
	Position      Position `json:"position"`
	// Placeholder nodes are visual only and never compiled.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Version returns the pinned Docker tag or "latest".
func (n Node) Version() string {
	if n.DockerVersion == "" {
		return DefaultDockerVersion
	}
	return n.DockerVersion
}

// Mapping routes one upstream output to one downstream input.
type Mapping struct {
	SourceOutput string `json:"source_output"`
	TargetInput  string `json:"target_input"`
}

// Edge is a data-flow connection between two nodes.
type Edge struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	Target   string    `json:"target"`
	Mappings []Mapping `json:"mappings,omitempty"`
}

// MappingFor returns the mapping that feeds the named input.
func (e Edge) MappingFor(input string) (Mapping, bool) {
	for _, m := range e.Mappings {
		if m.TargetInput == input {
			return m, true
		}
	}
	return Mapping{}, false
}

// Graph is a snapshot of the canvas. Slice order is insertion order and is
// significant: it breaks ties in the topological sort.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	if i := g.nodeIndex(id); i >= 0 {
		return g.Nodes[i], true
	}
	return Node{}, false
}

func (g *Graph) nodeIndex(id string) int {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (g *Graph) edgeIndex(id string) int {
	for i := range g.Edges {
		if g.Edges[i].ID == id {
			return i
		}
	}
	return -1
}

// AddNode appends a node. An empty ID is replaced with a fresh UUID.
func (g *Graph) AddNode(n Node) (string, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if g.nodeIndex(n.ID) >= 0 {
		return "", fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	g.Nodes = append(g.Nodes, n)
	return n.ID, nil
}

// UpdateParameters replaces a node's parameters. An empty version keeps the
// current Docker tag.
func (g *Graph) UpdateParameters(id string, params map[string]any, dockerVersion string) error {
	i := g.nodeIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	g.Nodes[i].Parameters = params
	g.Nodes[i].RawParameters = ""
	if dockerVersion != "" {
		g.Nodes[i].DockerVersion = dockerVersion
	}
	return nil
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id string) error {
	i := g.nodeIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	g.Nodes = append(g.Nodes[:i], g.Nodes[i+1:]...)

	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	g.Edges = kept
	return nil
}

// Connect adds an edge carrying at least one mapping. Each target input may be
// mapped once per edge.
func (g *Graph) Connect(source, target string, mappings []Mapping) (Edge, error) {
	if g.nodeIndex(source) < 0 {
		return Edge{}, fmt.Errorf("%w: %s", ErrNodeNotFound, source)
	}
	if g.nodeIndex(target) < 0 {
		return Edge{}, fmt.Errorf("%w: %s", ErrNodeNotFound, target)
	}
	if source == target {
		return Edge{}, ErrSelfLoop
	}
	if len(mappings) == 0 {
		return Edge{}, ErrNoMappings
	}
	if err := checkMappings(mappings); err != nil {
		return Edge{}, err
	}

	e := Edge{
		ID:       uuid.NewString(),
		Source:   source,
		Target:   target,
		Mappings: append([]Mapping(nil), mappings...),
	}
	g.Edges = append(g.Edges, e)
	return e, nil
}

// SetMappings replaces the mappings of an existing edge.
func (g *Graph) SetMappings(edgeID string, mappings []Mapping) error {
	i := g.edgeIndex(edgeID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
	}
	if len(mappings) == 0 {
		return ErrNoMappings
	}
	if err := checkMappings(mappings); err != nil {
		return err
	}
	g.Edges[i].Mappings = append([]Mapping(nil), mappings...)
	return nil
}

// RemoveEdge deletes an edge.
func (g *Graph) RemoveEdge(id string) error {
	i := g.edgeIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}
	g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
	return nil
}

func checkMappings(mappings []Mapping) error {
	seen := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if seen[m.TargetInput] {
			return fmt.Errorf("%w: %s", ErrDuplicateMapping, m.TargetInput)
		}
		seen[m.TargetInput] = true
	}
	return nil
}

// Validate reports structural problems: duplicate node ids, edges that reference
// missing nodes, and edges mapping the same input twice. The compiler tolerates
// all of these; Validate exists for import paths that want to reject them.
func (g *Graph) Validate() error {
	var errs []error

	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if ids[n.ID] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID))
		}
		ids[n.ID] = true
	}

	for _, e := range g.Edges {
		if !ids[e.Source] {
			errs = append(errs, fmt.Errorf("edge %s references unknown source: %s", e.ID, e.Source))
		}
		if !ids[e.Target] {
			errs = append(errs, fmt.Errorf("edge %s references unknown target: %s", e.ID, e.Target))
		}
		if err := checkMappings(e.Mappings); err != nil {
			errs = append(errs, fmt.Errorf("edge %s: %w", e.ID, err))
		}
	}

	return errors.Join(errs...)
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		if n.Parameters != nil {
			params := make(map[string]any, len(n.Parameters))
			for k, v := range n.Parameters {
				params[k] = v
			}
			n.Parameters = params
		}
		out.Nodes[i] = n
	}
	for i, e := range g.Edges {
		e.Mappings = append([]Mapping(nil), e.Mappings...)
		out.Edges[i] = e
	}
	return out
}

// Fingerprint hashes the parts of the graph that affect compilation: node
// identity, labels, Docker tags, placeholder flags, edges and their order.
// An unpinned node hashes differently from one pinned to "latest" because the
// compiler's default tag may differ. Positions and parameter values are ignored.
func (g *Graph) Fingerprint() string {
	type fpNode struct {
		ID          string `json:"i"`
		Label       string `json:"l"`
		Version     string `json:"v"`
		Placeholder bool   `json:"p"`
	}
	type fpEdge struct {
		Source   string    `json:"s"`
		Target   string    `json:"t"`
		Mappings []Mapping `json:"m"`
	}
	fp := struct {
		Nodes []fpNode `json:"n"`
		Edges []fpEdge `json:"e"`
	}{
		Nodes: make([]fpNode, len(g.Nodes)),
		Edges: make([]fpEdge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		fp.Nodes[i] = fpNode{ID: n.ID, Label: n.Label, Version: n.DockerVersion, Placeholder: n.Placeholder}
	}
	for i, e := range g.Edges {
		fp.Edges[i] = fpEdge{Source: e.Source, Target: e.Target, Mappings: e.Mappings}
	}
	// plain structs of strings and bools always marshal
	data, _ := json.Marshal(fp)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
