package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/fmriflow/registry"
)

// ErrGraphHasCycles is returned when the graph cannot be ordered.
var ErrGraphHasCycles = errors.New("workflow graph has cycles")

// Workflow input name used for the data input of a graph's only source node.
const sourceInputName = "input_file"

// fallbackOutput is bound when an upstream tool declares no primary output.
const fallbackOutput = "output"

// Compiler turns a Graph into a CWL Document.
// A Compiler is safe for concurrent use; Compile keeps no state between calls.
type Compiler struct {
	tools      registry.Lookup
	logger     *zap.Logger
	tracer     trace.Tracer
	defaultTag string
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithLogger sets the compiler's logger.
func WithLogger(logger *zap.Logger) CompilerOption {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer used for compile spans.
func WithTracer(tracer trace.Tracer) CompilerOption {
	return func(c *Compiler) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithDefaultTag sets the Docker tag used for nodes that do not pin one.
func WithDefaultTag(tag string) CompilerOption {
	return func(c *Compiler) {
		if tag != "" {
			c.defaultTag = tag
		}
	}
}

// NewCompiler creates a compiler backed by the given tool registry.
func NewCompiler(tools registry.Lookup, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		tools:      tools,
		logger:     zap.NewNop(),
		tracer:     otel.Tracer("github.com/BaSui01/fmriflow/workflow"),
		defaultTag: DefaultDockerVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "compiler"))
	return c
}

// DefaultTag returns the Docker tag used for nodes that do not pin one.
func (c *Compiler) DefaultTag() string {
	return c.defaultTag
}

// planned is a node resolved against the registry.
type planned struct {
	node Node
	tool *registry.ToolDescriptor
	step string
}

// Compile builds the CWL document for g. The only failure is a cyclic graph.
// The context is used for tracing only.
func (c *Compiler) Compile(ctx context.Context, g *Graph) (*Document, error) {
	_, span := c.tracer.Start(ctx, "workflow.Compile")
	defer span.End()

	nodes, edges := live(g)
	span.SetAttributes(
		attribute.Int("workflow.nodes", len(nodes)),
		attribute.Int("workflow.edges", len(edges)),
	)

	order, err := topoSort(nodes, edges)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("compile rejected", zap.Error(err))
		return nil, err
	}

	plan := c.resolve(order)
	index := make(map[string]*planned, len(plan))
	for i := range plan {
		index[plan[i].node.ID] = &plan[i]
	}

	incoming := make(map[string][]Edge, len(nodes))
	outgoing := make(map[string]int, len(nodes))
	for _, e := range edges {
		incoming[e.Target] = append(incoming[e.Target], e)
		outgoing[e.Source]++
	}

	sources := 0
	for _, n := range nodes {
		if len(incoming[n.ID]) == 0 {
			sources++
		}
	}
	single := len(nodes) == 1

	doc := newDocument()
	for _, p := range plan {
		step := Step{
			Name: p.step,
			Run:  "../" + p.tool.CWLPath,
			In:   make([]Binding, 0, len(p.tool.RequiredInputs)+len(p.tool.OptionalInputs)),
			Out:  p.tool.OutputNames(),
		}
		if step.Out == nil {
			step.Out = []string{}
		}
		in := incoming[p.node.ID]

		for _, spec := range p.tool.RequiredInputs {
			switch {
			case spec.Passthrough && len(in) > 0:
				step.bind(spec.Name, upstreamSource(index, in, spec.Name))
			case spec.Passthrough:
				name := sourceInputName
				if sources != 1 {
					name = p.step + "_" + sourceInputName
				}
				doc.setInput(name, ProjectType(spec.Type, false))
				step.bind(spec.Name, name)
			default:
				name := inputName(p.step, spec.Name, single)
				doc.setInput(name, ProjectType(spec.Type, false))
				step.bind(spec.Name, name)
			}
		}

		for _, spec := range p.tool.OptionalInputs {
			name := inputName(p.step, spec.Name, single)
			doc.setInput(name, ProjectType(spec.Type, true))
			step.bind(spec.Name, name)
		}

		if p.tool.DockerImage != "" {
			tag := p.node.DockerVersion
			if tag == "" {
				tag = c.defaultTag
			}
			step.DockerPull = p.tool.DockerImage + ":" + tag
		}

		doc.Steps = append(doc.Steps, step)
	}

	// terminal outputs follow node insertion order, not step order
	var terminals []*planned
	for _, n := range nodes {
		if outgoing[n.ID] == 0 {
			terminals = append(terminals, index[n.ID])
		}
	}
	for _, p := range terminals {
		for _, out := range p.tool.Outputs {
			name := out.Name
			if len(terminals) != 1 {
				name = p.step + "_" + out.Name
			}
			if _, taken := doc.Output(name); taken {
				base := name
				for i := 2; taken; i++ {
					name = base + "_" + strconv.Itoa(i)
					_, taken = doc.Output(name)
				}
				c.logger.Warn("terminal output name collision",
					zap.String("output", base),
					zap.String("renamed", name),
					zap.String("source", p.step+"/"+out.Name),
				)
			}
			doc.setOutput(Output{
				Name:   name,
				Type:   ProjectType(out.Type, false),
				Source: p.step + "/" + out.Name,
			})
		}
	}

	span.SetAttributes(
		attribute.Int("workflow.steps", len(doc.Steps)),
		attribute.Int("workflow.inputs", len(doc.Inputs)),
		attribute.Int("workflow.outputs", len(doc.Outputs)),
	)
	c.logger.Debug("workflow compiled",
		zap.Int("steps", len(doc.Steps)),
		zap.Int("inputs", len(doc.Inputs)),
		zap.Int("outputs", len(doc.Outputs)),
	)
	return doc, nil
}

// live drops placeholder nodes and every edge that does not connect two
// remaining nodes.
func live(g *Graph) ([]Node, []Edge) {
	if g == nil {
		return nil, nil
	}
	nodes := make([]Node, 0, len(g.Nodes))
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Placeholder || ids[n.ID] {
			continue
		}
		ids[n.ID] = true
		nodes = append(nodes, n)
	}
	edges := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if ids[e.Source] && ids[e.Target] {
			edges = append(edges, e)
		}
	}
	return nodes, edges
}

// topoSort orders nodes with Kahn's algorithm. The ready queue is FIFO and
// seeded in node order; successors are released in edge order.
func topoSort(nodes []Node, edges []Edge) ([]Node, error) {
	indegree := make(map[string]int, len(nodes))
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		indegree[n.ID] = 0
		byID[n.ID] = n
	}
	out := make(map[string][]string, len(nodes))
	for _, e := range edges {
		indegree[e.Target]++
		out[e.Source] = append(out[e.Source], e.Target)
	}

	queue := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]Node, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, byID[id])
		for _, target := range out[id] {
			indegree[target]--
			if indegree[target] == 0 {
				queue = append(queue, target)
			}
		}
	}

	if len(order) != len(nodes) {
		var stuck []string
		for _, n := range nodes {
			if indegree[n.ID] > 0 {
				stuck = append(stuck, n.ID)
			}
		}
		return nil, fmt.Errorf("%w: unresolved nodes %s", ErrGraphHasCycles, strings.Join(stuck, ", "))
	}
	return order, nil
}

// resolve looks up descriptors and assigns step names. A tool used once is
// named by its id; a tool used n > 1 times gets id_1..id_n in step order.
func (c *Compiler) resolve(order []Node) []planned {
	plan := make([]planned, len(order))
	total := make(map[string]int)
	for i, n := range order {
		plan[i] = planned{node: n, tool: registry.Resolve(c.tools, n.Label)}
		total[plan[i].tool.ID]++
	}
	seen := make(map[string]int)
	for i := range plan {
		id := plan[i].tool.ID
		seen[id]++
		if total[id] > 1 {
			plan[i].step = id + "_" + strconv.Itoa(seen[id])
		} else {
			plan[i].step = id
		}
	}
	return plan
}

// upstreamSource picks the source for a passthrough input. The first incoming
// edge, in insertion order, that maps the input wins; otherwise the first
// incoming edge supplies its upstream tool's primary output.
func upstreamSource(index map[string]*planned, in []Edge, input string) string {
	for _, e := range in {
		if m, ok := e.MappingFor(input); ok {
			return index[e.Source].step + "/" + m.SourceOutput
		}
	}
	up := index[in[0].Source]
	if primary, ok := up.tool.PrimaryOutput(); ok {
		return up.step + "/" + primary
	}
	return up.step + "/" + fallbackOutput
}

func inputName(step, input string, single bool) string {
	if single {
		return input
	}
	return step + "_" + input
}

// ProjectType converts a descriptor type string into a workflow type.
// Empty means File, "T[]" is an array, "T?" is nullable, and the record
// pseudo-type is exposed as nullable Any. A suffix with no base type ("[]",
// "?") falls back to File. nullable forces a null union.
func ProjectType(s string, nullable bool) Type {
	var t Type
	switch {
	case s == registry.RecordType:
		return Named("Any").OrNull()
	case strings.HasSuffix(s, "[]"):
		t = ArrayOf(baseType(strings.TrimSuffix(s, "[]")))
	case strings.HasSuffix(s, "?"):
		return Named(baseType(strings.TrimSuffix(s, "?"))).OrNull()
	default:
		t = Named(baseType(s))
	}
	if nullable {
		t = t.OrNull()
	}
	return t
}

func baseType(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "File"
	}
	return s
}
