package workflow

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// CWL document constants.
const (
	CWLVersion    = "v1.2"
	WorkflowClass = "Workflow"
)

// Type is a CWL type expression: a named type, an array of a named type, and
// optionally a union with null.
type Type struct {
	// Name is the primitive or class name ("File", "string", "Any").
	// Unused when Items is set.
	Name string
	// Items makes the type an array of the named item type.
	Items    string
	Nullable bool
}

// Named returns the plain type t.
func Named(t string) Type { return Type{Name: t} }

// ArrayOf returns an array of item.
func ArrayOf(item string) Type { return Type{Items: item} }

// OrNull returns t unioned with null.
func (t Type) OrNull() Type {
	t.Nullable = true
	return t
}

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return t.Items != "" }

// String renders the type in CWL shorthand, e.g. "File[]?".
func (t Type) String() string {
	var b strings.Builder
	if t.IsArray() {
		b.WriteString(t.Items)
		b.WriteString("[]")
	} else {
		b.WriteString(t.Name)
	}
	if t.Nullable {
		b.WriteString("?")
	}
	return b.String()
}

func (t Type) tree() any {
	var inner any = t.Name
	if t.IsArray() {
		inner = orderedMap{{"type", "array"}, {"items", t.Items}}
	}
	if t.Nullable {
		return []any{"null", inner}
	}
	return inner
}

// MarshalYAML implements yaml.Marshaler.
func (t Type) MarshalYAML() (any, error) { return t.tree(), nil }

// MarshalJSON implements json.Marshaler.
func (t Type) MarshalJSON() ([]byte, error) { return json.Marshal(t.tree()) }

// Input is a workflow-level input.
type Input struct {
	Name string
	Type Type
}

// Output is a workflow-level output wired to a step output.
type Output struct {
	Name string
	Type Type
	// Source is "<step>/<output>".
	Source string
}

// Binding feeds a step input from a workflow input name or "<step>/<output>".
type Binding struct {
	Input  string
	Source string
}

// Step is one tool invocation.
type Step struct {
	Name string
	// Run is the relative path of the tool description.
	Run string
	In  []Binding
	Out []string
	// DockerPull is "<image>:<tag>", empty when the tool has no image.
	DockerPull string
}

// Source returns the source bound to the named input.
func (s *Step) Source(input string) (string, bool) {
	for _, b := range s.In {
		if b.Input == input {
			return b.Source, true
		}
	}
	return "", false
}

// Document is a compiled CWL workflow. All sections keep insertion order so
// the encoded output is reproducible.
type Document struct {
	CWLVersion string
	Class      string
	Inputs     []Input
	Outputs    []Output
	Steps      []Step
}

func newDocument() *Document {
	return &Document{CWLVersion: CWLVersion, Class: WorkflowClass}
}

// Input returns the named workflow input.
func (d *Document) Input(name string) (Input, bool) {
	for _, in := range d.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Input{}, false
}

// Output returns the named workflow output.
func (d *Document) Output(name string) (Output, bool) {
	for _, out := range d.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return Output{}, false
}

// Step returns the named step.
func (d *Document) Step(name string) (*Step, bool) {
	for i := range d.Steps {
		if d.Steps[i].Name == name {
			return &d.Steps[i], true
		}
	}
	return nil, false
}

// StepNames lists step names in topological order.
func (d *Document) StepNames() []string {
	names := make([]string, len(d.Steps))
	for i, s := range d.Steps {
		names[i] = s.Name
	}
	return names
}

// setInput adds or replaces an input. A replaced input keeps its position.
func (d *Document) setInput(name string, t Type) {
	for i := range d.Inputs {
		if d.Inputs[i].Name == name {
			d.Inputs[i].Type = t
			return
		}
	}
	d.Inputs = append(d.Inputs, Input{Name: name, Type: t})
}

// setOutput adds or replaces an output. A replaced output keeps its position.
func (d *Document) setOutput(out Output) {
	for i := range d.Outputs {
		if d.Outputs[i].Name == out.Name {
			d.Outputs[i] = out
			return
		}
	}
	d.Outputs = append(d.Outputs, out)
}

// bind sets a step input binding, replacing an earlier one with the same name.
func (s *Step) bind(input, source string) {
	for i := range s.In {
		if s.In[i].Input == input {
			s.In[i].Source = source
			return
		}
	}
	s.In = append(s.In, Binding{Input: input, Source: source})
}

func (d *Document) tree() orderedMap {
	inputs := make(orderedMap, 0, len(d.Inputs))
	for _, in := range d.Inputs {
		inputs = append(inputs, field{in.Name, orderedMap{{"type", in.Type}}})
	}

	outputs := make(orderedMap, 0, len(d.Outputs))
	for _, out := range d.Outputs {
		outputs = append(outputs, field{out.Name, orderedMap{
			{"type", out.Type},
			{"outputSource", out.Source},
		}})
	}

	steps := make(orderedMap, 0, len(d.Steps))
	for _, s := range d.Steps {
		in := make(orderedMap, 0, len(s.In))
		for _, b := range s.In {
			in = append(in, field{b.Input, b.Source})
		}
		out := append([]string{}, s.Out...)
		step := orderedMap{
			{"run", s.Run},
			{"in", in},
			{"out", out},
		}
		if s.DockerPull != "" {
			step = append(step, field{"hints", orderedMap{
				{"DockerRequirement", orderedMap{{"dockerPull", s.DockerPull}}},
			}})
		}
		steps = append(steps, field{s.Name, step})
	}

	return orderedMap{
		{"cwlVersion", d.CWLVersion},
		{"class", d.Class},
		{"inputs", inputs},
		{"outputs", outputs},
		{"steps", steps},
	}
}

// MarshalYAML implements yaml.Marshaler.
func (d *Document) MarshalYAML() (any, error) { return d.tree(), nil }

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) { return json.Marshal(d.tree()) }

type field struct {
	key   string
	value any
}

// orderedMap is a mapping that encodes its keys in slice order.
type orderedMap []field

func (m orderedMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, f := range m {
		value := &yaml.Node{}
		if err := value.Encode(f.value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.key},
			value,
		)
	}
	return node, nil
}

func (m orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
