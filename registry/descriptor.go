package registry

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// RecordType is the pseudo-type of a mutually exclusive option group.
const RecordType = "record"

// InputSpec describes a required tool input.
type InputSpec struct {
	Name string `json:"name" yaml:"-"`
	// Type is a CWL type string such as File, string, File[] or int?
	Type string `json:"type" yaml:"type"`
	// Passthrough inputs receive upstream data or become workflow inputs.
	Passthrough bool   `json:"passthrough,omitempty" yaml:"passthrough,omitempty"`
	Label       string `json:"label,omitempty" yaml:"label,omitempty"`
	// AcceptedExtensions restricts which file extensions may be wired in.
	// Empty means any file type.
	AcceptedExtensions []string `json:"accepted_extensions,omitempty" yaml:"accepted_extensions,omitempty"`
}

// OptionalInputSpec describes an optional tool parameter.
type OptionalInputSpec struct {
	Name    string    `json:"name" yaml:"-"`
	Type    string    `json:"type" yaml:"type"`
	Label   string    `json:"label,omitempty" yaml:"label,omitempty"`
	Flag    string    `json:"flag,omitempty" yaml:"flag,omitempty"`
	Bounds  []float64 `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Options []any     `json:"options,omitempty" yaml:"options,omitempty"`
	// Variants holds the members of a record option group.
	Variants []OptionalInputSpec `json:"variants,omitempty" yaml:"-"`
}

// IsRecord reports whether the input is a mutually exclusive option group.
func (s OptionalInputSpec) IsRecord() bool {
	return s.Type == RecordType
}

// OutputSpec describes a tool output.
type OutputSpec struct {
	Name  string   `json:"name" yaml:"-"`
	Type  string   `json:"type" yaml:"type"`
	Label string   `json:"label,omitempty" yaml:"label,omitempty"`
	Glob  []string `json:"glob,omitempty" yaml:"glob,omitempty"`
	// Requires names the optional input that must be set for the output to exist.
	Requires string `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// ToolDescriptor is the immutable capability record of one tool.
// Input and output slices keep catalogue declaration order.
type ToolDescriptor struct {
	Label          string              `json:"label" yaml:"-"`
	ID             string              `json:"id" yaml:"id"`
	Library        string              `json:"library,omitempty" yaml:"library,omitempty"`
	CWLPath        string              `json:"cwl_path" yaml:"cwl_path"`
	DockerImage    string              `json:"docker_image,omitempty" yaml:"docker_image,omitempty"`
	PrimaryOutputs []string            `json:"primary_outputs,omitempty" yaml:"primary_outputs,omitempty"`
	RequiredInputs []InputSpec         `json:"required_inputs" yaml:"-"`
	OptionalInputs []OptionalInputSpec `json:"optional_inputs,omitempty" yaml:"-"`
	Outputs        []OutputSpec        `json:"outputs" yaml:"-"`
	// Generic marks a descriptor synthesized for an unknown label.
	Generic bool `json:"generic,omitempty" yaml:"-"`
}

// Output returns the named output.
func (d *ToolDescriptor) Output(name string) (OutputSpec, bool) {
	for _, o := range d.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return OutputSpec{}, false
}

// RequiredInput returns the named required input.
func (d *ToolDescriptor) RequiredInput(name string) (InputSpec, bool) {
	for _, in := range d.RequiredInputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputSpec{}, false
}

// OutputNames lists output names in declaration order.
func (d *ToolDescriptor) OutputNames() []string {
	names := make([]string, len(d.Outputs))
	for i, o := range d.Outputs {
		names[i] = o.Name
	}
	return names
}

// PrimaryOutput returns the first primary output, if any.
func (d *ToolDescriptor) PrimaryOutput() (string, bool) {
	if len(d.PrimaryOutputs) == 0 {
		return "", false
	}
	return d.PrimaryOutputs[0], true
}

// Validate checks the descriptor's internal invariants.
func (d *ToolDescriptor) Validate() error {
	var problems []string

	seen := make(map[string]bool, len(d.RequiredInputs))
	for _, in := range d.RequiredInputs {
		if seen[in.Name] {
			problems = append(problems, fmt.Sprintf("duplicate required input %q", in.Name))
		}
		seen[in.Name] = true
	}

	outputs := make(map[string]bool, len(d.Outputs))
	for _, o := range d.Outputs {
		if outputs[o.Name] {
			problems = append(problems, fmt.Sprintf("duplicate output %q", o.Name))
		}
		outputs[o.Name] = true
	}

	for _, p := range d.PrimaryOutputs {
		if !outputs[p] {
			problems = append(problems, fmt.Sprintf("primary output %q is not a declared output", p))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("tool %s: %s", d.Label, strings.Join(problems, "; "))
	}
	return nil
}

var nonIdentChars = regexp.MustCompile(`[^a-z0-9]`)

// SanitizeID derives a step identifier from a free-form label.
func SanitizeID(label string) string {
	return nonIdentChars.ReplaceAllString(strings.ToLower(label), "_")
}

// Generic synthesizes the descriptor used for labels missing from the registry:
// one passthrough File input and one File output.
func Generic(label string) *ToolDescriptor {
	id := SanitizeID(label)
	return &ToolDescriptor{
		Label:          label,
		ID:             id,
		CWLPath:        "cwl/generic/" + id + ".cwl",
		PrimaryOutputs: []string{"output"},
		RequiredInputs: []InputSpec{
			{Name: "input", Type: "File", Passthrough: true, Label: "Input"},
		},
		Outputs: []OutputSpec{
			{Name: "output", Type: "File", Label: "Output"},
		},
		Generic: true,
	}
}

// UnmarshalYAML decodes a descriptor while keeping mapping order of
// required_inputs, optional_inputs and outputs.
func (d *ToolDescriptor) UnmarshalYAML(node *yaml.Node) error {
	type plain ToolDescriptor
	var aux struct {
		plain          `yaml:",inline"`
		RequiredInputs yaml.Node `yaml:"required_inputs"`
		OptionalInputs yaml.Node `yaml:"optional_inputs"`
		Outputs        yaml.Node `yaml:"outputs"`
	}
	if err := node.Decode(&aux); err != nil {
		return err
	}
	label := d.Label
	*d = ToolDescriptor(aux.plain)
	d.Label = label

	var err error
	if d.RequiredInputs, err = decodeOrdered(&aux.RequiredInputs, func(s *InputSpec, name string) { s.Name = name }); err != nil {
		return fmt.Errorf("required_inputs: %w", err)
	}
	if d.OptionalInputs, err = decodeOptional(&aux.OptionalInputs); err != nil {
		return fmt.Errorf("optional_inputs: %w", err)
	}
	if d.Outputs, err = decodeOrdered(&aux.Outputs, func(s *OutputSpec, name string) { s.Name = name }); err != nil {
		return fmt.Errorf("outputs: %w", err)
	}
	return nil
}

func decodeOptional(node *yaml.Node) ([]OptionalInputSpec, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected mapping", node.Line)
	}
	specs := make([]OptionalInputSpec, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var aux struct {
			OptionalInputSpec `yaml:",inline"`
			Variants          yaml.Node `yaml:"variants"`
		}
		if err := node.Content[i+1].Decode(&aux); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		spec := aux.OptionalInputSpec
		spec.Name = name
		variants, err := decodeOptional(&aux.Variants)
		if err != nil {
			return nil, fmt.Errorf("%s.variants: %w", name, err)
		}
		spec.Variants = variants
		specs = append(specs, spec)
	}
	return specs, nil
}

// decodeOrdered decodes a YAML mapping into a slice, preserving key order.
func decodeOrdered[T any](node *yaml.Node, setName func(*T, string)) ([]T, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected mapping", node.Line)
	}
	out := make([]T, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v T
		if err := node.Content[i+1].Decode(&v); err != nil {
			return nil, fmt.Errorf("%s: %w", node.Content[i].Value, err)
		}
		setName(&v, node.Content[i].Value)
		out = append(out, v)
	}
	return out, nil
}
