package compat

import "github.com/BaSui01/fmriflow/registry"

// OutputPort is a connectable tool output.
type OutputPort struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Label      string   `json:"label"`
	Extensions []string `json:"extensions"`
}

// InputPort is a connectable (passthrough) tool input. A nil
// AcceptedExtensions accepts any file type.
type InputPort struct {
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	Label              string   `json:"label"`
	AcceptedExtensions []string `json:"accepted_extensions"`
}

// Ports is the connectable surface of one tool.
type Ports struct {
	Tool    string       `json:"tool"`
	Outputs []OutputPort `json:"outputs"`
	Inputs  []InputPort  `json:"inputs"`
	Generic bool         `json:"generic,omitempty"`
}

// Output returns the named output port.
func (p Ports) Output(name string) (OutputPort, bool) {
	for _, o := range p.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return OutputPort{}, false
}

// Input returns the named input port.
func (p Ports) Input(name string) (InputPort, bool) {
	for _, in := range p.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputPort{}, false
}

// PortsOf lists a tool's outputs with their parsed extensions and its
// passthrough inputs. Unknown labels get the generic single-file surface.
func PortsOf(tools registry.Lookup, label string) Ports {
	d := registry.Resolve(tools, label)
	p := Ports{
		Tool:    label,
		Outputs: make([]OutputPort, 0, len(d.Outputs)),
		Inputs:  make([]InputPort, 0, len(d.RequiredInputs)),
		Generic: d.Generic,
	}
	for _, o := range d.Outputs {
		p.Outputs = append(p.Outputs, OutputPort{
			Name:       o.Name,
			Type:       o.Type,
			Label:      labelOr(o.Label, o.Name),
			Extensions: ParseExtensionsFromGlob(o.Glob),
		})
	}
	for _, in := range d.RequiredInputs {
		if !in.Passthrough {
			continue
		}
		var accepted []string
		if len(in.AcceptedExtensions) > 0 {
			accepted = append([]string(nil), in.AcceptedExtensions...)
		}
		p.Inputs = append(p.Inputs, InputPort{
			Name:               in.Name,
			Type:               in.Type,
			Label:              labelOr(in.Label, in.Name),
			AcceptedExtensions: accepted,
		})
	}
	return p
}

// CheckMapping checks one output -> input pair between two tools. Unknown
// port names are treated as untyped and therefore compatible.
func CheckMapping(tools registry.Lookup, sourceLabel, output, targetLabel, input string) Result {
	out, _ := PortsOf(tools, sourceLabel).Output(output)
	in, _ := PortsOf(tools, targetLabel).Input(input)
	return CheckTypeCompatibility(out.Type, in.Type, out.Extensions, in.AcceptedExtensions)
}

// Suggestion is a proposed mapping for a fresh connection.
type Suggestion struct {
	SourceOutput string `json:"source_output"`
	TargetInput  string `json:"target_input"`
	Result       Result `json:"result"`
}

// DefaultMapping proposes the first primary output of the source (or its first
// output when none is primary) feeding the first passthrough input of the
// target. ok is false when either side has no such port.
func DefaultMapping(tools registry.Lookup, sourceLabel, targetLabel string) (Suggestion, bool) {
	src := registry.Resolve(tools, sourceLabel)
	primary, ok := src.PrimaryOutput()
	if !ok {
		if len(src.Outputs) == 0 {
			return Suggestion{}, false
		}
		primary = src.Outputs[0].Name
	}
	target := PortsOf(tools, targetLabel)
	if len(target.Inputs) == 0 {
		return Suggestion{}, false
	}
	input := target.Inputs[0].Name
	return Suggestion{
		SourceOutput: primary,
		TargetInput:  input,
		Result:       CheckMapping(tools, sourceLabel, primary, targetLabel, input),
	}, true
}

// ConnectionMismatch is the quick check run when two registered tools are
// first connected: primary output type against first passthrough input type,
// ignoring extensions. Unregistered tools never report a mismatch.
func ConnectionMismatch(tools registry.Lookup, sourceLabel, targetLabel string) bool {
	if tools == nil {
		return false
	}
	src, ok := tools.Lookup(sourceLabel)
	if !ok {
		return false
	}
	dst, ok := tools.Lookup(targetLabel)
	if !ok {
		return false
	}
	primary, ok := src.PrimaryOutput()
	if !ok {
		return false
	}
	out, ok := src.Output(primary)
	if !ok || out.Type == "" {
		return false
	}
	for _, in := range dst.RequiredInputs {
		if in.Passthrough {
			if in.Type == "" {
				return false
			}
			return !CheckTypeCompatibility(out.Type, in.Type, nil, nil).Compatible
		}
	}
	return false
}

func labelOr(label, name string) string {
	if label != "" {
		return label
	}
	return name
}
