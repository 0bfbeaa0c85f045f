package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/tools.yaml
var builtinCatalog []byte

// Lookup resolves a canvas label to its descriptor.
type Lookup interface {
	Lookup(label string) (*ToolDescriptor, bool)
}

// Registry is an immutable label -> descriptor table.
// It is safe for concurrent use because nothing mutates it after construction.
type Registry struct {
	tools        map[string]*ToolDescriptor
	order        []string
	dockerImages map[string]string
}

// catalog is the on-disk YAML layout.
type catalog struct {
	DockerImages map[string]string `yaml:"docker_images"`
	Tools        yaml.Node         `yaml:"tools"`
}

// Parse builds a registry from catalogue YAML.
func Parse(data []byte) (*Registry, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalogue: %w", err)
	}
	if c.Tools.Kind == 0 {
		return nil, errors.New("tool catalogue has no tools section")
	}
	if c.Tools.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("tools: line %d: expected mapping", c.Tools.Line)
	}

	r := &Registry{
		tools:        make(map[string]*ToolDescriptor, len(c.Tools.Content)/2),
		order:        make([]string, 0, len(c.Tools.Content)/2),
		dockerImages: c.DockerImages,
	}
	for i := 0; i+1 < len(c.Tools.Content); i += 2 {
		label := c.Tools.Content[i].Value
		if _, dup := r.tools[label]; dup {
			return nil, fmt.Errorf("duplicate tool label %q", label)
		}
		d := &ToolDescriptor{}
		if err := c.Tools.Content[i+1].Decode(d); err != nil {
			return nil, fmt.Errorf("tool %s: %w", label, err)
		}
		d.Label = label
		if d.ID == "" {
			d.ID = SanitizeID(label)
		}
		r.tools[label] = d
		r.order = append(r.order, label)
	}
	return r, nil
}

// Load reads a catalogue file from disk.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool catalogue: %w", err)
	}
	return Parse(data)
}

var (
	builtinOnce sync.Once
	builtinReg  *Registry
	builtinErr  error
)

// Builtin returns the catalogue compiled into the binary.
func Builtin() (*Registry, error) {
	builtinOnce.Do(func() {
		builtinReg, builtinErr = Parse(builtinCatalog)
	})
	return builtinReg, builtinErr
}

// MustBuiltin is Builtin for program start-up and tests.
func MustBuiltin() *Registry {
	r, err := Builtin()
	if err != nil {
		panic(fmt.Sprintf("builtin tool catalogue: %v", err))
	}
	return r
}

// New builds a registry from descriptors; later labels win.
func New(descriptors ...*ToolDescriptor) *Registry {
	r := &Registry{tools: make(map[string]*ToolDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, exists := r.tools[d.Label]; !exists {
			r.order = append(r.order, d.Label)
		}
		r.tools[d.Label] = d
	}
	return r
}

// Lookup implements Lookup.
func (r *Registry) Lookup(label string) (*ToolDescriptor, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.tools[label]
	return d, ok
}

// Resolve returns the registered descriptor or the generic fallback.
func Resolve(l Lookup, label string) *ToolDescriptor {
	if l != nil {
		if d, ok := l.Lookup(label); ok {
			return d
		}
	}
	return Generic(label)
}

// Labels lists tool labels in catalogue order.
func (r *Registry) Labels() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Libraries groups labels by library name, sorted by library.
func (r *Registry) Libraries() map[string][]string {
	out := make(map[string][]string)
	for _, label := range r.order {
		lib := r.tools[label].Library
		out[lib] = append(out[lib], label)
	}
	return out
}

// DockerImages returns the library -> image table.
func (r *Registry) DockerImages() map[string]string {
	out := make(map[string]string, len(r.dockerImages))
	for k, v := range r.dockerImages {
		out[k] = v
	}
	return out
}

// Validate checks every descriptor. The compiler trusts the registry, so this
// is only used by tooling and tests.
func (r *Registry) Validate() error {
	var errs []error
	labels := r.Labels()
	sort.Strings(labels)
	for _, label := range labels {
		if err := r.tools[label].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
