package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/fmriflow/registry"
)

func TestPortsOf_Registered(t *testing.T) {
	p := PortsOf(registry.MustBuiltin(), "bet")
	assert.False(t, p.Generic)
	require.Len(t, p.Outputs, 6)
	assert.Equal(t, "brain_extraction", p.Outputs[0].Name)
	assert.Equal(t, []string{".nii", ".nii.gz"}, p.Outputs[0].Extensions)

	// only passthrough inputs are connectable
	require.Len(t, p.Inputs, 1)
	assert.Equal(t, "input", p.Inputs[0].Name)
	assert.Equal(t, []string{".nii", ".nii.gz"}, p.Inputs[0].AcceptedExtensions)

	mesh, ok := p.Output("brain_mesh")
	require.True(t, ok)
	assert.Equal(t, []string{".vtk"}, mesh.Extensions)
}

func TestPortsOf_MixedAFNIAndNIfTI(t *testing.T) {
	p := PortsOf(registry.MustBuiltin(), "3dSkullStrip")
	out, ok := p.Output("skull_stripped")
	require.True(t, ok)
	assert.Equal(t, []string{"+orig.HEAD", ".nii", ".nii.gz"}, out.Extensions)
}

func TestPortsOf_Generic(t *testing.T) {
	p := PortsOf(registry.MustBuiltin(), "Something Custom")
	assert.True(t, p.Generic)
	require.Len(t, p.Outputs, 1)
	assert.Equal(t, OutputPort{Name: "output", Type: "File", Label: "Output", Extensions: []string{}}, p.Outputs[0])
	require.Len(t, p.Inputs, 1)
	assert.Equal(t, InputPort{Name: "input", Type: "File", Label: "Input"}, p.Inputs[0])
}

func TestCheckMapping(t *testing.T) {
	reg := registry.MustBuiltin()
	tests := []struct {
		name   string
		src    string
		output string
		dst    string
		input  string
		want   Result
	}{
		{
			"nifti to nifti", "bet", "brain_extraction", "fast", "input",
			Result{Compatible: true},
		},
		{
			"mesh into volume", "bet", "brain_mesh", "fast", "input",
			Result{Reason: "Extension mismatch: .vtk → .nii, .nii.gz", ExtensionMismatch: true},
		},
		{
			"array into single", "bet", "brain_registration", "fast", "input",
			Result{Reason: "Array mismatch: File[] → File"},
		},
		{
			"unknown output extension", "mri_convert", "converted", "bet", "input",
			Result{Compatible: true, Warning: true, Reason: "Output extension unknown", ExtensionWarning: true},
		},
		{
			"generic target accepts anything", "bet", "brain_extraction", "My Tool", "input",
			Result{Compatible: true, Warning: true, Reason: "Input accepts any file type", ExtensionWarning: true},
		},
		{
			"log into volume", "bet", "log", "fast", "input",
			Result{Reason: "Extension mismatch: .log → .nii, .nii.gz", ExtensionMismatch: true},
		},
		{
			"unknown port is untyped", "bet", "nope", "fast", "input",
			Result{Compatible: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckMapping(reg, tt.src, tt.output, tt.dst, tt.input))
		})
	}
}

func TestDefaultMapping(t *testing.T) {
	reg := registry.MustBuiltin()

	s, ok := DefaultMapping(reg, "bet", "fast")
	require.True(t, ok)
	assert.Equal(t, "brain_extraction", s.SourceOutput)
	assert.Equal(t, "input", s.TargetInput)
	assert.True(t, s.Result.Compatible)

	// first passthrough input, not first required input
	s, ok = DefaultMapping(reg, "bet", "antsRegistrationSyNQuick.sh")
	require.True(t, ok)
	assert.Equal(t, "fixed_image", s.TargetInput)

	s, ok = DefaultMapping(reg, "custom a", "custom b")
	require.True(t, ok)
	assert.Equal(t, "output", s.SourceOutput)
	assert.Equal(t, "input", s.TargetInput)
	assert.True(t, s.Result.Warning)

	noInputs := registry.New(&registry.ToolDescriptor{
		Label:   "sink",
		ID:      "sink",
		Outputs: []registry.OutputSpec{{Name: "o", Type: "File"}},
	})
	_, ok = DefaultMapping(noInputs, "custom", "sink")
	assert.False(t, ok)

	// no primary output falls back to the first declared output
	s, ok = DefaultMapping(noInputs, "sink", "custom")
	require.True(t, ok)
	assert.Equal(t, "o", s.SourceOutput)

	empty := registry.New(&registry.ToolDescriptor{Label: "void", ID: "void"})
	_, ok = DefaultMapping(empty, "void", "custom")
	assert.False(t, ok)
}

func TestConnectionMismatch(t *testing.T) {
	reg := registry.New(
		&registry.ToolDescriptor{
			Label:          "many",
			PrimaryOutputs: []string{"files"},
			Outputs:        []registry.OutputSpec{{Name: "files", Type: "File[]"}},
		},
		&registry.ToolDescriptor{
			Label:          "one",
			PrimaryOutputs: []string{"file"},
			RequiredInputs: []registry.InputSpec{
				{Name: "prefix", Type: "string"},
				{Name: "in", Type: "File", Passthrough: true},
			},
			Outputs: []registry.OutputSpec{{Name: "file", Type: "File"}},
		},
	)

	assert.True(t, ConnectionMismatch(reg, "many", "one"))
	assert.False(t, ConnectionMismatch(reg, "one", "one"))
	assert.False(t, ConnectionMismatch(reg, "many", "unknown"))
	assert.False(t, ConnectionMismatch(nil, "many", "one"))
	assert.False(t, ConnectionMismatch(registry.MustBuiltin(), "bet", "fast"))
}
