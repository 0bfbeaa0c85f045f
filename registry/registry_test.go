package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_LoadsCatalogue(t *testing.T) {
	reg, err := Builtin()
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	assert.Equal(t, 12, reg.Len())
	assert.Equal(t, "bet", reg.Labels()[0])

	bet, ok := reg.Lookup("bet")
	require.True(t, ok)
	assert.Equal(t, "bet", bet.ID)
	assert.Equal(t, "cwl/fsl/bet.cwl", bet.CWLPath)
	assert.Equal(t, "brainlife/fsl", bet.DockerImage)
	assert.Equal(t, []string{"brain_extraction"}, bet.PrimaryOutputs)

	// declaration order is preserved
	assert.Equal(t, []string{
		"brain_extraction", "brain_mask", "brain_skull", "brain_mesh", "brain_registration", "log",
	}, bet.OutputNames())
	require.Len(t, bet.RequiredInputs, 2)
	assert.Equal(t, "input", bet.RequiredInputs[0].Name)
	assert.True(t, bet.RequiredInputs[0].Passthrough)
	assert.Equal(t, "output", bet.RequiredInputs[1].Name)
	assert.False(t, bet.RequiredInputs[1].Passthrough)
}

func TestBuiltin_RecordVariants(t *testing.T) {
	bet, ok := MustBuiltin().Lookup("bet")
	require.True(t, ok)

	var exclusive *OptionalInputSpec
	for i := range bet.OptionalInputs {
		if bet.OptionalInputs[i].Name == "exclusive" {
			exclusive = &bet.OptionalInputs[i]
		}
	}
	require.NotNil(t, exclusive)
	assert.True(t, exclusive.IsRecord())
	require.Len(t, exclusive.Variants, 7)
	assert.Equal(t, "robust", exclusive.Variants[0].Name)
	assert.Equal(t, "-R", exclusive.Variants[0].Flag)
	assert.Equal(t, "File", exclusive.Variants[6].Type)
}

func TestBuiltin_IDDiffersFromLabel(t *testing.T) {
	d, ok := MustBuiltin().Lookup("antsRegistrationSyNQuick.sh")
	require.True(t, ok)
	assert.Equal(t, "antsRegistrationSyNQuick", d.ID)
	assert.Equal(t, []string{"warped_image", "affine_transform"}, d.PrimaryOutputs)
	assert.Equal(t, "fixed_image", d.RequiredInputs[1].Name)
}

func TestBuiltin_DockerImages(t *testing.T) {
	images := MustBuiltin().DockerImages()
	assert.Equal(t, "brainlife/fsl", images["fsl"])
	assert.Equal(t, "afni/afni", images["afni"])
	assert.Equal(t, "antsx/ants", images["ants"])
	assert.Equal(t, "freesurfer/freesurfer", images["freesurfer"])

	// callers get a copy
	images["fsl"] = "changed"
	assert.Equal(t, "brainlife/fsl", MustBuiltin().DockerImages()["fsl"])
}

func TestBuiltin_Libraries(t *testing.T) {
	libs := MustBuiltin().Libraries()
	assert.Equal(t, []string{"bet", "fast", "mcflirt", "flirt", "fslmaths"}, libs["fsl"])
	assert.Equal(t, []string{"mri_convert", "mris_inflate"}, libs["freesurfer"])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid yaml", "tools: [unclosed"},
		{"missing tools", "docker_images: {}"},
		{"tools not a mapping", "tools: [a, b]"},
		{"duplicate label", "tools:\n  a: {id: a}\n  a: {id: b}\n"},
		{"outputs not a mapping", "tools:\n  a:\n    outputs: [x]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParse_DefaultsIDFromLabel(t *testing.T) {
	reg, err := Parse([]byte(`
tools:
  My Tool:
    cwl_path: cwl/custom/my.cwl
    outputs:
      out: {type: File}
`))
	require.NoError(t, err)
	d, ok := reg.Lookup("My Tool")
	require.True(t, ok)
	assert.Equal(t, "my_tool", d.ID)
	assert.Equal(t, "My Tool", d.Label)
	assert.Equal(t, []string{"out"}, d.OutputNames())
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools:\n  x:\n    id: x\n"), 0o600))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, reg.Labels())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_ReportsProblems(t *testing.T) {
	reg := New(&ToolDescriptor{
		Label:          "broken",
		ID:             "broken",
		PrimaryOutputs: []string{"nope"},
		RequiredInputs: []InputSpec{{Name: "a"}, {Name: "a"}},
		Outputs:        []OutputSpec{{Name: "o"}, {Name: "o"}},
	})
	err := reg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate required input "a"`)
	assert.Contains(t, err.Error(), `duplicate output "o"`)
	assert.Contains(t, err.Error(), `primary output "nope"`)
}

func TestGeneric(t *testing.T) {
	d := Generic("My Custom-Tool 2")
	assert.Equal(t, "my_custom_tool_2", d.ID)
	assert.Equal(t, "cwl/generic/my_custom_tool_2.cwl", d.CWLPath)
	assert.Equal(t, []string{"output"}, d.PrimaryOutputs)
	assert.Equal(t, []string{"output"}, d.OutputNames())
	in, ok := d.RequiredInput("input")
	require.True(t, ok)
	assert.True(t, in.Passthrough)
	assert.Equal(t, "File", in.Type)
	assert.True(t, d.Generic)
	assert.NoError(t, d.Validate())
}

func TestResolve(t *testing.T) {
	reg := MustBuiltin()
	assert.Equal(t, "bet", Resolve(reg, "bet").ID)
	assert.True(t, Resolve(reg, "unknown").Generic)
	assert.True(t, Resolve(nil, "bet").Generic)

	var nilReg *Registry
	_, ok := nilReg.Lookup("bet")
	assert.False(t, ok)
}

func TestNew_LaterWins(t *testing.T) {
	reg := New(&ToolDescriptor{Label: "a", ID: "first"}, &ToolDescriptor{Label: "a", ID: "second"})
	d, _ := reg.Lookup("a")
	assert.Equal(t, "second", d.ID)
	assert.Equal(t, []string{"a"}, reg.Labels())
}
