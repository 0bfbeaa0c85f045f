package bundle

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/fmriflow/registry"
	"github.com/BaSui01/fmriflow/testutil"
	"github.com/BaSui01/fmriflow/workflow"
)

const betCWL = `#!/usr/bin/env cwl-runner

cwlVersion: v1.2
class: CommandLineTool
# FSL brain extraction
baseCommand: bet
hints:
  DockerRequirement:
    dockerPull: brainlife/fsl:latest
inputs:
  input:
    type: File
    inputBinding: {position: 1}
outputs: {}
`

const fastCWL = `cwlVersion: v1.2
class: CommandLineTool
baseCommand: fast
inputs: {}
outputs: {}
`

func siteFS() fstest.MapFS {
	return fstest.MapFS{
		"cwl/fsl/bet.cwl":  {Data: []byte(betCWL)},
		"cwl/fsl/fast.cwl": {Data: []byte(fastCWL)},
		"README.md":        {Data: []byte("# fmriflow bundle\n")},
	}
}

func newTestExporter(files fs.FS) *Exporter {
	tools := registry.MustBuiltin()
	return NewExporter(tools, workflow.NewCompiler(tools), files, WithConcurrency(2))
}

func betToFast(betVersion, fastVersion string) *workflow.Graph {
	return &workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "1", Label: "bet", DockerVersion: betVersion},
			{ID: "2", Label: "fast", DockerVersion: fastVersion},
		},
		Edges: []workflow.Edge{{
			ID:       "e1",
			Source:   "1",
			Target:   "2",
			Mappings: []workflow.Mapping{{SourceOutput: "brain_extraction", TargetInput: "input"}},
		}},
	}
}

func dockerPullOf(t *testing.T, cwl string) string {
	t.Helper()
	var doc struct {
		Hints struct {
			DockerRequirement struct {
				DockerPull string `yaml:"dockerPull"`
			} `yaml:"DockerRequirement"`
		} `yaml:"hints"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(cwl), &doc))
	return doc.Hints.DockerRequirement.DockerPull
}

func TestExport(t *testing.T) {
	var buf bytes.Buffer
	manifest, err := newTestExporter(siteFS()).Export(context.Background(), betToFast("6.0.7", ""), &buf)
	require.NoError(t, err)

	files, order := testutil.ReadZip(t, buf.Bytes())
	assert.Equal(t, []string{MainEntry, ReadmeEntry, "cwl/fsl/bet.cwl", "cwl/fsl/fast.cwl"}, order)
	assert.Equal(t, order, manifest.Entries)
	assert.Equal(t, 2, manifest.Steps)

	main := files[MainEntry]
	assert.True(t, strings.HasPrefix(main, "#!/usr/bin/env cwl-runner\n\ncwlVersion: v1.2\n"))
	assert.Contains(t, main, "run: ../cwl/fsl/bet.cwl")
	assert.Contains(t, main, "dockerPull: brainlife/fsl:6.0.7")

	bet := files["cwl/fsl/bet.cwl"]
	assert.True(t, strings.HasPrefix(bet, "#!/usr/bin/env cwl-runner\n\n"))
	assert.Contains(t, bet, "# FSL brain extraction")
	assert.Equal(t, "brainlife/fsl:6.0.7", dockerPullOf(t, bet))
	assert.Equal(t, "brainlife/fsl:latest", dockerPullOf(t, files["cwl/fsl/fast.cwl"]))

	assert.Equal(t, map[string]string{
		"cwl/fsl/bet.cwl":  "brainlife/fsl:6.0.7",
		"cwl/fsl/fast.cwl": "brainlife/fsl:latest",
	}, manifest.DockerPulls)
}

func TestExport_SharedToolTakesFirstPinnedVersion(t *testing.T) {
	g := &workflow.Graph{Nodes: []workflow.Node{
		{ID: "1", Label: "bet"},
		{ID: "2", Label: "bet", DockerVersion: "6.0.7"},
		{ID: "3", Label: "bet", DockerVersion: "5.0.11"},
	}}

	var buf bytes.Buffer
	manifest, err := newTestExporter(siteFS()).Export(context.Background(), g, &buf)
	require.NoError(t, err)

	files, order := testutil.ReadZip(t, buf.Bytes())
	assert.Equal(t, []string{MainEntry, ReadmeEntry, "cwl/fsl/bet.cwl"}, order)
	assert.Equal(t, "brainlife/fsl:6.0.7", dockerPullOf(t, files["cwl/fsl/bet.cwl"]))
	assert.Equal(t, 3, manifest.Steps)
}

func TestExport_UnpinnedToolsUseCompilerTag(t *testing.T) {
	tools := registry.MustBuiltin()
	exporter := NewExporter(tools, workflow.NewCompiler(tools, workflow.WithDefaultTag("6.0.4")), siteFS())

	var buf bytes.Buffer
	manifest, err := exporter.Export(testutil.TestContext(t), betToFast("", ""), &buf)
	require.NoError(t, err)

	files, _ := testutil.ReadZip(t, buf.Bytes())
	assert.Contains(t, files[MainEntry], "dockerPull: brainlife/fsl:6.0.4")
	assert.Equal(t, "brainlife/fsl:6.0.4", manifest.DockerPulls["cwl/fsl/bet.cwl"])
	assert.Equal(t, "brainlife/fsl:6.0.4", dockerPullOf(t, files["cwl/fsl/fast.cwl"]))
}

func TestExport_WithoutReadme(t *testing.T) {
	site := siteFS()
	delete(site, "README.md")

	var buf bytes.Buffer
	manifest, err := newTestExporter(site).Export(context.Background(), betToFast("", ""), &buf)
	require.NoError(t, err)
	assert.NotContains(t, manifest.Entries, ReadmeEntry)
}

func TestExport_UnknownToolsContributeNoFile(t *testing.T) {
	g := &workflow.Graph{Nodes: []workflow.Node{
		{ID: "1", Label: "bet"},
		{ID: "2", Label: "my_custom_script"},
		{ID: "3", Label: "Note", Placeholder: true},
	}}

	var buf bytes.Buffer
	manifest, err := newTestExporter(siteFS()).Export(context.Background(), g, &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{MainEntry, ReadmeEntry, "cwl/fsl/bet.cwl"}, manifest.Entries)
	assert.Equal(t, 2, manifest.Steps)
}

func TestExport_Errors(t *testing.T) {
	exporter := newTestExporter(siteFS())
	ctx := context.Background()

	_, err := exporter.Export(ctx, nil, io.Discard)
	assert.ErrorIs(t, err, ErrEmptyWorkflow)

	_, err = exporter.Export(ctx, &workflow.Graph{Nodes: []workflow.Node{{ID: "n", Label: "Note", Placeholder: true}}}, io.Discard)
	assert.ErrorIs(t, err, ErrEmptyWorkflow)

	cyclic := betToFast("", "")
	cyclic.Edges = append(cyclic.Edges, workflow.Edge{ID: "back", Source: "2", Target: "1"})
	_, err = exporter.Export(ctx, cyclic, io.Discard)
	assert.ErrorIs(t, err, workflow.ErrGraphHasCycles)

	g := &workflow.Graph{Nodes: []workflow.Node{{ID: "1", Label: "mcflirt"}}}
	_, err = exporter.Export(ctx, g, io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), "cwl/fsl/mcflirt.cwl")
}

func TestExport_UnparseableToolFileIsCopied(t *testing.T) {
	site := siteFS()
	site["cwl/fsl/bet.cwl"] = &fstest.MapFile{Data: []byte("key: [unclosed\n")}

	var buf bytes.Buffer
	_, err := newTestExporter(site).Export(context.Background(), betToFast("", ""), &buf)
	require.NoError(t, err)

	files, _ := testutil.ReadZip(t, buf.Bytes())
	assert.Equal(t, "key: [unclosed\n", files["cwl/fsl/bet.cwl"])
}
