package bundle

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/fmriflow/registry"
	"github.com/BaSui01/fmriflow/workflow"
)

// Archive entry names.
const (
	MainEntry   = "workflows/main.cwl"
	ReadmeEntry = "README.md"
)

// ErrEmptyWorkflow is returned when the graph has nothing to export.
var ErrEmptyWorkflow = errors.New("empty workflow: nothing to export")

// Manifest lists what an export wrote, in archive order.
type Manifest struct {
	Entries []string `json:"entries"`
	Steps   int      `json:"steps"`
	// DockerPulls maps each tool file to the image reference injected into it.
	DockerPulls map[string]string `json:"docker_pulls,omitempty"`
}

// Exporter builds workflow bundles. It is safe for concurrent use.
type Exporter struct {
	tools    registry.Lookup
	compiler *workflow.Compiler
	files    fs.FS
	logger   *zap.Logger
	tracer   trace.Tracer
	// concurrency bounds parallel tool file reads.
	concurrency int
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the exporter's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the tracer used for export spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Exporter) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithConcurrency bounds how many tool files are read at once.
func WithConcurrency(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewExporter creates an exporter. files is the site root that holds the tool
// CWL files at their registry paths and an optional README.md.
func NewExporter(tools registry.Lookup, compiler *workflow.Compiler, files fs.FS, opts ...Option) *Exporter {
	e := &Exporter{
		tools:       tools,
		compiler:    compiler,
		files:       files,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer("github.com/BaSui01/fmriflow/bundle"),
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "bundle"))
	return e
}

// toolFile is one tool description to copy into the archive.
type toolFile struct {
	path       string
	image      string
	version    string
	pinned     bool
	dockerPull string
	content    []byte
}

// Export compiles g and writes the bundle to w as a ZIP archive.
func (e *Exporter) Export(ctx context.Context, g *workflow.Graph, w io.Writer) (*Manifest, error) {
	ctx, span := e.tracer.Start(ctx, "bundle.Export")
	defer span.End()
	start := time.Now()

	manifest, err := e.export(ctx, g, w)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("export failed", zap.Error(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("bundle.entries", len(manifest.Entries)),
		attribute.Int("bundle.steps", manifest.Steps),
	)
	e.logger.Info("bundle exported",
		zap.Int("entries", len(manifest.Entries)),
		zap.Int("steps", manifest.Steps),
		zap.Duration("duration", time.Since(start)),
	)
	return manifest, nil
}

func (e *Exporter) export(ctx context.Context, g *workflow.Graph, w io.Writer) (*Manifest, error) {
	nodes := exportable(g)
	if len(nodes) == 0 {
		return nil, ErrEmptyWorkflow
	}

	doc, err := e.compiler.Compile(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("workflow build failed: %w", err)
	}
	mainCWL, err := workflow.EncodeExecutable(doc)
	if err != nil {
		return nil, err
	}

	files := plan(e.tools, nodes, e.compiler.DefaultTag())
	if err := e.load(ctx, files); err != nil {
		return nil, err
	}
	readme, err := fs.ReadFile(e.files, ReadmeEntry)
	if err != nil {
		e.logger.Debug("README not included", zap.Error(err))
		readme = nil
	}

	manifest := &Manifest{Steps: len(doc.Steps), DockerPulls: make(map[string]string)}
	zw := zip.NewWriter(w)
	add := func(name string, data []byte) error {
		fw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("zip create %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("zip write %s: %w", name, err)
		}
		manifest.Entries = append(manifest.Entries, name)
		return nil
	}

	if err := add(MainEntry, mainCWL); err != nil {
		return nil, err
	}
	if readme != nil {
		if err := add(ReadmeEntry, readme); err != nil {
			return nil, err
		}
	}
	for _, f := range files {
		if err := add(f.path, f.content); err != nil {
			return nil, err
		}
		if f.dockerPull != "" {
			manifest.DockerPulls[f.path] = f.dockerPull
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return manifest, nil
}

// load reads every tool file concurrently and injects Docker hints.
func (e *Exporter) load(ctx context.Context, files []toolFile) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)
	for i := range files {
		f := &files[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := fs.ReadFile(e.files, f.path)
			if err != nil {
				return fmt.Errorf("unable to fetch tool file %s: %w", f.path, err)
			}
			if f.dockerPull != "" {
				injected, err := InjectDockerPull(data, f.dockerPull)
				if err != nil {
					e.logger.Warn("could not parse CWL file for Docker injection",
						zap.String("path", f.path),
						zap.Error(err),
					)
				} else {
					data = injected
				}
			}
			f.content = data
			return nil
		})
	}
	return eg.Wait()
}

// exportable returns the nodes that take part in compilation.
func exportable(g *workflow.Graph) []workflow.Node {
	if g == nil {
		return nil
	}
	nodes := make([]workflow.Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if !n.Placeholder {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// plan lists the unique tool files referenced by registered tools, in order of
// first use. A tool file used by several nodes gets the first pinned version,
// or defaultTag when every node leaves it unpinned.
func plan(tools registry.Lookup, nodes []workflow.Node, defaultTag string) []toolFile {
	var files []toolFile
	index := make(map[string]int)
	for _, n := range nodes {
		tool, ok := tools.Lookup(n.Label)
		if !ok || tool.CWLPath == "" {
			continue
		}
		i, seen := index[tool.CWLPath]
		if !seen {
			i = len(files)
			index[tool.CWLPath] = i
			files = append(files, toolFile{path: tool.CWLPath})
		}
		if tool.DockerImage == "" {
			continue
		}
		f := &files[i]
		pinned := n.DockerVersion != ""
		if f.image == "" || (!f.pinned && pinned) {
			f.image = tool.DockerImage
			f.version = defaultTag
			if pinned {
				f.version = n.DockerVersion
			}
			f.pinned = pinned
		}
	}
	for i := range files {
		if files[i].image != "" {
			files[i].dockerPull = files[i].image + ":" + files[i].version
		}
	}
	return files
}
