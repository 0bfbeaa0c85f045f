package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/fmriflow/bundle"
	"github.com/BaSui01/fmriflow/compat"
	"github.com/BaSui01/fmriflow/config"
	"github.com/BaSui01/fmriflow/dockertags"
	"github.com/BaSui01/fmriflow/workflow"
)

// =============================================================================
// 🧰 离线子命令
// =============================================================================

// errIncompatible 连接检查不通过时 check 以非零状态退出
var errIncompatible = errors.New("connection is not compatible")

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// commandLogger 离线命令默认不输出日志，-v 时输出到 stderr
func commandLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	return initLogger(config.LogConfig{
		Level:       "debug",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
}

// parseWithInput 解析参数并取出唯一的位置参数（画布文件）。
// 位置参数可以出现在选项之前。
func parseWithInput(fs *flag.FlagSet, args []string) (string, error) {
	var input string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		input, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if input == "" && fs.NArg() > 0 {
		input = fs.Arg(0)
	}
	if input == "" {
		return "", fmt.Errorf("%s: canvas file is required", fs.Name())
	}
	return input, nil
}

func readCanvas(path string) (*workflow.Graph, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read canvas: %w", err)
	}
	return workflow.ParseCanvas(data)
}

// =============================================================================
// 🛠️ compile 命令
// =============================================================================

func runCompile(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("compile")
	format := fs.String("format", "yaml", "Output format: yaml or json")
	output := fs.String("o", "", "Output file (default: stdout)")
	catalogPath := fs.String("catalog", "", "Tool catalogue file (default: built-in)")
	tag := fs.String("tag", workflow.DefaultDockerVersion, "Docker tag for nodes that do not pin one")
	verbose := fs.Bool("v", false, "Verbose logging")
	input, err := parseWithInput(fs, args)
	if err != nil {
		return err
	}

	f, err := workflow.ParseFormat(*format)
	if err != nil {
		return err
	}
	tools, err := loadCatalog(*catalogPath)
	if err != nil {
		return err
	}
	g, err := readCanvas(input)
	if err != nil {
		return err
	}

	compiler := workflow.NewCompiler(tools,
		workflow.WithLogger(commandLogger(*verbose)),
		workflow.WithDefaultTag(*tag),
	)
	doc, err := compiler.Compile(ctx, g)
	if err != nil {
		return err
	}

	if *output != "" {
		return workflow.SaveToFile(doc, *output, f)
	}

	var data []byte
	if f == workflow.FormatJSON {
		data, err = workflow.EncodeJSON(doc)
	} else {
		data, err = workflow.EncodeExecutable(doc)
	}
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

// =============================================================================
// 📦 export 命令
// =============================================================================

func runExport(ctx context.Context, args []string) error {
	fs := newFlagSet("export")
	output := fs.String("o", "workflow.zip", "Bundle file")
	root := fs.String("root", ".", "Directory holding cwl/ tool files and README.md")
	catalogPath := fs.String("catalog", "", "Tool catalogue file (default: built-in)")
	tag := fs.String("tag", workflow.DefaultDockerVersion, "Docker tag for nodes that do not pin one")
	verbose := fs.Bool("v", false, "Verbose logging")
	input, err := parseWithInput(fs, args)
	if err != nil {
		return err
	}

	tools, err := loadCatalog(*catalogPath)
	if err != nil {
		return err
	}
	g, err := readCanvas(input)
	if err != nil {
		return err
	}

	logger := commandLogger(*verbose)
	compiler := workflow.NewCompiler(tools, workflow.WithLogger(logger), workflow.WithDefaultTag(*tag))
	exporter := bundle.NewExporter(tools, compiler, os.DirFS(*root), bundle.WithLogger(logger))

	file, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}
	manifest, err := exporter.Export(ctx, g, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(*output)
		return err
	}

	fmt.Fprintf(os.Stderr, "Wrote %s: %d steps, %d entries\n", *output, manifest.Steps, len(manifest.Entries))
	return nil
}

// =============================================================================
// 🔌 check 命令
// =============================================================================

func runCheck(args []string, stdout io.Writer) error {
	fs := newFlagSet("check")
	outType := fs.String("out", "File", "Upstream output type")
	inType := fs.String("in", "File", "Downstream input type")
	outExts := fs.String("out-ext", "", "Comma-separated upstream extensions")
	inExts := fs.String("in-ext", "", "Comma-separated downstream extensions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result := compat.CheckTypeCompatibility(*outType, *inType, splitList(*outExts), splitList(*inExts))
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, string(data))

	if !result.Compatible {
		return errIncompatible
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// =============================================================================
// 🐳 tags 命令
// =============================================================================

func runTags(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("tags")
	image := fs.String("image", "", "Single image to query (default: every catalogue library)")
	baseURL := fs.String("base-url", dockertags.DefaultBaseURL, "Docker Hub API root")
	catalogPath := fs.String("catalog", "", "Tool catalogue file (default: built-in)")
	verbose := fs.Bool("v", false, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := dockertags.DefaultConfig()
	cfg.BaseURL = *baseURL
	client := dockertags.NewClient(cfg, commandLogger(*verbose))

	if *image != "" {
		tags, err := client.Fetch(ctx, *image)
		if err != nil {
			return err
		}
		for _, t := range tags {
			fmt.Fprintln(stdout, t)
		}
		return nil
	}

	tools, err := loadCatalog(*catalogPath)
	if err != nil {
		return err
	}
	images := tools.DockerImages()
	if len(images) == 0 {
		images = dockertags.DefaultImages
	}
	res, err := client.FetchAll(ctx, images)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LIBRARY\tIMAGE\tTAGS")
	for _, lib := range res.Libraries() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", lib, images[lib], strings.Join(res.Tags[lib], ", "))
	}
	failed := make([]string, 0, len(res.Errors))
	for lib := range res.Errors {
		failed = append(failed, lib)
	}
	sort.Strings(failed)
	for _, lib := range failed {
		fmt.Fprintf(tw, "%s\t%s\terror: %s\n", lib, images[lib], res.Errors[lib])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(res.Tags) == 0 && len(res.Errors) > 0 {
		return fmt.Errorf("no tags fetched for %d libraries", len(res.Errors))
	}
	return nil
}

// =============================================================================
// 📚 tools 命令
// =============================================================================

func runTools(args []string, stdout io.Writer) error {
	fs := newFlagSet("tools")
	catalogPath := fs.String("catalog", "", "Tool catalogue file (default: built-in)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tools, err := loadCatalog(*catalogPath)
	if err != nil {
		return err
	}

	libraries := tools.Libraries()
	names := make([]string, 0, len(libraries))
	for lib := range libraries {
		names = append(names, lib)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LIBRARY\tLABEL\tID\tCWL")
	for _, lib := range names {
		for _, label := range libraries[lib] {
			d, _ := tools.Lookup(label)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", lib, label, d.ID, d.CWLPath)
		}
	}
	return tw.Flush()
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(ctx context.Context, args []string) error {
	fs := newFlagSet("health")
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(*addr, "/")+"/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}

	fmt.Println("OK")
	return nil
}
