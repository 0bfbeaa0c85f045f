package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

// =============================================================================
// 🖼️ 画布样例
// =============================================================================

// BetFastCanvas 是编辑器导出的两步流水线：bet 的脑提取结果送入 fast
const BetFastCanvas = `{
  "nodes": [
    {"id": "n1", "position": {"x": 0, "y": 0}, "data": {"label": "bet"}},
    {"id": "n2", "position": {"x": 200, "y": 0}, "data": {"label": "fast"}}
  ],
  "edges": [
    {"id": "e1", "source": "n1", "target": "n2",
     "data": {"mappings": [{"sourceOutput": "brain_extraction", "targetInput": "input"}]}}
  ]
}`

// CyclicCanvas 两个节点互相连接，无法排序
const CyclicCanvas = `{
  "nodes": [
    {"id": "a", "data": {"label": "bet"}},
    {"id": "b", "data": {"label": "fast"}}
  ],
  "edges": [
    {"source": "a", "target": "b"},
    {"source": "b", "target": "a"}
  ]
}`

// PlaceholderCanvas 只有占位节点，编译结果为空
const PlaceholderCanvas = `{
  "nodes": [
    {"id": "p", "data": {"label": "Drop a tool here", "isDummy": true}}
  ],
  "edges": []
}`

// =============================================================================
// 📁 工具站点样例
// =============================================================================

// 站点内文件，路径与内置目录中的 cwl_path 一致
var siteFiles = map[string]string{
	"cwl/fsl/bet.cwl":  "cwlVersion: v1.2\nclass: CommandLineTool\nbaseCommand: bet\n",
	"cwl/fsl/fast.cwl": "cwlVersion: v1.2\nclass: CommandLineTool\nbaseCommand: fast\n",
	"README.md":        "# bundle\n",
}

// ToolSite 返回包含 bet、fast 工具文件与 README 的内存站点
func ToolSite() fstest.MapFS {
	site := make(fstest.MapFS, len(siteFiles))
	for name, data := range siteFiles {
		site[name] = &fstest.MapFile{Data: []byte(data)}
	}
	return site
}

// WriteToolSite 把站点写入临时目录并返回目录路径
func WriteToolSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for name, data := range siteFiles {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
	return root
}
