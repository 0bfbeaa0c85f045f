package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/fmriflow/api/handlers"
	"github.com/BaSui01/fmriflow/config"
	"github.com/BaSui01/fmriflow/internal/metrics"
	"github.com/BaSui01/fmriflow/testutil"
)

const serverCanvas = testutil.BetFastCanvas

// promauto 注册到全局 registry，每个测试服务器使用独立命名空间
var namespaceSeq atomic.Int64

func testCollector() (*metrics.Collector, string) {
	ns := fmt.Sprintf("fmriflow_cmd_test_%d", namespaceSeq.Add(1))
	return metrics.NewCollector(ns, zap.NewNop()), ns
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Name = filepath.Join(t.TempDir(), "fmriflow.db")
	cfg.Database.MaxOpenConns = 1
	cfg.Database.MaxIdleConns = 1
	cfg.Registry.ToolRoot = t.TempDir()
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, string) {
	t.Helper()
	collector, ns := testCollector()
	srv, err := NewServer(cfg, zap.NewNop(), nil, collector)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv, ns
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestServer_Routes(t *testing.T) {
	srv, ns := newTestServer(t, testConfig(t))
	h := srv.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"ready", http.MethodGet, "/readyz", "", http.StatusOK},
		{"version", http.MethodGet, "/version", "", http.StatusOK},
		{"tool list", http.MethodGet, "/api/v1/tools", "", http.StatusOK},
		{"tool detail", http.MethodGet, "/api/v1/tools/bet", "", http.StatusOK},
		{"compile", http.MethodPost, "/api/v1/compile?format=json", serverCanvas, http.StatusOK},
		{"globs", http.MethodPost, "/api/v1/compat/globs", `{"globs": ["*.nii.gz"]}`, http.StatusOK},
		{"compile wrong method", http.MethodGet, "/api/v1/compile", "", http.StatusMethodNotAllowed},
		{"workspace list", http.MethodGet, "/api/v1/workspaces", "", http.StatusOK},
		{"unknown route", http.MethodGet, "/api/v1/nothing", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		})
	}

	w := serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), ns+"_http_requests_total")
	assert.Contains(t, w.Body.String(), `path="/api/v1/tools/:label"`)
}

func TestServer_WorkspaceLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))
	h := srv.Handler()

	body := fmt.Sprintf(`{"name": "preprocessing", "canvas": %s}`, serverCanvas)
	w := serve(h, http.MethodPost, "/api/v1/workspaces", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data struct {
			ID        string `json:"id"`
			NodeCount int    `json:"node_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)
	assert.Equal(t, 2, created.Data.NodeCount)

	path := "/api/v1/workspaces/" + created.Data.ID
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPut, path, `{"description": "bet then fast"}`).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, path, "").Code)
	assert.Equal(t, http.StatusNoContent, serve(h, http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, path, "").Code)
}

func TestServer_DatabaseDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Enabled = false
	srv, _ := newTestServer(t, cfg)

	assert.Nil(t, srv.db)
	assert.Equal(t, http.StatusNotFound, serve(srv.Handler(), http.MethodGet, "/api/v1/workspaces", "").Code)
	assert.Equal(t, http.StatusOK, serve(srv.Handler(), http.MethodGet, "/api/v1/tools", "").Code)
}

func TestServer_Readiness(t *testing.T) {
	decode := func(t *testing.T, w *httptest.ResponseRecorder) handlers.HealthStatus {
		t.Helper()
		var status handlers.HealthStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		return status
	}

	srv, _ := newTestServer(t, testConfig(t))
	w := serve(srv.Handler(), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	assert.Equal(t, handlers.StatusHealthy, status.Status)
	assert.Equal(t, handlers.CheckPass, status.Checks["database"].Status)
	assert.Equal(t, handlers.CheckDisabled, status.Checks["redis"].Status)
	require.NotNil(t, status.Catalog)
	assert.Positive(t, status.Catalog.Tools)

	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"
	srv, _ = newTestServer(t, cfg)
	w = serve(srv.Handler(), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, w.Code)
	status = decode(t, w)
	assert.Equal(t, handlers.StatusDegraded, status.Status)
	assert.Equal(t, handlers.CheckUnavailable, status.Checks["database"].Status)
	assert.Contains(t, status.Checks["database"].Message, "unsupported database driver")
}

func TestServer_Authentication(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Enabled = false
	cfg.Auth.APIKeys = []string{"secret-key"}
	srv, _ := newTestServer(t, cfg)
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/api/v1/tools", "").Code)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil)
	r.Header.Set("X-API-Key", "secret-key")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_InvalidCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Registry.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
	collector, _ := testCollector()

	_, err := NewServer(cfg, zap.NewNop(), nil, collector)
	assert.Error(t, err)
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"http://localhost:5173", "*", "https://editor.example.org", "::bad"})
	assert.Equal(t, []string{"localhost:5173", "*", "editor.example.org"}, got)
	assert.Empty(t, originPatterns(nil))
}

// =============================================================================
// 🧰 离线命令测试
// =============================================================================

func writeCanvas(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canvas.json")
	require.NoError(t, os.WriteFile(path, []byte(serverCanvas), 0o644))
	return path
}

func TestRunCompile(t *testing.T) {
	canvas := writeCanvas(t)

	var out bytes.Buffer
	require.NoError(t, runCompile(testutil.TestContext(t), []string{canvas, "-tag", "6.0.4"}, &out))
	assert.True(t, strings.HasPrefix(out.String(), "#!/usr/bin/env cwl-runner"))
	assert.Contains(t, out.String(), "run: ../cwl/fsl/bet.cwl")
	assert.Contains(t, out.String(), ":6.0.4")

	target := filepath.Join(t.TempDir(), "main.json")
	require.NoError(t, runCompile(t.Context(), []string{"-format", "json", "-o", target, canvas}, &out))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	assert.Error(t, runCompile(t.Context(), []string{"-format", "xml", canvas}, &out))
	assert.Error(t, runCompile(t.Context(), nil, &out))
}

func TestRunExport(t *testing.T) {
	canvas := writeCanvas(t)
	target := filepath.Join(t.TempDir(), "bundle.zip")

	require.NoError(t, runExport(testutil.TestContext(t), []string{canvas, "-o", target, "-root", testutil.WriteToolSite(t), "-tag", "6.0.4"}))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	files, order := testutil.ReadZip(t, data)
	assert.Equal(t, "workflows/main.cwl", order[0])
	assert.Contains(t, files, "cwl/fsl/bet.cwl")
	assert.Contains(t, files["cwl/fsl/bet.cwl"], "brainlife/fsl:6.0.4")

	// 缺少工具文件时不留下半成品
	broken := filepath.Join(t.TempDir(), "broken.zip")
	assert.Error(t, runExport(testutil.TestContext(t), []string{canvas, "-o", broken, "-root", t.TempDir()}))
	_, err = os.Stat(broken)
	assert.True(t, os.IsNotExist(err))
}

func TestRunCheck(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runCheck([]string{"-out", "File", "-in", "File", "-out-ext", ".nii.gz", "-in-ext", ".nii, .nii.gz"}, &out))
	assert.Contains(t, out.String(), `"compatible": true`)

	out.Reset()
	err := runCheck([]string{"-out", "int", "-in", "File"}, &out)
	assert.ErrorIs(t, err, errIncompatible)
	assert.Contains(t, out.String(), `"compatible": false`)
}

func TestRunTools(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runTools(nil, &out))
	assert.Contains(t, out.String(), "LIBRARY")
	assert.Contains(t, out.String(), "cwl/fsl/bet.cwl")
}

func TestRun_UnknownCommand(t *testing.T) {
	assert.Error(t, run(t.Context(), "frobnicate", nil))
}
