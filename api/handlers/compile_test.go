package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/fmriflow/api"
	"github.com/BaSui01/fmriflow/internal/cache"
	"github.com/BaSui01/fmriflow/registry"
	"github.com/BaSui01/fmriflow/testutil"
	"github.com/BaSui01/fmriflow/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	betFastCanvas = testutil.BetFastCanvas
	cyclicCanvas  = testutil.CyclicCanvas
)

// memoryCache 内存编译缓存
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) GetCompiled(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) SetCompiled(_ context.Context, key string, doc []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = doc
	return nil
}

func (c *memoryCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.data))
	for k := range c.data {
		out = append(out, k)
	}
	return out
}

// fakeRecorder 记录指标调用
type fakeRecorder struct {
	mu       sync.Mutex
	compiles []string
	steps    []int
	hits     int
	misses   int
	compat   []bool
}

func (f *fakeRecorder) RecordCompile(status string, _ time.Duration, steps int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compiles = append(f.compiles, status)
	f.steps = append(f.steps, steps)
}

func (f *fakeRecorder) RecordCacheHit(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
}

func (f *fakeRecorder) RecordCacheMiss(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.misses++
}

func (f *fakeRecorder) RecordCompatCheck(compatible, _ bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compat = append(f.compat, compatible)
}

func (f *fakeRecorder) compatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.compat)
}

func newCompileHandler(opts ...CompileOption) *CompileHandler {
	compiler := workflow.NewCompiler(registry.MustBuiltin())
	return NewCompileHandler(compiler, nil, opts...)
}

func postCompile(h *CompileHandler, query, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/compile"+query, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	h.HandleCompile(w, r)
	return w
}

// =============================================================================
// 🧪 CompileHandler 测试
// =============================================================================

func TestCompileHandler_YAML(t *testing.T) {
	rec := &fakeRecorder{}
	h := newCompileHandler(WithCompileRecorder(rec))

	w := postCompile(h, "", betFastCanvas)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-yaml", w.Header().Get("Content-Type"))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Len(t, w.Header().Get("X-Workflow-Fingerprint"), 64)

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, workflow.Shebang))
	assert.Contains(t, body, "cwlVersion: v1.2")
	assert.Contains(t, body, "run: ../cwl/fsl/bet.cwl")
	assert.Contains(t, body, "bet/brain_extraction")

	assert.Equal(t, []string{"ok"}, rec.compiles)
	assert.Equal(t, []int{2}, rec.steps)
	assert.Zero(t, rec.hits+rec.misses)
}

func TestCompileHandler_JSONEnvelope(t *testing.T) {
	h := newCompileHandler()

	w := postCompile(h, "?format=json&envelope=true", betFastCanvas)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.CompileResponse
	env := decodeEnvelope(t, w, &resp)
	assert.True(t, env.Success)
	assert.Equal(t, "json", resp.Format)
	assert.Equal(t, 2, resp.Steps)
	assert.False(t, resp.Cached)
	assert.Contains(t, resp.Document, `"cwlVersion": "v1.2"`)
}

func TestCompileHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"bad format", "?format=xml", betFastCanvas, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad canvas", "", `{"nodes": [`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"cycle", "", cyclicCanvas, http.StatusUnprocessableEntity, "GRAPH_CYCLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postCompile(newCompileHandler(), tt.query, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			env := decodeEnvelope(t, w, nil)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestCompileHandler_BodyLimit(t *testing.T) {
	h := newCompileHandler(WithMaxBodyBytes(16))

	w := postCompile(h, "", betFastCanvas)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	env := decodeEnvelope(t, w, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", env.Error.Code)
}

func TestCompileHandler_EmptyCanvas(t *testing.T) {
	w := postCompile(newCompileHandler(), "?format=json", `{"nodes": [], "edges": []}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"steps": {}`)
}

func TestCompileHandler_Cache(t *testing.T) {
	mc := newMemoryCache()
	rec := &fakeRecorder{}
	h := newCompileHandler(WithCompileCache(mc), WithCompileRecorder(rec))

	first := postCompile(h, "", betFastCanvas)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := postCompile(h, "", betFastCanvas)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	// 不同格式使用不同缓存键
	third := postCompile(h, "?format=json", betFastCanvas)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))

	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 2, rec.misses)
	assert.Equal(t, []string{"ok", "ok"}, rec.compiles)
	assert.Len(t, mc.keys(), 2)
}

func TestCompileHandler_CacheFollowsCatalogGeneration(t *testing.T) {
	mc := newMemoryCache()
	catalog := newBuiltinCatalog()
	compiler := workflow.NewCompiler(catalog)
	h := NewCompileHandler(compiler, nil,
		WithCompileCache(mc),
		WithCatalogGeneration(catalog.Generation),
	)

	postCompile(h, "", betFastCanvas)
	catalog.Swap(registry.MustBuiltin())

	w := postCompile(h, "", betFastCanvas)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Len(t, mc.keys(), 2)

	for _, k := range mc.keys() {
		assert.True(t, strings.HasPrefix(k, "compile:"))
		assert.True(t, strings.HasSuffix(k, ":yaml:latest"))
	}
}

func TestCompileHandler_EnvelopeFromCache(t *testing.T) {
	h := newCompileHandler(WithCompileCache(newMemoryCache()))

	postCompile(h, "?envelope=true", betFastCanvas)
	w := postCompile(h, "?envelope=true", betFastCanvas)

	var resp api.CompileResponse
	decodeEnvelope(t, w, &resp)
	assert.True(t, resp.Cached)
	assert.Zero(t, resp.Steps)
	assert.NotEmpty(t, resp.Fingerprint)
}
