package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/BaSui01/fmriflow/api"
	"github.com/BaSui01/fmriflow/internal/cache"
	"github.com/BaSui01/fmriflow/types"
	"github.com/BaSui01/fmriflow/workflow"
	"go.uber.org/zap"
)

// =============================================================================
// 🧩 编译 Handler
// =============================================================================

// CompileCache 编译结果缓存，cache.Manager 实现该接口
type CompileCache interface {
	GetCompiled(ctx context.Context, key string) ([]byte, error)
	SetCompiled(ctx context.Context, key string, doc []byte) error
}

// CompileRecorder 编译指标，metrics.Collector 实现该接口
type CompileRecorder interface {
	RecordCompile(status string, duration time.Duration, steps int)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// 编译结果状态标签
const (
	compileStatusOK    = "ok"
	compileStatusCycle = "cycle"
	compileStatusError = "error"
)

const compileCacheType = "compile"

// CompileHandler 画布编译处理器
type CompileHandler struct {
	compiler     *workflow.Compiler
	logger       *zap.Logger
	cache        CompileCache
	recorder     CompileRecorder
	generation   func() uint64
	maxBodyBytes int64
}

// CompileOption 配置 CompileHandler
type CompileOption func(*CompileHandler)

// WithCompileCache 启用编译结果缓存
func WithCompileCache(c CompileCache) CompileOption {
	return func(h *CompileHandler) { h.cache = c }
}

// WithCompileRecorder 设置指标记录器
func WithCompileRecorder(r CompileRecorder) CompileOption {
	return func(h *CompileHandler) { h.recorder = r }
}

// WithCatalogGeneration 将目录版本纳入缓存键，目录重载后旧结果不再命中
func WithCatalogGeneration(gen func() uint64) CompileOption {
	return func(h *CompileHandler) { h.generation = gen }
}

// WithMaxBodyBytes 设置画布请求体上限
func WithMaxBodyBytes(n int64) CompileOption {
	return func(h *CompileHandler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewCompileHandler 创建编译处理器
func NewCompileHandler(compiler *workflow.Compiler, logger *zap.Logger, opts ...CompileOption) *CompileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &CompileHandler{
		compiler:     compiler,
		logger:       logger.With(zap.String("handler", "compile")),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleCompile 将编辑器画布编译为 CWL 工作流
// @Summary 编译工作流
// @Description 将画布快照编译为 CWL v1.2 文档。YAML 输出带 cwl-runner shebang
// @Tags 编译
// @Accept json
// @Produce application/x-yaml
// @Produce json
// @Param format query string false "输出格式 yaml|json" default(yaml)
// @Param envelope query bool false "以 JSON 包装返回"
// @Success 200 {string} string "CWL 文档"
// @Failure 400 {object} Response "画布无效"
// @Failure 422 {object} Response "图中存在环"
// @Security ApiKeyAuth
// @Router /api/v1/compile [post]
func (h *CompileHandler) HandleCompile(w http.ResponseWriter, r *http.Request) {
	format, err := workflow.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, err.Error()), h.logger)
		return
	}

	body, err := ReadBody(w, r, h.maxBodyBytes, h.logger)
	if err != nil {
		return
	}
	g, err := workflow.ParseCanvas(body)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "invalid canvas").WithCause(err), h.logger)
		return
	}

	fingerprint := g.Fingerprint()
	data, cached, steps, apiErr := h.compile(r.Context(), g, fingerprint, format)
	if apiErr != nil {
		WriteError(w, r, apiErr, h.logger)
		return
	}

	if envelope, _ := strconv.ParseBool(r.URL.Query().Get("envelope")); envelope {
		WriteSuccess(w, r, api.CompileResponse{
			Format:      string(format),
			Fingerprint: fingerprint,
			Steps:       steps,
			Cached:      cached,
			Document:    string(data),
		})
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Workflow-Fingerprint", fingerprint)
	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// compile 先查缓存，未命中时编译并回填。命中缓存时 steps 为 0
func (h *CompileHandler) compile(ctx context.Context, g *workflow.Graph, fingerprint string, format workflow.Format) ([]byte, bool, int, *types.Error) {
	key := h.cacheKey(fingerprint, format)

	if h.cache != nil {
		data, err := h.cache.GetCompiled(ctx, key)
		switch {
		case err == nil:
			h.recordCache(true)
			return data, true, 0, nil
		case !cache.IsCacheMiss(err):
			h.logger.Warn("compile cache read failed", zap.Error(err))
		}
		h.recordCache(false)
	}

	start := time.Now()
	doc, err := h.compiler.Compile(ctx, g)
	if err != nil {
		if errors.Is(err, workflow.ErrGraphHasCycles) {
			h.record(compileStatusCycle, start, 0)
			return nil, false, 0, types.NewError(types.ErrGraphCycle, "workflow graph has cycles").WithCause(err)
		}
		h.record(compileStatusError, start, 0)
		return nil, false, 0, types.NewError(types.ErrInternalError, "compile failed").WithCause(err)
	}

	data, err := encodeDocument(doc, format)
	if err != nil {
		h.record(compileStatusError, start, 0)
		return nil, false, 0, types.NewError(types.ErrEncodingFailed, "failed to encode workflow").WithCause(err)
	}
	h.record(compileStatusOK, start, len(doc.Steps))

	if h.cache != nil {
		if err := h.cache.SetCompiled(ctx, key, data); err != nil {
			h.logger.Warn("compile cache write failed", zap.Error(err))
		}
	}
	return data, false, len(doc.Steps), nil
}

func (h *CompileHandler) cacheKey(fingerprint string, format workflow.Format) string {
	if h.generation != nil {
		fingerprint += "@" + strconv.FormatUint(h.generation(), 10)
	}
	return cache.CompileKey(fingerprint, string(format), h.compiler.DefaultTag())
}

func (h *CompileHandler) record(status string, start time.Time, steps int) {
	if h.recorder != nil {
		h.recorder.RecordCompile(status, time.Since(start), steps)
	}
}

func (h *CompileHandler) recordCache(hit bool) {
	if h.recorder == nil {
		return
	}
	if hit {
		h.recorder.RecordCacheHit(compileCacheType)
	} else {
		h.recorder.RecordCacheMiss(compileCacheType)
	}
}

// encodeDocument YAML 输出即 main.cwl 的内容，带 shebang
func encodeDocument(doc *workflow.Document, format workflow.Format) ([]byte, error) {
	if format == workflow.FormatJSON {
		return workflow.EncodeJSON(doc)
	}
	return workflow.EncodeExecutable(doc)
}
