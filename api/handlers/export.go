package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/BaSui01/fmriflow/bundle"
	"github.com/BaSui01/fmriflow/types"
	"github.com/BaSui01/fmriflow/workflow"
	"go.uber.org/zap"
)

// =============================================================================
// 📦 导出 Handler
// =============================================================================

// BundleExporter 生成工作流 ZIP 包，bundle.Exporter 实现该接口
type BundleExporter interface {
	Export(ctx context.Context, g *workflow.Graph, w io.Writer) (*bundle.Manifest, error)
}

// ExportRecorder 导出指标，metrics.Collector 实现该接口
type ExportRecorder interface {
	RecordExport(status string, duration time.Duration, size int64)
}

// 导出附件文件名
const bundleFilename = "workflow.zip"

// ExportHandler 工作流导出处理器
type ExportHandler struct {
	exporter     BundleExporter
	recorder     ExportRecorder
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewExportHandler 创建导出处理器。maxBodyBytes 不大于 0 时使用默认上限
func NewExportHandler(exporter BundleExporter, recorder ExportRecorder, maxBodyBytes int64, logger *zap.Logger) *ExportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &ExportHandler{
		exporter:     exporter,
		recorder:     recorder,
		logger:       logger.With(zap.String("handler", "export")),
		maxBodyBytes: maxBodyBytes,
	}
}

// HandleExport 将画布导出为可运行的工作流 ZIP 包
// @Summary 导出工作流包
// @Description 编译画布并打包 workflows/main.cwl、引用的工具描述与 README
// @Tags 导出
// @Accept json
// @Produce application/zip
// @Success 200 {file} file "workflow.zip"
// @Failure 400 {object} Response "画布无效"
// @Failure 422 {object} Response "空工作流或图中存在环"
// @Failure 500 {object} Response "打包失败"
// @Security ApiKeyAuth
// @Router /api/v1/export [post]
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	body, err := ReadBody(w, r, h.maxBodyBytes, h.logger)
	if err != nil {
		return
	}
	g, err := workflow.ParseCanvas(body)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "invalid canvas").WithCause(err), h.logger)
		return
	}

	// 先写入缓冲区，打包失败时仍可返回 JSON 错误
	start := time.Now()
	var buf bytes.Buffer
	manifest, err := h.exporter.Export(r.Context(), g, &buf)
	if err != nil {
		h.record("error", start, 0)
		WriteError(w, r, exportError(err), h.logger)
		return
	}
	h.record("ok", start, int64(buf.Len()))

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+bundleFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Workflow-Steps", strconv.Itoa(manifest.Steps))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func exportError(err error) *types.Error {
	switch {
	case errors.Is(err, bundle.ErrEmptyWorkflow):
		return types.NewError(types.ErrEmptyWorkflow, "workflow has no tool nodes")
	case errors.Is(err, workflow.ErrGraphHasCycles):
		return types.NewError(types.ErrGraphCycle, "workflow graph has cycles").WithCause(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.NewError(types.ErrUpstreamTimeout, "export cancelled").WithCause(err)
	default:
		return types.NewError(types.ErrBundleFailed, "failed to build workflow bundle").WithCause(err)
	}
}

func (h *ExportHandler) record(status string, start time.Time, size int64) {
	if h.recorder != nil {
		h.recorder.RecordExport(status, time.Since(start), size)
	}
}
