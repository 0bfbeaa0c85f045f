package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/fmriflow/bundle"
	"github.com/BaSui01/fmriflow/registry"
	"github.com/BaSui01/fmriflow/testutil"
	"github.com/BaSui01/fmriflow/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExportHandler(rec ExportRecorder) *ExportHandler {
	tools := registry.MustBuiltin()
	exporter := bundle.NewExporter(tools, workflow.NewCompiler(tools), testutil.ToolSite())
	return NewExportHandler(exporter, rec, 0, nil)
}

// exportRecorder 记录导出指标
type exportRecorder struct {
	statuses []string
	sizes    []int64
}

func (e *exportRecorder) RecordExport(status string, _ time.Duration, size int64) {
	e.statuses = append(e.statuses, status)
	e.sizes = append(e.sizes, size)
}

// failingExporter 总是返回给定错误
type failingExporter struct{ err error }

func (f failingExporter) Export(context.Context, *workflow.Graph, io.Writer) (*bundle.Manifest, error) {
	return nil, f.err
}

// =============================================================================
// 🧪 ExportHandler 测试
// =============================================================================

func TestExportHandler_HandleExport(t *testing.T) {
	rec := &exportRecorder{}
	h := newExportHandler(rec)

	w := postJSON(h.HandleExport, "/api/v1/export", betFastCanvas)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="workflow.zip"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "2", w.Header().Get("X-Workflow-Steps"))

	data := w.Body.Bytes()
	files, names := testutil.ReadZip(t, data)
	assert.Contains(t, names, bundle.MainEntry)
	assert.Contains(t, names, "cwl/fsl/bet.cwl")
	assert.Contains(t, names, "cwl/fsl/fast.cwl")
	assert.True(t, strings.HasPrefix(files[bundle.MainEntry], workflow.Shebang))

	assert.Equal(t, []string{"ok"}, rec.statuses)
	assert.Equal(t, []int64{int64(len(data))}, rec.sizes)
}

func TestExportHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		exporter   BundleExporter
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid canvas",
			exporter:   failingExporter{},
			body:       `{"nodes":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "empty workflow",
			exporter:   failingExporter{err: bundle.ErrEmptyWorkflow},
			body:       `{"nodes":[],"edges":[]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "EMPTY_WORKFLOW",
		},
		{
			name:       "cycle",
			exporter:   failingExporter{err: errors.Join(errors.New("workflow build failed"), workflow.ErrGraphHasCycles)},
			body:       cyclicCanvas,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "GRAPH_CYCLE",
		},
		{
			name:       "missing tool file",
			exporter:   failingExporter{err: errors.New("open cwl/fsl/bet.cwl: file does not exist")},
			body:       betFastCanvas,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "BUNDLE_FAILED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &exportRecorder{}
			h := NewExportHandler(tt.exporter, rec, 0, nil)

			w := postJSON(h.HandleExport, "/api/v1/export", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			env := decodeEnvelope(t, w, nil)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			// 服务端错误不外泄细节
			if tt.wantStatus >= http.StatusInternalServerError {
				assert.Empty(t, env.Error.Details)
			}
		})
	}
}

func TestExportHandler_RealEmptyGraph(t *testing.T) {
	h := newExportHandler(nil)

	w := postJSON(h.HandleExport, "/api/v1/export", testutil.PlaceholderCanvas)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
