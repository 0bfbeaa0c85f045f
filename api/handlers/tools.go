package handlers

import (
	"net/http"

	"github.com/BaSui01/fmriflow/api"
	"github.com/BaSui01/fmriflow/compat"
	"github.com/BaSui01/fmriflow/registry"
	"github.com/BaSui01/fmriflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🧰 工具目录 Handler
// =============================================================================

// Catalog 提供当前生效的工具目录，registry.Reloadable 实现该接口
type Catalog interface {
	Current() *registry.Registry
}

// ToolHandler 工具目录处理器
type ToolHandler struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewToolHandler 创建工具目录处理器
func NewToolHandler(catalog Catalog, logger *zap.Logger) *ToolHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolHandler{
		catalog: catalog,
		logger:  logger.With(zap.String("handler", "tools")),
	}
}

// HandleList 列出目录中的全部工具
// @Summary 工具列表
// @Description 按目录顺序列出工具及按库分组的标签
// @Tags 工具
// @Produce json
// @Success 200 {object} api.ToolListResponse "工具列表"
// @Security ApiKeyAuth
// @Router /api/v1/tools [get]
func (h *ToolHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	reg := h.catalog.Current()
	labels := reg.Labels()

	resp := api.ToolListResponse{
		Tools:     make([]api.ToolSummary, 0, len(labels)),
		Libraries: reg.Libraries(),
	}
	for _, label := range labels {
		d, ok := reg.Lookup(label)
		if !ok {
			continue
		}
		resp.Tools = append(resp.Tools, api.ToolSummary{
			Label:          d.Label,
			ID:             d.ID,
			Library:        d.Library,
			DockerImage:    d.DockerImage,
			PrimaryOutputs: d.PrimaryOutputs,
			RequiredInputs: len(d.RequiredInputs),
			OptionalInputs: len(d.OptionalInputs),
			Outputs:        len(d.Outputs),
		})
	}

	WriteSuccess(w, r, resp)
}

// HandleGet 返回单个工具的描述与可连接端口
// @Summary 工具详情
// @Description 返回工具描述与端口；未登记的标签返回 404
// @Tags 工具
// @Produce json
// @Param label path string true "工具标签"
// @Success 200 {object} api.ToolDetailResponse "工具详情"
// @Failure 404 {object} Response "工具不存在"
// @Security ApiKeyAuth
// @Router /api/v1/tools/{label} [get]
func (h *ToolHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	label := r.PathValue("label")
	reg := h.catalog.Current()

	d, ok := reg.Lookup(label)
	if !ok {
		WriteError(w, r, types.NewError(types.ErrToolNotFound, "tool not found: "+label), h.logger)
		return
	}

	WriteSuccess(w, r, api.ToolDetailResponse{
		Tool:  d,
		Ports: compat.PortsOf(reg, label),
	})
}
