package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/BaSui01/fmriflow/api"
	"github.com/BaSui01/fmriflow/types"
	"github.com/BaSui01/fmriflow/workflow"
	"github.com/BaSui01/fmriflow/workspace"
	"go.uber.org/zap"
)

// =============================================================================
// 💾 工作区 Handler
// =============================================================================

// maxListLimit 单页工作区数量上限
const maxListLimit = 200

// WorkspaceHandler 工作区 CRUD 处理器
type WorkspaceHandler struct {
	store  *workspace.Store
	logger *zap.Logger
}

// NewWorkspaceHandler 创建工作区处理器
func NewWorkspaceHandler(store *workspace.Store, logger *zap.Logger) *WorkspaceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkspaceHandler{
		store:  store,
		logger: logger.With(zap.String("handler", "workspace")),
	}
}

// HandleList 分页列出工作区
// @Summary 工作区列表
// @Description 按最近更新排序，q 按名称模糊过滤
// @Tags 工作区
// @Produce json
// @Param limit query int false "页大小" default(50)
// @Param offset query int false "偏移量" default(0)
// @Param q query string false "名称过滤"
// @Success 200 {object} api.WorkspaceListResponse "工作区列表"
// @Failure 400 {object} Response "分页参数无效"
// @Security ApiKeyAuth
// @Router /api/v1/workspaces [get]
func (h *WorkspaceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := queryInt(query.Get("limit"), 50)
	if err != nil || limit <= 0 || limit > maxListLimit {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "limit must be between 1 and "+strconv.Itoa(maxListLimit)), h.logger)
		return
	}
	offset, err := queryInt(query.Get("offset"), 0)
	if err != nil || offset < 0 {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "offset must be a non-negative integer"), h.logger)
		return
	}

	items, total, err := h.store.List(r.Context(), workspace.ListOptions{
		Limit:  limit,
		Offset: offset,
		Query:  query.Get("q"),
	})
	if err != nil {
		WriteError(w, r, workspaceError(err), h.logger)
		return
	}

	resp := api.WorkspaceListResponse{
		Workspaces: make([]api.WorkspaceResponse, 0, len(items)),
		Total:      total,
		Limit:      limit,
		Offset:     offset,
	}
	for i := range items {
		resp.Workspaces = append(resp.Workspaces, toWorkspaceResponse(&items[i], false))
	}
	WriteSuccess(w, r, resp)
}

// HandleCreate 保存新的工作区
// @Summary 创建工作区
// @Tags 工作区
// @Accept json
// @Produce json
// @Param request body api.WorkspaceRequest true "工作区"
// @Success 201 {object} api.WorkspaceResponse "已创建"
// @Failure 400 {object} Response "名称或画布无效"
// @Security ApiKeyAuth
// @Router /api/v1/workspaces [post]
func (h *WorkspaceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.WorkspaceRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	g, apiErr := parseRequestCanvas(req.Canvas)
	if apiErr != nil {
		WriteError(w, r, apiErr, h.logger)
		return
	}
	var name, description string
	if req.Name != nil {
		name = *req.Name
	}
	if req.Description != nil {
		description = *req.Description
	}

	ws, err := h.store.Create(r.Context(), name, description, g)
	if err != nil {
		WriteError(w, r, workspaceError(err), h.logger)
		return
	}
	WriteCreated(w, r, toWorkspaceResponse(ws, true))
}

// HandleGet 返回工作区及画布
// @Summary 工作区详情
// @Tags 工作区
// @Produce json
// @Param id path string true "工作区 ID"
// @Success 200 {object} api.WorkspaceResponse "工作区"
// @Failure 404 {object} Response "工作区不存在"
// @Security ApiKeyAuth
// @Router /api/v1/workspaces/{id} [get]
func (h *WorkspaceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ws, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, workspaceError(err), h.logger)
		return
	}
	WriteSuccess(w, r, toWorkspaceResponse(ws, true))
}

// HandleUpdate 部分更新工作区，未提供的字段保持不变
// @Summary 更新工作区
// @Tags 工作区
// @Accept json
// @Produce json
// @Param id path string true "工作区 ID"
// @Param request body api.WorkspaceRequest true "要更新的字段"
// @Success 200 {object} api.WorkspaceResponse "已更新"
// @Failure 400 {object} Response "名称或画布无效"
// @Failure 404 {object} Response "工作区不存在"
// @Security ApiKeyAuth
// @Router /api/v1/workspaces/{id} [patch]
func (h *WorkspaceHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req api.WorkspaceRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	u := workspace.Update{Name: req.Name, Description: req.Description}
	if len(req.Canvas) > 0 {
		g, apiErr := parseRequestCanvas(req.Canvas)
		if apiErr != nil {
			WriteError(w, r, apiErr, h.logger)
			return
		}
		u.Graph = g
	}

	ws, err := h.store.Update(r.Context(), r.PathValue("id"), u)
	if err != nil {
		WriteError(w, r, workspaceError(err), h.logger)
		return
	}
	WriteSuccess(w, r, toWorkspaceResponse(ws, true))
}

// HandleDelete 删除工作区
// @Summary 删除工作区
// @Tags 工作区
// @Param id path string true "工作区 ID"
// @Success 204 "已删除"
// @Failure 404 {object} Response "工作区不存在"
// @Security ApiKeyAuth
// @Router /api/v1/workspaces/{id} [delete]
func (h *WorkspaceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		WriteError(w, r, workspaceError(err), h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseRequestCanvas 空画布视为空图
func parseRequestCanvas(raw json.RawMessage) (*workflow.Graph, *types.Error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &workflow.Graph{}, nil
	}
	g, err := workflow.ParseCanvas(raw)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidGraph, "invalid canvas").WithCause(err)
	}
	return g, nil
}

func queryInt(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}

func workspaceError(err error) *types.Error {
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		return types.NewError(types.ErrWorkspaceNotFound, "workspace not found").WithCause(err)
	case errors.Is(err, workspace.ErrInvalidName):
		return types.NewError(types.ErrInvalidRequest, err.Error()).WithCause(err)
	default:
		return types.WrapError(err, types.ErrInternalError, "workspace storage failed")
	}
}

func toWorkspaceResponse(ws *workspace.Workspace, withCanvas bool) api.WorkspaceResponse {
	resp := api.WorkspaceResponse{
		ID:          ws.ID,
		Name:        ws.Name,
		Description: ws.Description,
		Fingerprint: ws.Fingerprint,
		NodeCount:   ws.NodeCount,
		EdgeCount:   ws.EdgeCount,
		CreatedAt:   ws.CreatedAt,
		UpdatedAt:   ws.UpdatedAt,
	}
	if withCanvas && ws.Canvas != "" {
		resp.Canvas = json.RawMessage(ws.Canvas)
	}
	return resp
}
