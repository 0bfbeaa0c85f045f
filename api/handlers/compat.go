package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/fmriflow/api"
	"github.com/BaSui01/fmriflow/compat"
	"github.com/BaSui01/fmriflow/types"
)

// =============================================================================
// 🔌 连接兼容性 Handler
// =============================================================================

// liveReadLimit 单条 WebSocket 消息上限
const liveReadLimit = 64 << 10

// CompatRecorder 兼容性检查指标，metrics.Collector 实现该接口
type CompatRecorder interface {
	RecordCompatCheck(compatible, warning bool)
}

// CompatHandler 连接兼容性检查处理器
type CompatHandler struct {
	catalog        Catalog
	logger         *zap.Logger
	recorder       CompatRecorder
	originPatterns []string
}

// NewCompatHandler 创建兼容性检查处理器。originPatterns 是允许发起
// WebSocket 连接的来源主机模式，为空时仅允许同源。
func NewCompatHandler(catalog Catalog, recorder CompatRecorder, originPatterns []string, logger *zap.Logger) *CompatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompatHandler{
		catalog:        catalog,
		logger:         logger.With(zap.String("handler", "compat")),
		recorder:       recorder,
		originPatterns: originPatterns,
	}
}

// HandleCheck 检查一条连接
// @Summary 连接检查
// @Description 按工具端口或直接按类型与扩展名检查一条连接；只给出两个工具时返回默认映射建议
// @Tags 兼容性
// @Accept json
// @Produce json
// @Param request body api.CompatCheckRequest true "检查请求"
// @Success 200 {object} api.CompatCheckResponse "检查结果"
// @Failure 400 {object} Response "无效请求"
// @Security ApiKeyAuth
// @Router /api/v1/compat/check [post]
func (h *CompatHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req api.CompatCheckRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	resp, apiErr := h.evaluate(&req)
	if apiErr != nil {
		WriteError(w, r, apiErr, h.logger)
		return
	}
	WriteSuccess(w, r, resp)
}

// HandleExtensions 比较两组扩展名
// @Summary 扩展名检查
// @Tags 兼容性
// @Accept json
// @Produce json
// @Param request body api.ExtensionCheckRequest true "扩展名"
// @Success 200 {object} compat.Result "检查结果"
// @Security ApiKeyAuth
// @Router /api/v1/compat/extensions [post]
func (h *CompatHandler) HandleExtensions(w http.ResponseWriter, r *http.Request) {
	var req api.ExtensionCheckRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	result := compat.CheckExtensionCompatibility(req.OutputExtensions, req.InputExtensions)
	h.record(result)
	WriteSuccess(w, r, result)
}

// HandleGlobs 从输出 glob 解析扩展名
// @Summary glob 解析
// @Tags 兼容性
// @Accept json
// @Produce json
// @Param request body api.GlobRequest true "glob 列表"
// @Success 200 {object} api.GlobResponse "扩展名"
// @Security ApiKeyAuth
// @Router /api/v1/compat/globs [post]
func (h *CompatHandler) HandleGlobs(w http.ResponseWriter, r *http.Request) {
	var req api.GlobRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	exts := compat.ParseExtensionsFromGlob(req.Globs)
	if exts == nil {
		exts = []string{}
	}
	WriteSuccess(w, r, api.GlobResponse{
		Extensions: exts,
		Category:   compat.CategoryOf(exts),
	})
}

// HandleLive 在 WebSocket 上持续检查连接。客户端每发送一条
// api.CompatCheckRequest，服务端回复一条带相同 id 的 api.CompatCheckResponse。
// @Summary 实时连接检查
// @Tags 兼容性
// @Success 101 {string} string "WebSocket 升级"
// @Security ApiKeyAuth
// @Router /api/v1/compat/live [get]
func (h *CompatHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	// 会话是长连接，取消服务器级读写超时
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept 已写出错误响应
		h.logger.Debug("websocket upgrade rejected", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(liveReadLimit)

	ctx := r.Context()
	h.logger.Debug("live compat session opened", zap.String("request_id", requestID(r)))

	for {
		if err := h.serveLive(ctx, conn); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				h.logger.Debug("live compat session closed", zap.Int("status", int(status)))
				return
			}
			h.logger.Warn("live compat session failed", zap.Error(err))
			_ = conn.Close(websocket.StatusInternalError, "session failed")
			return
		}
	}
}

// serveLive 处理一条消息。请求格式错误只回报错误，不断开连接。
func (h *CompatHandler) serveLive(ctx context.Context, conn *websocket.Conn) error {
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}

	var resp api.CompatCheckResponse
	if typ != websocket.MessageText {
		resp.Error = "expected a text message"
	} else {
		var req api.CompatCheckRequest
		if err := json.Unmarshal(data, &req); err != nil {
			resp.Error = "invalid JSON message"
		} else {
			r, apiErr := h.evaluate(&req)
			if apiErr != nil {
				r = &api.CompatCheckResponse{ID: req.ID, Error: apiErr.Message}
			}
			resp = *r
		}
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, out)
}

// evaluate 计算一次检查。只给出两个工具时给出默认映射建议。
func (h *CompatHandler) evaluate(req *api.CompatCheckRequest) (*api.CompatCheckResponse, *types.Error) {
	resp := &api.CompatCheckResponse{ID: req.ID}

	if !req.ByTool() {
		resp.Result = compat.CheckTypeCompatibility(req.OutputType, req.InputType, req.OutputExtensions, req.InputExtensions)
		h.record(resp.Result)
		return resp, nil
	}

	if req.TargetTool == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "target_tool is required with source_tool")
	}
	reg := h.catalog.Current()

	switch {
	case req.SourceOutput == "" && req.TargetInput == "":
		s, ok := compat.DefaultMapping(reg, req.SourceTool, req.TargetTool)
		if !ok {
			return nil, types.NewError(types.ErrInvalidRequest, "tools have no connectable ports")
		}
		resp.Suggestion = &s
		resp.Result = s.Result
		resp.Mismatch = compat.ConnectionMismatch(reg, req.SourceTool, req.TargetTool)
	case req.SourceOutput == "" || req.TargetInput == "":
		return nil, types.NewError(types.ErrInvalidRequest, "source_output and target_input must be given together")
	default:
		resp.Result = compat.CheckMapping(reg, req.SourceTool, req.SourceOutput, req.TargetTool, req.TargetInput)
	}

	h.record(resp.Result)
	return resp, nil
}

func (h *CompatHandler) record(r compat.Result) {
	if h.recorder != nil {
		h.recorder.RecordCompatCheck(r.Compatible, r.Warning)
	}
}
