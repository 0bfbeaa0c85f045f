package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// 服务整体状态
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// 单个依赖的状态
const (
	CheckPass        = "pass"
	CheckFail        = "fail"
	CheckDisabled    = "disabled"
	CheckUnavailable = "unavailable"
)

// readyTimeout 单次就绪检查的总超时
const readyTimeout = 5 * time.Second

// CatalogState 就绪检查读取的工具目录状态，由 registry.Reloadable 实现
type CatalogState interface {
	Generation() uint64
	Len() int
}

// HealthHandler 健康检查处理器。
//
// 工具目录是唯一的必需依赖：目录为空时服务不就绪。数据库与 Redis
// 是可选依赖，未配置时报告 disabled，配置了但启动时连接失败报告
// unavailable，运行期探测失败报告 fail；后两种只会让服务降级。
type HealthHandler struct {
	logger  *zap.Logger
	catalog CatalogState
	mu      sync.RWMutex
	deps    []dependency
}

// dependency 一个可选依赖。check 为 nil 时 state 是固定状态
type dependency struct {
	name   string
	check  func(ctx context.Context) error
	state  string
	reason string
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Catalog   *CatalogStatus         `json:"catalog,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CatalogStatus 当前工具目录
type CatalogStatus struct {
	Tools      int    `json:"tools"`
	Generation uint64 `json:"generation"`
}

// CheckResult 单个依赖的检查结果
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// NewHealthHandler 创建健康检查处理器。catalog 为 nil 时服务永远不就绪。
func NewHealthHandler(catalog CatalogState, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:  logger.With(zap.String("component", "health")),
		catalog: catalog,
	}
}

// RegisterCheck 注册一个运行中的可选依赖，就绪检查时调用 check 探测
func (h *HealthHandler) RegisterCheck(name string, check func(ctx context.Context) error) {
	h.add(dependency{name: name, check: check})
}

// RegisterDisabled 记录一个未配置的可选依赖
func (h *HealthHandler) RegisterDisabled(name string) {
	h.add(dependency{name: name, state: CheckDisabled})
}

// RegisterUnavailable 记录一个已配置但启动时无法连接的可选依赖
func (h *HealthHandler) RegisterUnavailable(name string, cause error) {
	d := dependency{name: name, state: CheckUnavailable}
	if cause != nil {
		d.reason = cause.Error()
	}
	h.add(d)
}

func (h *HealthHandler) add(d dependency) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deps = append(h.deps, d)
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleLive 处理 /health 与 /healthz（存活探针），不探测任何依赖
// @Summary 存活检查
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务处于活动状态"
// @Router /health [get]
func (h *HealthHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{Status: StatusHealthy, Timestamp: time.Now()})
}

// HandleReady 处理 /ready 与 /readyz（就绪探针）。
// 可选依赖并发探测；只有工具目录为空时返回 503。
// @Summary 就绪检查
// @Description 报告工具目录代次与可选依赖状态
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务已就绪（可能降级）"
// @Failure 503 {object} HealthStatus "工具目录不可用"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	h.mu.RLock()
	deps := append([]dependency(nil), h.deps...)
	h.mu.RUnlock()

	results := make([]CheckResult, len(deps))
	var eg errgroup.Group
	for i, d := range deps {
		if d.check == nil {
			results[i] = CheckResult{Status: d.state, Message: d.reason}
			continue
		}
		eg.Go(func() error {
			start := time.Now()
			err := d.check(ctx)
			latency := time.Since(start)
			results[i] = CheckResult{Status: CheckPass, Latency: latency.String()}
			if err != nil {
				results[i].Status = CheckFail
				results[i].Message = err.Error()
				h.logger.Warn("dependency check failed",
					zap.String("dependency", d.name),
					zap.Error(err),
					zap.Duration("latency", latency),
				)
			}
			return nil
		})
	}
	_ = eg.Wait()

	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(deps)),
	}
	for i, d := range deps {
		status.Checks[d.name] = results[i]
		if s := results[i].Status; s == CheckFail || s == CheckUnavailable {
			status.Status = StatusDegraded
		}
	}

	if h.catalog == nil || h.catalog.Len() == 0 {
		status.Status = StatusUnhealthy
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	status.Catalog = &CatalogStatus{Tools: h.catalog.Len(), Generation: h.catalog.Generation()}
	WriteJSON(w, http.StatusOK, status)
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} map[string]string "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, r, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}
