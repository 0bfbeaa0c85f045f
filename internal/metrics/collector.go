// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 编译指标
	compilesTotal   *prometheus.CounterVec
	compileDuration *prometheus.HistogramVec
	workflowSteps   prometheus.Histogram

	// 兼容性检查指标
	compatChecksTotal *prometheus.CounterVec

	// 导出指标
	exportsTotal   *prometheus.CounterVec
	exportDuration prometheus.Histogram
	bundleSize     prometheus.Histogram

	// Docker 标签指标
	tagFetchesTotal  *prometheus.CounterVec
	tagFetchDuration *prometheus.HistogramVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 编译指标
	c.compilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_compiles_total",
			Help:      "Total number of workflow compilations",
		},
		[]string{"status"}, // status: ok, cycle, error
	)

	c.compileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_compile_duration_seconds",
			Help:      "Workflow compilation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"status"},
	)

	c.workflowSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_steps",
			Help:      "Number of steps in compiled workflows",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	// 兼容性检查指标
	c.compatChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compat_checks_total",
			Help:      "Total number of connection compatibility checks",
		},
		[]string{"result"}, // result: compatible, warning, incompatible
	)

	// 导出指标
	c.exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_exports_total",
			Help:      "Total number of workflow bundle exports",
		},
		[]string{"status"},
	)

	c.exportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bundle_export_duration_seconds",
			Help:      "Workflow bundle export duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.bundleSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bundle_size_bytes",
			Help:      "Size of exported workflow bundles in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	// Docker 标签指标
	c.tagFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "docker_tag_fetches_total",
			Help:      "Total number of Docker Hub tag lookups",
		},
		[]string{"image", "status"}, // status: ok, hit, error
	)

	c.tagFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "docker_tag_fetch_duration_seconds",
			Help:      "Docker Hub tag lookup duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15},
		},
		[]string{"image"},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🧩 编译与导出指标记录
// =============================================================================

// RecordCompile 记录一次编译，steps 仅在成功时计入
func (c *Collector) RecordCompile(status string, duration time.Duration, steps int) {
	c.compilesTotal.WithLabelValues(status).Inc()
	c.compileDuration.WithLabelValues(status).Observe(duration.Seconds())
	if status == "ok" {
		c.workflowSteps.Observe(float64(steps))
	}
}

// RecordCompatCheck 记录一次连接兼容性检查
func (c *Collector) RecordCompatCheck(compatible, warning bool) {
	result := "incompatible"
	switch {
	case compatible && warning:
		result = "warning"
	case compatible:
		result = "compatible"
	}
	c.compatChecksTotal.WithLabelValues(result).Inc()
}

// RecordExport 记录一次工作流包导出
func (c *Collector) RecordExport(status string, duration time.Duration, size int64) {
	c.exportsTotal.WithLabelValues(status).Inc()
	c.exportDuration.Observe(duration.Seconds())
	if size > 0 {
		c.bundleSize.Observe(float64(size))
	}
}

// RecordTagFetch 记录一次 Docker 标签查询，实现 dockertags.Recorder
func (c *Collector) RecordTagFetch(image, status string, duration time.Duration) {
	c.tagFetchesTotal.WithLabelValues(image, status).Inc()
	c.tagFetchDuration.WithLabelValues(image).Observe(duration.Seconds())
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
