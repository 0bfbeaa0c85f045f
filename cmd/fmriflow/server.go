package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/fmriflow/api/handlers"
	"github.com/BaSui01/fmriflow/bundle"
	"github.com/BaSui01/fmriflow/config"
	"github.com/BaSui01/fmriflow/dockertags"
	"github.com/BaSui01/fmriflow/internal/cache"
	"github.com/BaSui01/fmriflow/internal/database"
	"github.com/BaSui01/fmriflow/internal/metrics"
	"github.com/BaSui01/fmriflow/internal/server"
	"github.com/BaSui01/fmriflow/internal/telemetry"
	"github.com/BaSui01/fmriflow/registry"
	"github.com/BaSui01/fmriflow/workflow"
	"github.com/BaSui01/fmriflow/workspace"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// skipAuthPaths 不需要认证的路径
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}

// Server 是 fmriflow 的主服务器
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	providers *telemetry.Providers
	collector *metrics.Collector

	// 领域组件
	catalog  *registry.Reloadable
	compiler *workflow.Compiler
	exporter *bundle.Exporter
	tags     *dockertags.Client

	// 可选基础设施，未启用或连接失败时为 nil
	db       *database.PoolManager
	cache    *cache.Manager
	watcher  *config.FileWatcher
	dbErr    error
	cacheErr error

	// Handlers
	healthHandler    *handlers.HealthHandler
	toolHandler      *handlers.ToolHandler
	compileHandler   *handlers.CompileHandler
	exportHandler    *handlers.ExportHandler
	compatHandler    *handlers.CompatHandler
	tagsHandler      *handlers.DockerTagsHandler
	workspaceHandler *handlers.WorkspaceHandler

	handler http.Handler

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 组装全部组件。providers 可以为 nil（遥测关闭）。
// 构建失败时已打开的资源会被释放。
func NewServer(cfg *config.Config, logger *zap.Logger, providers *telemetry.Providers, collector *metrics.Collector) (*Server, error) {
	if providers == nil {
		providers = &telemetry.Providers{}
	}
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		providers: providers,
		collector: collector,
	}

	if err := s.initCatalog(); err != nil {
		return nil, err
	}
	s.initStorage()
	s.initDomain()
	if err := s.initHandlers(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initCatalog 加载工具目录，未指定目录文件时使用内置目录
func (s *Server) initCatalog() error {
	reg, err := loadCatalog(s.cfg.Registry.CatalogPath)
	if err != nil {
		return err
	}
	s.catalog = registry.NewReloadable(reg)
	s.logger.Info("Tool catalogue loaded",
		zap.String("path", s.cfg.Registry.CatalogPath),
		zap.Int("tools", reg.Len()),
	)
	return nil
}

func loadCatalog(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Builtin()
	}
	reg, err := registry.Load(path)
	if err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tool catalogue: %w", err)
	}
	return reg, nil
}

// initStorage 打开数据库与 Redis。两者都是可选的：不可用时只记录警告，
// 对应的功能被关闭。
func (s *Server) initStorage() {
	if s.cfg.Database.Enabled {
		pm, err := database.Open(s.cfg.Database, s.logger, s.collector)
		if err != nil {
			s.logger.Warn("Database not available, workspace endpoints disabled", zap.Error(err))
			s.dbErr = err
		} else {
			s.db = pm
		}
	}

	if s.cfg.Redis.Enabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = s.cfg.Redis.Addr
		cacheCfg.Password = s.cfg.Redis.Password
		cacheCfg.DB = s.cfg.Redis.DB
		cacheCfg.PoolSize = s.cfg.Redis.PoolSize
		cacheCfg.MinIdleConns = s.cfg.Redis.MinIdleConns
		cacheCfg.KeyPrefix = s.cfg.Redis.KeyPrefix
		cacheCfg.CompileTTL = s.cfg.Redis.CompileTTL
		m, err := cache.NewManager(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn("Redis not available, caching disabled", zap.Error(err))
			s.cacheErr = err
		} else {
			s.cache = m
		}
	}
}

// initDomain 创建编译器、导出器与 Docker Hub 客户端
func (s *Server) initDomain() {
	s.compiler = workflow.NewCompiler(s.catalog,
		workflow.WithLogger(s.logger),
		workflow.WithTracer(s.providers.Tracer("github.com/BaSui01/fmriflow/workflow")),
		workflow.WithDefaultTag(s.cfg.Compiler.DefaultDockerTag),
	)

	s.exporter = bundle.NewExporter(s.catalog, s.compiler, os.DirFS(s.cfg.Registry.ToolRoot),
		bundle.WithLogger(s.logger),
		bundle.WithTracer(s.providers.Tracer("github.com/BaSui01/fmriflow/bundle")),
		bundle.WithConcurrency(s.cfg.Compiler.ExportConcurrency),
	)

	opts := []dockertags.Option{dockertags.WithRecorder(s.collector)}
	if s.cache != nil {
		opts = append(opts, dockertags.WithCache(s.cache))
	}
	s.tags = dockertags.NewClient(dockertags.Config{
		BaseURL:           s.cfg.DockerHub.BaseURL,
		MaxTags:           s.cfg.DockerHub.MaxTags,
		RequestsPerSecond: s.cfg.DockerHub.RequestsPerSecond,
		Timeout:           s.cfg.DockerHub.Timeout,
		CacheTTL:          s.cfg.DockerHub.CacheTTL,
	}, s.logger, opts...)
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() error {
	s.healthHandler = handlers.NewHealthHandler(s.catalog, s.logger)
	switch {
	case !s.cfg.Database.Enabled:
		s.healthHandler.RegisterDisabled("database")
	case s.db == nil:
		s.healthHandler.RegisterUnavailable("database", s.dbErr)
	default:
		s.healthHandler.RegisterCheck("database", s.db.Ping)
	}
	switch {
	case !s.cfg.Redis.Enabled:
		s.healthHandler.RegisterDisabled("redis")
	case s.cache == nil:
		s.healthHandler.RegisterUnavailable("redis", s.cacheErr)
	default:
		s.healthHandler.RegisterCheck("redis", s.cache.Ping)
	}

	s.toolHandler = handlers.NewToolHandler(s.catalog, s.logger)

	compileOpts := []handlers.CompileOption{
		handlers.WithCompileRecorder(s.collector),
		handlers.WithCatalogGeneration(s.catalog.Generation),
		handlers.WithMaxBodyBytes(s.cfg.Server.MaxBodyBytes),
	}
	if s.cache != nil {
		compileOpts = append(compileOpts, handlers.WithCompileCache(s.cache))
	}
	s.compileHandler = handlers.NewCompileHandler(s.compiler, s.logger, compileOpts...)

	s.exportHandler = handlers.NewExportHandler(s.exporter, s.collector, s.cfg.Server.MaxBodyBytes, s.logger)
	s.compatHandler = handlers.NewCompatHandler(s.catalog, s.collector, originPatterns(s.cfg.Server.CORSAllowedOrigins), s.logger)
	s.tagsHandler = handlers.NewDockerTagsHandler(s.tags, s.catalog, s.logger)

	if s.db != nil {
		store := workspace.NewStore(s.db.DB(), s.logger)
		if s.cfg.Database.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := store.Migrate(ctx)
			cancel()
			if err != nil {
				return fmt.Errorf("failed to migrate workspaces: %w", err)
			}
		}
		s.workspaceHandler = handlers.NewWorkspaceHandler(store, s.logger)
	}

	auth, err := Authenticate(s.cfg.Auth, skipAuthPaths, s.logger)
	if err != nil {
		return fmt.Errorf("failed to init authentication: %w", err)
	}

	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	s.handler = Chain(s.routes(),
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		auth,
	)

	s.logger.Info("Handlers initialized",
		zap.Bool("workspaces", s.workspaceHandler != nil),
		zap.Bool("cache", s.cache != nil),
	)
	return nil
}

// originPatterns 把 CORS 来源转换为 WebSocket 来源主机模式
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}

// =============================================================================
// 🌐 路由
// =============================================================================

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查与指标
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleLive)
	mux.HandleFunc("/healthz", s.healthHandler.HandleLive)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))
	mux.Handle("GET /metrics", promhttp.Handler())

	// ========================================
	// API 路由
	// ========================================
	mux.HandleFunc("GET /api/v1/tools", s.toolHandler.HandleList)
	mux.HandleFunc("GET /api/v1/tools/{label}", s.toolHandler.HandleGet)
	mux.HandleFunc("POST /api/v1/compile", s.compileHandler.HandleCompile)
	mux.HandleFunc("POST /api/v1/export", s.exportHandler.HandleExport)
	mux.HandleFunc("POST /api/v1/compat/check", s.compatHandler.HandleCheck)
	mux.HandleFunc("POST /api/v1/compat/extensions", s.compatHandler.HandleExtensions)
	mux.HandleFunc("POST /api/v1/compat/globs", s.compatHandler.HandleGlobs)
	mux.HandleFunc("GET /api/v1/compat/live", s.compatHandler.HandleLive)
	mux.HandleFunc("GET /api/v1/docker/tags", s.tagsHandler.HandleTags)

	if s.workspaceHandler != nil {
		mux.HandleFunc("GET /api/v1/workspaces", s.workspaceHandler.HandleList)
		mux.HandleFunc("POST /api/v1/workspaces", s.workspaceHandler.HandleCreate)
		mux.HandleFunc("GET /api/v1/workspaces/{id}", s.workspaceHandler.HandleGet)
		mux.HandleFunc("PUT /api/v1/workspaces/{id}", s.workspaceHandler.HandleUpdate)
		mux.HandleFunc("PATCH /api/v1/workspaces/{id}", s.workspaceHandler.HandleUpdate)
		mux.HandleFunc("DELETE /api/v1/workspaces/{id}", s.workspaceHandler.HandleDelete)
		s.logger.Info("Workspace API routes registered")
	}
	return mux
}

// Handler 返回带完整中间件链的根 handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// =============================================================================
// 🚀 运行
// =============================================================================

// Run 启动 HTTP 服务并阻塞到 ctx 取消，随后释放全部资源
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	if s.cfg.Registry.Watch && s.cfg.Registry.CatalogPath != "" {
		if err := s.startWatcher(ctx); err != nil {
			s.logger.Warn("Catalogue watcher not started", zap.Error(err))
		}
	}

	httpManager := server.NewManager(s.handler, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		TLSCertFile:     s.cfg.Server.TLSCertFile,
		TLSKeyFile:      s.cfg.Server.TLSKeyFile,
	}, s.logger)

	s.logger.Info("HTTP server starting", zap.Int("port", s.cfg.Server.HTTPPort))
	return httpManager.Run(ctx)
}

// startWatcher 监听目录文件，变更时重新加载。加载失败保留当前目录。
func (s *Server) startWatcher(ctx context.Context) error {
	w, err := config.NewFileWatcher([]string{s.cfg.Registry.CatalogPath}, config.WithWatcherLogger(s.logger))
	if err != nil {
		return err
	}
	w.OnChange(func(event config.FileEvent) {
		if event.Op == config.FileOpRemove {
			s.logger.Warn("Catalogue file removed, keeping current catalogue", zap.String("path", event.Path))
			return
		}
		reg, err := s.catalog.Reload(s.cfg.Registry.CatalogPath)
		if err != nil {
			s.logger.Error("Catalogue reload failed", zap.String("path", event.Path), zap.Error(err))
			return
		}
		s.logger.Info("Catalogue reloaded",
			zap.Int("tools", reg.Len()),
			zap.Uint64("generation", s.catalog.Generation()),
		)
	})
	if err := w.Start(ctx); err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Close 释放服务器持有的资源，可重复调用
func (s *Server) Close() error {
	var errs []error

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("watcher: %w", err))
		}
		s.watcher = nil
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
		s.cache = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
		s.db = nil
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("Shutdown completed with errors", zap.Error(err))
		return err
	}
	s.logger.Info("Graceful shutdown completed")
	return nil
}
