// =============================================================================
// fmriflow 主入口
// =============================================================================
// 服务入口与离线工具：HTTP 服务、画布编译、工作流打包、连接检查、
// Docker 标签查询与数据库迁移
//
// 使用方法:
//
//	fmriflow serve                          # 启动服务
//	fmriflow serve --config config.yaml     # 指定配置文件
//	fmriflow compile canvas.json -o main.cwl
//	fmriflow export canvas.json -o workflow.zip
//	fmriflow check -out File -in File -out-ext .nii.gz -in-ext .nii
//	fmriflow tags -image brainlife/fsl
//	fmriflow tools                          # 列出工具目录
//	fmriflow migrate up                     # 运行数据库迁移
//	fmriflow health                         # 健康检查
//	fmriflow version                        # 显示版本信息
// =============================================================================

// @title fmriflow API
// @version 1.0.0
// @description fmriflow compiles neuroimaging pipeline canvases into CWL workflows.
// @description
// @description ## Features
// @description - Canvas to CWL compilation (YAML or JSON)
// @description - Runnable workflow bundles with tool descriptions and Docker pins
// @description - Port, type and file-extension compatibility checks
// @description - Docker Hub tag lookup and saved workspaces

// @contact.name fmriflow Team
// @contact.url https://github.com/BaSui01/fmriflow

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/fmriflow/config"
	"github.com/BaSui01/fmriflow/internal/metrics"
	"github.com/BaSui01/fmriflow/internal/telemetry"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1], os.Args[2:])
	stop()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run 分发子命令
func run(ctx context.Context, command string, args []string) error {
	switch command {
	case "serve":
		return runServe(ctx, args)
	case "compile":
		return runCompile(ctx, args, os.Stdout)
	case "export":
		return runExport(ctx, args)
	case "check":
		return runCheck(args, os.Stdout)
	case "tags":
		return runTags(ctx, args, os.Stdout)
	case "tools":
		return runTools(args, os.Stdout)
	case "migrate":
		return runMigrate(ctx, args)
	case "health":
		return runHealthCheck(ctx, args)
	case "version":
		printVersion()
		return nil
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(ctx context.Context, args []string) error {
	fs := newFlagSet("serve")
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	// 初始化日志
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting fmriflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// 初始化 OpenTelemetry，失败时退回 noop
	providers, err := telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		providers = &telemetry.Providers{}
	}
	defer func() {
		if err := providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	srv, err := NewServer(cfg, logger, providers, metrics.NewCollector("fmriflow", logger))
	if err != nil {
		logger.Error("Failed to build server", zap.Error(err))
		return err
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}

	logger.Info("fmriflow stopped")
	return nil
}

// loadConfig 加载并验证配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("fmriflow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`fmriflow - neuroimaging pipeline to CWL compiler

Usage:
  fmriflow <command> [options]

Commands:
  serve     Start the fmriflow server
  compile   Compile a canvas file into a CWL workflow
  export    Build a runnable workflow bundle (ZIP)
  check     Check whether two port types can be connected
  tags      List Docker Hub tags for tool images
  tools     List the tool catalogue
  migrate   Database migration commands
  health    Check server health
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Options for 'compile':
  --format yaml|json   Output encoding (default: yaml)
  -o <file>            Write to file instead of stdout
  --catalog <path>     Tool catalogue (default: built-in)
  --tag <tag>          Docker tag for unpinned nodes

Options for 'export':
  -o <file>            Bundle path (default: workflow.zip)
  --root <dir>         Directory holding the tool CWL files
  --catalog <path>     Tool catalogue (default: built-in)

Examples:
  fmriflow serve --config /etc/fmriflow/config.yaml
  fmriflow compile canvas.json --format json
  fmriflow export canvas.json -o bundle.zip --root /srv/fmriflow
  fmriflow check -out File -in File -out-ext .mgz -in-ext .nii.gz
  fmriflow tags -image nipreps/fmriprep
  fmriflow migrate up
  fmriflow health --addr http://localhost:8080`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
