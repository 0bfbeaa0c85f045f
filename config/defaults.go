// =============================================================================
// 📦 fmriflow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Registry:  DefaultRegistryConfig(),
		Compiler:  DefaultCompilerConfig(),
		DockerHub: DefaultDockerHubConfig(),
		Auth:      AuthConfig{},
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		MaxBodyBytes:    4 << 20,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置（本地 SQLite 文件）
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         true,
		Driver:          "sqlite",
		Name:            "fmriflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "fmriflow:",
		CompileTTL:   10 * time.Minute,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "fmriflow",
		SampleRate:   0.1,
	}
}

// DefaultRegistryConfig 返回默认工具目录配置
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		ToolRoot: ".",
	}
}

// DefaultCompilerConfig 返回默认编译配置
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		DefaultDockerTag:  "latest",
		ExportConcurrency: 8,
	}
}

// DefaultDockerHubConfig 返回默认 Docker Hub 配置
func DefaultDockerHubConfig() DockerHubConfig {
	return DockerHubConfig{
		BaseURL:           "https://hub.docker.com",
		MaxTags:           100,
		RequestsPerSecond: 5,
		Timeout:           10 * time.Second,
		CacheTTL:          6 * time.Hour,
	}
}
