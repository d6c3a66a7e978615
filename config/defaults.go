// =============================================================================
// 📦 Agents Backend 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server:      DefaultServerConfig(),
		Auth:        AuthConfig{},
		LLM:         DefaultLLMConfig(),
		Query:       DefaultQueryConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
		Redis:       DefaultRedisConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "127.0.0.1",
		Port:            8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    310 * time.Second, // 需覆盖 RequestTimeout 和流式响应
		ShutdownTimeout: 15 * time.Second,
		RequestTimeout:  300 * time.Second,
		MaxRequestSize:  10 << 20,
		CORSOrigins:     []string{"http://localhost:3000", "http://localhost:8000"},
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		Timeout:     2 * time.Minute,
		Temperature: 0,
	}
}

// DefaultQueryConfig 返回默认查询限制
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		MinLength: 1,
		MaxLength: 10000,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agents-backend",
		SampleRate:   0.1,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  false,
		Addr:     "localhost:6379",
		DB:       0,
		PoolSize: 10,
	}
}
