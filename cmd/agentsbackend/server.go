package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/BaSui01/agentsbackend/agent/research"
	"github.com/BaSui01/agentsbackend/api/handlers"
	"github.com/BaSui01/agentsbackend/config"
	"github.com/BaSui01/agentsbackend/internal/metrics"
	"github.com/BaSui01/agentsbackend/internal/ratelimit"
	"github.com/BaSui01/agentsbackend/internal/redisconn"
	"github.com/BaSui01/agentsbackend/internal/server"
	"github.com/BaSui01/agentsbackend/llm"
	"github.com/BaSui01/agentsbackend/llm/providers/openai"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// metricsNamespace Prometheus 指标命名空间
const metricsNamespace = "agents"

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 Agents Backend 的主服务器：API 端口 + 独立 metrics 端口
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	registry  *prometheus.Registry
	collector *metrics.Collector
	responder *handlers.ErrorResponder

	healthHandler   *handlers.HealthHandler
	researchHandler *handlers.ResearchHandler

	redis   *redisconn.Manager
	limiter ratelimit.Limiter

	handler        http.Handler
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 停止进程内限流器的清理 goroutine
	stopBackground context.CancelFunc
}

// ServerOption 配置 Server 的可选依赖
type ServerOption func(*serverOptions)

type serverOptions struct {
	provider llm.Provider
	registry *prometheus.Registry
}

// WithProvider 使用指定的 LLM Provider，替代按配置创建的 OpenAI Provider
func WithProvider(p llm.Provider) ServerOption {
	return func(o *serverOptions) { o.provider = p }
}

// WithRegistry 使用指定的 Prometheus Registry
func WithRegistry(reg *prometheus.Registry) ServerOption {
	return func(o *serverOptions) { o.registry = reg }
}

// NewServer 创建服务器并装配所有组件，不监听端口
func NewServer(cfg *config.Config, info handlers.BuildInfo, logger *zap.Logger, opts ...ServerOption) (*Server, error) {
	o := &serverOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:            cfg,
		logger:         logger,
		registry:       o.registry,
		stopBackground: cancel,
	}

	s.collector = metrics.NewCollector(metricsNamespace, s.registry, logger)
	s.responder = handlers.NewErrorResponder(logger, s.collector)
	s.healthHandler = handlers.NewHealthHandler(info, s.responder, logger)

	if err := s.initRateLimiter(bgCtx); err != nil {
		_ = s.Close()
		return nil, err
	}

	provider := o.provider
	if provider == nil {
		provider = s.newProvider()
	}
	s.initResearch(provider)

	s.handler = s.buildHandler()
	return s, nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// newProvider 按配置创建 LLM Provider；未配置 API Key 时返回 nil
func (s *Server) newProvider() llm.Provider {
	if s.cfg.LLM.APIKey == "" {
		return nil
	}
	provider, err := openai.New(openai.Config{
		APIKey:      s.cfg.LLM.APIKey,
		BaseURL:     s.cfg.LLM.BaseURL,
		Model:       s.cfg.LLM.Model,
		Timeout:     s.cfg.LLM.Timeout,
		Temperature: float32(s.cfg.LLM.Temperature),
		MaxTokens:   s.cfg.LLM.MaxTokens,
	}, s.logger)
	if err != nil {
		s.logger.Warn("failed to create LLM provider", zap.Error(err))
		return nil
	}
	return provider
}

// initResearch 创建研究 Agent 与处理器，并注册 LLM 就绪检查
func (s *Server) initResearch(provider llm.Provider) {
	if provider == nil {
		s.logger.Warn("LLM provider not configured, research endpoints disabled")
		s.healthHandler.RegisterCheck(handlers.NewCheckFunc("llm", func(context.Context) error {
			return errors.New("llm provider not configured")
		}))
		return
	}

	agent := research.New(provider, research.Config{
		Model:       s.cfg.LLM.Model,
		Temperature: float32(s.cfg.LLM.Temperature),
		MaxTokens:   s.cfg.LLM.MaxTokens,
	}, s.logger)

	s.researchHandler = handlers.NewResearchHandler(agent, s.responder, s.logger,
		handlers.WithQueryLimits(handlers.QueryLimits{
			MinLength:    s.cfg.Query.MinLength,
			MaxLength:    s.cfg.Query.MaxLength,
			MaxBodyBytes: s.cfg.Server.MaxRequestSize,
		}),
		handlers.WithRequestTimeout(s.cfg.Server.RequestTimeout),
		handlers.WithChatMetrics(s.collector),
	)
	s.healthHandler.RegisterCheck(handlers.NewProviderHealthCheck(provider))

	s.logger.Info("research agent initialized",
		zap.String("provider", provider.Name()),
		zap.String("agent", agent.Name()),
	)
}

// initRateLimiter Redis 启用时使用共享固定窗口，否则使用进程内令牌桶
func (s *Server) initRateLimiter(ctx context.Context) error {
	if s.cfg.Redis.Enabled {
		conn, err := redisconn.Connect(s.cfg.Redis, s.logger)
		if err != nil {
			return err
		}
		s.redis = conn
		s.healthHandler.RegisterCheck(handlers.NewRedisHealthCheck("redis", conn.Ping))
	}

	if s.cfg.Server.RateLimitRPS <= 0 {
		return nil
	}

	if s.redis != nil {
		limiter, err := ratelimit.NewRedis(s.redis.Client(), s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger)
		if err != nil {
			return fmt.Errorf("create redis rate limiter: %w", err)
		}
		s.limiter = limiter
		return nil
	}

	s.limiter = ratelimit.NewLocal(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst)
	return nil
}

// =============================================================================
// 🌐 路由与中间件
// =============================================================================

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.healthHandler.HandleRoot)
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion)

	if s.researchHandler != nil {
		protected := []Middleware{Authenticate(s.cfg.Auth, s.responder, s.logger)}
		if s.limiter != nil {
			protected = append(protected, RateLimiter(s.limiter, s.responder, s.collector, s.logger))
		}
		mux.Handle("/api/v1/chat/research", Chain(http.HandlerFunc(s.researchHandler.HandleResearch), protected...))
		mux.Handle("/api/v1/chat/research/stream", Chain(http.HandlerFunc(s.researchHandler.HandleResearchStream), protected...))
	}

	chain := []Middleware{
		RequestID(),
		OTelTracing(),
		Recovery(s.responder, s.logger),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.CORSOrigins()),
		MaxBodySize(s.cfg.Server.MaxRequestSize),
	}

	s.logger.Info("HTTP routes registered",
		zap.Bool("research_enabled", s.researchHandler != nil),
		zap.String("middleware", describeMiddleware(s.cfg)),
	)

	return Chain(mux, chain...)
}

// Handler 返回完整的 API 处理链
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MetricsHandler 返回 /metrics 处理器
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Start 启动 API 与 metrics 服务器（非阻塞）
func (s *Server) Start() error {
	s.httpManager = server.NewManager("api", s.handler, server.Config{
		Addr:            s.cfg.Server.Addr(),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("start api server: %w", err)
	}

	if s.cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.MetricsHandler())

		s.metricsManager = server.NewManager("metrics", mux, server.Config{
			Addr:            net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.MetricsPort)),
			ReadTimeout:     s.cfg.Server.ReadTimeout,
			WriteTimeout:    s.cfg.Server.ReadTimeout,
			ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		}, s.logger)
		if err := s.metricsManager.Start(); err != nil {
			_ = s.httpManager.Shutdown(context.Background())
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	s.logger.Info("all servers started",
		zap.String("api_addr", s.httpManager.Addr()),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// Run 启动服务器并阻塞，直到 ctx 结束或某个服务器异常退出，随后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return errors.Join(err, s.Close())
	}

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	case serveErr = <-s.httpManager.Errors():
		s.logger.Error("api server exited unexpectedly", zap.Error(serveErr))
	case serveErr = <-s.metricsErrors():
		s.logger.Error("metrics server exited unexpectedly", zap.Error(serveErr))
	}

	return errors.Join(serveErr, s.Shutdown(context.Background()))
}

func (s *Server) metricsErrors() <-chan error {
	if s.metricsManager == nil {
		return nil
	}
	return s.metricsManager.Errors()
}

// Shutdown 并行关闭 API 与 metrics 服务器，随后释放 Redis 连接
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("starting graceful shutdown")

	var g errgroup.Group
	for _, m := range []*server.Manager{s.httpManager, s.metricsManager} {
		if m == nil {
			continue
		}
		g.Go(func() error { return m.Shutdown(ctx) })
	}
	err := g.Wait()

	return errors.Join(err, s.Close())
}

// Close 停止后台任务并关闭 Redis 连接
func (s *Server) Close() error {
	s.stopBackground()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			return fmt.Errorf("close redis: %w", err)
		}
	}
	s.logger.Info("server resources released")
	return nil
}
