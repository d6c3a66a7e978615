package redisconn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/agentsbackend/config"
	"github.com/BaSui01/agentsbackend/internal/tlsutil"
)

const (
	connectTimeout        = 5 * time.Second
	defaultHealthInterval = 30 * time.Second
)

// ErrClosed Manager 已关闭
var ErrClosed = errors.New("redis connection manager is closed")

// =============================================================================
// 🔌 连接管理器
// =============================================================================

// Manager Redis 连接管理器
type Manager struct {
	client *redis.Client
	addr   string
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool

	stop context.CancelFunc
	done chan struct{}
}

// Connect 建立 Redis 连接并校验可达性，随后启动后台健康检查
func Connect(cfg config.RedisConfig, logger *zap.Logger) (*Manager, error) {
	return connect(cfg, defaultHealthInterval, logger)
}

func connect(cfg config.RedisConfig, healthInterval time.Duration, logger *zap.Logger) (*Manager, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.TLS {
		opts.TLSConfig = tlsutil.RedisConfig(cfg.Addr)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	loopCtx, stop := context.WithCancel(context.Background())
	m := &Manager{
		client: client,
		addr:   cfg.Addr,
		logger: logger.With(zap.String("component", "redis")),
		stop:   stop,
		done:   make(chan struct{}),
	}

	if healthInterval > 0 {
		go m.healthCheckLoop(loopCtx, healthInterval)
	} else {
		close(m.done)
	}

	m.logger.Info("redis connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.Bool("tls", cfg.TLS),
	)
	return m, nil
}

// Client 返回底层 go-redis 客户端
func (m *Manager) Client() *redis.Client {
	return m.client
}

// Ping 检查 Redis 连接
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return m.client.Ping(ctx).Err()
}

// Close 停止健康检查并关闭连接，可重复调用
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.stop()
	<-m.done

	stats := m.Stats()
	m.logger.Info("closing redis connection",
		zap.Uint32("hits", stats.Hits),
		zap.Uint32("misses", stats.Misses),
		zap.Uint32("timeouts", stats.Timeouts),
	)
	return m.client.Close()
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

func (m *Manager) healthCheckLoop(ctx context.Context, interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := m.client.Ping(pingCtx).Err()
		cancel()

		switch {
		case err != nil && healthy:
			m.logger.Warn("redis health check failed", zap.String("addr", m.addr), zap.Error(err))
		case err == nil && !healthy:
			m.logger.Info("redis connection recovered", zap.String("addr", m.addr))
		}
		healthy = err == nil
	}
}

// =============================================================================
// 📊 连接池统计
// =============================================================================

// Stats 连接池统计信息
type Stats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

// Stats 返回连接池统计
func (m *Manager) Stats() Stats {
	ps := m.client.PoolStats()
	return Stats{
		Hits:       ps.Hits,
		Misses:     ps.Misses,
		Timeouts:   ps.Timeouts,
		TotalConns: ps.TotalConns,
		IdleConns:  ps.IdleConns,
	}
}
