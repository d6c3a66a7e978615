package redisconn

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentsbackend/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T, healthInterval time.Duration) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := config.DefaultRedisConfig()
	cfg.Enabled = true
	cfg.Addr = mr.Addr()

	m, err := connect(cfg, healthInterval, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

func TestConnect(t *testing.T) {
	mr, m := setupTestRedis(t, 0)

	require.NotNil(t, m.Client())
	require.NoError(t, m.Client().Set(context.Background(), "k", "v", 0).Err())

	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.DefaultRedisConfig()
	cfg.Addr = addr

	_, err := Connect(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestManager_Ping(t *testing.T) {
	mr, m := setupTestRedis(t, 0)
	ctx := context.Background()

	assert.NoError(t, m.Ping(ctx))

	mr.SetError("LOADING")
	assert.Error(t, m.Ping(ctx))
	mr.SetError("")

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Ping(ctx), ErrClosed)
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	_, m := setupTestRedis(t, 10*time.Millisecond)

	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestManager_HealthLoopStopsOnClose(t *testing.T) {
	_, m := setupTestRedis(t, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Close())

	select {
	case <-m.done:
	default:
		t.Fatal("health check loop still running after Close")
	}
}

func TestManager_Stats(t *testing.T) {
	_, m := setupTestRedis(t, 0)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Ping(context.Background()))
	}

	stats := m.Stats()
	assert.GreaterOrEqual(t, stats.TotalConns, uint32(1))
	assert.GreaterOrEqual(t, stats.Hits+stats.Misses, uint32(1))
}
