package monitor

import (
	"context"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StorePinger is satisfied by the document store gateways.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger is satisfied by *redis.Client.
type RedisPinger interface {
	Ping(ctx context.Context) *redislib.StatusCmd
}

// Monitor caches the reachability of the backing services. Refresh is
// driven by the scheduler.
type Monitor struct {
	store StorePinger
	redis RedisPinger

	status Status
	mu     sync.RWMutex
	now    func() time.Time
	logger *zap.Logger
}

// New builds a monitor. redis may be nil when cross-instance fan-out is off.
func New(store StorePinger, redis RedisPinger, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		store:  store,
		redis:  redis,
		now:    time.Now,
		logger: logger,
	}
}

// IsOnline reports whether every configured dependency answered the last check.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.ready()
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Refresh pings every dependency and stores the outcome. It never fails;
// the error return lets it run as a scheduled task.
func (m *Monitor) Refresh(ctx context.Context) error {
	status := Status{
		Store:        m.checkStore(ctx),
		RedisEnabled: m.redis != nil,
		LastCheck:    m.now(),
	}
	if status.RedisEnabled {
		status.Redis = m.checkRedis(ctx)
	}

	m.mu.Lock()
	prev := m.status
	m.status = status
	m.mu.Unlock()

	if !prev.LastCheck.IsZero() && prev.ready() != status.ready() {
		m.logger.Warn("dependency status changed",
			zap.Bool("online", status.ready()),
			zap.Bool("store", status.Store),
			zap.Bool("redis", status.Redis),
		)
	}
	return nil
}

func (m *Monitor) checkStore(ctx context.Context) bool {
	if m.store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := m.store.Ping(ctx); err != nil {
		m.logger.Debug("store ping failed", zap.Error(err))
		return false
	}
	return true
}

func (m *Monitor) checkRedis(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.redis.Ping(ctx).Err(); err != nil {
		m.logger.Debug("redis ping failed", zap.Error(err))
		return false
	}
	return true
}
