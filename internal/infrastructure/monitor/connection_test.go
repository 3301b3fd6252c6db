package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeStore struct{ err error }

func (f *fakeStore) Ping(context.Context) error { return f.err }

type fakeRedis struct{ err error }

func (f *fakeRedis) Ping(context.Context) *redislib.StatusCmd {
	return redislib.NewStatusResult("PONG", f.err)
}

func TestMonitor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		store  *fakeStore
		redis  RedisPinger
		online bool
		status Status
	}{
		{name: "store only", store: &fakeStore{}, online: true, status: Status{Store: true}},
		{name: "store down", store: &fakeStore{err: errors.New("refused")}, status: Status{}},
		{name: "both up", store: &fakeStore{}, redis: &fakeRedis{}, online: true, status: Status{Store: true, Redis: true, RedisEnabled: true}},
		{name: "redis down", store: &fakeStore{}, redis: &fakeRedis{err: errors.New("timeout")}, status: Status{Store: true, RedisEnabled: true}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := New(tt.store, tt.redis, zaptest.NewLogger(t))
			checked := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
			m.now = func() time.Time { return checked }

			assert.False(t, m.IsOnline())
			require.NoError(t, m.Refresh(context.Background()))

			assert.Equal(t, tt.online, m.IsOnline())
			want := tt.status
			want.LastCheck = checked
			assert.Equal(t, want, m.GetStatus())
		})
	}
}

func TestMonitor_NilStoreIsOffline(t *testing.T) {
	t.Parallel()
	m := New(nil, nil, nil)
	require.NoError(t, m.Refresh(context.Background()))
	assert.False(t, m.IsOnline())
}
