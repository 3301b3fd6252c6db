//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/ocxers/internal/config"
	"github.com/fastygo/ocxers/internal/services/realtime"
)

func TestBusRelaysBetweenHubs(t *testing.T) {
	ctx := context.Background()
	container, err := testcontainersredis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	client, err := NewClient(ctx, config.RedisConfig{URL: uri}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	bus := NewBus(client, "ocxers:test", zaptest.NewLogger(t))
	local := realtime.NewHub(nil, realtime.WithRelay(bus))
	remote := realtime.NewHub(nil)
	c := remote.NewClient()
	remote.Register(c, "tab_ana@example.com")

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- bus.Run(runCtx, func(msg realtime.Relayed) { remote.Receive(msg) }) }()

	require.Eventually(t, func() bool {
		local.PushLoginRequired("ana@example.com")
		select {
		case <-c.Outbound():
			return true
		default:
			return false
		}
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
