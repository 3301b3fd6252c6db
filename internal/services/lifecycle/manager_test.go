package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestShutdown_StopsInReverseOrder(t *testing.T) {
	m := New(context.Background(), time.Second, zaptest.NewLogger(t))

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) StopFunc {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	m.OnStop("store", record("store"))
	m.OnStop("server", record("server"))
	m.OnStop("ignored", nil)

	stopped := make(chan struct{})
	m.Go("relay", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"server", "store"}, order)
	<-stopped
	assert.Error(t, m.Context().Err())
}

func TestShutdown_JoinsStopErrors(t *testing.T) {
	m := New(context.Background(), time.Second, nil)
	boom := errors.New("boom")
	m.OnStop("a", func(context.Context) error { return boom })
	m.OnStop("b", func(context.Context) error { return nil })

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestGo_FailureCancelsContext(t *testing.T) {
	m := New(context.Background(), time.Second, zaptest.NewLogger(t))
	boom := errors.New("listener closed")

	m.Go("server", func(context.Context) error { return boom })

	assert.ErrorIs(t, m.Wait(), boom)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestShutdown_TimesOutStuckRunner(t *testing.T) {
	m := New(context.Background(), 50*time.Millisecond, nil)
	release := make(chan struct{})
	m.Go("stuck", func(context.Context) error {
		<-release
		return nil
	})

	err := m.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not stop in time")
	close(release)
}
