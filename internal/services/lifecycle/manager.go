// Package lifecycle runs long-lived components and stops them in reverse
// start order.
package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// StopFunc releases one component.
type StopFunc func(ctx context.Context) error

// RunFunc is a background component that runs until ctx ends.
type RunFunc func(ctx context.Context) error

type stopper struct {
	name string
	fn   StopFunc
}

// Manager owns the process context. Background runners share it, and the
// first runner failure or termination signal cancels it.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stoppers []stopper
	runners  conc.WaitGroup
	failure  error
}

// New derives the process context from parent.
func New(parent context.Context, timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Context is cancelled when the process should stop.
func (m *Manager) Context() context.Context { return m.ctx }

// OnStop registers a stop function. Stop functions run in reverse order.
func (m *Manager) OnStop(name string, fn StopFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stoppers = append(m.stoppers, stopper{name: name, fn: fn})
}

// Go starts fn in the background. A runner that fails before the process
// context ends cancels it.
func (m *Manager) Go(name string, fn RunFunc) {
	m.runners.Go(func() {
		err := fn(m.ctx)
		if err == nil || errors.Is(err, context.Canceled) || m.ctx.Err() != nil {
			m.logger.Debug("component finished", zap.String("component", name))
			return
		}
		m.logger.Error("component failed", zap.String("component", name), zap.Error(err))
		m.mu.Lock()
		m.failure = errors.Join(m.failure, err)
		m.mu.Unlock()
		m.cancel()
	})
}

// Listen cancels the process context on SIGINT or SIGTERM.
func (m *Manager) Listen() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
			m.cancel()
		case <-m.ctx.Done():
		}
	}()
}

// Wait blocks until the process context ends and returns the runner
// failure that ended it, if any.
func (m *Manager) Wait() error {
	<-m.ctx.Done()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// Shutdown cancels the process context, runs the stop functions and waits
// for the runners, all within the configured timeout.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	stoppers := m.stoppers
	m.stoppers = nil
	m.mu.Unlock()

	var result error
	for i := len(stoppers) - 1; i >= 0; i-- {
		s := stoppers[i]
		if err := s.fn(ctx); err != nil {
			m.logger.Error("stop failed", zap.String("component", s.name), zap.Error(err))
			result = errors.Join(result, err)
			continue
		}
		m.logger.Info("component stopped", zap.String("component", s.name))
	}

	done := make(chan struct{})
	go func() {
		m.runners.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		result = errors.Join(result, errors.New("background components did not stop in time"))
	}
	return result
}
