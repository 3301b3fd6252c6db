// Package scheduler runs named recurring tasks on a cron engine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrUnknownTask is returned by RunNow for names that were never added.
var ErrUnknownTask = errors.New("unknown task")

// Task is a unit of recurring work. Timeout defaults to Every.
type Task struct {
	Name    string
	Every   time.Duration
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler owns the cron engine. A failing or panicking run is logged and
// never stops later runs; a run still in progress makes the next tick skip.
type Scheduler struct {
	cron   *cron.Cron
	chain  cron.Chain
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]cron.Job
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger: logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLogger(cl)),
		chain:  cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]cron.Job),
	}
}

// Add registers a task. Names must be unique.
func (s *Scheduler) Add(task Task) error {
	if task.Name == "" || task.Run == nil {
		return errors.New("task needs a name and a run function")
	}
	if task.Every <= 0 {
		return fmt.Errorf("task %s: interval must be positive", task.Name)
	}
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = task.Every
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[task.Name]; dup {
		return fmt.Errorf("task %s already scheduled", task.Name)
	}

	job := s.chain.Then(cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()
		started := time.Now()
		if err := task.Run(ctx); err != nil {
			s.logger.Error("scheduled task failed", zap.String("task", task.Name), zap.Error(err))
			return
		}
		s.logger.Debug("scheduled task finished",
			zap.String("task", task.Name),
			zap.Duration("took", time.Since(started)),
		)
	}))
	if _, err := s.cron.AddJob("@every "+task.Every.String(), job); err != nil {
		return fmt.Errorf("schedule %s: %w", task.Name, err)
	}
	s.jobs[task.Name] = job
	return nil
}

// RunNow runs a task synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	job.Run()
	return nil
}

// Start launches the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("tasks", len(s.cron.Entries())))
}

// Stop cancels running tasks and waits for them to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	s.cancel()
	select {
	case <-stopCtx.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Hooks is an ordered list of work attached to one schedule slot. An empty
// list runs as a no-op.
type Hooks struct {
	mu  sync.Mutex
	fns []func(ctx context.Context) error
}

// Register appends fn to the list.
func (h *Hooks) Register(fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fn)
}

// Len returns the number of registered hooks.
func (h *Hooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.fns)
}

// Run calls every hook, even after a failure, and joins the errors.
func (h *Hooks) Run(ctx context.Context) error {
	h.mu.Lock()
	fns := append([]func(context.Context) error(nil), h.fns...)
	h.mu.Unlock()

	var errs []error
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// cronLogger routes cron's own logging to zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
