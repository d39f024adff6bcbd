// Package scheduler caps how many submitted tasks run at once and spaces out
// their starts.
//
// Tasks are admitted in submission order (FIFO) whenever a slot is free. Every
// admitted task then waits a fixed startup delay before it runs, which smooths
// bursts such as deriving keys for many content items in a loop. The scheduler
// never retries, never reorders, and never cancels on its own: a task that does
// not return keeps its slot for as long as it runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const componentName = "scheduler"

var ErrInvalidConfig = errors.New("invalid scheduler config")

type Config struct {
	// MaxConcurrent is the number of tasks allowed in delay-or-run at once.
	MaxConcurrent int
	// StartupDelay is applied to every task after admission, before it runs.
	StartupDelay time.Duration
	// StartRate optionally limits task starts per second; 0 disables it.
	StartRate float64
	// StartBurst is the limiter burst; values below 1 mean 1.
	StartBurst int
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 4,
		StartupDelay:  50 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: max concurrent must be positive, got %d", ErrInvalidConfig, c.MaxConcurrent)
	}
	if c.StartupDelay < 0 {
		return fmt.Errorf("%w: startup delay must not be negative, got %s", ErrInvalidConfig, c.StartupDelay)
	}
	if c.StartRate < 0 {
		return fmt.Errorf("%w: start rate must not be negative, got %g", ErrInvalidConfig, c.StartRate)
	}
	return nil
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// Scheduler is safe for concurrent use. The zero value is not usable; call New.
type Scheduler struct {
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	running int
	waiting []chan struct{}
}

func New(cfg Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		cfg:    cfg,
		logger: slog.Default(),
	}
	if cfg.StartRate > 0 {
		burst := cfg.StartBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.StartRate), burst)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Scheduler) Config() Config {
	return s.cfg
}

// Running reports the number of admitted tasks, including those still in
// their startup delay.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Queued reports the number of submitters waiting for a slot.
func (s *Scheduler) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting)
}

// Run submits task to s and blocks until it has finished, returning the task's
// own result and error unchanged. ctx is passed to the task; it also aborts the
// wait for a slot or for the startup delay, in which case the task never runs
// and ctx.Err() is returned.
func Run[T any](ctx context.Context, s *Scheduler, task func(context.Context) (T, error)) (T, error) {
	var zero T
	if task == nil {
		return zero, errors.New("scheduler: nil task")
	}
	submitted := time.Now()
	if err := s.admit(ctx); err != nil {
		s.metrics.observeResult(resultCanceled)
		return zero, err
	}
	defer s.release()
	s.metrics.observeWait(time.Since(submitted))

	if err := s.pace(ctx); err != nil {
		s.metrics.observeResult(resultCanceled)
		return zero, err
	}

	out, err := task(ctx)
	if err != nil {
		s.metrics.observeResult(resultFailed)
		s.logger.Debug("task failed",
			"component", componentName,
			"operation", "run",
			"error", err.Error(),
		)
		return out, err
	}
	s.metrics.observeResult(resultOK)
	return out, nil
}

// Do is Run for tasks without a result value.
func (s *Scheduler) Do(ctx context.Context, task func(context.Context) error) error {
	if task == nil {
		return errors.New("scheduler: nil task")
	}
	_, err := Run(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, task(ctx)
	})
	return err
}

// admit takes a slot, waiting in FIFO order when none is free or others are
// already waiting.
func (s *Scheduler) admit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.running < s.cfg.MaxConcurrent && len(s.waiting) == 0 {
		s.running++
		s.publishLocked()
		s.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	s.waiting = append(s.waiting, ready)
	s.publishLocked()
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	for i, ch := range s.waiting {
		if ch == ready {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			s.publishLocked()
			s.mu.Unlock()
			return ctx.Err()
		}
	}
	s.mu.Unlock()
	// The slot was handed over concurrently with cancellation; pass it on.
	s.release()
	return ctx.Err()
}

// release frees the caller's slot. A waiting submitter inherits it directly so
// that late arrivals cannot overtake the queue.
func (s *Scheduler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waiting) > 0 {
		next := s.waiting[0]
		s.waiting[0] = nil
		s.waiting = s.waiting[1:]
		close(next)
	} else {
		s.running--
	}
	s.publishLocked()
}

func (s *Scheduler) pace(ctx context.Context) error {
	if d := s.cfg.StartupDelay; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	if s.limiter != nil {
		return s.limiter.Wait(ctx)
	}
	return nil
}

func (s *Scheduler) publishLocked() {
	s.metrics.setState(s.running, len(s.waiting))
}
