package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trademaestro/internal/engine"
	"trademaestro/internal/ports"
)

// stopTimeout bounds how long Stop waits for the worker to finish its
// current cycle before giving up on the join.
const stopTimeout = 30 * time.Second

// EngineFactory builds a ready-to-run engine for the named strategy.
type EngineFactory func(name string) (*engine.Engine, error)

// Scheduler runs the active strategy's engine on a fixed interval in a
// single worker goroutine. At most one strategy is active at a time;
// switching stops the current worker before the next one starts.
type Scheduler struct {
	factory  EngineFactory
	interval time.Duration
	logger   ports.Logger

	// lifecycle serializes Start, Stop and Switch end to end so the
	// stop-then-start sequence of one caller never interleaves with another.
	lifecycle sync.Mutex

	mu      sync.Mutex
	active  string
	eng     *engine.Engine
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a scheduler. interval is the pause between trading cycles.
func New(factory EngineFactory, interval time.Duration, logger ports.Logger) (*Scheduler, error) {
	if factory == nil {
		return nil, fmt.Errorf("engine factory is required for scheduler")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: scheduler interval must be positive", ports.ErrConfigurationError)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for scheduler")
	}
	return &Scheduler{
		factory:  factory,
		interval: interval,
		logger:   logger,
	}, nil
}

// Start activates the named strategy. Any previously active strategy is
// stopped first, synchronously, so two engines never run at once.
func (s *Scheduler) Start(ctx context.Context, name string) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.stopActive(ctx)

	eng, err := s.factory(name)
	if err != nil {
		return fmt.Errorf("scheduler: building engine for %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.active = name
	s.eng = eng
	s.cancel = cancel
	s.done = done
	s.running = true

	s.logger.Info(ctx, "Strategy started", map[string]interface{}{"strategy": name, "interval": s.interval.String()})
	go s.run(workerCtx, name, eng, done)
	return nil
}

// run is the worker loop: one cycle, then sleep, until cancelled. A panic
// escaping a cycle stops the loop rather than restarting it; the guard in
// the engine already downgrades per-symbol panics, so one reaching here
// means the loop itself is unsound.
func (s *Scheduler) run(ctx context.Context, name string, eng *engine.Engine, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, fmt.Errorf("trading loop panic: %v", r), "Trading loop stopped", map[string]interface{}{"strategy": name})
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	eng.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eng.RunCycle(ctx)
		}
	}
}

// Stop deactivates the current strategy and joins its worker. The join is
// bounded by stopTimeout; a worker still running past it is logged as an
// anomaly and abandoned.
func (s *Scheduler) Stop(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopActive(ctx)
}

func (s *Scheduler) stopActive(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	name := s.active
	cancel := s.cancel
	done := s.done
	s.running = false
	s.active = ""
	s.eng = nil
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		s.logger.Info(ctx, "Strategy stopped", map[string]interface{}{"strategy": name})
	case <-time.After(stopTimeout):
		s.logger.Error(ctx, fmt.Errorf("%w: worker did not stop within %s", ports.ErrTimeout, stopTimeout), "Worker join timed out", map[string]interface{}{"strategy": name})
	}
}

// Switch stops the active strategy and starts the named one.
func (s *Scheduler) Switch(ctx context.Context, name string) error {
	return s.Start(ctx, name)
}

// Active returns the name of the running strategy, or "" when stopped.
func (s *Scheduler) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ""
	}
	return s.active
}

// Engine returns the running engine, or nil when stopped.
func (s *Scheduler) Engine() *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng
}
