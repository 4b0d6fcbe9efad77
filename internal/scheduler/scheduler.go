// Package scheduler runs the polling loop: a single background worker that
// ticks immediately on start and then once per interval until stopped.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Guliveer/obs-channel-stats/internal/constants"
	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/metrics"
	"github.com/Guliveer/obs-channel-stats/internal/model"
)

// Poller is the work driven by the scheduler.
type Poller interface {
	// StartSession prepares the artifacts reused by every tick of a session.
	StartSession(ctx context.Context)
	// EndSession discards them.
	EndSession(ctx context.Context)
	// Tick performs one fetch-then-write cycle.
	Tick(ctx context.Context) error
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State            model.SchedulerState `json:"state"`
	Ticks            uint64               `json:"ticks"`
	LastTickAt       time.Time            `json:"last_tick_at,omitempty"`
	LastTickDuration time.Duration        `json:"last_tick_duration_ns"`
	LastTickError    string               `json:"last_tick_error,omitempty"`
}

type worker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns at most one polling worker.
type Scheduler struct {
	poller   Poller
	clock    clockwork.Clock
	interval time.Duration
	log      *logger.Logger

	// mu serializes Start and Stop.
	mu     sync.Mutex
	worker *worker

	statusMu sync.Mutex
	status   Status
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval overrides constants.TickInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// New creates a stopped Scheduler.
func New(poller Poller, clock clockwork.Clock, log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		poller:   poller,
		clock:    clock,
		interval: constants.TickInterval,
		log:      log,
		status:   Status{State: model.StateStopped},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start stops and joins any running worker, starts a new session, and
// launches a worker that lives until Stop, the next Start, or ctx is done.
// The previous worker has fully exited before the new session starts.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.worker != nil {
		s.log.InfoContext(ctx, "Stopping the running polling worker before restart")
		s.stopLocked(ctx)
	}

	metrics.SessionStartsTotal.Inc()
	s.poller.StartSession(ctx)

	wctx, cancel := context.WithCancel(ctx)
	w := &worker{cancel: cancel, done: make(chan struct{})}
	s.worker = w

	s.setState(model.StateRunning)
	metrics.SchedulerRunning.Set(1)

	go s.run(wctx, w.done)
	go s.reap(ctx, w)
	s.log.InfoContext(ctx, "Polling started", "interval", s.interval.String())
}

// reap ends the session of a worker that exited on its own because its
// parent context was done. Workers stopped through Stop or Start are
// already cleared by then.
func (s *Scheduler) reap(ctx context.Context, w *worker) {
	<-w.done

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.worker != w {
		return
	}
	s.worker = nil
	s.poller.EndSession(context.WithoutCancel(ctx))

	s.setState(model.StateStopped)
	metrics.SchedulerRunning.Set(0)
	s.log.InfoContext(ctx, "Polling stopped with its parent context")
}

// Restart is Start.
func (s *Scheduler) Restart(ctx context.Context) {
	s.Start(ctx)
}

// Stop cancels the worker and waits for it to exit. It is a no-op when
// already stopped.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.worker == nil {
		return
	}
	s.stopLocked(ctx)
	s.log.InfoContext(ctx, "Polling stopped")
}

func (s *Scheduler) stopLocked(ctx context.Context) {
	s.worker.cancel()
	<-s.worker.done
	s.worker = nil

	s.poller.EndSession(ctx)

	s.setState(model.StateStopped)
	metrics.SchedulerRunning.Set(0)
}

// Running reports whether a worker is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worker != nil
}

// Status returns a copy of the current status.
func (s *Scheduler) Status() Status {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status
}

func (s *Scheduler) setState(state model.SchedulerState) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.State = state
}

// run ticks immediately, then waits max(0, interval-elapsed) before the
// next tick. Cancellation is honored during the wait.
func (s *Scheduler) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}

		start := s.clock.Now()
		s.tick(ctx)
		wait := s.interval - s.clock.Since(start)

		if wait <= 0 {
			continue
		}

		timer := s.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

// tick runs one poll. Errors and panics are logged and counted; they never
// stop the loop.
func (s *Scheduler) tick(ctx context.Context) {
	ctx = logger.WithTickID(ctx, uuid.NewString())
	start := s.clock.Now()

	var err error
	outcome := "ok"
	func() {
		defer func() {
			if r := recover(); r != nil {
				outcome = "panic"
				err = fmt.Errorf("panic: %v", r)
				s.log.ErrorContext(ctx, "Recovered from panic in polling tick",
					"panic", r, "stack", string(debug.Stack()))
			}
		}()
		err = s.poller.Tick(ctx)
	}()

	if err != nil && outcome == "ok" {
		outcome = "failed"
		s.log.WarnContext(ctx, "Polling tick finished with errors", "error", err)
	}

	elapsed := s.clock.Since(start)
	metrics.TicksTotal.WithLabelValues(outcome).Inc()
	metrics.TickDuration.Observe(elapsed.Seconds())

	s.statusMu.Lock()
	s.status.Ticks++
	s.status.LastTickAt = start
	s.status.LastTickDuration = elapsed
	s.status.LastTickError = ""
	if err != nil {
		s.status.LastTickError = err.Error()
	}
	s.statusMu.Unlock()

	s.log.DebugContext(ctx, "Polling tick complete", "outcome", outcome, "duration", elapsed.String())
}
