package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/metrics"
	"github.com/Guliveer/obs-channel-stats/internal/model"
)

// fakePoller records lifecycle events and reports each tick on ticks.
type fakePoller struct {
	clock *clockwork.FakeClock

	mu     sync.Mutex
	events []string

	ticks chan time.Time
	// tickCost is how far each tick advances the fake clock.
	tickCost time.Duration
	// tickFn, when set, replaces the default tick behavior.
	tickFn func(ctx context.Context, n int) error

	active    atomic.Int32
	maxActive atomic.Int32
	count     int
}

func newFakePoller(clock *clockwork.FakeClock) *fakePoller {
	return &fakePoller{clock: clock, ticks: make(chan time.Time, 16)}
}

func (p *fakePoller) record(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePoller) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *fakePoller) StartSession(context.Context) { p.record("start") }

func (p *fakePoller) EndSession(context.Context) { p.record("end") }

func (p *fakePoller) Tick(ctx context.Context) error {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	if n > p.maxActive.Load() {
		p.maxActive.Store(n)
	}

	p.mu.Lock()
	p.count++
	count := p.count
	p.events = append(p.events, "tick")
	p.mu.Unlock()

	now := p.clock.Now()
	if p.tickCost > 0 {
		p.clock.Advance(p.tickCost)
	}

	var err error
	if p.tickFn != nil {
		err = p.tickFn(ctx, count)
	}
	select {
	case p.ticks <- now:
	default:
	}
	return err
}

func awaitTick(t *testing.T, p *fakePoller) time.Time {
	t.Helper()
	select {
	case at := <-p.ticks:
		return at
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a tick")
		return time.Time{}
	}
}

func assertNoTick(t *testing.T, p *fakePoller) {
	t.Helper()
	select {
	case at := <-p.ticks:
		t.Fatalf("unexpected tick at %s", at)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakePoller, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC))
	p := newFakePoller(clock)
	s := New(p, clock, logger.Discard())
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s, p, clock
}

func TestScheduler_TicksImmediatelyThenEveryInterval(t *testing.T) {
	s, p, clock := newTestScheduler(t)
	p.tickCost = 10 * time.Second
	t0 := clock.Now()

	s.Start(t.Context())
	assert.Equal(t, t0, awaitTick(t, p))

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(49 * time.Second)
	assertNoTick(t, p)

	clock.Advance(time.Second)
	assert.Equal(t, t0.Add(60*time.Second), awaitTick(t, p))
}

func TestScheduler_SlowTickRunsNextImmediately(t *testing.T) {
	s, p, clock := newTestScheduler(t)
	p.tickFn = func(_ context.Context, n int) error {
		if n == 1 {
			clock.Advance(70 * time.Second)
		}
		return nil
	}
	t0 := clock.Now()

	s.Start(t.Context())
	assert.Equal(t, t0, awaitTick(t, p))
	assert.Equal(t, t0.Add(70*time.Second), awaitTick(t, p), "no wait after an overlong tick")

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	assertNoTick(t, p)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s, p, _ := newTestScheduler(t)

	s.Stop(t.Context())
	assert.Empty(t, p.Events(), "stopping a stopped scheduler does nothing")

	s.Start(t.Context())
	awaitTick(t, p)
	assert.True(t, s.Running())
	assert.Equal(t, model.StateRunning, s.Status().State)

	s.Stop(t.Context())
	s.Stop(t.Context())

	assert.False(t, s.Running())
	assert.Equal(t, model.StateStopped, s.Status().State)
	assert.Equal(t, []string{"start", "tick", "end"}, p.Events())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.SchedulerRunning))
}

func TestScheduler_StopInterruptsWait(t *testing.T) {
	s, p, clock := newTestScheduler(t)

	s.Start(t.Context())
	awaitTick(t, p)
	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))

	done := make(chan struct{})
	go func() {
		s.Stop(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while the worker was waiting")
	}
	assertNoTick(t, p)
}

func TestScheduler_RestartJoinsPreviousWorker(t *testing.T) {
	s, p, _ := newTestScheduler(t)

	inTick := make(chan struct{}, 1)
	p.tickFn = func(ctx context.Context, n int) error {
		if n == 1 {
			inTick <- struct{}{}
			<-ctx.Done()
		}
		return nil
	}

	s.Start(t.Context())
	<-inTick

	restarted := make(chan struct{})
	go func() {
		s.Restart(t.Context())
		close(restarted)
	}()

	awaitTick(t, p)
	awaitTick(t, p)
	<-restarted

	assert.Equal(t, []string{"start", "tick", "end", "start", "tick"}, p.Events())
	assert.Equal(t, int32(1), p.maxActive.Load(), "ticks never overlap")
}

func TestScheduler_TickFailuresDoNotStopTheLoop(t *testing.T) {
	s, p, clock := newTestScheduler(t)
	before := testutil.ToFloat64(metrics.TicksTotal.WithLabelValues("panic"))

	p.tickFn = func(_ context.Context, n int) error {
		switch n {
		case 1:
			return errors.New("youtube: unavailable")
		case 2:
			panic("boom")
		}
		return nil
	}

	s.Start(t.Context())
	awaitTick(t, p)
	assert.Equal(t, "youtube: unavailable", waitForStatus(t, s, 1).LastTickError)

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(time.Minute)
	waitForStatus(t, s, 2)

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(time.Minute)
	awaitTick(t, p)
	st := waitForStatus(t, s, 3)

	assert.Empty(t, st.LastTickError)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TicksTotal.WithLabelValues("panic"))-before)
}

// waitForStatus waits until n ticks have been recorded in the status.
func waitForStatus(t *testing.T, s *Scheduler, n uint64) Status {
	t.Helper()
	var st Status
	require.Eventually(t, func() bool {
		st = s.Status()
		return st.Ticks >= n
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestScheduler_WorkerExitsWithParentContext(t *testing.T) {
	s, p, clock := newTestScheduler(t)

	ctx, cancel := context.WithCancel(t.Context())
	s.Start(ctx)
	awaitTick(t, p)
	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))

	cancel()
	require.Eventually(t, func() bool {
		return !s.Running()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, model.StateStopped, s.Status().State)
	assert.Equal(t, []string{"start", "tick", "end"}, p.Events())

	s.Stop(t.Context())
	assert.Equal(t, []string{"start", "tick", "end"}, p.Events(), "stop after the worker exited is a no-op")
}
