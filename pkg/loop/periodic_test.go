package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-ssl/internal/log"
)

// gate is a hand-opened barrier.
type gate struct {
	once sync.Once
	ch   chan struct{}
}

func newGate() *gate { return &gate{ch: make(chan struct{})} }

func (g *gate) open() { g.once.Do(func() { close(g.ch) }) }

func (g *gate) WaitUntilGameBegins(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestPeriodic_StartValidation(t *testing.T) {
	p := &Periodic{Name: "x", Tick: func(time.Duration) {}}
	assert.ErrorIs(t, p.Start(), ErrInvalidPeriod)

	p = &Periodic{Name: "x", Period: time.Millisecond}
	assert.ErrorIs(t, p.Start(), ErrNoTick)
}

func TestPeriodic_WaitsForBarrier(t *testing.T) {
	var ticks atomic.Int32
	g := newGate()
	p := &Periodic{
		Name:    "test",
		Period:  2 * time.Millisecond,
		Barrier: g,
		Tick:    func(time.Duration) { ticks.Add(1) },
		Logger:  log.Discard(),
	}
	require.NoError(t, p.Start())
	defer p.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, ticks.Load(), "ticked before the game began")

	g.open()
	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestPeriodic_StopReleasesBarrierWait(t *testing.T) {
	p := &Periodic{
		Name:    "test",
		Period:  time.Millisecond,
		Barrier: newGate(),
		Tick:    func(time.Duration) { t.Error("tick without game start") },
		Logger:  log.Discard(),
	}
	require.NoError(t, p.Start())

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return while waiting on the barrier")
	}
	assert.False(t, p.Running())
}

func TestPeriodic_StopIsIdempotentAndJoins(t *testing.T) {
	var inTick atomic.Bool
	p := &Periodic{
		Name:   "test",
		Period: time.Millisecond,
		Tick: func(time.Duration) {
			inTick.Store(true)
			time.Sleep(5 * time.Millisecond)
			inTick.Store(false)
		},
		Logger: log.Discard(),
	}
	p.Stop() // not running yet

	require.NoError(t, p.Start())
	assert.ErrorIs(t, p.Start(), ErrAlreadyRunning)
	assert.Eventually(t, func() bool { return p.Ticks() > 0 }, time.Second, time.Millisecond)

	p.Stop()
	assert.False(t, inTick.Load(), "Stop returned while a tick was running")
	assert.False(t, p.Running())
	n := p.Ticks()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, n, p.Ticks(), "ticked after Stop")
	p.Stop()
}

func TestPeriodic_ReportsOverrun(t *testing.T) {
	var (
		calls  atomic.Int32
		mu     sync.Mutex
		delays []time.Duration
	)
	p := &Periodic{
		Name:   "slow",
		Period: 5 * time.Millisecond,
		Tick: func(time.Duration) {
			if calls.Add(1) == 2 {
				time.Sleep(40 * time.Millisecond)
			}
		},
		OnOverrun: func(name string, delay time.Duration) {
			assert.Equal(t, "slow", name)
			mu.Lock()
			delays = append(delays, delay)
			mu.Unlock()
		},
		Logger: log.Discard(),
	}
	require.NoError(t, p.Start())
	assert.Eventually(t, func() bool { return p.Overruns() >= 1 }, time.Second, time.Millisecond)
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, delays)
	assert.Greater(t, delays[0], 3*p.Period)
}

func TestPeriodic_PassesElapsedTime(t *testing.T) {
	var (
		mu  sync.Mutex
		dts []time.Duration
	)
	p := &Periodic{
		Name:   "dt",
		Period: 2 * time.Millisecond,
		Tick: func(dt time.Duration) {
			mu.Lock()
			dts = append(dts, dt)
			mu.Unlock()
		},
		Logger: log.Discard(),
	}
	require.NoError(t, p.Start())
	assert.Eventually(t, func() bool { return p.Ticks() >= 3 }, time.Second, time.Millisecond)
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, dts[0])
	assert.GreaterOrEqual(t, dts[1], p.Period)
}
