// Package loop implements the periodic control loop shared by the strategy,
// comms, vision and streaming subsystems: wait for the game to start, then
// tick, check the deadline and sleep until told to stop.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-ssl/internal/log"
	"github.com/teslashibe/go-ssl/pkg/clock"
)

// OverrunFactor is how many periods may pass between two ticks before the
// loop reports an overrun.
const OverrunFactor = 3

var (
	ErrAlreadyRunning = errors.New("loop: already running")
	ErrInvalidPeriod  = errors.New("loop: period must be positive")
	ErrNoTick         = errors.New("loop: no tick function")
)

// Barrier blocks until the game begins. The world model implements it.
type Barrier interface {
	WaitUntilGameBegins(ctx context.Context) error
}

// Periodic runs Tick every Period on its own goroutine.
//
// Overruns are only reported, never corrected: the loop keeps going at best
// effort. Tick errors are the tick's own business; the loop stops only on
// Stop.
type Periodic struct {
	Name   string
	Period time.Duration

	// Barrier, when set, is waited on before the first tick.
	Barrier Barrier

	// Tick does one cycle. dt is the time since the previous tick started,
	// zero on the first.
	Tick func(dt time.Duration)

	// OnOverrun is called after the warning when ticks are more than
	// OverrunFactor periods apart.
	OnOverrun func(name string, delay time.Duration)

	Clock  clock.Clock
	Logger *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	ticks    atomic.Uint64
	overruns atomic.Uint64
}

// Start launches the loop goroutine.
func (p *Periodic) Start() error {
	if p.Period <= 0 {
		return ErrInvalidPeriod
	}
	if p.Tick == nil {
		return ErrNoTick
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrAlreadyRunning
	}
	if p.Clock == nil {
		p.Clock = clock.Real{}
	}
	if p.Logger == nil {
		p.Logger = log.For("loop")
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)
	return nil
}

// Stop asks the loop to finish and waits for its goroutine to exit. A loop
// still waiting for the game to start is released. Calling Stop on a loop
// that is not running does nothing.
func (p *Periodic) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop, done := p.stop, p.done
	close(stop)
	p.mu.Unlock()

	<-done
}

// Running reports whether the loop has been started and not stopped.
func (p *Periodic) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Ticks returns how many ticks have run.
func (p *Periodic) Ticks() uint64 {
	return p.ticks.Load()
}

// Overruns returns how many deadline overruns were seen.
func (p *Periodic) Overruns() uint64 {
	return p.overruns.Load()
}

func (p *Periodic) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	logger := p.Logger.With("loop", p.Name)

	if p.Barrier != nil {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()
		err := p.Barrier.WaitUntilGameBegins(ctx)
		cancel()
		if err != nil {
			logger.Debug("stopped before game start")
			return
		}
	}
	logger.Info("loop started", "period", p.Period)
	defer logger.Info("loop stopped", "ticks", p.ticks.Load(), "overruns", p.overruns.Load())

	var last time.Time
	for {
		select {
		case <-stop:
			return
		default:
		}

		now := p.Clock.Now()
		var dt time.Duration
		if !last.IsZero() {
			dt = now.Sub(last)
			if dt > OverrunFactor*p.Period {
				p.overruns.Add(1)
				logger.Warn("loop overrun", "delay", dt, "period", p.Period)
				if p.OnOverrun != nil {
					p.OnOverrun(p.Name, dt)
				}
			}
		}
		last = now

		p.Tick(dt)
		p.ticks.Add(1)

		select {
		case <-stop:
			return
		case <-p.Clock.After(p.Period):
		}
	}
}
