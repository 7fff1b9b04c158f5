// Package comms sends the commanded speeds and actuator flags of one team to
// its robots over a radio, and reads back whatever telemetry they return.
package comms

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/teslashibe/go-ssl/internal/log"
	"github.com/teslashibe/go-ssl/pkg/commands"
	"github.com/teslashibe/go-ssl/pkg/field"
	"github.com/teslashibe/go-ssl/pkg/loop"
	"github.com/teslashibe/go-ssl/pkg/worldmodel"
)

// errLogInterval limits how often a failing radio is logged.
const errLogInterval = time.Second

// TelemetrySink stores what the robots send back.
type TelemetrySink interface {
	RecordTelemetry(team field.Team, payload []byte) error
}

// Comms owns the radio of one team.
type Comms struct {
	world   *worldmodel.World
	team    field.Team
	radio   Radio
	encoder Encoder
	sink    TelemetrySink

	logger    *slog.Logger
	onOverrun func(name string, delay time.Duration)

	mu       sync.Mutex
	sender   *loop.Periodic
	receiver *loop.Periodic
	closed   bool

	// send loop only
	seq        uint32
	lastErrLog time.Time
	suppressed int
}

// Option configures Comms.
type Option func(*Comms)

func WithEncoder(e Encoder) Option { return func(c *Comms) { c.encoder = e } }

// WithSink forwards received telemetry to s.
func WithSink(s TelemetrySink) Option { return func(c *Comms) { c.sink = s } }

func WithLogger(l *slog.Logger) Option { return func(c *Comms) { c.logger = l } }

// WithOverrunHook is passed on to both loops.
func WithOverrunHook(fn func(name string, delay time.Duration)) Option {
	return func(c *Comms) { c.onOverrun = fn }
}

// New creates Comms for team. Nothing runs until StartSending or
// StartReceiving.
func New(world *worldmodel.World, team field.Team, radio Radio, opts ...Option) *Comms {
	c := &Comms{
		world:   world,
		team:    team,
		radio:   radio,
		encoder: MsgpackEncoder{},
		logger:  log.For("comms").With("team", team.String()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSending transmits the team's commands every period once the game
// begins.
func (c *Comms) StartSending(period time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrRadioClosed
	}
	if c.sender != nil {
		return loop.ErrAlreadyRunning
	}
	if d := c.radio.MessageDelay(); period < d {
		c.logger.Warn("sending faster than the radio can transmit", "period", period, "message_delay", d)
	}
	p := c.newLoop("comms-send-"+c.team.String(), period, c.sendTick)
	if err := p.Start(); err != nil {
		return fmt.Errorf("start send loop: %w", err)
	}
	c.sender = p
	return nil
}

// StartReceiving polls the radio every period once the game begins.
func (c *Comms) StartReceiving(period time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrRadioClosed
	}
	if c.receiver != nil {
		return loop.ErrAlreadyRunning
	}
	p := c.newLoop("comms-recv-"+c.team.String(), period, c.receiveTick)
	if err := p.Start(); err != nil {
		return fmt.Errorf("start receive loop: %w", err)
	}
	c.receiver = p
	return nil
}

// Stop stops both loops and closes the radio. Comms cannot be restarted.
func (c *Comms) Stop() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sender, receiver := c.sender, c.receiver
	c.sender, c.receiver = nil, nil
	c.mu.Unlock()

	if sender != nil {
		sender.Stop()
	}
	// closing first unblocks a receive tick stuck in Read
	err := c.radio.Close()
	if receiver != nil {
		receiver.Stop()
	}
	if err != nil {
		return fmt.Errorf("close radio: %w", err)
	}
	return nil
}

func (c *Comms) newLoop(name string, period time.Duration, tick func(time.Duration)) *loop.Periodic {
	return &loop.Periodic{
		Name:      name,
		Period:    period,
		Barrier:   c.world,
		Tick:      tick,
		OnOverrun: c.onOverrun,
		Clock:     c.world.Clock(),
		Logger:    c.logger,
	}
}

func (c *Comms) sendTick(dt time.Duration) {
	team := c.world.TeamCommands(c.team)
	frame := c.frame(team)

	sent := true
	data, err := c.encoder.Encode(frame)
	if err == nil {
		err = c.radio.Send(data)
	}
	if err != nil {
		sent = false
		c.sendFailed(err)
	}

	for id, snap := range team {
		c.world.UpdateRobotCommands(c.team, id, func(rc *commands.RobotCommands) {
			rc.SimulateCharge(dt.Seconds())
			// only a kick that actually went out is spent
			if sent && snap.IsKicking && onAir(id) {
				rc.ConsumeKick()
			}
		})
	}
}

// frame builds the radio frame for a snapshot of the team's commands, robots
// in id order. Ids that do not fit the one-byte wire id are left out.
func (c *Comms) frame(team map[int]commands.RobotCommands) TeamFrame {
	ids := make([]int, 0, len(team))
	for id := range team {
		if !onAir(id) {
			c.logger.Warn("robot id out of radio range, not sent", "robot", id)
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	c.seq++
	f := TeamFrame{Team: c.team.String(), Seq: c.seq, Robots: make([]RobotFrame, 0, len(ids))}
	for _, id := range ids {
		cmd := team[id]
		var heading float64
		if pose, ok := c.world.RobotPosition(c.team, id); ok {
			heading = pose.Heading
		}
		body := cmd.BodySpeed(heading)
		f.Robots = append(f.Robots, RobotFrame{
			ID:      uint8(id),
			VX:      float32(body.X),
			VY:      float32(body.Y),
			W:       float32(body.W),
			Kick:    cmd.IsKicking,
			Charge:  cmd.IsCharging,
			Dribble: cmd.IsDribbling,
		})
	}
	return f
}

// onAir reports whether id can be addressed by RobotFrame.ID.
func onAir(id int) bool {
	return id >= 0 && id <= math.MaxUint8
}

func (c *Comms) sendFailed(err error) {
	now := c.world.Clock().Now()
	if !c.lastErrLog.IsZero() && now.Sub(c.lastErrLog) < errLogInterval {
		c.suppressed++
		return
	}
	c.logger.Error("radio send failed", "error", err, "suppressed", c.suppressed)
	c.lastErrLog = now
	c.suppressed = 0
}

func (c *Comms) receiveTick(time.Duration) {
	data, err := c.radio.Read()
	if errors.Is(err, ErrRadioClosed) {
		return
	}
	if err != nil {
		c.logger.Error("radio read failed", "error", err)
		return
	}
	if len(data) == 0 {
		return
	}
	c.logger.Debug("telemetry", "bytes", len(data))
	if c.sink == nil {
		return
	}
	if err := c.sink.RecordTelemetry(c.team, data); err != nil {
		c.logger.Debug("telemetry not recorded", "error", err)
	}
}
