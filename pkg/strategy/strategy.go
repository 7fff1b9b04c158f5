// Package strategy runs one team's control loop: each tick it applies the
// selected mode through the planner, then refreshes every commanded robot's
// speed from its waypoints, stopping robots vision has lost.
package strategy

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/internal/log"
	"github.com/teslashibe/go-ssl/pkg/clock"
	"github.com/teslashibe/go-ssl/pkg/commands"
	"github.com/teslashibe/go-ssl/pkg/field"
	"github.com/teslashibe/go-ssl/pkg/loop"
	"github.com/teslashibe/go-ssl/pkg/planning"
	"github.com/teslashibe/go-ssl/pkg/worldmodel"
)

// ErrAlreadyControlling is returned by StartControlling on a running loop.
var ErrAlreadyControlling = errors.New("strategy: already controlling")

// State is the controller lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Strategy controls the robots of one team.
type Strategy struct {
	world   *worldmodel.World
	team    field.Team
	planner *planning.Planner
	intents IntentSource

	clock     clock.Clock
	logger    *slog.Logger
	onOverrun func(name string, delay time.Duration)

	mu    sync.Mutex
	state State
	mode  Mode
	loop  *loop.Periodic
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithIntents sets the operator input used by FollowPointer.
func WithIntents(src IntentSource) Option {
	return func(s *Strategy) { s.intents = src }
}

// WithOverrunHook is called whenever the control loop misses its deadline.
func WithOverrunHook(fn func(name string, delay time.Duration)) Option {
	return func(s *Strategy) { s.onOverrun = fn }
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Strategy) { s.logger = l }
}

// New creates an idle controller for team. A nil planner gets the default
// planner for the world.
func New(world *worldmodel.World, team field.Team, planner *planning.Planner, opts ...Option) *Strategy {
	if planner == nil {
		planner = planning.New(world, team)
	}
	s := &Strategy{
		world:   world,
		team:    team,
		planner: planner,
		intents: NewIntentStore(),
		clock:   world.Clock(),
		logger:  log.For("strategy").With("team", team.String()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartControlling starts the control loop in mode, ticking every period once
// the game begins.
func (s *Strategy) StartControlling(mode Mode, period time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return ErrAlreadyControlling
	}

	p := &loop.Periodic{
		Name:      "strategy-" + s.team.String(),
		Period:    period,
		Barrier:   s.world,
		Tick:      func(time.Duration) { s.tick(mode) },
		OnOverrun: s.onOverrun,
		Clock:     s.clock,
		Logger:    s.logger,
	}
	if err := p.Start(); err != nil {
		return fmt.Errorf("start strategy loop: %w", err)
	}
	s.loop = p
	s.mode = mode
	s.state = StateRunning
	s.logger.Info("controlling", "mode", mode.String(), "period", period)
	return nil
}

// StopControlling stops the loop and waits for it. It does nothing unless
// the loop is running.
func (s *Strategy) StopControlling() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	p := s.loop
	s.loop = nil
	s.state = StateStopped
	s.mu.Unlock()

	p.Stop()
}

// State returns the lifecycle state.
func (s *Strategy) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode returns the mode of the running loop, nil before the first start.
func (s *Strategy) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Strategy) tick(mode Mode) {
	switch m := mode.(type) {
	case FollowPointer:
		s.followPointer()
	case InterceptDemo:
		s.interceptDemo(m.RobotID)
	case Goalie:
		s.planner.Goalie(m.RobotID, m.Opposite)
	case Idle:
	default:
		panic(fmt.Sprintf("strategy: unhandled mode %T", mode))
	}
	s.refreshSpeeds()
}

// refreshSpeeds re-derives every commanded robot's speed; a lost robot is
// stopped where it is.
func (s *Strategy) refreshSpeeds() {
	for _, id := range s.world.CommandedRobots(s.team) {
		pose, ok := s.world.RobotPosition(s.team, id)
		if !ok || s.world.IsRobotLost(s.team, id) {
			s.world.UpdateRobotCommands(s.team, id, func(c *commands.RobotCommands) {
				c.SetSpeeds(0, 0, 0)
			})
			continue
		}
		s.world.UpdateRobotCommands(s.team, id, func(c *commands.RobotCommands) {
			c.DeriveSpeeds(pose)
		})
	}
}

func (s *Strategy) followPointer() {
	in := s.intents.Intent()
	if !in.Selected || in.Team != s.team {
		return
	}
	id := in.RobotID

	var route []commands.Waypoint
	if in.Click != nil {
		route = s.routeTo(id, in)
	}

	s.world.UpdateRobotCommands(s.team, id, func(c *commands.RobotCommands) {
		for _, wp := range route {
			c.AppendWaypoint(wp)
		}
		c.IsCharging = in.Charge
		c.IsKicking = in.Kick
		c.IsDribbling = in.Dribble
	})
}

// routeTo returns the waypoints to append so robot id ends up at the click,
// or nothing if the click is already queued or unreachable.
func (s *Strategy) routeTo(id int, in UserIntent) []commands.Waypoint {
	goal := commands.At(*in.Click)
	if in.Drag != (r2.Vec{}) {
		goal = commands.Facing(*in.Click, math.Atan2(in.Drag.Y, in.Drag.X))
	}

	cmds := s.world.RobotCommands(s.team, id)
	if cmds.HasWaypointAt(goal.Pos) {
		return nil
	}

	var start r2.Vec
	if last, ok := cmds.LastWaypoint(); ok {
		start = last.Pos
	} else if pose, ok := s.world.RobotPosition(s.team, id); ok {
		start = pose.Pos
	} else {
		return []commands.Waypoint{goal}
	}

	if !s.planner.IsPathBlocked(start, goal.Pos, id, 0) {
		return []commands.Waypoint{goal}
	}
	path, ok := s.planner.FindPath(start, goal.Pos, id, 0)
	if !ok {
		s.logger.Debug("no path to click", "robot", id, "goal", goal.Pos)
		return nil
	}
	// keep the requested heading on the final waypoint
	path[len(path)-1] = goal
	return path
}

func (s *Strategy) interceptDemo(id int) {
	w, ok := s.planner.InterceptRange(id)
	if !ok {
		return
	}
	s.planner.MoveStraight(id, commands.At(w.Midpoint()))
}
