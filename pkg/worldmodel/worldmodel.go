// Package worldmodel is the shared store of recent ball and robot
// observations for both teams, with staleness, velocity and prediction
// queries, the game-start barrier and the per-robot command records.
//
// Every entity has its own synchronisation: history buffers publish through
// an atomic pointer and each command record has its own mutex. The team maps
// are locked only to insert a new robot.
package worldmodel

import (
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/internal/log"
	"github.com/teslashibe/go-ssl/pkg/clock"
	"github.com/teslashibe/go-ssl/pkg/field"
)

// Config tunes the world model.
type Config struct {
	BallHistory  int
	RobotHistory int

	BallLostAfter  time.Duration
	RobotLostAfter time.Duration

	// VelocityWindow is the minimum time span used for the ball velocity
	// estimate.
	VelocityWindow time.Duration

	// BallDeceleration is the rolling friction magnitude in mm/s².
	BallDeceleration float64

	// RobotMaxSpeed is the planning speed for every robot in mm/s.
	RobotMaxSpeed float64
}

// DefaultConfig returns the tuning used on the field.
func DefaultConfig() Config {
	return Config{
		BallHistory:      20,
		RobotHistory:     20,
		BallLostAfter:    100 * time.Millisecond,
		RobotLostAfter:   200 * time.Millisecond,
		VelocityWindow:   50 * time.Millisecond,
		BallDeceleration: 0.5,
		RobotMaxSpeed:    1500,
	}
}

// maxPredictIterations bounds the stop-time correction in PredictBallPos.
const maxPredictIterations = 8

// World is the shared world model.
type World struct {
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger

	ball *History[r2.Vec]

	velMu sync.Mutex
	vel   r2.Vec // last computed ball velocity

	teams [2]*teamState

	barrier barrier
}

type teamState struct {
	mu       sync.RWMutex
	robots   map[int]*History[field.Pose]
	commands map[int]*commandRecord
}

// New creates an empty world model. A nil clock means the real clock.
func New(cfg Config, clk clock.Clock) *World {
	if clk == nil {
		clk = clock.Real{}
	}
	w := &World{
		cfg:    cfg,
		clock:  clk,
		logger: log.For("worldmodel"),
		ball:   NewHistory[r2.Vec](cfg.BallHistory),
	}
	for i := range w.teams {
		w.teams[i] = &teamState{
			robots:   make(map[int]*History[field.Pose]),
			commands: make(map[int]*commandRecord),
		}
	}
	w.barrier.reset()
	return w
}

// Config returns the tuning the world was built with.
func (w *World) Config() Config {
	return w.cfg
}

// Clock returns the world's time source.
func (w *World) Clock() clock.Clock {
	return w.clock
}

func (w *World) team(t field.Team) *teamState {
	return w.teams[t.Index()]
}

// UpdateBallPosition records a new ball observation.
func (w *World) UpdateBallPosition(pos r2.Vec) {
	w.ball.Push(w.clock.Now(), pos)
}

// BallPosition returns the most recent ball position.
func (w *World) BallPosition() (r2.Vec, bool) {
	s, ok := w.ball.Latest()
	return s.Value, ok
}

// BallLastUpdate returns when the ball was last seen.
func (w *World) BallLastUpdate() (time.Time, bool) {
	s, ok := w.ball.Latest()
	return s.At, ok
}

// BallHistory returns the ball samples, most recent first.
func (w *World) BallHistory() []Sample[r2.Vec] {
	return w.ball.Samples()
}

// IsBallLost reports whether the ball has not been seen within
// BallLostAfter. A ball never seen is lost.
func (w *World) IsBallLost() bool {
	at, ok := w.BallLastUpdate()
	return !ok || w.clock.Since(at) > w.cfg.BallLostAfter
}

// UpdateRobotPosition records a new observation of one robot, creating its
// history on first sight.
func (w *World) UpdateRobotPosition(team field.Team, id int, pose field.Pose) {
	w.robotHistory(team, id, true).Push(w.clock.Now(), pose)
}

func (w *World) robotHistory(team field.Team, id int, create bool) *History[field.Pose] {
	ts := w.team(team)
	ts.mu.RLock()
	h := ts.robots[id]
	ts.mu.RUnlock()
	if h != nil || !create {
		return h
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if h = ts.robots[id]; h == nil {
		h = NewHistory[field.Pose](w.cfg.RobotHistory)
		ts.robots[id] = h
	}
	return h
}

// RobotPosition returns the most recent pose of a robot.
func (w *World) RobotPosition(team field.Team, id int) (field.Pose, bool) {
	h := w.robotHistory(team, id, false)
	if h == nil {
		return field.Pose{}, false
	}
	s, ok := h.Latest()
	return s.Value, ok
}

// RobotLastUpdate returns when a robot was last seen.
func (w *World) RobotLastUpdate(team field.Team, id int) (time.Time, bool) {
	h := w.robotHistory(team, id, false)
	if h == nil {
		return time.Time{}, false
	}
	s, ok := h.Latest()
	return s.At, ok
}

// RobotHistory returns a robot's samples, most recent first.
func (w *World) RobotHistory(team field.Team, id int) []Sample[field.Pose] {
	h := w.robotHistory(team, id, false)
	if h == nil {
		return nil
	}
	return h.Samples()
}

// IsRobotLost reports whether a robot has not been seen within
// RobotLostAfter. A robot never seen is lost.
func (w *World) IsRobotLost(team field.Team, id int) bool {
	at, ok := w.RobotLastUpdate(team, id)
	return !ok || w.clock.Since(at) > w.cfg.RobotLostAfter
}

// RobotIDs returns the ids of every robot of team ever observed, sorted.
func (w *World) RobotIDs(team field.Team) []int {
	ts := w.team(team)
	ts.mu.RLock()
	ids := make([]int, 0, len(ts.robots))
	for id := range ts.robots {
		ids = append(ids, id)
	}
	ts.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// RobotMaxSpeed is the speed planners assume a robot can reach, in mm/s.
func (w *World) RobotMaxSpeed(team field.Team, id int) float64 {
	_ = team.Index()
	return w.cfg.RobotMaxSpeed
}

// BallVelocity estimates the ball velocity in mm/s from the newest sample and
// the first sample at least VelocityWindow older than it (or the oldest held).
// With fewer than two samples it reports zero; a zero time span keeps the
// previous estimate.
func (w *World) BallVelocity() r2.Vec {
	samples := w.ball.load()
	if len(samples) <= 1 {
		return r2.Vec{}
	}

	i := 0
	for i < len(samples)-1 && samples[0].At.Sub(samples[i].At) < w.cfg.VelocityWindow {
		i++
	}

	w.velMu.Lock()
	defer w.velMu.Unlock()
	dt := samples[0].At.Sub(samples[i].At).Seconds()
	if dt > 0 {
		w.vel = r2.Scale(1/dt, r2.Sub(samples[0].Value, samples[i].Value))
	}
	return w.vel
}

// PredictBallPos projects the ball dt seconds ahead under constant rolling
// deceleration opposing its velocity. The ball comes to rest rather than
// reversing. A stationary ball stays where it is.
func (w *World) PredictBallPos(dt float64) (r2.Vec, bool) {
	pos, ok := w.BallPosition()
	if !ok {
		return r2.Vec{}, false
	}
	return projectBall(pos, w.BallVelocity(), w.cfg.BallDeceleration, dt), true
}

func projectBall(pos, vel r2.Vec, decel, dt float64) r2.Vec {
	speed := r2.Norm(vel)
	if dt <= 0 || speed == 0 || math.IsNaN(speed) {
		return pos
	}
	dir := r2.Scale(1/speed, vel)

	t := dt
	if decel > 0 {
		for range maxPredictIterations {
			if speed-decel*t >= 0 {
				break
			}
			t = speed / decel
		}
	}
	travelled := speed*t - 0.5*decel*t*t
	return r2.Add(pos, r2.Scale(travelled, dir))
}
