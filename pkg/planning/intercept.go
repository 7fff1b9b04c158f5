package planning

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/pkg/field"
)

// TrajectoryPoint is a predicted ball position T seconds from now.
type TrajectoryPoint struct {
	T   float64 `json:"t"`
	Pos r2.Vec  `json:"pos"`
}

// Window is the stretch of the ball's predicted path a robot can get to in
// time, from the earliest reachable point to the latest.
type Window struct {
	First   r2.Vec  `json:"first"`
	FirstAt float64 `json:"first_at"`
	Last    r2.Vec  `json:"last"`
	LastAt  float64 `json:"last_at"`
}

// Midpoint returns the point halfway between the two ends of the window.
func (w Window) Midpoint() r2.Vec {
	return r2.Scale(0.5, r2.Add(w.First, w.Last))
}

func (p *Planner) steps() int {
	return int(math.Ceil(p.cfg.Horizon / p.cfg.TimeStep))
}

// FutureBallTrajectory samples the predicted ball position every TimeStep
// while the ball is in play and still moving. The first sample is the
// current position.
func (p *Planner) FutureBallTrajectory() []TrajectoryPoint {
	var out []TrajectoryPoint
	for i := 0; i <= p.steps(); i++ {
		t := float64(i) * p.cfg.TimeStep
		pos, ok := p.world.PredictBallPos(t)
		if !ok || !field.InPlay(pos) {
			break
		}
		if n := len(out); n > 0 && out[n-1].Pos == pos {
			break
		}
		out = append(out, TrajectoryPoint{T: t, Pos: pos})
	}
	return out
}

// InterceptRange finds the window of the ball's predicted path the robot can
// reach at full speed before the ball gets there. It reports false for an
// unknown robot or ball, when the first reachable point is off the field, or
// when nothing is reachable within Horizon. A ball that comes to rest inside
// the window gives a window whose ends coincide.
func (p *Planner) InterceptRange(robotID int) (Window, bool) {
	robot, ok := p.world.RobotPosition(p.team, robotID)
	if !ok {
		return Window{}, false
	}
	maxSpeed := p.world.RobotMaxSpeed(p.team, robotID)
	reachable := func(t float64) (r2.Vec, bool, bool) {
		pos, ok := p.world.PredictBallPos(t)
		return pos, ok && field.Distance(robot.Pos, pos) <= t*maxSpeed, ok
	}

	n := p.steps()
	first := -1
	var w Window
	for i := 0; i <= n; i++ {
		t := float64(i) * p.cfg.TimeStep
		pos, can, known := reachable(t)
		if !known {
			return Window{}, false
		}
		if can {
			if !field.InPlay(pos) {
				return Window{}, false
			}
			first = i
			w.First, w.FirstAt = pos, t
			break
		}
	}
	if first < 0 {
		return Window{}, false
	}

	w.Last, w.LastAt = w.First, w.FirstAt
	prev := w.First
	for i := first + 1; i <= n; i++ {
		t := float64(i) * p.cfg.TimeStep
		pos, can, _ := reachable(t)
		if !can || pos == prev || !field.InPlay(pos) {
			break
		}
		w.Last, w.LastAt = pos, t
		prev = pos
	}
	return w, true
}

// SafestInterceptPoint picks the point on the ball's predicted path where the
// robot would arrive with the most time to spare, even if that is negative.
// With no ball in view it returns the robot's own position. It reports false
// only for an unknown robot.
func (p *Planner) SafestInterceptPoint(robotID int) (r2.Vec, bool) {
	robot, ok := p.world.RobotPosition(p.team, robotID)
	if !ok {
		return r2.Vec{}, false
	}
	if p.world.IsBallLost() {
		return robot.Pos, true
	}
	maxSpeed := p.world.RobotMaxSpeed(p.team, robotID)

	best, bestSlack := robot.Pos, math.Inf(-1)
	for _, tp := range p.FutureBallTrajectory() {
		slack := tp.T - field.Distance(robot.Pos, tp.Pos)/maxSpeed
		if slack > bestSlack {
			best, bestSlack = tp.Pos, slack
		}
	}
	return best, true
}
