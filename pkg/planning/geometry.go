package planning

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/pkg/field"
)

// BestKickPos is where a robot must stand to kick a ball at from toward to.
func (p *Planner) BestKickPos(from, to r2.Vec) field.Pose {
	return field.DribblerToRobot(from, field.Bearing(from, to))
}

// BlockGoalCenterPos returns a pose on the line from team's goal centre to the
// ball, maxDistance from the goal centre (closer if the ball is nearer than
// that), facing the ball. A nil ball means the observed ball. It reports false
// when the ball is unknown, out of play or exactly on the goal centre.
func (p *Planner) BlockGoalCenterPos(maxDistance float64, ball *r2.Vec, team field.Team) (field.Pose, bool) {
	var pos r2.Vec
	if ball != nil {
		pos = *ball
	} else {
		var ok bool
		if pos, ok = p.world.BallPosition(); !ok {
			return field.Pose{}, false
		}
	}
	if !field.InPlay(pos) {
		return field.Pose{}, false
	}

	center := field.GoalCenter(team)
	toBall := r2.Sub(pos, center)
	dist := r2.Norm(toBall)
	if dist == 0 {
		return field.Pose{}, false
	}
	d := math.Max(0, math.Min(maxDistance, dist-field.RobotRadius))
	return field.Pose{
		Pos:     r2.Add(center, r2.Scale(d/dist, toBall)),
		Heading: math.Atan2(toBall.Y, toBall.X),
	}, true
}

// IsShotComing reports whether the ball is rolling fast enough toward the goal
// team defends to cross its goal line between the posts, and where.
func (p *Planner) IsShotComing(team field.Team) (r2.Vec, bool) {
	if p.world.IsBallLost() {
		return r2.Vec{}, false
	}
	ball, ok := p.world.BallPosition()
	if !ok {
		return r2.Vec{}, false
	}
	vel := p.world.BallVelocity()
	speed := r2.Norm(vel)
	if speed < p.cfg.ShotSpeed || vel.X == 0 {
		return r2.Vec{}, false
	}

	center := field.GoalCenter(team)
	t := (center.X - ball.X) / vel.X
	if t <= 0 {
		return r2.Vec{}, false
	}
	cross := r2.Add(ball, r2.Scale(t, vel))
	if math.Abs(cross.Y-center.Y) > field.GoalWidth/2 {
		return r2.Vec{}, false
	}

	// the ball has to keep rolling long enough to get there
	if decel := p.world.Config().BallDeceleration; decel > 0 {
		if speed*speed/(2*decel) < field.Distance(ball, cross) {
			return r2.Vec{}, false
		}
	}
	return cross, true
}
