// Package commands holds the per-robot desired motion and actuator intent
// that Strategy writes every tick and Comms drains every send cycle.
package commands

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/pkg/field"
)

// Motion tuning.
const (
	// ArrivalTolerance is how close a robot must get before its head
	// waypoint is considered reached.
	ArrivalTolerance = 40.0 // mm

	LinearGain      = 3.0    // (mm/s) per mm of remaining distance
	MaxLinearSpeed  = 1500.0 // mm/s
	AngularGain     = 4.0    // (rad/s) per rad of heading error
	MaxAngularSpeed = 6.0    // rad/s

	// ChargeRate is the fraction of a full kicker charge gained per second
	// while charging.
	ChargeRate = 0.25
	// MaxCharge is a full capacitor.
	MaxCharge = 1.0
)

// Waypoint is a position to drive through, with an optional heading to hold
// on arrival.
type Waypoint struct {
	Pos     r2.Vec   `json:"pos" msgpack:"pos"`
	Heading *float64 `json:"heading,omitempty" msgpack:"heading,omitempty"`
}

// At builds a waypoint without a heading.
func At(pos r2.Vec) Waypoint {
	return Waypoint{Pos: pos}
}

// Facing builds a waypoint that also asks for a heading.
func Facing(pos r2.Vec, heading float64) Waypoint {
	h := heading
	return Waypoint{Pos: pos, Heading: &h}
}

// Speed is a commanded velocity in the world frame.
type Speed struct {
	X float64 `json:"x"` // mm/s
	Y float64 `json:"y"` // mm/s
	W float64 `json:"w"` // rad/s
}

// RobotCommands is one robot's command record. The zero value is a valid,
// idle robot.
type RobotCommands struct {
	Waypoints   []Waypoint `json:"waypoints"`
	Speed       Speed      `json:"speed"`
	IsCharging  bool       `json:"is_charging"`
	IsKicking   bool       `json:"is_kicking"`
	IsDribbling bool       `json:"is_dribbling"`
	ChargeLevel float64    `json:"charge_level"`
}

// Clone returns a deep copy, so callers never alias the waypoint queue.
func (c RobotCommands) Clone() RobotCommands {
	out := c
	out.Waypoints = make([]Waypoint, len(c.Waypoints))
	for i, wp := range c.Waypoints {
		out.Waypoints[i] = wp
		if wp.Heading != nil {
			h := *wp.Heading
			out.Waypoints[i].Heading = &h
		}
	}
	return out
}

// SetWaypoints replaces the whole queue.
func (c *RobotCommands) SetWaypoints(wps []Waypoint) {
	c.Waypoints = slices.Clone(wps)
}

// AppendWaypoint adds wp to the end of the queue.
func (c *RobotCommands) AppendWaypoint(wp Waypoint) {
	c.Waypoints = append(slices.Clip(c.Waypoints), wp)
}

// HasWaypointAt reports whether any queued waypoint sits exactly at pos.
func (c *RobotCommands) HasWaypointAt(pos r2.Vec) bool {
	for _, wp := range c.Waypoints {
		if wp.Pos == pos {
			return true
		}
	}
	return false
}

// LastWaypoint returns the tail of the queue.
func (c *RobotCommands) LastWaypoint() (Waypoint, bool) {
	if len(c.Waypoints) == 0 {
		return Waypoint{}, false
	}
	return c.Waypoints[len(c.Waypoints)-1], true
}

// SetSpeeds overrides the derived speed.
func (c *RobotCommands) SetSpeeds(x, y, w float64) {
	c.Speed = Speed{X: x, Y: y, W: w}
}

// DeriveSpeeds recomputes the commanded speed toward the head waypoint from
// the robot's current pose. Waypoints within ArrivalTolerance are dropped
// first; a queue that runs dry stops the robot.
func (c *RobotCommands) DeriveSpeeds(current field.Pose) {
	for len(c.Waypoints) > 0 && field.Distance(current.Pos, c.Waypoints[0].Pos) <= ArrivalTolerance {
		// a reached waypoint with a heading is only done once the heading is held
		if h := c.Waypoints[0].Heading; h != nil && len(c.Waypoints) == 1 {
			if math.Abs(field.WrapAngle(*h-current.Heading)) > headingTolerance {
				break
			}
		}
		c.Waypoints = slices.Clone(c.Waypoints[1:])
	}
	if len(c.Waypoints) == 0 {
		c.Speed = Speed{}
		return
	}

	target := c.Waypoints[0]
	delta := r2.Sub(target.Pos, current.Pos)
	dist := r2.Norm(delta)

	var linear r2.Vec
	if dist > ArrivalTolerance {
		speed := math.Min(LinearGain*dist, MaxLinearSpeed)
		linear = r2.Scale(speed/dist, delta)
	}

	var w float64
	if target.Heading != nil {
		w = clamp(AngularGain*field.WrapAngle(*target.Heading-current.Heading), -MaxAngularSpeed, MaxAngularSpeed)
	}
	c.Speed = Speed{X: linear.X, Y: linear.Y, W: w}
}

const headingTolerance = 0.05 // rad

// Heading is the direction of the commanded linear speed.
func (c *RobotCommands) Heading() float64 {
	return math.Atan2(c.Speed.Y, c.Speed.X)
}

// BodySpeed rotates the world-frame linear speed into the frame of a robot
// facing heading: x forward, y to the left.
func (c *RobotCommands) BodySpeed(heading float64) Speed {
	sin, cos := math.Sincos(heading)
	return Speed{
		X: c.Speed.X*cos + c.Speed.Y*sin,
		Y: -c.Speed.X*sin + c.Speed.Y*cos,
		W: c.Speed.W,
	}
}

// SimulateCharge accumulates kicker charge over dt seconds while charging.
func (c *RobotCommands) SimulateCharge(dt float64) {
	if !c.IsCharging || dt <= 0 {
		return
	}
	c.ChargeLevel = math.Min(c.ChargeLevel+ChargeRate*dt, MaxCharge)
}

// ConsumeKick clears a kick that has just been transmitted; the kick spends
// the whole charge. It reports whether a kick was pending.
func (c *RobotCommands) ConsumeKick() bool {
	if !c.IsKicking {
		return false
	}
	c.IsKicking = false
	c.ChargeLevel = 0
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
