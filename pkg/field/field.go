// Package field defines the fixed pitch geometry, the two teams and the small
// geometric vocabulary shared by the world model and the planners.
//
// All lengths are millimetres with the origin at the centre spot, x along the
// long axis. Blue defends the goal at negative x.
package field

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Field and robot dimensions (SSL division B).
const (
	Length = 9000.0
	Width  = 6000.0

	MinX = -Length / 2
	MaxX = Length / 2
	MinY = -Width / 2
	MaxY = Width / 2

	CenterCircleRadius = 495.0
	GoalWidth          = 1000.0

	DefenseAreaLength = 1000.0 // along x, measured from the goal line
	DefenseAreaWidth  = 2000.0

	BallRadius  = 21.0
	RobotRadius = 90.0

	// DribblerToCenter is the distance from a robot's centre to the centre of
	// a ball sitting on its dribbler.
	DribblerToCenter = 80.0
)

// ErrInvalidTeam is returned by ParseTeam for anything but "blue" or "yellow".
var ErrInvalidTeam = errors.New("field: team must be blue or yellow")

// Team identifies one side of the match.
type Team uint8

const (
	Blue Team = iota
	Yellow
)

// Teams lists both teams in index order.
var Teams = [2]Team{Blue, Yellow}

// ParseTeam converts a configuration string into a Team.
func ParseTeam(s string) (Team, error) {
	switch s {
	case "blue":
		return Blue, nil
	case "yellow":
		return Yellow, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTeam, s)
}

// Index returns 0 for Blue and 1 for Yellow. Any other value is a programming
// error and panics.
func (t Team) Index() int {
	switch t {
	case Blue:
		return 0
	case Yellow:
		return 1
	}
	panic(fmt.Sprintf("field: invalid team %d", uint8(t)))
}

// Opponent returns the other team.
func (t Team) Opponent() Team {
	if t.Index() == 0 {
		return Yellow
	}
	return Blue
}

func (t Team) String() string {
	switch t {
	case Blue:
		return "blue"
	case Yellow:
		return "yellow"
	}
	return fmt.Sprintf("team(%d)", uint8(t))
}

// MarshalText lets teams appear as "blue"/"yellow" in JSON.
func (t Team) MarshalText() ([]byte, error) {
	if t != Blue && t != Yellow {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTeam, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText parses "blue"/"yellow".
func (t *Team) UnmarshalText(b []byte) error {
	v, err := ParseTeam(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Pose is a robot position plus heading (radians, counter-clockwise from +x).
type Pose struct {
	Pos     r2.Vec  `json:"pos" msgpack:"pos"`
	Heading float64 `json:"heading" msgpack:"heading"`
}

// InPlay reports whether p lies on the field of play (lines included).
func InPlay(p r2.Vec) bool {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return false
	}
	return p.X >= MinX && p.X <= MaxX && p.Y >= MinY && p.Y <= MaxY
}

// DefenseGoal returns the two posts of the goal the team defends,
// top (positive y) first.
func DefenseGoal(team Team) (top, bottom r2.Vec) {
	x := MinX
	if team.Index() == 1 {
		x = MaxX
	}
	return r2.Vec{X: x, Y: GoalWidth / 2}, r2.Vec{X: x, Y: -GoalWidth / 2}
}

// GoalCenter returns the centre of the goal mouth the team defends.
func GoalCenter(team Team) r2.Vec {
	top, bottom := DefenseGoal(team)
	return r2.Scale(0.5, r2.Add(top, bottom))
}

// InDefenseArea reports whether p is inside the defense area in front of the
// goal defended by team.
func InDefenseArea(p r2.Vec, team Team) bool {
	if math.Abs(p.Y) > DefenseAreaWidth/2 {
		return false
	}
	if team.Index() == 0 {
		return p.X >= MinX && p.X <= MinX+DefenseAreaLength
	}
	return p.X <= MaxX && p.X >= MaxX-DefenseAreaLength
}

// DribblerToRobot returns where the robot centre must be for a ball at
// ballPos to sit on its dribbler while the robot faces heading.
func DribblerToRobot(ballPos r2.Vec, heading float64) Pose {
	dir := r2.Vec{X: math.Cos(heading), Y: math.Sin(heading)}
	return Pose{
		Pos:     r2.Sub(ballPos, r2.Scale(DribblerToCenter, dir)),
		Heading: heading,
	}
}

// Bearing is the direction from a to b. Coincident points give 0.
func Bearing(from, to r2.Vec) float64 {
	d := r2.Sub(to, from)
	if d.X == 0 && d.Y == 0 {
		return 0
	}
	return math.Atan2(d.Y, d.X)
}

// Distance is the Euclidean distance between a and b.
func Distance(a, b r2.Vec) float64 {
	return r2.Norm(r2.Sub(a, b))
}

// WrapAngle maps a to (-π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// Degrees converts radians to degrees for logging.
func Degrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}
