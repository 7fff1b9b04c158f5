package field

import "gonum.org/v1/gonum/spatial/r2"

// Occupancy decides whether a robot may stand at a position. Planners treat
// it as authoritative and side-effect free; buffer widens every obstacle.
type Occupancy interface {
	IsPositionOpen(pos r2.Vec, team Team, robotID int, buffer float64) bool
}

// OccupancyFunc adapts a plain function to Occupancy.
type OccupancyFunc func(pos r2.Vec, team Team, robotID int, buffer float64) bool

// IsPositionOpen calls f.
func (f OccupancyFunc) IsPositionOpen(pos r2.Vec, team Team, robotID int, buffer float64) bool {
	return f(pos, team, robotID, buffer)
}

// OpenField treats every in-play position as free.
type OpenField struct{}

// IsPositionOpen reports whether pos is on the field.
func (OpenField) IsPositionOpen(pos r2.Vec, _ Team, _ int, _ float64) bool {
	return InPlay(pos)
}

// Circle is a round static obstacle.
type Circle struct {
	Center r2.Vec
	Radius float64
}

// Obstacles closes the field around a fixed set of circles, for tooling and
// planner tests.
type Obstacles []Circle

// IsPositionOpen reports whether a robot body at pos, grown by buffer, stays
// clear of every circle.
func (o Obstacles) IsPositionOpen(pos r2.Vec, _ Team, _ int, buffer float64) bool {
	if !InPlay(pos) {
		return false
	}
	for _, c := range o {
		if Distance(pos, c.Center) < c.Radius+RobotRadius+buffer {
			return false
		}
	}
	return true
}
