package worldmodel

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/pkg/field"
)

// Occupancy is the default occupancy oracle: a position is open when it is
// on the field and a robot standing there would keep clear of every other
// visible robot. Lost robots are ignored.
type Occupancy struct {
	world *World
}

// NewOccupancy returns an oracle backed by w.
func NewOccupancy(w *World) Occupancy {
	return Occupancy{world: w}
}

// IsPositionOpen implements field.Occupancy.
func (o Occupancy) IsPositionOpen(pos r2.Vec, team field.Team, robotID int, buffer float64) bool {
	if !field.InPlay(pos) {
		return false
	}
	clearance := 2*field.RobotRadius + buffer
	for _, t := range field.Teams {
		for _, id := range o.world.RobotIDs(t) {
			if t == team && id == robotID {
				continue
			}
			if o.world.IsRobotLost(t, id) {
				continue
			}
			other, ok := o.world.RobotPosition(t, id)
			if ok && field.Distance(pos, other.Pos) < clearance {
				return false
			}
		}
	}
	return true
}
