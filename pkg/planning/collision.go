package planning

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/pkg/field"
)

// IsPathBlocked walks the straight segment from start to goal in steps of one
// robot radius and reports whether any checked point is occupied. The goal is
// checked first. A zero-length segment is never blocked.
func (p *Planner) IsPathBlocked(start, goal r2.Vec, robotID int, buffer float64) bool {
	if start == goal {
		return false
	}
	if !p.occ.IsPositionOpen(goal, p.team, robotID, buffer) {
		return true
	}

	path := r2.Sub(goal, start)
	length := r2.Norm(path)
	dir := r2.Scale(1/length, path)
	steps := int(math.Floor(length / field.RobotRadius))
	for i := 1; i <= steps; i++ {
		pos := r2.Add(start, r2.Scale(field.RobotRadius*float64(i), dir))
		if !p.occ.IsPositionOpen(pos, p.team, robotID, buffer) {
			return true
		}
	}
	return false
}

// extend steps from from toward to and returns the last open step, at most
// MaxExtendSteps robot radii away. It fails when not even the first step is
// open or to is closer than one step.
func (p *Planner) extend(from, to r2.Vec, robotID int) (r2.Vec, bool) {
	if from == to {
		return r2.Vec{}, false
	}
	path := r2.Sub(to, from)
	length := r2.Norm(path)
	dir := r2.Scale(1/length, path)
	steps := min(int(math.Floor(length/field.RobotRadius)), p.cfg.MaxExtendSteps)

	var reached r2.Vec
	ok := false
	for i := 1; i <= steps; i++ {
		pos := r2.Add(from, r2.Scale(field.RobotRadius*float64(i), dir))
		if !p.occ.IsPositionOpen(pos, p.team, robotID, p.cfg.SampleBuffer) {
			break
		}
		reached, ok = pos, true
	}
	return reached, ok
}
