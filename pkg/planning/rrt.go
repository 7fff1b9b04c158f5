package planning

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/pkg/commands"
	"github.com/teslashibe/go-ssl/pkg/field"
)

// tree is the search graph of one planning call. Node 0 is the start.
type tree struct {
	nodes  []r2.Vec
	parent []int
	cost   []float64
	index  map[r2.Vec]int
}

func newTree(start r2.Vec) *tree {
	return &tree{
		nodes:  []r2.Vec{start},
		parent: []int{-1},
		cost:   []float64{0},
		index:  map[r2.Vec]int{start: 0},
	}
}

func (t *tree) add(pos r2.Vec, parent int) int {
	t.nodes = append(t.nodes, pos)
	t.parent = append(t.parent, parent)
	t.cost = append(t.cost, t.cost[parent]+field.Distance(t.nodes[parent], pos))
	t.index[pos] = len(t.nodes) - 1
	return len(t.nodes) - 1
}

func (t *tree) contains(pos r2.Vec) bool {
	_, ok := t.index[pos]
	return ok
}

func (t *tree) nearest(pos r2.Vec) int {
	best, bestDist := 0, math.Inf(1)
	for i, n := range t.nodes {
		if d := field.Distance(n, pos); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// branch returns the nodes from the start to node i, start first.
func (t *tree) branch(i int) []r2.Vec {
	var path []r2.Vec
	for ; i >= 0; i = t.parent[i] {
		path = append(path, t.nodes[i])
	}
	slices.Reverse(path)
	return path
}

// grower decides where a new node attaches; plain RRT uses the nearest node.
type grower func(t *tree, near int, pos r2.Vec, robotID int)

// FindPath searches for a collision-free route from start to goal with a
// goal-biased rapidly-exploring random tree. The route is smoothed, trimmed
// to the first waypoint with a clear line to the goal and always ends at goal.
// It reports false when no node gets within one robot radius of the goal in
// limit iterations.
func (p *Planner) FindPath(start, goal r2.Vec, robotID, limit int) ([]commands.Waypoint, bool) {
	return p.search(start, goal, robotID, limit, func(t *tree, near int, pos r2.Vec, _ int) {
		t.add(pos, near)
	})
}

// RRTPathFind runs FindPath and appends the route to the robot's queue.
func (p *Planner) RRTPathFind(start, goal r2.Vec, robotID, limit int) bool {
	path, ok := p.FindPath(start, goal, robotID, limit)
	if !ok {
		return false
	}
	p.world.UpdateRobotCommands(p.team, robotID, func(c *commands.RobotCommands) {
		for _, wp := range path {
			c.AppendWaypoint(wp)
		}
	})
	return true
}

func (p *Planner) search(start, goal r2.Vec, robotID, limit int, grow grower) ([]commands.Waypoint, bool) {
	if limit <= 0 {
		limit = p.cfg.IterationLimit
	}
	t := newTree(start)

	p.rngMu.Lock()
	found := false
	for range limit {
		sample := p.randomPoint()
		if p.rng.Float64() < p.cfg.GoalBias {
			sample = goal
		}
		if !p.occ.IsPositionOpen(sample, p.team, robotID, p.cfg.SampleBuffer) || t.contains(sample) {
			continue
		}

		near := t.nearest(sample)
		pos, ok := p.extend(t.nodes[near], sample, robotID)
		if !ok || t.contains(pos) {
			continue
		}
		grow(t, near, pos, robotID)

		if field.Distance(pos, goal) < field.RobotRadius {
			found = true
			break
		}
	}
	p.rngMu.Unlock()
	if !found {
		return nil, false
	}

	path := t.branch(t.nearest(goal))
	path = p.smooth(path, robotID)
	path = p.trim(path, goal, robotID)

	// path[0] is the start
	out := make([]commands.Waypoint, 0, len(path))
	for _, pos := range path[1:] {
		out = append(out, commands.At(pos))
	}
	return append(out, commands.At(goal)), true
}

// smooth drops every waypoint that its neighbours can bypass in a straight
// line.
func (p *Planner) smooth(path []r2.Vec, robotID int) []r2.Vec {
	for i := 0; i < len(path)-2; {
		if !p.IsPathBlocked(path[i], path[i+2], robotID, 0) {
			path = slices.Delete(path, i+1, i+2)
			continue
		}
		i++
	}
	return path
}

// trim cuts the path after the first waypoint with a clear line to goal.
func (p *Planner) trim(path []r2.Vec, goal r2.Vec, robotID int) []r2.Vec {
	for i, pos := range path {
		if !p.IsPathBlocked(pos, goal, robotID, 0) {
			return path[:i+1]
		}
	}
	return path
}
