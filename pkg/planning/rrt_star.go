package planning

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/pkg/commands"
	"github.com/teslashibe/go-ssl/pkg/field"
)

// FindPathOptimal is FindPath with RRT* rewiring: each new node attaches to
// the cheapest reachable neighbour within RewireRadius, and neighbours that
// become cheaper through the new node are re-parented to it.
//
// The control loops use FindPath; this variant trades time for shorter routes.
func (p *Planner) FindPathOptimal(start, goal r2.Vec, robotID, limit int) ([]commands.Waypoint, bool) {
	return p.search(start, goal, robotID, limit, p.rewire)
}

func (p *Planner) rewire(t *tree, near int, pos r2.Vec, robotID int) {
	var neighbours []int
	for i, n := range t.nodes {
		if field.Distance(n, pos) < p.cfg.RewireRadius {
			neighbours = append(neighbours, i)
		}
	}

	best := near
	bestCost := t.cost[near] + field.Distance(t.nodes[near], pos)
	for _, i := range neighbours {
		c := t.cost[i] + field.Distance(t.nodes[i], pos)
		if c < bestCost && !p.IsPathBlocked(t.nodes[i], pos, robotID, 0) {
			best, bestCost = i, c
		}
	}
	id := t.add(pos, best)

	for _, i := range neighbours {
		if i == best || i == 0 || descends(t, id, i) {
			continue
		}
		c := t.cost[id] + field.Distance(pos, t.nodes[i])
		if c < t.cost[i] && !p.IsPathBlocked(pos, t.nodes[i], robotID, 0) {
			p.reparent(t, i, id, c)
		}
	}
}

// reparent moves node i under parent and pushes the cost change down its
// subtree.
func (p *Planner) reparent(t *tree, i, parent int, cost float64) {
	delta := cost - t.cost[i]
	t.parent[i] = parent
	for j := range t.nodes {
		if descends(t, j, i) {
			t.cost[j] += delta
		}
	}
}

// descends reports whether j is i or below it.
func descends(t *tree, j, i int) bool {
	for ; j >= 0; j = t.parent[j] {
		if j == i {
			return true
		}
	}
	return false
}
