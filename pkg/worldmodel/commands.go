package worldmodel

import (
	"slices"
	"sync"

	"github.com/teslashibe/go-ssl/pkg/commands"
	"github.com/teslashibe/go-ssl/pkg/field"
)

type commandRecord struct {
	mu  sync.Mutex
	cmd commands.RobotCommands
}

func (w *World) commandRecord(team field.Team, id int) *commandRecord {
	ts := w.team(team)
	ts.mu.RLock()
	rec := ts.commands[id]
	ts.mu.RUnlock()
	if rec != nil {
		return rec
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if rec = ts.commands[id]; rec == nil {
		rec = &commandRecord{}
		ts.commands[id] = rec
	}
	return rec
}

// RobotCommands returns a copy of one robot's command record, creating an
// empty record for a robot that has none yet.
func (w *World) RobotCommands(team field.Team, id int) commands.RobotCommands {
	rec := w.commandRecord(team, id)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.cmd.Clone()
}

// UpdateRobotCommands applies fn to one robot's command record under that
// record's lock. fn must not call back into the world's command API for the
// same robot.
func (w *World) UpdateRobotCommands(team field.Team, id int, fn func(*commands.RobotCommands)) {
	rec := w.commandRecord(team, id)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	fn(&rec.cmd)
}

// TeamCommands returns a copy of every command record of team, keyed by
// robot id.
func (w *World) TeamCommands(team field.Team) map[int]commands.RobotCommands {
	ts := w.team(team)
	ts.mu.RLock()
	recs := make(map[int]*commandRecord, len(ts.commands))
	for id, rec := range ts.commands {
		recs[id] = rec
	}
	ts.mu.RUnlock()

	out := make(map[int]commands.RobotCommands, len(recs))
	for id, rec := range recs {
		rec.mu.Lock()
		out[id] = rec.cmd.Clone()
		rec.mu.Unlock()
	}
	return out
}

// CommandedRobots returns the sorted ids of team's robots that have a
// command record.
func (w *World) CommandedRobots(team field.Team) []int {
	ts := w.team(team)
	ts.mu.RLock()
	ids := make([]int, 0, len(ts.commands))
	for id := range ts.commands {
		ids = append(ids, id)
	}
	ts.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func (w *World) clearCommands() {
	for _, ts := range w.teams {
		ts.mu.Lock()
		ts.commands = make(map[int]*commandRecord)
		ts.mu.Unlock()
	}
}
