package worldmodel

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/pkg/field"
)

// Snapshot is a point-in-time view of the world for streaming and the HTTP
// API. Each entity is read on its own, so the view is not a transaction.
type Snapshot struct {
	At      time.Time               `json:"at" msgpack:"at"`
	Session string                  `json:"session,omitempty" msgpack:"session,omitempty"`
	Started bool                    `json:"started" msgpack:"started"`
	Ball    *BallState              `json:"ball,omitempty" msgpack:"ball,omitempty"`
	Robots  map[string][]RobotState `json:"robots" msgpack:"robots"`
}

// BallState is the ball as seen in a Snapshot.
type BallState struct {
	Pos      r2.Vec `json:"pos" msgpack:"pos"`
	Velocity r2.Vec `json:"velocity" msgpack:"velocity"`
	Lost     bool   `json:"lost" msgpack:"lost"`
}

// RobotState is one robot as seen in a Snapshot.
type RobotState struct {
	ID   int        `json:"id" msgpack:"id"`
	Pose field.Pose `json:"pose" msgpack:"pose"`
	Lost bool       `json:"lost" msgpack:"lost"`
}

// Snapshot captures the latest observation of every entity.
func (w *World) Snapshot() Snapshot {
	snap := Snapshot{
		At:     w.clock.Now(),
		Robots: make(map[string][]RobotState, len(field.Teams)),
	}
	if id, ok := w.Session(); ok {
		snap.Session = id.String()
		snap.Started = true
	}
	if pos, ok := w.BallPosition(); ok {
		snap.Ball = &BallState{Pos: pos, Velocity: w.BallVelocity(), Lost: w.IsBallLost()}
	}
	for _, team := range field.Teams {
		robots := []RobotState{}
		for _, id := range w.RobotIDs(team) {
			pose, ok := w.RobotPosition(team, id)
			if !ok {
				continue
			}
			robots = append(robots, RobotState{ID: id, Pose: pose, Lost: w.IsRobotLost(team, id)})
		}
		snap.Robots[team.String()] = robots
	}
	return snap
}
