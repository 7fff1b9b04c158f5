// Package planning turns the world model into robot motion: collision checks,
// randomized path search, ball interception and the kick, block and goalie
// geometry used by the strategies.
package planning

import (
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/pkg/commands"
	"github.com/teslashibe/go-ssl/pkg/field"
	"github.com/teslashibe/go-ssl/pkg/worldmodel"
)

// Config tunes the planner.
type Config struct {
	// GoalBias is the probability of sampling the goal itself.
	GoalBias float64
	// SampleBuffer widens obstacles when sampling and extending the tree.
	SampleBuffer float64
	// MaxExtendSteps caps one tree extension, in robot radii.
	MaxExtendSteps int
	// IterationLimit is the default RRT budget.
	IterationLimit int
	// RewireRadius is the neighbourhood searched by FindPathOptimal.
	RewireRadius float64

	// TimeStep is the sampling interval of the ball trajectory in seconds.
	TimeStep float64
	// Horizon bounds every trajectory search, in seconds.
	Horizon float64

	// GoalieOffset is how far the goalie stands from the goal centre.
	GoalieOffset float64
	// ShotSpeed is the minimum ball speed, in mm/s, for a shot on goal.
	ShotSpeed float64
}

// DefaultConfig returns the tuning used on the field.
func DefaultConfig() Config {
	return Config{
		GoalBias:       0.05,
		SampleBuffer:   100,
		MaxExtendSteps: 4,
		IterationLimit: 1000,
		RewireRadius:   4 * field.RobotRadius,
		TimeStep:       0.1,
		Horizon:        30,
		GoalieOffset:   600,
		ShotSpeed:      500,
	}
}

// Planner plans for the robots of one team.
type Planner struct {
	world *worldmodel.World
	team  field.Team
	occ   field.Occupancy
	cfg   Config

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Planner.
type Option func(*Planner)

// WithOccupancy replaces the default occupancy oracle.
func WithOccupancy(o field.Occupancy) Option {
	return func(p *Planner) { p.occ = o }
}

// WithRand sets the random source used by the tree search.
func WithRand(r *rand.Rand) Option {
	return func(p *Planner) { p.rng = r }
}

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(p *Planner) { p.cfg = cfg }
}

// New creates a planner for team. The default occupancy keeps robots on the
// field and clear of every other visible robot.
func New(world *worldmodel.World, team field.Team, opts ...Option) *Planner {
	_ = team.Index()
	p := &Planner{
		world: world,
		team:  team,
		occ:   worldmodel.NewOccupancy(world),
		cfg:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		seed := uint64(time.Now().UnixNano())
		p.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return p
}

// Team returns the team the planner commands.
func (p *Planner) Team() field.Team {
	return p.team
}

// World returns the world model the planner reads.
func (p *Planner) World() *worldmodel.World {
	return p.world
}

// Config returns the planner tuning.
func (p *Planner) Config() Config {
	return p.cfg
}

// MoveStraight replaces the robot's queue with a single waypoint.
func (p *Planner) MoveStraight(robotID int, wp commands.Waypoint) {
	p.world.UpdateRobotCommands(p.team, robotID, func(c *commands.RobotCommands) {
		c.SetWaypoints([]commands.Waypoint{wp})
	})
}

// AppendWaypoint adds a waypoint to the end of the robot's queue.
func (p *Planner) AppendWaypoint(robotID int, wp commands.Waypoint) {
	p.world.UpdateRobotCommands(p.team, robotID, func(c *commands.RobotCommands) {
		c.AppendWaypoint(wp)
	})
}

// FacePos returns the heading the robot needs to face pos.
func (p *Planner) FacePos(robotID int, pos r2.Vec) (float64, bool) {
	robot, ok := p.world.RobotPosition(p.team, robotID)
	if !ok {
		return 0, false
	}
	return field.Bearing(robot.Pos, pos), true
}

// FaceBall returns the heading the robot needs to face the ball.
func (p *Planner) FaceBall(robotID int) (float64, bool) {
	ball, ok := p.world.BallPosition()
	if !ok {
		return 0, false
	}
	return p.FacePos(robotID, ball)
}

func (p *Planner) randomPoint() r2.Vec {
	return r2.Vec{
		X: field.MinX + p.rng.Float64()*field.Length,
		Y: field.MinY + p.rng.Float64()*field.Width,
	}
}
