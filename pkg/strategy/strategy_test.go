package strategy

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/internal/log"
	"github.com/teslashibe/go-ssl/pkg/clock"
	"github.com/teslashibe/go-ssl/pkg/commands"
	"github.com/teslashibe/go-ssl/pkg/field"
	"github.com/teslashibe/go-ssl/pkg/planning"
	"github.com/teslashibe/go-ssl/pkg/worldmodel"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"follow_pointer", FollowPointer{}},
		{"UI", FollowPointer{}},
		{"intercept_demo", InterceptDemo{}},
		{"entry_video:2", InterceptDemo{RobotID: 2}},
		{"goalie:1", Goalie{RobotID: 1}},
		{"goalie_opposite:4", Goalie{RobotID: 4, Opposite: true}},
		{" idle ", Idle{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := ParseMode(got.String())
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}

	for _, bad := range []string{"", "dance", "goalie:x", "goalie:-1", "idle:3"} {
		_, err := ParseMode(bad)
		assert.ErrorIs(t, err, ErrUnknownMode, bad)
	}
}

type fixture struct {
	world   *worldmodel.World
	clock   *clock.Manual
	intents *IntentStore
}

func newFixture(t *testing.T, occ field.Occupancy) (*fixture, *Strategy) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC))
	f := &fixture{
		world:   worldmodel.New(worldmodel.DefaultConfig(), clk),
		clock:   clk,
		intents: NewIntentStore(),
	}
	cfg := planning.DefaultConfig()
	cfg.IterationLimit = 5000
	p := planning.New(f.world, field.Blue,
		planning.WithConfig(cfg),
		planning.WithOccupancy(occ),
		planning.WithRand(rand.New(rand.NewPCG(7, 11))),
	)
	s := New(f.world, field.Blue, p, WithIntents(f.intents), WithLogger(log.Discard()))
	return f, s
}

func click(team field.Team, id int, pos r2.Vec) UserIntent {
	return UserIntent{Selected: true, Team: team, RobotID: id, Click: &pos}
}

func TestFollowPointer_AppendsClickAndCopiesSwitches(t *testing.T) {
	f, s := newFixture(t, field.OpenField{})
	f.world.UpdateRobotPosition(field.Blue, 2, field.Pose{})

	in := click(field.Blue, 2, r2.Vec{X: 1000})
	in.Kick, in.Dribble = true, true
	f.intents.Set(in)

	s.tick(FollowPointer{})
	s.tick(FollowPointer{})

	c := f.world.RobotCommands(field.Blue, 2)
	require.Len(t, c.Waypoints, 1, "a queued click is not added twice")
	assert.Equal(t, r2.Vec{X: 1000}, c.Waypoints[0].Pos)
	assert.Nil(t, c.Waypoints[0].Heading)
	assert.True(t, c.IsKicking)
	assert.True(t, c.IsDribbling)
	assert.False(t, c.IsCharging)
	assert.InDelta(t, 0, c.Heading(), 1e-12)
	assert.Greater(t, c.Speed.X, 0.0)
}

func TestFollowPointer_DragSetsHeading(t *testing.T) {
	f, s := newFixture(t, field.OpenField{})
	f.world.UpdateRobotPosition(field.Blue, 0, field.Pose{})
	in := click(field.Blue, 0, r2.Vec{Y: 800})
	in.Drag = r2.Vec{X: -1}
	f.intents.Set(in)

	s.tick(FollowPointer{})
	c := f.world.RobotCommands(field.Blue, 0)
	require.Len(t, c.Waypoints, 1)
	require.NotNil(t, c.Waypoints[0].Heading)
	assert.InDelta(t, math.Pi, *c.Waypoints[0].Heading, 1e-12)
}

func TestFollowPointer_IgnoresOtherTeam(t *testing.T) {
	f, s := newFixture(t, field.OpenField{})
	f.intents.Set(click(field.Yellow, 1, r2.Vec{X: 100}))
	s.tick(FollowPointer{})
	assert.Empty(t, f.world.TeamCommands(field.Blue))

	f.intents.Set(UserIntent{Team: field.Blue, RobotID: 1})
	s.tick(FollowPointer{})
	assert.Empty(t, f.world.TeamCommands(field.Blue), "nothing selected")
}

func TestFollowPointer_RoutesAroundObstacle(t *testing.T) {
	f, s := newFixture(t, field.Obstacles{{Center: r2.Vec{X: 1000}, Radius: 400}})
	f.world.UpdateRobotPosition(field.Blue, 1, field.Pose{})
	in := click(field.Blue, 1, r2.Vec{X: 2000})
	in.Drag = r2.Vec{Y: 1}
	f.intents.Set(in)

	s.tick(FollowPointer{})
	c := f.world.RobotCommands(field.Blue, 1)
	require.GreaterOrEqual(t, len(c.Waypoints), 2)
	last := c.Waypoints[len(c.Waypoints)-1]
	assert.Equal(t, r2.Vec{X: 2000}, last.Pos)
	require.NotNil(t, last.Heading)
	assert.InDelta(t, math.Pi/2, *last.Heading, 1e-12)
}

func TestRefreshSpeeds_StopsLostRobots(t *testing.T) {
	f, s := newFixture(t, field.OpenField{})
	f.world.UpdateRobotPosition(field.Blue, 0, field.Pose{})
	f.world.UpdateRobotPosition(field.Blue, 1, field.Pose{})
	for _, id := range []int{0, 1, 9} {
		f.world.UpdateRobotCommands(field.Blue, id, func(c *commands.RobotCommands) {
			c.SetWaypoints([]commands.Waypoint{commands.At(r2.Vec{X: 500})})
			c.SetSpeeds(100, 100, 1)
		})
	}

	f.clock.Advance(150 * time.Millisecond)
	f.world.UpdateRobotPosition(field.Blue, 0, field.Pose{})
	f.clock.Advance(100 * time.Millisecond)

	s.tick(Idle{})
	team := f.world.TeamCommands(field.Blue)
	assert.Greater(t, team[0].Speed.X, 0.0, "visible robot keeps driving")
	assert.InDelta(t, 0, team[0].Speed.Y, 1e-9)
	assert.Equal(t, commands.Speed{}, team[1].Speed, "lost robot stops")
	assert.Equal(t, commands.Speed{}, team[9].Speed, "never seen robot stops")
	assert.Len(t, team[1].Waypoints, 1, "stopping keeps the queue")
}

func TestInterceptDemo_TargetsWindowMidpoint(t *testing.T) {
	f, s := newFixture(t, field.OpenField{})
	f.world.UpdateBallPosition(r2.Vec{X: 1000, Y: 500})
	f.clock.Advance(50 * time.Millisecond)
	f.world.UpdateBallPosition(r2.Vec{X: 1000, Y: 500})
	f.world.UpdateRobotPosition(field.Blue, 0, field.Pose{})

	s.tick(InterceptDemo{RobotID: 0})
	c := f.world.RobotCommands(field.Blue, 0)
	require.Len(t, c.Waypoints, 1)
	assert.Equal(t, r2.Vec{X: 1000, Y: 500}, c.Waypoints[0].Pos)

	s.tick(InterceptDemo{RobotID: 0})
	assert.Len(t, f.world.RobotCommands(field.Blue, 0).Waypoints, 1, "re-targets instead of queueing")
}

func TestGoalieMode(t *testing.T) {
	f, s := newFixture(t, field.OpenField{})
	f.world.UpdateBallPosition(r2.Vec{})
	f.world.UpdateRobotPosition(field.Blue, 3, field.Pose{Pos: r2.Vec{X: -4000}})

	s.tick(Goalie{RobotID: 3})
	c := f.world.RobotCommands(field.Blue, 3)
	require.Len(t, c.Waypoints, 1)
	assert.InDelta(t, field.MinX+600, c.Waypoints[0].Pos.X, 1e-9)
}

type unknownMode struct{}

func (unknownMode) mode()          {}
func (unknownMode) String() string { return "unknown" }

func TestTick_UnknownModePanics(t *testing.T) {
	_, s := newFixture(t, field.OpenField{})
	assert.Panics(t, func() { s.tick(unknownMode{}) })
}

func TestControlLifecycle(t *testing.T) {
	world := worldmodel.New(worldmodel.DefaultConfig(), nil)
	s := New(world, field.Yellow, nil, WithLogger(log.Discard()))
	assert.Equal(t, StateIdle, s.State())
	s.StopControlling() // no-op when idle

	require.NoError(t, s.StartControlling(Idle{}, 2*time.Millisecond))
	assert.ErrorIs(t, s.StartControlling(Idle{}, time.Millisecond), ErrAlreadyControlling)
	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, Idle{}, s.Mode())

	world.UpdateRobotPosition(field.Yellow, 0, field.Pose{})
	world.UpdateRobotCommands(field.Yellow, 0, func(c *commands.RobotCommands) {
		c.AppendWaypoint(commands.At(r2.Vec{X: 1000}))
	})
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, commands.Speed{}, world.RobotCommands(field.Yellow, 0).Speed, "no ticks before the game starts")

	world.StartGame()
	assert.Eventually(t, func() bool {
		return world.RobotCommands(field.Yellow, 0).Speed.X > 0 || world.IsRobotLost(field.Yellow, 0)
	}, time.Second, time.Millisecond)

	s.StopControlling()
	s.StopControlling()
	assert.Equal(t, StateStopped, s.State())

	require.NoError(t, s.StartControlling(FollowPointer{}, 2*time.Millisecond), "restart after stop")
	s.StopControlling()
}

func TestIntentStore_LastValueWins(t *testing.T) {
	st := NewIntentStore()
	assert.Equal(t, UserIntent{}, st.Intent())

	p := r2.Vec{X: 1}
	st.Set(UserIntent{Selected: true, Click: &p})
	p.X = 99
	st.Set(UserIntent{Selected: true, RobotID: 4, Click: &r2.Vec{X: 2}})

	got := st.Intent()
	assert.Equal(t, 4, got.RobotID)
	require.NotNil(t, got.Click)
	assert.Equal(t, 2.0, got.Click.X)
	got.Click.X = 50
	assert.Equal(t, 2.0, st.Intent().Click.X)
}
