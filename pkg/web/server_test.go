package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/pkg/clock"
	"github.com/teslashibe/go-ssl/pkg/commands"
	"github.com/teslashibe/go-ssl/pkg/field"
	"github.com/teslashibe/go-ssl/pkg/strategy"
	"github.com/teslashibe/go-ssl/pkg/vision"
	"github.com/teslashibe/go-ssl/pkg/worldmodel"
)

func newTestServer(t *testing.T) (*Server, *worldmodel.World) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC))
	world := worldmodel.New(worldmodel.DefaultConfig(), clk)
	s := NewServer(":0", world, strategy.NewIntentStore(), vision.NewProvider(world, 0))
	return s, world
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestAPIState(t *testing.T) {
	s, world := newTestServer(t)
	world.UpdateBallPosition(r2.Vec{X: 10, Y: 20})
	world.UpdateRobotPosition(field.Yellow, 2, field.Pose{Heading: 1})

	resp, body := do(t, s, "GET", "/api/state", "")
	assert.Equal(t, 200, resp.StatusCode)

	var snap worldmodel.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	require.NotNil(t, snap.Ball)
	assert.Equal(t, r2.Vec{X: 10, Y: 20}, snap.Ball.Pos)
	require.Len(t, snap.Robots["yellow"], 1)
	assert.Equal(t, 2, snap.Robots["yellow"][0].ID)
	assert.Empty(t, snap.Robots["blue"])
	assert.False(t, snap.Started)
}

func TestAPICommands(t *testing.T) {
	s, world := newTestServer(t)
	world.UpdateRobotCommands(field.Blue, 1, func(c *commands.RobotCommands) {
		c.AppendWaypoint(commands.At(r2.Vec{X: 300}))
		c.IsDribbling = true
	})

	resp, body := do(t, s, "GET", "/api/commands/blue", "")
	assert.Equal(t, 200, resp.StatusCode)
	var got map[string]commands.RobotCommands
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Contains(t, got, "1")
	assert.True(t, got["1"].IsDribbling)
	require.Len(t, got["1"].Waypoints, 1)

	resp, body = do(t, s, "GET", "/api/commands/yellow", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{}`, body)

	resp, _ = do(t, s, "GET", "/api/commands/green", "")
	assert.Equal(t, 400, resp.StatusCode)
}

func TestAPIIntent(t *testing.T) {
	s, _ := newTestServer(t)

	resp, body := do(t, s, "POST", "/api/intent",
		`{"selected":true,"team":"yellow","robot_id":3,"click":{"X":100,"Y":-50},"drag":{"X":0,"Y":1},"kick":true}`)
	require.Equal(t, 200, resp.StatusCode, body)

	got := s.intents.Intent()
	assert.True(t, got.Selected)
	assert.Equal(t, field.Yellow, got.Team)
	assert.Equal(t, 3, got.RobotID)
	require.NotNil(t, got.Click)
	assert.Equal(t, r2.Vec{X: 100, Y: -50}, *got.Click)
	assert.Equal(t, r2.Vec{Y: 1}, got.Drag)
	assert.True(t, got.Kick)

	resp, body = do(t, s, "GET", "/api/intent", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, `"team":"yellow"`)

	resp, _ = do(t, s, "POST", "/api/intent", `{"team":"purple"}`)
	assert.Equal(t, 400, resp.StatusCode)
	resp, _ = do(t, s, "POST", "/api/intent", `{"robot_id":-2}`)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, 3, s.intents.Intent().RobotID, "bad input leaves the intent alone")
}

func TestAPIVisionFrames(t *testing.T) {
	s, world := newTestServer(t)

	resp, _ := do(t, s, "POST", "/api/vision/frames",
		`{"camera_id":1,"balls":[{"confidence":0.9,"x":40,"y":50}]}`)
	assert.Equal(t, 202, resp.StatusCode)
	s.vision.Update()
	ball, ok := world.BallPosition()
	require.True(t, ok)
	assert.Equal(t, r2.Vec{X: 40, Y: 50}, ball)

	resp, _ = do(t, s, "POST", "/api/vision/frames", `{"camera_id":9}`)
	assert.Equal(t, 400, resp.StatusCode)

	noVision := NewServer(":0", world, strategy.NewIntentStore(), nil)
	resp, _ = do(t, noVision, "POST", "/api/vision/frames", `{"camera_id":0}`)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestAPIGameLifecycle(t *testing.T) {
	s, world := newTestServer(t)
	var started, ended []uuid.UUID
	s.OnGameStart = func(id uuid.UUID, _ time.Time) { started = append(started, id) }
	s.OnGameEnd = func(id uuid.UUID, _ time.Time) { ended = append(ended, id) }

	_, body := do(t, s, "GET", "/api/game", "")
	assert.JSONEq(t, `{"started":false}`, body)

	resp, _ := do(t, s, "POST", "/api/game/start", "")
	assert.Equal(t, 200, resp.StatusCode)
	do(t, s, "POST", "/api/game/start", "")
	assert.True(t, world.GameStarted())
	require.Len(t, started, 1, "second start is a no-op")

	world.UpdateRobotCommands(field.Blue, 0, func(c *commands.RobotCommands) { c.IsKicking = true })
	_, body = do(t, s, "POST", "/api/game/end", "")
	assert.JSONEq(t, `{"started":false}`, body)
	assert.Equal(t, started, ended)
	assert.Empty(t, world.TeamCommands(field.Blue))
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(t)
	resp, _ := do(t, s, "GET", "/ws/state", "")
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestStateStream(t *testing.T) {
	world := worldmodel.New(worldmodel.DefaultConfig(), nil)
	world.UpdateRobotPosition(field.Blue, 5, field.Pose{Pos: r2.Vec{X: 1}})
	s := NewServer("127.0.0.1:18091", world, strategy.NewIntentStore(), nil)
	s.SetStreamPeriod(5 * time.Millisecond)
	s.StartAsync()
	defer s.Shutdown()

	var (
		ws  *websocket.Conn
		err error
	)
	require.Eventually(t, func() bool {
		ws, _, err = websocket.DefaultDialer.Dial("ws://127.0.0.1:18091/ws/state", nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer ws.Close()

	for i := 0; i < 3; i++ {
		ws.SetReadDeadline(time.Now().Add(time.Second))
		typ, data, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, typ)

		var snap worldmodel.Snapshot
		require.NoError(t, msgpack.Unmarshal(data, &snap))
		require.Len(t, snap.Robots["blue"], 1)
		assert.Equal(t, 5, snap.Robots["blue"][0].ID)
	}
	assert.Equal(t, 1, s.StateHub().ClientCount())
}
