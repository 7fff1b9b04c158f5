// Package web serves the operator API: world state, team commands, the
// pointer intent for FollowPointer, a vision bridge endpoint and a live
// msgpack state stream over websocket.
package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-ssl/internal/log"
	"github.com/teslashibe/go-ssl/pkg/hub"
	"github.com/teslashibe/go-ssl/pkg/loop"
	"github.com/teslashibe/go-ssl/pkg/strategy"
	"github.com/teslashibe/go-ssl/pkg/vision"
	"github.com/teslashibe/go-ssl/pkg/worldmodel"
)

// DefaultStreamPeriod is how often snapshots go out on /ws/state.
const DefaultStreamPeriod = 50 * time.Millisecond

// Server is the operator HTTP server.
type Server struct {
	app  *fiber.App
	addr string

	world   *worldmodel.World
	intents *strategy.IntentStore
	vision  *vision.Provider

	stateHub *hub.Hub
	stream   *loop.Periodic
	logger   *slog.Logger

	// OnGameStart and OnGameEnd run after the operator starts or ends a game.
	OnGameStart func(session uuid.UUID, at time.Time)
	OnGameEnd   func(session uuid.UUID, at time.Time)
	// OnOverrun is handed to the stream loop.
	OnOverrun func(name string, delay time.Duration)

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewServer wires the routes. provider may be nil when vision arrives
// another way; the frames endpoint then answers 503.
func NewServer(addr string, world *worldmodel.World, intents *strategy.IntentStore, provider *vision.Provider) *Server {
	s := &Server{
		addr:     addr,
		world:    world,
		intents:  intents,
		vision:   provider,
		stateHub: hub.New("state"),
		logger:   log.For("web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-ssl",
		DisableStartupMessage: true,
	})

	// CORS for a field-side laptop UI
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/commands/:team", s.handleCommands)
	api.Get("/intent", s.handleGetIntent)
	api.Post("/intent", s.handleSetIntent)
	api.Post("/vision/frames", s.handleVisionFrame)
	api.Get("/game", s.handleGame)
	api.Post("/game/start", s.handleGameStart)
	api.Post("/game/end", s.handleGameEnd)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	s.app = app
	s.stream = &loop.Periodic{
		Name:   "state-stream",
		Period: DefaultStreamPeriod,
		Tick:   func(time.Duration) { s.streamTick() },
		Clock:  world.Clock(),
		Logger: s.logger,
	}
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// StateHub returns the hub behind /ws/state.
func (s *Server) StateHub() *hub.Hub {
	return s.stateHub
}

// SetStreamPeriod changes the stream rate. It only takes effect before Start.
func (s *Server) SetStreamPeriod(d time.Duration) {
	s.stream.Period = d
}

// Start runs the hub and the state stream, then listens until Shutdown.
func (s *Server) Start() error {
	if err := s.startBackground(); err != nil {
		return err
	}
	s.logger.Info("listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
}

func (s *Server) startBackground() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return loop.ErrAlreadyRunning
	}
	s.stream.OnOverrun = s.OnOverrun
	if err := s.stream.Start(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.stateHub.Run(ctx)
	return nil
}

// Shutdown stops the stream, disconnects viewers and closes the listener.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	s.stream.Stop()
	if cancel != nil {
		cancel()
	}
	return s.app.Shutdown()
}

func (s *Server) streamTick() {
	if s.stateHub.ClientCount() == 0 {
		return
	}
	if err := s.stateHub.BroadcastMsgpack(s.world.Snapshot()); err != nil {
		s.logger.Error("encode snapshot", "error", err)
	}
}
