package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/teslashibe/go-ssl/pkg/field"
	"github.com/teslashibe/go-ssl/pkg/hub"
	"github.com/teslashibe/go-ssl/pkg/strategy"
	"github.com/teslashibe/go-ssl/pkg/vision"
)

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// handleState returns a snapshot of the world
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.world.Snapshot())
}

// handleCommands returns what every robot of a team is currently told to do
func (s *Server) handleCommands(c *fiber.Ctx) error {
	team, err := field.ParseTeam(c.Params("team"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(s.world.TeamCommands(team))
}

func (s *Server) handleGetIntent(c *fiber.Ctx) error {
	return c.JSON(s.intents.Intent())
}

// handleSetIntent replaces the operator intent
func (s *Server) handleSetIntent(c *fiber.Ctx) error {
	var in strategy.UserIntent
	if err := c.BodyParser(&in); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if in.RobotID < 0 {
		return errorJSON(c, fiber.StatusBadRequest, errors.New("robot_id must not be negative"))
	}
	s.intents.Set(in)
	return c.JSON(s.intents.Intent())
}

// handleVisionFrame accepts one camera's detections from the vision bridge
func (s *Server) handleVisionFrame(c *fiber.Ctx) error {
	if s.vision == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, errors.New("vision bridge input disabled"))
	}
	var f vision.DetectionFrame
	if err := c.BodyParser(&f); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if err := s.vision.HandleFrame(f); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

type gameStatus struct {
	Started bool   `json:"started"`
	Session string `json:"session,omitempty"`
}

func (s *Server) gameStatus() gameStatus {
	id, ok := s.world.Session()
	if !ok {
		return gameStatus{}
	}
	return gameStatus{Started: true, Session: id.String()}
}

func (s *Server) handleGame(c *fiber.Ctx) error {
	return c.JSON(s.gameStatus())
}

// handleGameStart releases the control loops; starting twice is harmless
func (s *Server) handleGameStart(c *fiber.Ctx) error {
	_, already := s.world.Session()
	id := s.world.StartGame()
	if !already && s.OnGameStart != nil {
		s.OnGameStart(id, s.world.Clock().Now())
	}
	return c.JSON(s.gameStatus())
}

// handleGameEnd clears all commands and re-arms the start barrier
func (s *Server) handleGameEnd(c *fiber.Ctx) error {
	id, ok := s.world.Session()
	s.world.EndGame()
	if ok && s.OnGameEnd != nil {
		s.OnGameEnd(id, s.world.Clock().Now())
	}
	return c.JSON(s.gameStatus())
}

// handleStateWS streams msgpack snapshots, starting with the current one
func (s *Server) handleStateWS(c *websocket.Conn) {
	data, err := msgpack.Marshal(s.world.Snapshot())
	if err != nil {
		s.logger.Error("encode snapshot", "error", err)
		return
	}
	client := hub.NewClient(s.stateHub, c, hub.Message(data))
	if client == nil {
		return
	}
	client.Run()
}
