// ssl runs the small-size league control stack: vision ingestion, one or
// two strategy loops, the robot radios and the operator API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-ssl/internal/config"
	"github.com/teslashibe/go-ssl/internal/log"
	"github.com/teslashibe/go-ssl/pkg/comms"
	"github.com/teslashibe/go-ssl/pkg/field"
	"github.com/teslashibe/go-ssl/pkg/recorder"
	"github.com/teslashibe/go-ssl/pkg/strategy"
	"github.com/teslashibe/go-ssl/pkg/vision"
	"github.com/teslashibe/go-ssl/pkg/web"
	"github.com/teslashibe/go-ssl/pkg/worldmodel"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// parseFlags loads the environment configuration, applies flag overrides
// on top and validates the result.
func parseFlags(args []string) (config.Config, error) {
	cfg, err := config.LoadEnv()
	if err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("ssl", flag.ContinueOnError)
	debug := fs.Bool("debug", false, "Enable debug logging")
	team := fs.String("team", cfg.HomeTeam.String(), "Home team: blue or yellow")
	mode := fs.String("mode", cfg.HomeMode, "Home strategy: follow_pointer, intercept_demo[:id], goalie[:id], goalie_opposite[:id], idle")
	both := fs.Bool("both", cfg.ControlBoth, "Also control the away team")
	awayMode := fs.String("away-mode", cfg.AwayMode, "Away strategy when -both is set")
	radio := fs.String("radio", cfg.Radio, "Radio transport: none, serial or websocket")
	httpAddr := fs.String("http", cfg.HTTPAddr, "Operator API address, empty to disable")
	dbPath := fs.String("db", cfg.DBPath, "SQLite recording path, empty to disable")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if cfg.HomeTeam, err = field.ParseTeam(*team); err != nil {
		return cfg, &config.ConfigError{Key: "-team", Value: *team, Reason: "invalid value", Err: err}
	}
	cfg.HomeMode, cfg.ControlBoth, cfg.AwayMode = *mode, *both, *awayMode
	cfg.Radio, cfg.HTTPAddr, cfg.DBPath = *radio, *httpAddr, *dbPath
	if *debug {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

type teamPlan struct {
	team field.Team
	mode string
	away bool
}

type controlled struct {
	team     field.Team
	strategy *strategy.Strategy
	comms    *comms.Comms
}

func (c *controlled) stop(logger *slog.Logger) {
	c.strategy.StopControlling()
	if c.comms == nil {
		return
	}
	if err := c.comms.Stop(); err != nil {
		logger.Warn("comms stop", "team", c.team.String(), "error", err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := log.For("main")
	world := worldmodel.New(worldmodel.DefaultConfig(), nil)

	var rec *recorder.Recorder
	if cfg.DBPath != "" {
		var err error
		if rec, err = recorder.Open(cfg.DBPath, world.Clock()); err != nil {
			return err
		}
		defer rec.Close()
	}
	onOverrun := func(string, time.Duration) {}
	beginSession := func(uuid.UUID, time.Time) {}
	endSession := func(uuid.UUID, time.Time) {}
	if rec != nil {
		onOverrun = rec.OverrunHook
		beginSession = func(id uuid.UUID, at time.Time) {
			if err := rec.BeginSession(id, at); err != nil {
				logger.Error("begin session", "error", err)
			}
		}
		endSession = func(id uuid.UUID, at time.Time) {
			if err := rec.EndSession(id, at); err != nil && !errors.Is(err, recorder.ErrNoSession) {
				logger.Error("end session", "error", err)
			}
		}
	}
	// runs after every loop has stopped
	defer func() {
		if id, ok := world.Session(); ok {
			endSession(id, world.Clock().Now())
		}
		world.EndGame()
	}()

	provider := vision.NewProvider(world, cfg.Cameras)
	provider.OnOverrun = onOverrun
	if err := provider.StartUpdating(cfg.VisionPeriod); err != nil {
		return err
	}
	defer provider.StopUpdating()

	intents := strategy.NewIntentStore()
	plans := []teamPlan{{team: cfg.HomeTeam, mode: cfg.HomeMode}}
	if cfg.ControlBoth {
		plans = append(plans, teamPlan{team: cfg.HomeTeam.Opponent(), mode: cfg.AwayMode, away: true})
	}

	for _, plan := range plans {
		mode, err := strategy.ParseMode(plan.mode)
		if err != nil {
			return err
		}
		c := &controlled{team: plan.team}
		c.strategy = strategy.New(world, plan.team, nil,
			strategy.WithIntents(intents),
			strategy.WithOverrunHook(onOverrun),
		)
		if err := c.strategy.StartControlling(mode, cfg.StrategyPeriod); err != nil {
			return err
		}
		defer c.stop(logger)

		radio, err := openRadio(ctx, cfg, plan.away)
		if err != nil {
			return err
		}
		if radio == nil {
			continue
		}
		opts := []comms.Option{comms.WithOverrunHook(onOverrun)}
		if rec != nil {
			opts = append(opts, comms.WithSink(rec))
		}
		c.comms = comms.New(world, plan.team, radio, opts...)
		if err := c.comms.StartSending(cfg.SendPeriod); err != nil {
			return err
		}
		if err := c.comms.StartReceiving(cfg.ReceivePeriod); err != nil {
			return err
		}
	}

	if cfg.HTTPAddr != "" {
		srv := web.NewServer(cfg.HTTPAddr, world, intents, provider)
		srv.OnGameStart = beginSession
		srv.OnGameEnd = endSession
		srv.OnOverrun = onOverrun
		srv.StartAsync()
		defer func() {
			if err := srv.Shutdown(); err != nil {
				logger.Warn("web shutdown", "error", err)
			}
		}()
	}

	// everything is waiting on the barrier
	session := world.StartGame()
	beginSession(session, world.Clock().Now())
	logger.Info("running", "team", cfg.HomeTeam.String(), "mode", cfg.HomeMode,
		"both", cfg.ControlBoth, "radio", cfg.Radio, "session", session)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// openRadio returns nil when no radio is configured.
func openRadio(ctx context.Context, cfg config.Config, away bool) (comms.Radio, error) {
	switch cfg.Radio {
	case config.RadioSerial:
		port := cfg.SerialPort
		if away {
			port = cfg.AwaySerialPort
		}
		return comms.OpenSerial(comms.PortOptions{Path: port, BaudRate: cfg.BaudRate})
	case config.RadioWebSocket:
		url := cfg.RadioURL
		if away {
			url = cfg.AwayRadioURL
		}
		dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return comms.DialWebSocket(dctx, url, 0)
	}
	return nil, nil
}
