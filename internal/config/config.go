// Package config loads go-ssl settings from defaults, an optional .env file
// and SSL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/teslashibe/go-ssl/pkg/field"
	"github.com/teslashibe/go-ssl/pkg/strategy"
)

// Radio transports.
const (
	RadioNone      = "none"
	RadioSerial    = "serial"
	RadioWebSocket = "websocket"
)

// Config is everything cmd/ssl needs to wire the system.
type Config struct {
	HomeTeam    field.Team
	ControlBoth bool
	HomeMode    string
	AwayMode    string

	StrategyPeriod time.Duration
	VisionPeriod   time.Duration
	SendPeriod     time.Duration
	ReceivePeriod  time.Duration

	Radio          string
	SerialPort     string
	AwaySerialPort string
	BaudRate       int
	RadioURL       string
	AwayRadioURL   string

	Cameras  int
	HTTPAddr string // empty disables the operator API
	DBPath   string // empty disables recording
	LogLevel string
}

// Default returns the configuration for one team following the pointer.
func Default() Config {
	return Config{
		HomeTeam:       field.Blue,
		HomeMode:       "follow_pointer",
		AwayMode:       "idle",
		StrategyPeriod: 20 * time.Millisecond,
		VisionPeriod:   10 * time.Millisecond,
		SendPeriod:     20 * time.Millisecond,
		ReceivePeriod:  20 * time.Millisecond,
		Radio:          RadioNone,
		BaudRate:       115200,
		Cameras:        4,
		HTTPAddr:       ":8080",
		DBPath:         "ssl.db",
		LogLevel:       "info",
	}
}

// ConfigError reports one bad setting.
type ConfigError struct {
	Key    string
	Value  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: %s", e.Key)
	if e.Value != "" {
		msg += fmt.Sprintf("=%q", e.Value)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads the given .env files (".env" when none are named; missing files
// are fine), applies SSL_* variables over Default and validates the result.
func Load(files ...string) (Config, error) {
	cfg, err := LoadEnv(files...)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadEnv is Load without the final Validate, for callers that override
// settings before checking them.
func LoadEnv(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(Default())
}

// FromEnv overrides cfg with any SSL_* variables that are set.
func FromEnv(cfg Config) (Config, error) {
	var err error
	set := func(key string, apply func(string) error) {
		v, ok := os.LookupEnv(key)
		if !ok || err != nil {
			return
		}
		if e := apply(strings.TrimSpace(v)); e != nil {
			err = &ConfigError{Key: key, Value: v, Reason: "invalid value", Err: e}
		}
	}
	str := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	dur := func(dst *time.Duration) func(string) error {
		return func(v string) (e error) { *dst, e = time.ParseDuration(v); return }
	}

	set("SSL_HOME_TEAM", func(v string) (e error) { cfg.HomeTeam, e = field.ParseTeam(v); return })
	set("SSL_CONTROL_BOTH", func(v string) (e error) { cfg.ControlBoth, e = strconv.ParseBool(v); return })
	set("SSL_HOME_MODE", str(&cfg.HomeMode))
	set("SSL_AWAY_MODE", str(&cfg.AwayMode))
	set("SSL_STRATEGY_PERIOD", dur(&cfg.StrategyPeriod))
	set("SSL_VISION_PERIOD", dur(&cfg.VisionPeriod))
	set("SSL_SEND_PERIOD", dur(&cfg.SendPeriod))
	set("SSL_RECEIVE_PERIOD", dur(&cfg.ReceivePeriod))
	set("SSL_RADIO", func(v string) error { cfg.Radio = strings.ToLower(v); return nil })
	set("SSL_SERIAL_PORT", str(&cfg.SerialPort))
	set("SSL_AWAY_SERIAL_PORT", str(&cfg.AwaySerialPort))
	set("SSL_BAUD_RATE", func(v string) (e error) { cfg.BaudRate, e = strconv.Atoi(v); return })
	set("SSL_RADIO_URL", str(&cfg.RadioURL))
	set("SSL_AWAY_RADIO_URL", str(&cfg.AwayRadioURL))
	set("SSL_CAMERAS", func(v string) (e error) { cfg.Cameras, e = strconv.Atoi(v); return })
	set("SSL_HTTP_ADDR", str(&cfg.HTTPAddr))
	set("SSL_DB_PATH", str(&cfg.DBPath))
	set("SSL_LOG_LEVEL", str(&cfg.LogLevel))
	return cfg, err
}

// Validate checks the settings hang together. The error is a *ConfigError.
func (c Config) Validate() error {
	if _, err := strategy.ParseMode(c.HomeMode); err != nil {
		return &ConfigError{Key: "home mode", Value: c.HomeMode, Reason: "unknown mode", Err: err}
	}
	if c.ControlBoth {
		if _, err := strategy.ParseMode(c.AwayMode); err != nil {
			return &ConfigError{Key: "away mode", Value: c.AwayMode, Reason: "unknown mode", Err: err}
		}
	}
	periods := []struct {
		key string
		d   time.Duration
	}{
		{"strategy period", c.StrategyPeriod},
		{"vision period", c.VisionPeriod},
		{"send period", c.SendPeriod},
		{"receive period", c.ReceivePeriod},
	}
	for _, p := range periods {
		if p.d <= 0 {
			return &ConfigError{Key: p.key, Value: p.d.String(), Reason: "must be positive"}
		}
	}
	if c.Cameras <= 0 {
		return &ConfigError{Key: "cameras", Value: strconv.Itoa(c.Cameras), Reason: "must be positive"}
	}

	switch c.Radio {
	case RadioNone:
	case RadioSerial:
		if c.SerialPort == "" {
			return &ConfigError{Key: "serial port", Reason: "required for the serial radio"}
		}
		if c.ControlBoth && c.AwaySerialPort == "" {
			return &ConfigError{Key: "away serial port", Reason: "required when controlling both teams"}
		}
		if c.BaudRate <= 0 {
			return &ConfigError{Key: "baud rate", Value: strconv.Itoa(c.BaudRate), Reason: "must be positive"}
		}
	case RadioWebSocket:
		if c.RadioURL == "" {
			return &ConfigError{Key: "radio url", Reason: "required for the websocket radio"}
		}
		if c.ControlBoth && c.AwayRadioURL == "" {
			return &ConfigError{Key: "away radio url", Reason: "required when controlling both teams"}
		}
	default:
		return &ConfigError{Key: "radio", Value: c.Radio, Reason: "must be none, serial or websocket"}
	}
	return nil
}
