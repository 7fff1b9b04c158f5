package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-ssl/pkg/field"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SSL_HOME_TEAM", "yellow")
	t.Setenv("SSL_CONTROL_BOTH", "true")
	t.Setenv("SSL_AWAY_MODE", "goalie:1")
	t.Setenv("SSL_STRATEGY_PERIOD", "5ms")
	t.Setenv("SSL_RADIO", "WebSocket")
	t.Setenv("SSL_RADIO_URL", "ws://localhost:10020/radio")
	t.Setenv("SSL_CAMERAS", " 2 ")

	cfg, err := FromEnv(Default())
	require.NoError(t, err)
	assert.Equal(t, field.Yellow, cfg.HomeTeam)
	assert.True(t, cfg.ControlBoth)
	assert.Equal(t, "goalie:1", cfg.AwayMode)
	assert.Equal(t, 5*time.Millisecond, cfg.StrategyPeriod)
	assert.Equal(t, RadioWebSocket, cfg.Radio)
	assert.Equal(t, 2, cfg.Cameras)
	assert.Equal(t, "follow_pointer", cfg.HomeMode, "unset keys keep defaults")

	err = cfg.Validate()
	var ce *ConfigError
	require.ErrorAs(t, err, &ce, "both teams need two radios")
	assert.Equal(t, "away radio url", ce.Key)
}

func TestFromEnv_BadValue(t *testing.T) {
	t.Setenv("SSL_HOME_TEAM", "green")
	_, err := FromEnv(Default())
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "SSL_HOME_TEAM", ce.Key)
	assert.ErrorIs(t, err, field.ErrInvalidTeam)
	assert.Contains(t, err.Error(), `"green"`)

	t.Setenv("SSL_HOME_TEAM", "blue")
	t.Setenv("SSL_VISION_PERIOD", "fast")
	_, err = FromEnv(Default())
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "SSL_VISION_PERIOD", ce.Key)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		key    string
	}{
		{"bad home mode", func(c *Config) { c.HomeMode = "dance" }, "home mode"},
		{"away mode ignored when unused", func(c *Config) { c.AwayMode = "dance" }, ""},
		{"bad away mode", func(c *Config) { c.AwayMode = "dance"; c.ControlBoth = true }, "away mode"},
		{"zero period", func(c *Config) { c.SendPeriod = 0 }, "send period"},
		{"no cameras", func(c *Config) { c.Cameras = 0 }, "cameras"},
		{"serial without port", func(c *Config) { c.Radio = RadioSerial }, "serial port"},
		{"serial ok", func(c *Config) { c.Radio = RadioSerial; c.SerialPort = "/dev/ttyUSB0" }, ""},
		{"serial bad baud", func(c *Config) { c.Radio = RadioSerial; c.SerialPort = "/dev/ttyUSB0"; c.BaudRate = 0 }, "baud rate"},
		{"websocket without url", func(c *Config) { c.Radio = RadioWebSocket }, "radio url"},
		{"unknown radio", func(c *Config) { c.Radio = "carrier pigeon" }, "radio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.key == "" {
				assert.NoError(t, err)
				return
			}
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SSL_HOME_MODE=intercept_demo:3\nSSL_DB_PATH=\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SSL_HOME_MODE")
		os.Unsetenv("SSL_DB_PATH")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "intercept_demo:3", cfg.HomeMode)
	assert.Empty(t, cfg.DBPath, "empty value disables recording")
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoadEnv_LeavesValidationToCaller(t *testing.T) {
	t.Setenv("SSL_HOME_MODE", "dance")

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)

	cfg, err := LoadEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "dance", cfg.HomeMode)
	cfg.HomeMode = "idle"
	assert.NoError(t, cfg.Validate())
}
