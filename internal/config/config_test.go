package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.Control.FlightDataTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Control.OdometryTimeout)
	assert.Equal(t, 5*time.Second, cfg.Control.Stabilize)
	assert.Equal(t, 20, cfg.Control.BatteryFloor)
	assert.Equal(t, 50*time.Millisecond, cfg.Control.TickInterval())
	assert.Equal(t, 0.2, cfg.Control.Yaw.Kp)
	assert.Equal(t, VehicleMQTT, cfg.Vehicle)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
device_id: drone-7
vehicle: tello
control:
  stabilize: 2s
  battery_floor: 30
  x:
    kp: 0.5
    kd: 0.01
joystick:
  trim_speed: 0.3
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "drone-7", cfg.DeviceID)
	assert.Equal(t, VehicleTello, cfg.Vehicle)
	assert.Equal(t, 2*time.Second, cfg.Control.Stabilize)
	assert.Equal(t, 30, cfg.Control.BatteryFloor)
	assert.Equal(t, 0.5, cfg.Control.X.Kp)
	assert.Equal(t, 0.01, cfg.Control.X.Kd)
	assert.Equal(t, 0.1, cfg.Control.Y.Kp)
	assert.Equal(t, 0.3, cfg.Joystick.TrimSpeed)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 1500*time.Millisecond, cfg.Control.OdometryTimeout)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "control: [1, 2"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "control:\n  tick_rate: 0\n"))
	assert.ErrorContains(t, err, "tick_rate")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown vehicle", func(c *Config) { c.Vehicle = "px4" }, false},
		{"zero watchdog", func(c *Config) { c.Control.OdometryTimeout = 0 }, false},
		{"negative stabilize", func(c *Config) { c.Control.Stabilize = -time.Second }, false},
		{"negative tolerance", func(c *Config) { c.Control.YawTolerance = -0.1 }, false},
		{"battery over 100", func(c *Config) { c.Control.BatteryFloor = 101 }, false},
		{"battery zero", func(c *Config) { c.Control.BatteryFloor = 0 }, true},
		{"trim speed", func(c *Config) { c.Joystick.TrimSpeed = 2 }, false},
		{"qos", func(c *Config) { c.MQTT.QoS = 3 }, false},
		{"tello rate", func(c *Config) { c.Vehicle = VehicleTello; c.Tello.FlightDataHz = 0 }, false},
		{"action deadline disabled", func(c *Config) { c.Control.ActionTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
