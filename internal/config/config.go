// Package config loads the controller configuration from YAML.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tiiuae/dronebase/internal/logging"
	"github.com/tiiuae/dronebase/internal/pid"
)

const (
	VehicleMQTT  = "mqtt"
	VehicleTello = "tello"
)

type Config struct {
	DeviceID string         `yaml:"device_id"`
	Vehicle  string         `yaml:"vehicle"`
	Log      logging.Config `yaml:"log"`
	Control  Control        `yaml:"control"`
	Joystick Joystick       `yaml:"joystick"`
	MQTT     MQTT           `yaml:"mqtt"`
	Tello    Tello          `yaml:"tello"`
}

type Control struct {
	FlightDataTimeout time.Duration `yaml:"flight_data_timeout"`
	OdometryTimeout   time.Duration `yaml:"odometry_timeout"`
	Stabilize         time.Duration `yaml:"stabilize"`
	ActionTimeout     time.Duration `yaml:"action_timeout"`
	TickRate          float64       `yaml:"tick_rate"` // Hz
	XYZTolerance      float64       `yaml:"xyz_tolerance"`
	YawTolerance      float64       `yaml:"yaw_tolerance"`
	BatteryFloor      int           `yaml:"battery_floor"` // percent
	X                 pid.Gains     `yaml:"x"`
	Y                 pid.Gains     `yaml:"y"`
	Z                 pid.Gains     `yaml:"z"`
	Yaw               pid.Gains     `yaml:"yaw"`
}

// TickInterval is the period of the supervisory tick.
func (c Control) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.TickRate)
}

// Joystick holds the controller axis and button layout.
type Joystick struct {
	TrimSpeed     float64 `yaml:"trim_speed"`
	LeftLR        int     `yaml:"left_lr"`
	LeftFB        int     `yaml:"left_fb"`
	RightLR       int     `yaml:"right_lr"`
	RightFB       int     `yaml:"right_fb"`
	TrimLR        int     `yaml:"trim_lr"`
	TrimFB        int     `yaml:"trim_fb"`
	ShiftButton   int     `yaml:"shift_button"`
	LandButton    int     `yaml:"land_button"`
	TakeoffButton int     `yaml:"takeoff_button"`
}

type MQTT struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	PrivateKey     string        `yaml:"private_key"`
	Algorithm      string        `yaml:"algorithm"` // RS256 or ES256
	Audience       string        `yaml:"audience"`
	TLS            bool          `yaml:"tls"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	TopicPrefix    string        `yaml:"topic_prefix"`
}

type Tello struct {
	Address       string        `yaml:"address"`
	DroneUDPPort  int           `yaml:"drone_udp_port"`
	LocalUDPPort  int           `yaml:"local_udp_port"`
	ActionSettle  time.Duration `yaml:"action_settle"`
	FlightDataHz  float64       `yaml:"flight_data_rate"`
	StickMaxValue int16         `yaml:"stick_max"`
}

func Default() Config {
	return Config{
		Vehicle: VehicleMQTT,
		Log:     logging.DefaultConfig(),
		Control: Control{
			FlightDataTimeout: 1500 * time.Millisecond,
			OdometryTimeout:   1500 * time.Millisecond,
			Stabilize:         5 * time.Second,
			ActionTimeout:     10 * time.Second,
			TickRate:          20,
			XYZTolerance:      0.1,
			YawTolerance:      0.1,
			BatteryFloor:      20,
			X:                 pid.Gains{Kp: 0.1},
			Y:                 pid.Gains{Kp: 0.1},
			Z:                 pid.Gains{Kp: 0.1},
			Yaw:               pid.Gains{Kp: 0.2},
		},
		Joystick: Joystick{
			TrimSpeed:     0.2,
			LeftLR:        0,
			LeftFB:        1,
			RightLR:       3,
			RightFB:       4,
			TrimLR:        6,
			TrimFB:        7,
			ShiftButton:   4,
			LandButton:    6,
			TakeoffButton: 7,
		},
		MQTT: MQTT{
			Broker:         "tcp://localhost:1883",
			Username:       "unused",
			Algorithm:      "RS256",
			QoS:            1,
			ConnectTimeout: 5 * time.Second,
			TopicPrefix:    "/devices",
		},
		Tello: Tello{
			Address:       "192.168.10.1",
			DroneUDPPort:  8889,
			LocalUDPPort:  8800,
			ActionSettle:  8 * time.Second,
			FlightDataHz:  10,
			StickMaxValue: 32767,
		},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WithMessage(err, "read config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.WithMessagef(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.WithMessagef(err, "invalid config %s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Vehicle {
	case VehicleMQTT, VehicleTello:
	default:
		return errors.Errorf("unknown vehicle %q", c.Vehicle)
	}

	ctl := c.Control
	if ctl.FlightDataTimeout <= 0 || ctl.OdometryTimeout <= 0 {
		return errors.New("watchdog timeouts must be positive")
	}
	if ctl.Stabilize < 0 {
		return errors.New("stabilize must not be negative")
	}
	if ctl.ActionTimeout < 0 {
		return errors.New("action_timeout must not be negative")
	}
	if ctl.TickRate <= 0 {
		return errors.New("tick_rate must be positive")
	}
	if ctl.XYZTolerance < 0 || ctl.YawTolerance < 0 {
		return errors.New("tolerances must not be negative")
	}
	if ctl.BatteryFloor < 0 || ctl.BatteryFloor > 100 {
		return errors.Errorf("battery_floor %d outside [0,100]", ctl.BatteryFloor)
	}
	if c.Joystick.TrimSpeed < 0 || c.Joystick.TrimSpeed > 1 {
		return errors.Errorf("trim_speed %v outside [0,1]", c.Joystick.TrimSpeed)
	}
	if c.MQTT.QoS > 2 {
		return errors.Errorf("qos %d not supported", c.MQTT.QoS)
	}
	if c.Vehicle == VehicleTello && c.Tello.FlightDataHz <= 0 {
		return errors.New("tello flight_data_rate must be positive")
	}
	return nil
}
