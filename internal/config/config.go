// Package config loads robot constants and tuning from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/chassis"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/control"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/odom"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/robot"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/sim"
)

var ErrInvalidConfig = errors.New("config: invalid")

const (
	DefaultTrackWidth    = 11.5
	DefaultWheelDiameter = 3.25
	DefaultGearRatio     = 0.75
	DefaultMaxSpeed      = 60.0
	DefaultRoutine       = "solo"
	DefaultDataDir       = "runs"
)

type Config struct {
	Routine    string            `yaml:"routine"`
	Preset     string            `yaml:"preset,omitempty"`
	DataDir    string            `yaml:"data_dir"`
	Drivetrain DrivetrainConfig  `yaml:"drivetrain"`
	Odometry   OdometryConfig    `yaml:"odometry"`
	Chassis    ChassisConfig     `yaml:"chassis"`
	Linear     control.PIDConfig `yaml:"linear"`
	Angular    control.PIDConfig `yaml:"angular"`
	Runtime    robot.Config      `yaml:"runtime"`
	Sim        SimConfig         `yaml:"sim"`
	Log        LogConfig         `yaml:"log"`
}

type DrivetrainConfig struct {
	TrackWidth    float64 `yaml:"track_width"`
	WheelDiameter float64 `yaml:"wheel_diameter"`
	GearRatio     float64 `yaml:"gear_ratio"`
	// MaxSpeed is inches per second at full command.
	MaxSpeed float64 `yaml:"max_speed"`
}

type OdometryConfig struct {
	TrackerDiameter  float64       `yaml:"tracker_diameter"`
	TrackerOffset    float64       `yaml:"tracker_offset"`
	VerticalOffset   float64       `yaml:"vertical_offset"`
	HeadingMargin    float64       `yaml:"heading_margin"`
	CalibrateTimeout time.Duration `yaml:"calibrate_timeout"`
}

type ChassisConfig struct {
	StanleyK         float64            `yaml:"stanley_k"`
	VelocityEpsilon  float64            `yaml:"velocity_epsilon"`
	SettleRadius     float64            `yaml:"settle_radius"`
	CloseMin         float64            `yaml:"close_min"`
	MaxAngular       float64            `yaml:"max_angular"`
	ChainMinAngular  float64            `yaml:"chain_min_angular"`
	TerminalProgress float64            `yaml:"terminal_progress"`
	Projection       chassis.Projection `yaml:"projection"`
}

type SimConfig struct {
	Dt           time.Duration `yaml:"dt"`
	Timeout      time.Duration `yaml:"timeout"`
	Seed         int64         `yaml:"seed"`
	Tau          float64       `yaml:"tau"`
	IMUNoise     float64       `yaml:"imu_noise"`
	EncoderNoise float64       `yaml:"encoder_noise"`
	Faults       sim.Faults    `yaml:"faults"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func DefaultConfig() *Config {
	ch := chassis.DefaultConfig()
	od := odom.DefaultConfig()
	sc := sim.DefaultConfig()
	return &Config{
		Routine: DefaultRoutine,
		DataDir: DefaultDataDir,
		Drivetrain: DrivetrainConfig{
			TrackWidth:    DefaultTrackWidth,
			WheelDiameter: DefaultWheelDiameter,
			GearRatio:     DefaultGearRatio,
			MaxSpeed:      DefaultMaxSpeed,
		},
		Odometry: OdometryConfig{
			TrackerDiameter:  od.TrackerDiameter,
			TrackerOffset:    od.TrackerOffset,
			VerticalOffset:   od.VerticalOffset,
			HeadingMargin:    od.HeadingMargin,
			CalibrateTimeout: od.CalibrateTimeout,
		},
		Chassis: ChassisConfig{
			StanleyK:         ch.StanleyK,
			VelocityEpsilon:  ch.VelocityEpsilon,
			SettleRadius:     ch.SettleRadius,
			CloseMin:         ch.CloseMin,
			MaxAngular:       ch.MaxAngular,
			ChainMinAngular:  ch.ChainMinAngular,
			TerminalProgress: ch.TerminalProgress,
			Projection:       ch.Projection,
		},
		Linear:  ch.Linear,
		Angular: ch.Angular,
		Runtime: robot.DefaultConfig(),
		Sim: SimConfig{
			Dt:      sc.Dt,
			Timeout: sc.Timeout,
			Seed:    sc.Seed,
			Tau:     sc.Plant.Tau,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, so a file only needs the keys it
// changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.Preset != "" {
		apply, ok := Presets[cfg.Preset]
		if !ok {
			return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, cfg.Preset)
		}
		// Re-read so keys in the file win over the preset.
		apply(cfg)
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func positive(name string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, name, v)
	}
	return nil
}

func (c *Config) Validate() error {
	var err error
	err = multierr.Append(err, positive("drivetrain.track_width", c.Drivetrain.TrackWidth))
	err = multierr.Append(err, positive("drivetrain.wheel_diameter", c.Drivetrain.WheelDiameter))
	err = multierr.Append(err, positive("drivetrain.gear_ratio", c.Drivetrain.GearRatio))
	err = multierr.Append(err, positive("drivetrain.max_speed", c.Drivetrain.MaxSpeed))
	err = multierr.Append(err, positive("odometry.heading_margin", c.Odometry.HeadingMargin))
	err = multierr.Append(err, positive("chassis.settle_radius", c.Chassis.SettleRadius))
	err = multierr.Append(err, positive("chassis.max_angular", c.Chassis.MaxAngular))
	err = multierr.Append(err, positive("chassis.velocity_epsilon", c.Chassis.VelocityEpsilon))
	err = multierr.Append(err, positive("sim.dt", c.Sim.Dt.Seconds()))
	err = multierr.Append(err, positive("sim.tau", c.Sim.Tau))
	err = multierr.Append(err, positive("runtime.odom_period", c.Runtime.OdomPeriod.Seconds()))
	err = multierr.Append(err, positive("runtime.control_period", c.Runtime.ControlPeriod.Seconds()))

	if tp := c.Chassis.TerminalProgress; tp <= 0 || tp > 1 {
		err = multierr.Append(err, fmt.Errorf("%w: chassis.terminal_progress must be in (0, 1], got %v", ErrInvalidConfig, tp))
	}
	if c.Chassis.Projection.Iterations < 1 {
		err = multierr.Append(err, fmt.Errorf("%w: chassis.projection.iterations must be at least 1", ErrInvalidConfig))
	}
	for name, pid := range map[string]control.PIDConfig{"linear": c.Linear, "angular": c.Angular} {
		if pid.Kp < 0 || pid.Ki < 0 || pid.Kd < 0 {
			err = multierr.Append(err, fmt.Errorf("%w: %s gains must not be negative", ErrInvalidConfig, name))
		}
	}
	return err
}

func (c *Config) OdomConfig() odom.Config {
	return odom.Config{
		TrackWidth:       c.Drivetrain.TrackWidth,
		WheelDiameter:    c.Drivetrain.WheelDiameter,
		GearRatio:        c.Drivetrain.GearRatio,
		TrackerDiameter:  c.Odometry.TrackerDiameter,
		TrackerOffset:    c.Odometry.TrackerOffset,
		VerticalOffset:   c.Odometry.VerticalOffset,
		HeadingMargin:    c.Odometry.HeadingMargin,
		CalibrateTimeout: c.Odometry.CalibrateTimeout,
	}
}

func (c *Config) ChassisConfig() chassis.Config {
	return chassis.Config{
		Linear:           c.Linear,
		Angular:          c.Angular,
		StanleyK:         c.Chassis.StanleyK,
		VelocityEpsilon:  c.Chassis.VelocityEpsilon,
		SettleRadius:     c.Chassis.SettleRadius,
		CloseMin:         c.Chassis.CloseMin,
		MaxAngular:       c.Chassis.MaxAngular,
		ChainMinAngular:  c.Chassis.ChainMinAngular,
		TerminalProgress: c.Chassis.TerminalProgress,
		Projection:       c.Chassis.Projection,
		Period:           c.Runtime.ControlPeriod,
	}
}

func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		Dt:      c.Sim.Dt,
		Timeout: c.Sim.Timeout,
		Seed:    c.Sim.Seed,
		Plant: sim.PlantConfig{
			MaxSpeed:   c.Drivetrain.MaxSpeed,
			Tau:        c.Sim.Tau,
			TrackWidth: c.Drivetrain.TrackWidth,
		},
		Runtime:      c.Runtime,
		IMUNoise:     c.Sim.IMUNoise,
		EncoderNoise: c.Sim.EncoderNoise,
		Faults:       c.Sim.Faults,
	}
}
