package robot

import (
	"encoding/json"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
)

const DefaultConfigFile = "linkarm.json"

const (
	// MaxBudgetMs is the largest time budget a target message can carry.
	MaxBudgetMs = math.MaxInt16

	// MaxHz bounds the controller tick rate.
	MaxHz = 1000
)

// Config holds the configuration for both ends of the link.
type Config struct {
	Arm        ArmConfig        `json:"arm"`
	Controller ControllerConfig `json:"controller"`
	Link       LinkConfig       `json:"link"`
}

// ArmConfig holds configuration for the arm side
type ArmConfig struct {
	Port     string         `json:"port,omitempty"`      // servo bus serial port
	BaudRate int            `json:"baud_rate,omitempty"` // servo bus baud rate (default: 1000000)
	ServoIDs [NumJoints]int `json:"servo_ids"`           // servo ID per joint (default: 1,2,3)

	// Directions is the drive direction of each joint, 1 or -1. A reversed
	// joint's raw angle decreases as its logical angle increases. Both ends
	// of the link must agree on it.
	Directions [NumJoints]int `json:"directions"`

	// MinSpeeds is the slowest each joint may be driven, in deg/s. Some
	// motors behave erratically below it.
	MinSpeeds [NumJoints]float64 `json:"min_speeds"`

	// MaxSpeed is used for zero time budgets, in deg/s.
	MaxSpeed float64 `json:"max_speed,omitempty"`

	TelemetryIntervalMs int `json:"telemetry_interval_ms,omitempty"`

	Calibration CalibrationConfig `json:"calibration"`
}

// TelemetryInterval returns the telemetry publication period.
func (c *ArmConfig) TelemetryInterval() time.Duration {
	return time.Duration(c.TelemetryIntervalMs) * time.Millisecond
}

// CalibrationConfig tunes the limit-finding routine.
type CalibrationConfig struct {
	// DutyLimit caps motor torque while driving into a mechanical stop.
	DutyLimit int `json:"duty_limit,omitempty"`

	// StallThreshold is the smoothed angular speed, in deg/s, below which a
	// joint is considered stalled.
	StallThreshold float64 `json:"stall_threshold,omitempty"`

	// StallAlpha is the smoothing factor of the speed average, in (0, 1].
	StallAlpha float64 `json:"stall_alpha,omitempty"`

	// MaxMsPerDegree is the longest a joint may take to advance one degree
	// before it is treated as stalled.
	MaxMsPerDegree int `json:"max_ms_per_degree,omitempty"`

	PollIntervalMs int `json:"poll_interval_ms,omitempty"`
}

// PollInterval returns the position sampling period.
func (c *CalibrationConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ControllerConfig holds configuration for the controller session
type ControllerConfig struct {
	Hz       int    `json:"hz,omitempty"`        // control loop frequency (default: 60)
	Mode     string `json:"mode,omitempty"`      // relative, virtual_point or axes
	BudgetMs int    `json:"budget_ms,omitempty"` // time to reach each target (default: 500)

	// ResidualThreshold is the largest solver residual accepted as a
	// reachable target.
	ResidualThreshold float64 `json:"residual_threshold,omitempty"`

	// EnforceResidual rejects large-residual solutions in every solver mode
	// instead of only in virtual point mode.
	EnforceResidual bool `json:"enforce_residual,omitempty"`

	RelativeStep   float64 `json:"relative_step,omitempty"`    // max distance per relative move
	PointSpeed     float64 `json:"point_speed,omitempty"`      // virtual point speed, units/s
	AxesRate       float64 `json:"axes_rate,omitempty"`        // axes mode joint speed, deg/s
	ReplayBudgetMs int     `json:"replay_budget_ms,omitempty"` // time per replayed waypoint
}

// LinkConfig selects the physical link. Serial wins when both are set.
type LinkConfig struct {
	Serial   string `json:"serial,omitempty"`
	BaudRate int    `json:"baud_rate,omitempty"`
	Address  string `json:"address,omitempty"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = cfg.Validate()
	return cfg
}

// Validate fills defaults and checks ranges.
func (c *Config) Validate() error {
	if err := c.Arm.Validate(); err != nil {
		return errors.Wrap(err, "arm")
	}
	if err := c.Controller.Validate(); err != nil {
		return errors.Wrap(err, "controller")
	}
	if c.Link.BaudRate == 0 {
		c.Link.BaudRate = 115200
	}
	return nil
}

// Validate fills defaults and checks ranges.
func (c *ArmConfig) Validate() error {
	if c.BaudRate == 0 {
		c.BaudRate = 1_000_000
	}
	if c.ServoIDs == [NumJoints]int{} {
		c.ServoIDs = [NumJoints]int{1, 2, 3}
	}
	if c.Directions == [NumJoints]int{} {
		c.Directions = [NumJoints]int{-1, 1, 1}
	}
	if c.MinSpeeds == [NumJoints]float64{} {
		c.MinSpeeds = [NumJoints]float64{15, 3, 7}
	}
	if c.MaxSpeed == 0 {
		c.MaxSpeed = 400
	}
	if c.TelemetryIntervalMs == 0 {
		c.TelemetryIntervalMs = 33
	}

	cal := &c.Calibration
	if cal.DutyLimit == 0 {
		cal.DutyLimit = 35
	}
	if cal.StallThreshold == 0 {
		cal.StallThreshold = 2
	}
	if cal.StallAlpha == 0 {
		cal.StallAlpha = 0.3
	}
	if cal.MaxMsPerDegree == 0 {
		cal.MaxMsPerDegree = 500
	}
	if cal.PollIntervalMs == 0 {
		cal.PollIntervalMs = 10
	}

	for j, d := range c.Directions {
		if d != 1 && d != -1 {
			return errors.Errorf("direction for %s must be 1 or -1, got %d", Joint(j), d)
		}
	}
	for j, s := range c.MinSpeeds {
		if s <= 0 {
			return errors.Errorf("min speed for %s must be positive, got %g", Joint(j), s)
		}
	}
	if cal.DutyLimit < 1 || cal.DutyLimit > 100 {
		return errors.Errorf("duty_limit must be between 1 and 100, got %d", cal.DutyLimit)
	}
	if cal.StallAlpha <= 0 || cal.StallAlpha > 1 {
		return errors.Errorf("stall_alpha must be in (0, 1], got %g", cal.StallAlpha)
	}
	return nil
}

// Validate fills defaults and checks ranges.
func (c *ControllerConfig) Validate() error {
	if c.Hz == 0 {
		c.Hz = 60
	}
	if c.Mode == "" {
		c.Mode = "virtual_point"
	}
	if c.BudgetMs == 0 {
		c.BudgetMs = 500
	}
	if c.ResidualThreshold == 0 {
		c.ResidualThreshold = 1
	}
	if c.RelativeStep == 0 {
		c.RelativeStep = 2
	}
	if c.PointSpeed == 0 {
		c.PointSpeed = 5
	}
	if c.AxesRate == 0 {
		c.AxesRate = 30
	}
	if c.ReplayBudgetMs == 0 {
		c.ReplayBudgetMs = 2000
	}

	if c.Hz < 0 || c.Hz > MaxHz {
		return errors.Errorf("hz must be between 1 and %d, got %d", MaxHz, c.Hz)
	}
	if c.BudgetMs < 0 || c.BudgetMs > MaxBudgetMs {
		return errors.Errorf("budget_ms must be between 0 and %d, got %d", MaxBudgetMs, c.BudgetMs)
	}
	if c.ReplayBudgetMs < 0 || c.ReplayBudgetMs > MaxBudgetMs {
		return errors.Errorf("replay_budget_ms must be between 0 and %d, got %d", MaxBudgetMs, c.ReplayBudgetMs)
	}
	switch c.Mode {
	case "relative", "virtual_point", "axes":
	default:
		return errors.Errorf("mode must be 'relative', 'virtual_point' or 'axes', got '%s'", c.Mode)
	}
	return nil
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file and applies
// defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the given config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
