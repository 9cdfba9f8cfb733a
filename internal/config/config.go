package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/wdstar/internal/eos"
	"github.com/san-kum/wdstar/internal/integrators"
	"github.com/san-kum/wdstar/internal/structure"
)

const (
	DefaultSolver      = "dopri5"
	DefaultPCentral    = 1e21
	DefaultRMin        = 1e-6
	DefaultRMax        = 1e11
	DefaultThreshold   = 1e-10
	DefaultMaxStep     = 1e7
	DefaultRelTol      = 1e-8
	DefaultAbsTol      = 1e-10
	DefaultMaxSteps    = 100000
	DefaultTimeout     = 30 * time.Second
	DefaultSweepMin    = 1e18
	DefaultSweepMax    = 1e25
	DefaultSweepPoints = 20
	DefaultWorkers     = 4
	DefaultDataDir     = "./runs"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Solver      string            `yaml:"solver"`
	PCentral    float64           `yaml:"p_central"`
	DataDir     string            `yaml:"data_dir"`
	LogLevel    string            `yaml:"log_level"`
	Constants   eos.Constants     `yaml:"constants"`
	Integration IntegrationConfig `yaml:"integration"`
	Sweep       SweepConfig       `yaml:"sweep"`
}

type IntegrationConfig struct {
	RMin        float64       `yaml:"r_min"`
	RMax        float64       `yaml:"r_max"`
	Threshold   float64       `yaml:"threshold"`
	MaxStep     float64       `yaml:"max_step"`
	InitialStep float64       `yaml:"initial_step"`
	RelTol      float64       `yaml:"rel_tol"`
	AbsTol      float64       `yaml:"abs_tol"`
	MaxSteps    int           `yaml:"max_steps"`
	Timeout     time.Duration `yaml:"timeout"`
}

type SweepConfig struct {
	PMin    float64       `yaml:"p_min"`
	PMax    float64       `yaml:"p_max"`
	Points  int           `yaml:"points"`
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`

	// Pressures, when set, replaces the log-spaced range.
	Pressures []float64 `yaml:"pressures,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Solver:    DefaultSolver,
		PCentral:  DefaultPCentral,
		DataDir:   DefaultDataDir,
		LogLevel:  "info",
		Constants: eos.CGS(),
		Integration: IntegrationConfig{
			RMin:      DefaultRMin,
			RMax:      DefaultRMax,
			Threshold: DefaultThreshold,
			MaxStep:   DefaultMaxStep,
			RelTol:    DefaultRelTol,
			AbsTol:    DefaultAbsTol,
			MaxSteps:  DefaultMaxSteps,
			Timeout:   DefaultTimeout,
		},
		Sweep: SweepConfig{
			PMin:    DefaultSweepMin,
			PMax:    DefaultSweepMax,
			Points:  DefaultSweepPoints,
			Workers: DefaultWorkers,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
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

func (c *Config) Validate() error {
	if _, err := integrators.New(c.Solver); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Constants.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !(c.PCentral > 0) {
		return fmt.Errorf("%w: p_central must be positive, got %g", ErrInvalidConfig, c.PCentral)
	}
	if len(c.Sweep.Pressures) == 0 {
		if c.Sweep.Points < 1 {
			return fmt.Errorf("%w: sweep points must be positive, got %d", ErrInvalidConfig, c.Sweep.Points)
		}
		if !(c.Sweep.PMin > 0) || c.Sweep.PMax < c.Sweep.PMin {
			return fmt.Errorf("%w: sweep range [%g, %g] must be positive and ordered", ErrInvalidConfig, c.Sweep.PMin, c.Sweep.PMax)
		}
	}
	if c.Sweep.Timeout < 0 {
		return fmt.Errorf("%w: sweep timeout must be non-negative, got %v", ErrInvalidConfig, c.Sweep.Timeout)
	}
	return nil
}

func (c *Config) Params() structure.Params {
	in := c.Integration
	return structure.Params{
		RMin:        in.RMin,
		RMax:        in.RMax,
		Threshold:   in.Threshold,
		MaxStep:     in.MaxStep,
		InitialStep: in.InitialStep,
		RelTol:      in.RelTol,
		AbsTol:      in.AbsTol,
		MaxSteps:    in.MaxSteps,
		Timeout:     in.Timeout,
	}
}

// SweepPressures returns the explicit pressure list if set, otherwise the
// log-spaced range.
func (c *Config) SweepPressures() ([]float64, error) {
	if len(c.Sweep.Pressures) > 0 {
		out := make([]float64, len(c.Sweep.Pressures))
		copy(out, c.Sweep.Pressures)
		return out, nil
	}
	return structure.LogSpace(c.Sweep.PMin, c.Sweep.PMax, c.Sweep.Points)
}

func (c *Config) SweepOptions() structure.SweepOptions {
	return structure.SweepOptions{
		Params:  c.Params(),
		Workers: c.Sweep.Workers,
		Timeout: c.Sweep.Timeout,
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	if c.Sweep.Pressures != nil {
		cp.Sweep.Pressures = append([]float64(nil), c.Sweep.Pressures...)
	}
	return &cp
}
