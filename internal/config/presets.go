package config

import (
	"sort"
	"time"
)

// Preset is a named starting configuration.
type Preset struct {
	Description string
	apply       func(*Config)
}

var Presets = map[string]Preset{
	"default": {
		Description: "P0 = 1e21 dyn/cm², carbon-oxygen composition",
		apply:       func(*Config) {},
	},
	"low-mass": {
		Description: "P0 = 1e19, a light and extended dwarf",
		apply:       func(c *Config) { c.PCentral = 1e19 },
	},
	"massive": {
		Description: "P0 = 1e25, past the validity of the non-relativistic gas",
		apply:       func(c *Config) { c.PCentral = 1e25 },
	},
	"iron": {
		Description: "iron core, mu_e = 56/26",
		apply:       func(c *Config) { c.Constants.MuE = 56.0 / 26.0 },
	},
	"precise": {
		Description: "tight tolerances and a finer step bound",
		apply: func(c *Config) {
			c.Integration.RelTol = 1e-11
			c.Integration.AbsTol = 1e-12
			c.Integration.MaxStep = 1e6
			c.Integration.MaxSteps = 1000000
			c.Integration.Timeout = 2 * time.Minute
		},
	},
	"quick": {
		Description: "loose tolerances, coarse eight point sweep",
		apply: func(c *Config) {
			c.Integration.RelTol = 1e-6
			c.Integration.AbsTol = 1e-8
			c.Sweep.Points = 8
		},
	},
	"cross-check": {
		Description: "fixed-step RK4 at 1e6 cm",
		apply: func(c *Config) {
			c.Solver = "rk4"
			c.Integration.MaxStep = 1e6
		},
	},
	"chandrasekhar-sweep": {
		Description: "dense sweep over ten decades of central pressure",
		apply: func(c *Config) {
			c.Sweep.PMin = 1e16
			c.Sweep.PMax = 1e26
			c.Sweep.Points = 41
			c.Sweep.Workers = 8
		},
	},
}

// GetPreset returns a fresh config for the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	p.apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
