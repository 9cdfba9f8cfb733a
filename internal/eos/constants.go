package eos

import (
	"fmt"
	"math"
)

// CGS reference values.
const (
	GravitationalConstant = 6.674e-8      // cm^3 g^-1 s^-2
	SolarMass             = 1.989e33      // g
	SolarRadius           = 6.957e10      // cm
	ReducedPlanck         = 1.054572e-27  // erg s
	ElectronMass          = 9.10938e-28   // g
	NeutronMass           = 1.674927e-24  // g
	SpeedOfLight          = 2.99792458e10 // cm s^-1
	DefaultMuE            = 2.0
)

// Constants is the immutable set of physical constants a model is built from.
// All values are CGS.
type Constants struct {
	G            float64 `yaml:"g" json:"g"`
	SolarMass    float64 `yaml:"solar_mass" json:"solar_mass"`
	SolarRadius  float64 `yaml:"solar_radius" json:"solar_radius"`
	Hbar         float64 `yaml:"hbar" json:"hbar"`
	ElectronMass float64 `yaml:"electron_mass" json:"electron_mass"`
	NeutronMass  float64 `yaml:"neutron_mass" json:"neutron_mass"`
	SpeedOfLight float64 `yaml:"speed_of_light" json:"speed_of_light"`
	// MuE is the mean molecular weight per electron.
	MuE float64 `yaml:"mu_e" json:"mu_e"`
}

// CGS returns the default constants for a carbon/oxygen white dwarf (mu_e = 2).
func CGS() Constants {
	return Constants{
		G:            GravitationalConstant,
		SolarMass:    SolarMass,
		SolarRadius:  SolarRadius,
		Hbar:         ReducedPlanck,
		ElectronMass: ElectronMass,
		NeutronMass:  NeutronMass,
		SpeedOfLight: SpeedOfLight,
		MuE:          DefaultMuE,
	}
}

// Validate reports the first constant that is not a positive finite number.
func (c Constants) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"g", c.G},
		{"solar_mass", c.SolarMass},
		{"solar_radius", c.SolarRadius},
		{"hbar", c.Hbar},
		{"electron_mass", c.ElectronMass},
		{"neutron_mass", c.NeutronMass},
		{"speed_of_light", c.SpeedOfLight},
		{"mu_e", c.MuE},
	}
	for _, f := range fields {
		if !(f.value > 0) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be positive and finite, got %g", ErrInvalidConstants, f.name, f.value)
		}
	}
	return nil
}
