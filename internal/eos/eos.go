// Package eos implements the equation of state of a cold, non-relativistic,
// fully degenerate electron gas.
//
// The pressure/density relation is the n = 3/2 polytrope
//
//	P = K * rho^(5/3)
//
// with Chandrasekhar's constant
//
//	K = (3π²)^(2/3) / 5 * ħ² / m_e * (1 / (μ_e m_n))^(5/3)
//
// computed once from a [Constants] record. The same K is used in both
// directions so [EOS.DensityFromPressure] inverts [EOS.PressureFromDensity].
package eos

import (
	"errors"
	"math"
)

// ErrInvalidConstants is returned when a constants record cannot describe a
// physical gas.
var ErrInvalidConstants = errors.New("eos: invalid physical constants")

const (
	gamma    = 5.0 / 3.0
	invGamma = 3.0 / 5.0
)

// EOS maps between pressure and density. It is immutable and safe for
// concurrent use.
type EOS struct {
	consts Constants
	k      float64
}

// New builds an EOS from c. The polytropic constant is derived here and never
// recomputed.
func New(c Constants) (*EOS, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &EOS{consts: c, k: PolytropicConstant(c)}, nil
}

// MustNew is New for constants known to be valid, such as CGS().
func MustNew(c Constants) *EOS {
	e, err := New(c)
	if err != nil {
		panic(err)
	}
	return e
}

// PolytropicConstant returns the non-relativistic degenerate electron gas
// constant K for the given composition.
func PolytropicConstant(c Constants) float64 {
	nucleon := c.MuE * c.NeutronMass
	return math.Pow(3*math.Pi*math.Pi, 2.0/3.0) / 5 *
		c.Hbar * c.Hbar / c.ElectronMass *
		math.Pow(1/nucleon, gamma)
}

// K returns the polytropic constant in CGS units.
func (e *EOS) K() float64 { return e.k }

// Constants returns the record the EOS was built from.
func (e *EOS) Constants() Constants { return e.consts }

// PressureFromDensity returns K * rho^(5/3). Non-positive densities map to
// zero pressure.
func (e *EOS) PressureFromDensity(rho float64) float64 {
	if !(rho > 0) {
		return 0
	}
	return e.k * math.Pow(rho, gamma)
}

// DensityFromPressure returns (P/K)^(3/5). Non-positive or NaN pressure is
// the stellar surface and maps to zero density.
func (e *EOS) DensityFromPressure(p float64) float64 {
	if !(p > 0) {
		return 0
	}
	return math.Pow(p/e.k, invGamma)
}
