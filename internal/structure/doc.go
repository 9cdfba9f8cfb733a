// Package structure integrates the hydrostatic structure of a white dwarf
// supported by a non-relativistic degenerate electron gas.
//
// The state is (P, M) over radius r:
//
//	dP/dr = -G M rho / r²
//	dM/dr = 4π r² rho,  rho = eos.DensityFromPressure(P)
//
// Integration starts at a small positive radius with M = 0 and stops at
// the first radius where P falls through a small positive threshold (the
// surface) or at the outer domain bound. Sweeping the central pressure
// traces the mass-radius relation.
package structure
