// Package analysis checks structure integrations against closed-form
// polytrope theory and fits the mass-radius relation of a sweep.
//
// The package includes:
//
//   - [Polytrope]: Lane-Emden constants and the radius/mass they predict
//   - [SolveLaneEmden]: the first zero of the Lane-Emden equation for index n
//   - [PredictNR]: the n = 3/2 prediction for a non-relativistic white dwarf
//   - [FitPowerLaw]: log-log least squares y = a x^k
//   - [MassRadius]: the R ∝ M^k exponent of a sweep
//
// # Validation
//
// A non-relativistic degenerate gas is an n = 3/2 polytrope, so a numerical
// profile should match the prediction and a sweep should give k ≈ -1/3:
//
//	pred, _ := analysis.PredictNR(e, pCentral)
//	dev := analysis.Compare(profile, pred)
package analysis
