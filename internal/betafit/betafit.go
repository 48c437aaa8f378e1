// Package betafit turns an elicited (probability, confidence) judgement into
// the shape parameters of a Beta distribution, using the mode/concentration
// parameterization and a parametric confidence-to-concentration link.
package betafit

import (
	"errors"
	"fmt"
	"math"

	"beliefshift/internal/metric"
)

// MinConcentration is the exclusive lower bound on concentration. Above it
// both shape parameters exceed 1 for every mode in [0,1].
const MinConcentration = 2.0

var (
	// ErrInvalidConcentration is returned when the concentration is not a
	// finite value above MinConcentration.
	ErrInvalidConcentration = errors.New("betafit: concentration must be finite and greater than 2")

	// ErrInvalidMode is returned when the mode is not a probability.
	ErrInvalidMode = errors.New("betafit: mode outside [0,1]")
)

// Link is the exponential linking function Scale * Growth^confidence.
type Link struct {
	Scale  float64 `json:"scale" yaml:"scale"`
	Growth float64 `json:"growth" yaml:"growth"`
}

// Concentration maps a reported confidence onto a Beta concentration. It is
// monotone increasing in confidence when Growth > 1; no clamping is applied.
func (l Link) Concentration(confidence float64) float64 {
	return l.Scale * math.Pow(l.Growth, confidence)
}

func (l Link) String() string {
	return fmt.Sprintf("%.4g * %.4g^c", l.Scale, l.Growth)
}

// FitModeConcentration returns the Beta shape pair with the given mode and
// concentration: alpha = mode(k-2)+1, beta = (1-mode)(k-2)+1, so alpha+beta = k.
func FitModeConcentration(mode, concentration float64) (metric.BetaParams, error) {
	if mode != mode || mode < 0 || mode > 1 {
		return metric.BetaParams{}, fmt.Errorf("%w: mode=%g", ErrInvalidMode, mode)
	}
	if !(concentration > MinConcentration) || math.IsInf(concentration, 1) {
		return metric.BetaParams{}, fmt.Errorf("%w: concentration=%g", ErrInvalidConcentration, concentration)
	}
	k := concentration - 2
	return metric.BetaParams{
		Alpha: mode*k + 1,
		Beta:  (1-mode)*k + 1,
	}, nil
}

// Fit links confidence to concentration and fits the Beta pair around mode.
func Fit(l Link, mode, confidence float64) (metric.BetaParams, error) {
	return FitModeConcentration(mode, l.Concentration(confidence))
}

// Pair holds the prior and posterior fits of one trial.
type Pair struct {
	Prior     metric.BetaParams `json:"prior"`
	Posterior metric.BetaParams `json:"posterior"`
}

// FitPair fits prior and posterior with the same link so their
// concentrations are commensurable.
func FitPair(l Link, priorP, priorC, postP, postC float64) (Pair, error) {
	prior, err := Fit(l, priorP, priorC)
	if err != nil {
		return Pair{}, fmt.Errorf("fit prior: %w", err)
	}
	posterior, err := Fit(l, postP, postC)
	if err != nil {
		return Pair{}, fmt.Errorf("fit posterior: %w", err)
	}
	return Pair{Prior: prior, Posterior: posterior}, nil
}
