// Package calibrate fits the confidence-to-concentration link and the score
// compression exponent so that metric scores track human relevance ratings.
package calibrate

import (
	"fmt"
	"math"

	"beliefshift/internal/betafit"
	"beliefshift/internal/metric"
)

// NoCompression as a Compression value leaves scores uncompressed.
const NoCompression = 0.0

// Params is one linking parameter vector.
type Params struct {
	Scale       float64 `json:"scale" yaml:"scale"`
	Growth      float64 `json:"growth" yaml:"growth"`
	Compression float64 `json:"compression" yaml:"compression"`
}

// DefaultParams is the starting guess and the fallback for families without
// a fitted vector.
func DefaultParams() Params {
	return Params{Scale: 3, Growth: 2, Compression: 2}
}

// Link returns the linking function encoded by the first two components.
func (p Params) Link() betafit.Link {
	return betafit.Link{Scale: p.Scale, Growth: p.Growth}
}

// Compresses reports whether scores are compressed under p.
func (p Params) Compresses() bool { return p.Compression != NoCompression }

func (p Params) String() string {
	if !p.Compresses() {
		return p.Link().String()
	}
	return fmt.Sprintf("%s, 1-%.4g^-x", p.Link(), p.Compression)
}

func (p Params) vector() []float64 { return []float64{p.Scale, p.Growth, p.Compression} }

func paramsFrom(x []float64) Params {
	return Params{Scale: x[0], Growth: x[1], Compression: x[2]}
}

// Interval is a closed box constraint. Lower == Upper pins the dimension.
type Interval struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// AtLeast is the half-open interval [lower, +Inf).
func AtLeast(lower float64) Interval { return Interval{Lower: lower, Upper: math.Inf(1)} }

// Pinned is the degenerate interval [v, v].
func Pinned(v float64) Interval { return Interval{Lower: v, Upper: v} }

// Fixed reports whether the interval pins its dimension.
func (i Interval) Fixed() bool { return i.Lower == i.Upper }

func (i Interval) validate(name string) error {
	if math.IsNaN(i.Lower) || math.IsNaN(i.Upper) || i.Lower > i.Upper {
		return fmt.Errorf("bounds %s: invalid interval [%g, %g]", name, i.Lower, i.Upper)
	}
	return nil
}

// Bounds constrains each component of Params.
type Bounds struct {
	Scale       Interval `json:"scale" yaml:"scale"`
	Growth      Interval `json:"growth" yaml:"growth"`
	Compression Interval `json:"compression" yaml:"compression"`
}

// DefaultBounds keeps concentration above 2 for non-negative confidences,
// the link monotone, and compression strictly above base 1.
func DefaultBounds() Bounds {
	return Bounds{
		Scale:       AtLeast(betafit.MinConcentration + 1e-6),
		Growth:      AtLeast(1),
		Compression: AtLeast(1 + 1e-6),
	}
}

func (b Bounds) validate() error {
	if err := b.Scale.validate("scale"); err != nil {
		return err
	}
	if err := b.Growth.validate("growth"); err != nil {
		return err
	}
	return b.Compression.validate("compression")
}

func (b Bounds) lower() []float64 {
	return []float64{b.Scale.Lower, b.Growth.Lower, b.Compression.Lower}
}

func (b Bounds) upper() []float64 {
	return []float64{b.Scale.Upper, b.Growth.Upper, b.Compression.Upper}
}

// Regime tells whether a vector was fit per family or shared across them.
type Regime int

const (
	RegimeSeparate Regime = iota + 1
	RegimeJoint
)

func (r Regime) String() string {
	switch r {
	case RegimeSeparate:
		return "separate"
	case RegimeJoint:
		return "joint"
	default:
		return fmt.Sprintf("Regime(%d)", int(r))
	}
}

// ParseRegime resolves "separate" or "joint".
func ParseRegime(s string) (Regime, error) {
	switch s {
	case "separate":
		return RegimeSeparate, nil
	case "joint":
		return RegimeJoint, nil
	}
	return 0, fmt.Errorf("unknown regime %q", s)
}

func (r Regime) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Regime) UnmarshalText(b []byte) error {
	v, err := ParseRegime(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParamSet is the frozen outcome of a calibration, consumed read-only when
// metrics are applied to a dataset.
type ParamSet struct {
	Default  Params
	Separate map[metric.Family]Params
	Joint    *Params
}

// NewParamSet returns an empty set that falls back to DefaultParams.
func NewParamSet() ParamSet {
	return ParamSet{Default: DefaultParams(), Separate: map[metric.Family]Params{}}
}

// For returns the vector for family f under regime r, falling back to
// Default when nothing was fitted.
func (s ParamSet) For(f metric.Family, r Regime) Params {
	if r == RegimeJoint {
		if s.Joint != nil {
			return *s.Joint
		}
		return s.Default
	}
	if p, ok := s.Separate[f]; ok {
		return p
	}
	return s.Default
}

// HasJoint reports whether a joint vector was fitted.
func (s ParamSet) HasJoint() bool { return s.Joint != nil }
