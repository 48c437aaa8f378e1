package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"beliefshift/internal/betafit"
	"beliefshift/internal/calibrate"
	"beliefshift/internal/metric"
	"beliefshift/internal/trial"
)

// ErrColumnConflict is returned when a source field has the same name as a
// computed metric column.
var ErrColumnConflict = errors.New("pipeline: source field collides with a metric column")

// Options selects what Apply computes.
type Options struct {
	// Families to score; empty means every registered family.
	Families []metric.Family `json:"families,omitempty" yaml:"families,omitempty"`
	// Regimes for second-order columns; empty means separate, plus joint
	// when the parameter set carries a joint vector. A set holding only a
	// joint vector defaults to joint alone.
	Regimes []calibrate.Regime `json:"regimes,omitempty" yaml:"regimes,omitempty"`
	// Rescale adds a <column>_scaled column after every score.
	Rescale bool `json:"rescale" yaml:"rescale"`
	// SkipInvalid records NaN for cells whose inputs are outside a metric's
	// domain instead of failing the batch.
	SkipInvalid bool `json:"skip_invalid" yaml:"skip_invalid"`
}

// DefaultOptions scores every family with rescaling on.
func DefaultOptions() Options {
	return Options{Rescale: true}
}

func (o Options) resolve(params calibrate.ParamSet) Options {
	if len(o.Families) == 0 {
		o.Families = metric.Families()
	}
	if len(o.Regimes) == 0 {
		switch {
		case params.HasJoint() && len(params.Separate) == 0:
			o.Regimes = []calibrate.Regime{calibrate.RegimeJoint}
		case params.HasJoint():
			o.Regimes = []calibrate.Regime{calibrate.RegimeSeparate, calibrate.RegimeJoint}
		default:
			o.Regimes = []calibrate.Regime{calibrate.RegimeSeparate}
		}
	}
	return o
}

// Apply augments every trial with the metric columns of Layout. Second-order
// families use the Beta pair fitted under the family's vector for each
// regime; families with no fitted vector use params.Default. Records come
// back in trial order. A source field named like a computed column fails the
// row with ErrColumnConflict rather than being overwritten.
func Apply(trials []trial.Trial, params calibrate.ParamSet, opts Options) ([]Record, error) {
	opts = opts.resolve(params)
	for _, f := range opts.Families {
		if _, ok := metric.Lookup(f); !ok {
			return nil, fmt.Errorf("apply: unknown metric family %d", int(f))
		}
	}
	cols := Layout(opts)
	names := make([]string, len(cols))
	computed := make(map[string]bool, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		computed[c.Name] = true
	}

	out := make([]Record, len(trials))
	for i, t := range trials {
		if name, ok := conflict(t.Fields, computed); ok {
			return nil, &trial.RowError{Row: i, Column: name, Err: ErrColumnConflict}
		}
		values, err := applyOne(t, cols, params, opts.SkipInvalid)
		if err != nil {
			return nil, &trial.RowError{Row: i, Err: err}
		}
		out[i] = newRecord(t.Fields, names, values)
	}
	return out, nil
}

// conflict reports the first source field, by name, that a computed column
// would shadow.
func conflict(fields map[string]any, computed map[string]bool) (string, bool) {
	var hit []string
	for k := range fields {
		if computed[k] {
			hit = append(hit, k)
		}
	}
	if len(hit) == 0 {
		return "", false
	}
	sort.Strings(hit)
	return hit[0], true
}

type pairKey struct {
	family metric.Family
	regime calibrate.Regime
}

func applyOne(t trial.Trial, cols []Column, params calibrate.ParamSet, skip bool) ([]float64, error) {
	values := make([]float64, len(cols))
	pairs := make(map[pairKey]betafit.Pair)
	raw := make(map[pairKey]float64)

	fail := func(err error) error {
		if skip {
			return nil
		}
		return err
	}

	for i, c := range cols {
		p := params.For(c.Family, c.Regime)
		key := pairKey{c.Family, c.Regime}
		spec, _ := metric.Lookup(c.Family)

		if _, ok := pairs[key]; !ok && spec.Order == metric.SecondOrder {
			pair, err := betafit.FitPair(p.Link(), t.PriorProbability, t.PriorConfidence,
				t.PosteriorProbability, t.PosteriorConfidence)
			if err != nil {
				if err := fail(fmt.Errorf("%s: %w", c.Name, err)); err != nil {
					return nil, err
				}
				nan := metric.BetaParams{Alpha: math.NaN(), Beta: math.NaN()}
				pair = betafit.Pair{Prior: nan, Posterior: nan}
			}
			pairs[key] = pair
		}

		switch c.Kind {
		case KindPriorAlpha:
			values[i] = pairs[key].Prior.Alpha
		case KindPriorBeta:
			values[i] = pairs[key].Prior.Beta
		case KindPosteriorAlpha:
			values[i] = pairs[key].Posterior.Alpha
		case KindPosteriorBeta:
			values[i] = pairs[key].Posterior.Beta
		case KindScore:
			v, err := score(spec, t, pairs[key])
			if err != nil {
				if err := fail(fmt.Errorf("%s: %w", c.Name, err)); err != nil {
					return nil, err
				}
				v = math.NaN()
			}
			raw[key] = v
			values[i] = v
		case KindScaled:
			v := raw[key]
			if math.IsNaN(v) {
				values[i] = v
				continue
			}
			g := p.Compression
			if !p.Compresses() {
				g = calibrate.DefaultParams().Compression
			}
			s, err := metric.Compress(v, g)
			if err != nil {
				if err := fail(fmt.Errorf("%s: %w", c.Name, err)); err != nil {
					return nil, err
				}
				s = math.NaN()
			}
			values[i] = s
		}
	}
	return values, nil
}

func score(spec metric.Spec, t trial.Trial, pair betafit.Pair) (float64, error) {
	if spec.Order == metric.FirstOrder {
		return spec.ScoreScalar(t.PriorProbability, t.PosteriorProbability)
	}
	if math.IsNaN(pair.Prior.Alpha) {
		return math.NaN(), nil
	}
	return spec.ScoreBeta(pair.Prior, pair.Posterior)
}
