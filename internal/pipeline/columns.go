// Package pipeline applies the metric registry to a batch of trials under a
// calibrated parameter set, and summarizes the resulting columns.
package pipeline

import (
	"beliefshift/internal/calibrate"
	"beliefshift/internal/metric"
)

// ColumnKind tells what a metric column holds.
type ColumnKind int

const (
	KindScore ColumnKind = iota + 1
	KindScaled
	KindPriorAlpha
	KindPriorBeta
	KindPosteriorAlpha
	KindPosteriorBeta
)

// Column is one output column appended to every record.
type Column struct {
	Name   string
	Family metric.Family
	Regime calibrate.Regime
	Kind   ColumnKind
}

func columnBase(f metric.Family, r calibrate.Regime) string {
	if r == calibrate.RegimeJoint {
		return f.String() + "_joint"
	}
	return f.String()
}

// Layout returns the metric columns in output order: first-order scores,
// then for each second-order family and regime the prior and posterior Beta
// shapes followed by the score. Each score is followed by its _scaled column
// when rescaling is on.
func Layout(opts Options) []Column {
	var cols []Column
	score := func(f metric.Family, r calibrate.Regime) {
		base := columnBase(f, r)
		cols = append(cols, Column{Name: base, Family: f, Regime: r, Kind: KindScore})
		if opts.Rescale {
			cols = append(cols, Column{Name: base + "_scaled", Family: f, Regime: r, Kind: KindScaled})
		}
	}
	for _, f := range opts.Families {
		if f.Order() == metric.FirstOrder {
			score(f, calibrate.RegimeSeparate)
		}
	}
	for _, f := range opts.Families {
		if f.Order() != metric.SecondOrder {
			continue
		}
		for _, r := range opts.Regimes {
			base := columnBase(f, r)
			cols = append(cols,
				Column{Name: "prior_beta_for_" + base + "_a", Family: f, Regime: r, Kind: KindPriorAlpha},
				Column{Name: "prior_beta_for_" + base + "_b", Family: f, Regime: r, Kind: KindPriorBeta},
				Column{Name: "posterior_beta_for_" + base + "_a", Family: f, Regime: r, Kind: KindPosteriorAlpha},
				Column{Name: "posterior_beta_for_" + base + "_b", Family: f, Regime: r, Kind: KindPosteriorBeta},
			)
			score(f, r)
		}
	}
	return cols
}

// ScoreColumns filters cols down to the score and scaled columns.
func ScoreColumns(cols []Column) []string {
	var out []string
	for _, c := range cols {
		if c.Kind == KindScore || c.Kind == KindScaled {
			out = append(out, c.Name)
		}
	}
	return out
}
