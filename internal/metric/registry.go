// Package metric holds the belief-update scoring functions: first-order
// measures over point probabilities, second-order measures over Beta fits,
// and the typed registry that names them.
package metric

import (
	"fmt"
	"strings"
)

// Order tells which input shape a family consumes.
type Order int

const (
	// FirstOrder families score a (prior, posterior) pair of probabilities.
	FirstOrder Order = iota + 1
	// SecondOrder families score a (prior, posterior) pair of Beta fits.
	SecondOrder
)

func (o Order) String() string {
	switch o {
	case FirstOrder:
		return "first-order"
	case SecondOrder:
		return "second-order"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// Family identifies one scoring function of the registry. The numeric order
// of the constants is the column order used by the pipeline.
type Family int

const (
	FamilyKL Family = iota + 1
	FamilyKLUtility
	FamilyEntropyChange
	FamilyLogBayesFactor
	FamilyBayesFactorUtility
	FamilyPosteriorDistance
	FamilyBeliefChange
	FamilyBetaKL
	FamilyBetaKLUtility
	FamilyBetaEntropyChange
	FamilyBetaParameterDistance
	FamilyBetaBayesFactorUtility
	FamilyPureSecondOrderChange
)

// ScalarFunc scores a first-order update from prior to posterior probability.
type ScalarFunc func(prior, posterior float64) (float64, error)

// BetaFunc scores a second-order update from prior to posterior Beta fit.
type BetaFunc func(prior, posterior BetaParams) (float64, error)

// Spec is a registry entry. Exactly one of Scalar and Beta is set, matching
// Order.
type Spec struct {
	Family Family
	Name   string
	Order  Order
	Scalar ScalarFunc
	Beta   BetaFunc
}

var registry = []Spec{
	{Family: FamilyKL, Name: "kl", Order: FirstOrder,
		Scalar: func(prior, posterior float64) (float64, error) { return BinaryKL(posterior, prior) }},
	{Family: FamilyKLUtility, Name: "kl_utility", Order: FirstOrder,
		Scalar: func(prior, posterior float64) (float64, error) { return KLUtility(posterior, prior, DecimalBase) }},
	{Family: FamilyEntropyChange, Name: "entropy_change", Order: FirstOrder,
		Scalar: EntropyReduction},
	{Family: FamilyLogBayesFactor, Name: "log_bayes_factor", Order: FirstOrder,
		Scalar: func(prior, posterior float64) (float64, error) { return LogBayesFactor(posterior, prior) }},
	{Family: FamilyBayesFactorUtility, Name: "bayes_factor_utility", Order: FirstOrder,
		Scalar: func(prior, posterior float64) (float64, error) { return BayesFactorUtilityPolar(posterior, prior) }},
	{Family: FamilyPosteriorDistance, Name: "posterior_distance", Order: FirstOrder,
		Scalar: func(_, posterior float64) (float64, error) { return PosteriorDistanceFromIndifference(posterior) }},
	{Family: FamilyBeliefChange, Name: "belief_change", Order: FirstOrder,
		Scalar: AbsolutePriorPosteriorDistance},
	{Family: FamilyBetaKL, Name: "beta_kl", Order: SecondOrder,
		Beta: func(prior, posterior BetaParams) (float64, error) { return BetaKL(posterior, prior) }},
	{Family: FamilyBetaKLUtility, Name: "beta_kl_utility", Order: SecondOrder,
		Beta: func(prior, posterior BetaParams) (float64, error) { return BetaKLUtility(posterior, prior, BinaryBase) }},
	{Family: FamilyBetaEntropyChange, Name: "beta_entropy_change", Order: SecondOrder,
		Beta: BetaEntropyReduction},
	{Family: FamilyBetaParameterDistance, Name: "beta_parameter_distance", Order: SecondOrder,
		Beta: BetaParameterDistance},
	{Family: FamilyBetaBayesFactorUtility, Name: "beta_bayes_factor_utility", Order: SecondOrder,
		Beta: BetaBayesFactorUtility},
	{Family: FamilyPureSecondOrderChange, Name: "pure_second_order_change", Order: SecondOrder,
		Beta: PureSecondOrderChange},
}

// Families returns every registered family in column order.
func Families() []Family {
	out := make([]Family, len(registry))
	for i, s := range registry {
		out[i] = s.Family
	}
	return out
}

// FamiliesOf returns the registered families of one order, in column order.
func FamiliesOf(o Order) []Family {
	var out []Family
	for _, s := range registry {
		if s.Order == o {
			out = append(out, s.Family)
		}
	}
	return out
}

// Lookup returns the registry entry for f.
func Lookup(f Family) (Spec, bool) {
	i := int(f) - 1
	if i < 0 || i >= len(registry) {
		return Spec{}, false
	}
	return registry[i], true
}

// ParseFamily resolves a family by its registry name.
func ParseFamily(name string) (Family, error) {
	name = strings.TrimSpace(name)
	for _, s := range registry {
		if s.Name == name {
			return s.Family, nil
		}
	}
	return 0, fmt.Errorf("unknown metric family %q (available: %s)", name, strings.Join(Names(), ", "))
}

// Names lists every family name in column order.
func Names() []string {
	out := make([]string, len(registry))
	for i, s := range registry {
		out[i] = s.Name
	}
	return out
}

func (f Family) String() string {
	if s, ok := Lookup(f); ok {
		return s.Name
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// Order returns the input shape of f, or 0 for an unregistered value.
func (f Family) Order() Order {
	s, _ := Lookup(f)
	return s.Order
}

func (f Family) MarshalText() ([]byte, error) {
	if _, ok := Lookup(f); !ok {
		return nil, fmt.Errorf("marshal unknown metric family %d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *Family) UnmarshalText(b []byte) error {
	v, err := ParseFamily(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ScoreScalar applies a first-order family.
func (s Spec) ScoreScalar(prior, posterior float64) (float64, error) {
	if s.Scalar == nil {
		return 0, fmt.Errorf("family %s is %s, not first-order", s.Name, s.Order)
	}
	return s.Scalar(prior, posterior)
}

// ScoreBeta applies a second-order family.
func (s Spec) ScoreBeta(prior, posterior BetaParams) (float64, error) {
	if s.Beta == nil {
		return 0, fmt.Errorf("family %s is %s, not second-order", s.Name, s.Order)
	}
	return s.Beta(prior, posterior)
}
