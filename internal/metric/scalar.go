package metric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Compression bases used by callers. Any base > 1 is accepted.
const (
	BinaryBase  = 2.0
	DecimalBase = 10.0
)

// SaturationEpsilon bounds probabilities away from 0 and 1 when exactly one
// side of a Bayes factor sits at an extreme, so the odds ratio stays finite.
const SaturationEpsilon = 1e-9

// BinaryKL is the base-2 Kullback-Leibler divergence KL({p,1-p} || {q,1-q})
// from the prior q to the posterior p.
func BinaryKL(p, q float64) (float64, error) {
	if err := checkProbability("BinaryKL", "p", p); err != nil {
		return 0, err
	}
	if err := checkProbability("BinaryKL", "q", q); err != nil {
		return 0, err
	}
	d := klTerm(p, q) + klTerm(1-p, 1-q)
	if math.IsInf(d, 1) {
		return 0, invalid("BinaryKL", "q", q, "prior assigns zero mass to an outcome the posterior supports")
	}
	return d, nil
}

func klTerm(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	if b == 0 {
		return math.Inf(1)
	}
	return a * math.Log2(a/b)
}

// Compress maps a divergence onto [0,1) as 1 - base^(-x).
func Compress(x, base float64) (float64, error) {
	if err := checkBase("Compress", base); err != nil {
		return 0, err
	}
	return 1 - math.Pow(base, -x), nil
}

// KLUtility is the compressed binary KL divergence.
func KLUtility(p, q, base float64) (float64, error) {
	d, err := BinaryKL(p, q)
	if err != nil {
		return 0, err
	}
	return Compress(d, base)
}

// EntropyReduction is |H(q) - H(p)| with H the base-2 binary entropy.
// q is the prior and p the posterior; the result does not depend on the order.
func EntropyReduction(q, p float64) (float64, error) {
	if err := checkProbability("EntropyReduction", "q", q); err != nil {
		return 0, err
	}
	if err := checkProbability("EntropyReduction", "p", p); err != nil {
		return 0, err
	}
	return math.Abs(binaryEntropy(q) - binaryEntropy(p)), nil
}

func binaryEntropy(p float64) float64 {
	return -(plogp(p) + plogp(1-p))
}

func plogp(p float64) float64 {
	if p == 0 {
		return 0
	}
	return p * math.Log2(p)
}

// degenerate reports the no-update case where both probabilities sit at the
// same extreme.
func degenerate(p, q float64) bool {
	return (p == 0 && q == 0) || (p == 1 && q == 1)
}

func saturate(p float64) float64 {
	return math.Min(math.Max(p, SaturationEpsilon), 1-SaturationEpsilon)
}

// BayesFactorRatio is the posterior odds of p divided by the prior odds of q.
// Both probabilities at the same extreme yield 1. A single extreme saturates
// to a large finite ratio (see SaturationEpsilon).
func BayesFactorRatio(p, q float64) (float64, error) {
	if err := checkProbability("BayesFactorRatio", "p", p); err != nil {
		return 0, err
	}
	if err := checkProbability("BayesFactorRatio", "q", q); err != nil {
		return 0, err
	}
	if degenerate(p, q) {
		return 1, nil
	}
	p, q = saturate(p), saturate(q)
	return (p / (1 - p)) * ((1 - q) / q), nil
}

// LogBayesFactor is |log10(BayesFactorRatio(p, q))|.
func LogBayesFactor(p, q float64) (float64, error) {
	r, err := BayesFactorRatio(p, q)
	if err != nil {
		return 0, err
	}
	return math.Abs(math.Log10(r)), nil
}

// BayesFactorUtilityPolar canonicalizes the direction of the update by
// reflecting both probabilities across 0.5 when the posterior exceeds the
// prior, then returns 1 - BayesFactorRatio.
func BayesFactorUtilityPolar(p, q float64) (float64, error) {
	if err := checkProbability("BayesFactorUtilityPolar", "p", p); err != nil {
		return 0, err
	}
	if err := checkProbability("BayesFactorUtilityPolar", "q", q); err != nil {
		return 0, err
	}
	if p > q {
		p, q = 1-p, 1-q
	}
	r, err := BayesFactorRatio(p, q)
	if err != nil {
		return 0, err
	}
	return 1 - r, nil
}

// MultiBayesFactorUtility averages the polar utility over the alternatives of
// a multi-answer question. It equals BayesFactorUtilityPolar for two
// alternatives.
func MultiBayesFactorUtility(ps, qs []float64) (float64, error) {
	utils, err := polarUtilities("MultiBayesFactorUtility", ps, qs)
	if err != nil {
		return 0, err
	}
	return stat.Mean(utils, nil), nil
}

// WeightedMultiBayesFactorUtility weights each alternative's polar utility by
// its posterior probability.
func WeightedMultiBayesFactorUtility(ps, qs []float64) (float64, error) {
	utils, err := polarUtilities("WeightedMultiBayesFactorUtility", ps, qs)
	if err != nil {
		return 0, err
	}
	return floats.Dot(ps, utils), nil
}

func polarUtilities(fn string, ps, qs []float64) ([]float64, error) {
	if len(ps) == 0 || len(ps) != len(qs) {
		return nil, fmt.Errorf("%w: %s: need equal, non-empty alternative lists (got %d and %d)",
			ErrInvalidInput, fn, len(ps), len(qs))
	}
	utils := make([]float64, len(ps))
	for i := range ps {
		u, err := BayesFactorUtilityPolar(ps[i], qs[i])
		if err != nil {
			return nil, fmt.Errorf("alternative %d: %w", i, err)
		}
		utils[i] = u
	}
	return utils, nil
}

// PosteriorDistanceFromIndifference is 2|0.5 - p|, in [0,1].
func PosteriorDistanceFromIndifference(p float64) (float64, error) {
	if err := checkProbability("PosteriorDistanceFromIndifference", "p", p); err != nil {
		return 0, err
	}
	return 2 * math.Abs(0.5-p), nil
}

// AbsolutePriorPosteriorDistance is |p - q| for prior q and posterior p.
func AbsolutePriorPosteriorDistance(q, p float64) (float64, error) {
	if err := checkProbability("AbsolutePriorPosteriorDistance", "q", q); err != nil {
		return 0, err
	}
	if err := checkProbability("AbsolutePriorPosteriorDistance", "p", p); err != nil {
		return 0, err
	}
	return math.Abs(p - q), nil
}
