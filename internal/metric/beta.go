package metric

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// EntropyFallback replaces the Beta differential entropy whenever the closed
// form overflows or turns NaN at extreme concentrations.
const EntropyFallback = -5.0

// BetaParams is the (alpha, beta) shape pair of a Beta distribution over the
// probability of a binary outcome.
type BetaParams struct {
	Alpha float64 `json:"a"`
	Beta  float64 `json:"b"`
}

// Concentration is alpha + beta.
func (b BetaParams) Concentration() float64 { return b.Alpha + b.Beta }

// Dist returns the gonum distribution with these parameters.
func (b BetaParams) Dist() distuv.Beta {
	return distuv.Beta{Alpha: b.Alpha, Beta: b.Beta}
}

func (b BetaParams) check(fn, arg string) error {
	if !(b.Alpha > 0) || math.IsInf(b.Alpha, 0) {
		return invalid(fn, arg+".alpha", b.Alpha, "shape parameter must be positive and finite")
	}
	if !(b.Beta > 0) || math.IsInf(b.Beta, 0) {
		return invalid(fn, arg+".beta", b.Beta, "shape parameter must be positive and finite")
	}
	return nil
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// BetaKL is KL(Q || P) between two Beta (two-parameter Dirichlet)
// distributions: Q is the posterior, P the prior. Alpha pairs with alpha and
// beta with beta.
func BetaKL(q, p BetaParams) (float64, error) {
	if err := q.check("BetaKL", "Q"); err != nil {
		return 0, err
	}
	if err := p.check("BetaKL", "P"); err != nil {
		return 0, err
	}
	sq, sp := q.Concentration(), p.Concentration()
	psiSum := mathext.Digamma(sq)
	d := lgamma(sq) - lgamma(sp) +
		(lgamma(p.Alpha) - lgamma(q.Alpha)) +
		(lgamma(p.Beta) - lgamma(q.Beta)) +
		(q.Alpha-p.Alpha)*(mathext.Digamma(q.Alpha)-psiSum) +
		(q.Beta-p.Beta)*(mathext.Digamma(q.Beta)-psiSum)
	return d, nil
}

// BetaKLUtility is the compressed BetaKL.
func BetaKLUtility(q, p BetaParams, base float64) (float64, error) {
	d, err := BetaKL(q, p)
	if err != nil {
		return 0, err
	}
	return Compress(d, base)
}

// BetaDifferentialEntropy is the differential entropy (nats) of a Beta
// distribution. The result is clamped to EntropyFallback when the gamma
// ratio is not finite.
func BetaDifferentialEntropy(p BetaParams) (float64, error) {
	if err := p.check("BetaDifferentialEntropy", "P"); err != nil {
		return 0, err
	}
	a, b := p.Alpha, p.Beta
	a0 := a + b
	h := math.Log(math.Gamma(a)*math.Gamma(b)/math.Gamma(a0)) +
		(a0-2)*mathext.Digamma(a0) -
		(a-1)*mathext.Digamma(a) -
		(b-1)*mathext.Digamma(b)
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return EntropyFallback, nil
	}
	return h, nil
}

// BetaEntropyReduction is |h(P) - h(Q)| for prior P and posterior Q.
func BetaEntropyReduction(p, q BetaParams) (float64, error) {
	hp, err := BetaDifferentialEntropy(p)
	if err != nil {
		return 0, err
	}
	hq, err := BetaDifferentialEntropy(q)
	if err != nil {
		return 0, err
	}
	return math.Abs(hp - hq), nil
}

// BetaParameterDistance is the L1 distance between two shape pairs, the
// second-order analogue of a Bayes factor.
func BetaParameterDistance(p, q BetaParams) (float64, error) {
	if err := p.check("BetaParameterDistance", "P"); err != nil {
		return 0, err
	}
	if err := q.check("BetaParameterDistance", "Q"); err != nil {
		return 0, err
	}
	return math.Abs(p.Alpha-q.Alpha) + math.Abs(p.Beta-q.Beta), nil
}

// BetaBayesFactorUtility is ln(BetaParameterDistance + 2).
func BetaBayesFactorUtility(p, q BetaParams) (float64, error) {
	d, err := BetaParameterDistance(p, q)
	if err != nil {
		return 0, err
	}
	return math.Log(d + 2), nil
}

// PureSecondOrderChange is the change in total concentration, ignoring where
// the mode moved.
func PureSecondOrderChange(p, q BetaParams) (float64, error) {
	if err := p.check("PureSecondOrderChange", "P"); err != nil {
		return 0, err
	}
	if err := q.check("PureSecondOrderChange", "Q"); err != nil {
		return 0, err
	}
	return math.Abs(p.Concentration() - q.Concentration()), nil
}
