package metric

import (
	"errors"
	"math"
	"testing"
)

func TestBetaKL_SelfIsZero(t *testing.T) {
	for _, p := range []BetaParams{{1, 1}, {2, 2}, {1.3, 7.9}, {40, 3}, {250, 250}} {
		got, err := BetaKL(p, p)
		if err != nil {
			t.Fatalf("BetaKL(%v, %v): %v", p, p, err)
		}
		if math.Abs(got) > 1e-9 {
			t.Errorf("BetaKL(%v, %v) = %g, want 0", p, p, got)
		}
	}
}

func TestBetaKL_AgainstUniform(t *testing.T) {
	// KL(Beta(2,2) || Beta(1,1)) is the negated differential entropy of Beta(2,2).
	got, err := BetaKL(BetaParams{2, 2}, BetaParams{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !near(got, 0.125093) {
		t.Errorf("BetaKL(Beta(2,2), Beta(1,1)) = %f, want 0.125093", got)
	}
	h, _ := BetaDifferentialEntropy(BetaParams{2, 2})
	if !near(got, -h) {
		t.Errorf("BetaKL against uniform = %f, want -entropy %f", got, -h)
	}
}

func TestBetaKL_IndexAlignment(t *testing.T) {
	q, p := BetaParams{6, 2}, BetaParams{2, 6}
	qp, _ := BetaKL(q, p)
	mirrored, _ := BetaKL(BetaParams{2, 6}, BetaParams{6, 2})
	if !near(qp, mirrored) {
		t.Errorf("mirrored pairs disagree: %f vs %f", qp, mirrored)
	}
	crossed, _ := BetaKL(q, BetaParams{2, 2})
	straight, _ := BetaKL(BetaParams{2, 6}, BetaParams{2, 2})
	if !near(crossed, straight) {
		t.Errorf("alpha/beta alignment broken: %f vs %f", crossed, straight)
	}
	if qp <= 0 {
		t.Errorf("BetaKL(%v, %v) = %f, want positive", q, p, qp)
	}
}

func TestBetaKLUtility(t *testing.T) {
	d, _ := BetaKL(BetaParams{5, 2}, BetaParams{2, 2})
	got, err := BetaKLUtility(BetaParams{5, 2}, BetaParams{2, 2}, BinaryBase)
	if err != nil {
		t.Fatal(err)
	}
	if want := 1 - math.Pow(2, -d); !near(got, want) {
		t.Errorf("BetaKLUtility = %f, want %f", got, want)
	}
}

func TestBetaDifferentialEntropy(t *testing.T) {
	tests := []struct {
		name string
		p    BetaParams
		want float64
	}{
		{"uniform", BetaParams{1, 1}, 0},
		{"symmetric two", BetaParams{2, 2}, -0.125093},
		{"overflowing gamma clamps", BetaParams{400, 400}, EntropyFallback},
		{"one huge shape clamps", BetaParams{500, 2}, EntropyFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BetaDifferentialEntropy(tt.p)
			if err != nil {
				t.Fatal(err)
			}
			if !near(got, tt.want) {
				t.Errorf("BetaDifferentialEntropy(%v) = %f, want %f", tt.p, got, tt.want)
			}
		})
	}
}

func TestBetaEntropyReduction(t *testing.T) {
	got, err := BetaEntropyReduction(BetaParams{1, 1}, BetaParams{2, 2})
	if err != nil {
		t.Fatal(err)
	}
	if !near(got, 0.125093) {
		t.Errorf("BetaEntropyReduction(uniform, Beta(2,2)) = %f, want 0.125093", got)
	}
	rev, _ := BetaEntropyReduction(BetaParams{2, 2}, BetaParams{1, 1})
	if rev != got {
		t.Errorf("reduction not symmetric: %f vs %f", got, rev)
	}
}

func TestBetaParameterDistanceAndUtility(t *testing.T) {
	p, q := BetaParams{2, 3}, BetaParams{4, 1}
	d, err := BetaParameterDistance(p, q)
	if err != nil {
		t.Fatal(err)
	}
	if d != 4 {
		t.Errorf("BetaParameterDistance(%v, %v) = %g, want 4", p, q, d)
	}
	u, err := BetaBayesFactorUtility(p, q)
	if err != nil {
		t.Fatal(err)
	}
	if !near(u, math.Log(6)) {
		t.Errorf("BetaBayesFactorUtility(%v, %v) = %f, want ln 6", p, q, u)
	}
	if u0, _ := BetaBayesFactorUtility(p, p); !near(u0, math.Ln2) {
		t.Errorf("BetaBayesFactorUtility(P, P) = %f, want ln 2", u0)
	}
}

func TestPureSecondOrderChange(t *testing.T) {
	// Same concentration, different modes.
	if got, _ := PureSecondOrderChange(BetaParams{2, 3}, BetaParams{1, 4}); got != 0 {
		t.Errorf("PureSecondOrderChange with equal concentration = %g, want 0", got)
	}
	if got, _ := PureSecondOrderChange(BetaParams{2, 3}, BetaParams{5, 6}); got != 6 {
		t.Errorf("PureSecondOrderChange = %g, want 6", got)
	}
}

func TestBetaParams_Invalid(t *testing.T) {
	bad := []BetaParams{{0, 1}, {1, -2}, {math.NaN(), 1}, {math.Inf(1), 2}}
	for _, b := range bad {
		if _, err := BetaKL(b, BetaParams{2, 2}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("BetaKL(%v, ...) error = %v, want ErrInvalidInput", b, err)
		}
		if _, err := BetaDifferentialEntropy(b); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("BetaDifferentialEntropy(%v) error = %v, want ErrInvalidInput", b, err)
		}
		if _, err := PureSecondOrderChange(BetaParams{2, 2}, b); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("PureSecondOrderChange(..., %v) error = %v, want ErrInvalidInput", b, err)
		}
	}
}

func TestBetaParams_Dist(t *testing.T) {
	b := BetaParams{Alpha: 3, Beta: 2}
	if got := b.Concentration(); got != 5 {
		t.Errorf("Concentration = %g, want 5", got)
	}
	if got := b.Dist().Mean(); !near(got, 0.6) {
		t.Errorf("Dist().Mean() = %f, want 0.6", got)
	}
}
