package calibrate

import (
	"math"
	"testing"

	"beliefshift/internal/metric"
	"beliefshift/internal/trial"
)

const tol = 1e-9

func TestLoss_Formulas(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3}
	rel := []float64{0.1, 0.2, 0.3}
	sd := math.Sqrt(0.02 / 3)
	tests := []struct {
		obj  Objective
		want float64
	}{
		{ObjectivePearson, -1},
		{ObjectiveMSE, 0},
		{ObjectiveStd, -sd},
		{ObjectiveCentrality, 0.09},
		{ObjectivePearsonReg, 0.5*-1 + 0.5*-sd},
	}
	for _, tt := range tests {
		t.Run(tt.obj.String(), func(t *testing.T) {
			if got := Loss(tt.obj, scores, rel); math.Abs(got-tt.want) > tol {
				t.Errorf("Loss(%s) = %g, want %g", tt.obj, got, tt.want)
			}
		})
	}
}

func TestLoss_MSE(t *testing.T) {
	tests := []struct {
		name      string
		scores    []float64
		relevance []float64
		want      float64
	}{
		{"symmetric", []float64{0, 1}, []float64{0.5, 0.5}, 0.25},
		{"uneven", []float64{0.2, 0.4, 0.9}, []float64{0.1, 0.5, 0.6}, 0.11 / 3},
		{"single", []float64{0.3}, []float64{1}, 0.49},
		{"nan score", []float64{math.NaN(), 0.5}, []float64{0.5, 0.5}, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Loss(ObjectiveMSE, tt.scores, tt.relevance)
			if math.IsInf(tt.want, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("MSE = %g, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > tol {
				t.Errorf("MSE = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestLoss_FailuresAreInfinite(t *testing.T) {
	constant := []float64{0.4, 0.4, 0.4}
	rel := []float64{0.1, 0.5, 0.9}
	tests := []struct {
		name      string
		obj       Objective
		scores    []float64
		relevance []float64
	}{
		{"constant scores pearson", ObjectivePearson, constant, rel},
		{"constant scores pearson_reg", ObjectivePearsonReg, constant, rel},
		{"length mismatch", ObjectiveMSE, constant, rel[:2]},
		{"empty", ObjectiveStd, nil, nil},
		{"nan score", ObjectiveCentrality, []float64{math.NaN(), 1, 2}, rel},
		{"unknown objective", Objective(42), constant, rel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Loss(tt.obj, tt.scores, tt.relevance); !math.IsInf(got, 1) {
				t.Errorf("Loss = %g, want +Inf", got)
			}
		})
	}
	// Dispersion of a constant vector is defined.
	if got := Loss(ObjectiveStd, constant, rel); got != 0 {
		t.Errorf("std of constant scores = %g, want 0", got)
	}
}

func TestParseObjective(t *testing.T) {
	for _, o := range Objectives() {
		got, err := ParseObjective(o.String())
		if err != nil || got != o {
			t.Errorf("ParseObjective(%q) = %v, %v", o, got, err)
		}
	}
	if _, err := ParseObjective("r2"); err == nil {
		t.Error("ParseObjective(r2) succeeded")
	}
}

func TestEvaluate_InvalidLinkIsInfinite(t *testing.T) {
	train := syntheticTrials(20)
	// Concentration 1 everywhere: no valid Beta fit.
	p := Params{Scale: 1, Growth: 1, Compression: 2}
	if got := Evaluate(train, metric.FamilyBetaKL, p, ObjectivePearson); !math.IsInf(got, 1) {
		t.Errorf("Evaluate with invalid link = %g, want +Inf", got)
	}
	l := EvaluateAll(train, metric.FamilyBetaKL, p)
	if !math.IsInf(l.MSE, 1) || !math.IsInf(l.Std, 1) {
		t.Errorf("EvaluateAll with invalid link = %+v, want all +Inf", l)
	}
}

func TestEvaluate_FirstOrderIgnoresLink(t *testing.T) {
	train := syntheticTrials(20)
	a := Evaluate(train, metric.FamilyEntropyChange, Params{Scale: 3, Growth: 2, Compression: 2}, ObjectivePearson)
	b := Evaluate(train, metric.FamilyEntropyChange, Params{Scale: 50, Growth: 1.1, Compression: 2}, ObjectivePearson)
	if a != b {
		t.Errorf("first-order loss depends on link: %g vs %g", a, b)
	}
	if math.IsInf(a, 0) {
		t.Errorf("first-order loss = %g, want finite", a)
	}
}

func TestScores_Compression(t *testing.T) {
	train := syntheticTrials(5)
	raw, err := Scores(train, metric.FamilyBeliefChange, Params{Compression: NoCompression})
	if err != nil {
		t.Fatal(err)
	}
	comp, err := Scores(train, metric.FamilyBeliefChange, Params{Compression: 10})
	if err != nil {
		t.Fatal(err)
	}
	for i := range raw {
		if want := 1 - math.Pow(10, -raw[i]); math.Abs(comp[i]-want) > tol {
			t.Errorf("trial %d: compressed %g, want %g", i, comp[i], want)
		}
	}
	if _, err := Scores(train, metric.Family(99), DefaultParams()); err == nil {
		t.Error("Scores with unknown family succeeded")
	}
}

func TestEvaluateJoint_AveragesFamilies(t *testing.T) {
	train := syntheticTrials(30)
	fams := DefaultFamilies(true)
	p := DefaultParams()
	avg, per := EvaluateJoint(train, fams, p, ObjectivePearson)
	if len(per) != len(fams) {
		t.Fatalf("per-family losses = %d, want %d", len(per), len(fams))
	}
	var sum float64
	for i, f := range fams {
		if want := Evaluate(train, f, p, ObjectivePearson); per[i] != want {
			t.Errorf("%s: joint per-family %g, separate %g", f, per[i], want)
		}
		sum += per[i]
	}
	if math.Abs(avg-sum/float64(len(fams))) > tol {
		t.Errorf("avg = %g, want %g", avg, sum/float64(len(fams)))
	}
	if got, _ := EvaluateJoint(train, nil, p, ObjectivePearson); !math.IsInf(got, 1) {
		t.Errorf("joint loss over no families = %g, want +Inf", got)
	}
	all := EvaluateJointAll(train, fams, p)
	if math.Abs(all.Pearson-avg) > tol {
		t.Errorf("EvaluateJointAll pearson = %g, want %g", all.Pearson, avg)
	}
}

// syntheticTrials builds a deterministic labeled dataset in which relevance
// grows with the size of the belief update.
func syntheticTrials(n int) []trial.Trial {
	out := make([]trial.Trial, n)
	for i := range out {
		frac := math.Mod(float64(i)*0.618034, 1)
		prior := 0.2 + 0.6*frac
		shift := 0.35 * math.Sin(float64(i)*1.3)
		post := math.Min(math.Max(prior+shift, 0.02), 0.98)
		rel := math.Min(1, 1.6*math.Abs(post-prior)+0.05*float64(i%3))
		out[i] = trial.Trial{
			PriorProbability:     prior,
			PosteriorProbability: post,
			PriorConfidence:      float64(i % 5),
			PosteriorConfidence:  float64((i + 2) % 6),
			Relevance:            rel,
			HasRelevance:         true,
		}
	}
	return out
}
