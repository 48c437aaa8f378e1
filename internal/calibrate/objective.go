package calibrate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"beliefshift/internal/betafit"
	"beliefshift/internal/metric"
	"beliefshift/internal/trial"
)

// Objective selects how a score vector is reduced to a loss against the
// relevance ratings. Every objective is minimized.
type Objective int

const (
	ObjectivePearson Objective = iota + 1
	ObjectiveMSE
	ObjectiveStd
	ObjectiveCentrality
	ObjectivePearsonReg
)

var objectiveNames = [...]string{
	ObjectivePearson:    "pearson",
	ObjectiveMSE:        "mse",
	ObjectiveStd:        "std",
	ObjectiveCentrality: "centrality",
	ObjectivePearsonReg: "pearson_reg",
}

// pearsonRegWeight is the share of the pearson term in pearson_reg.
const pearsonRegWeight = 0.5

// Objectives lists every objective in report order.
func Objectives() []Objective {
	return []Objective{ObjectivePearson, ObjectiveMSE, ObjectiveStd, ObjectiveCentrality, ObjectivePearsonReg}
}

func (o Objective) String() string {
	if o > 0 && int(o) < len(objectiveNames) {
		return objectiveNames[o]
	}
	return fmt.Sprintf("Objective(%d)", int(o))
}

// ParseObjective resolves an objective by name.
func ParseObjective(s string) (Objective, error) {
	s = strings.TrimSpace(s)
	for _, o := range Objectives() {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown objective %q (want pearson, mse, std, centrality or pearson_reg)", s)
}

func (o Objective) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Objective) UnmarshalText(b []byte) error {
	v, err := ParseObjective(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Loss reduces scores against relevance under obj. Any numerical failure,
// including an undefined correlation, yields +Inf.
func Loss(obj Objective, scores, relevance []float64) float64 {
	if len(scores) == 0 || len(scores) != len(relevance) {
		return math.Inf(1)
	}
	var v float64
	switch obj {
	case ObjectivePearson:
		v = -stat.Correlation(scores, relevance, nil)
	case ObjectiveMSE:
		d := floats.Distance(scores, relevance, 2)
		v = d * d / float64(len(scores))
	case ObjectiveStd:
		_, sd := stat.PopMeanStdDev(scores, nil)
		v = -sd
	case ObjectiveCentrality:
		d := 0.5 - stat.Mean(scores, nil)
		v = d * d
	case ObjectivePearsonReg:
		_, sd := stat.PopMeanStdDev(scores, nil)
		v = pearsonRegWeight*-stat.Correlation(scores, relevance, nil) + (1-pearsonRegWeight)*-sd
	default:
		return math.Inf(1)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.Inf(1)
	}
	return v
}

// Losses records a candidate's loss under every objective.
type Losses struct {
	Pearson    float64 `json:"pearson"`
	MSE        float64 `json:"mse"`
	Std        float64 `json:"std"`
	Centrality float64 `json:"centrality"`
	PearsonReg float64 `json:"pearson_reg"`
}

// InfiniteLosses marks every objective as failed.
func InfiniteLosses() Losses {
	inf := math.Inf(1)
	return Losses{Pearson: inf, MSE: inf, Std: inf, Centrality: inf, PearsonReg: inf}
}

// Get returns the loss under obj.
func (l Losses) Get(obj Objective) float64 {
	switch obj {
	case ObjectivePearson:
		return l.Pearson
	case ObjectiveMSE:
		return l.MSE
	case ObjectiveStd:
		return l.Std
	case ObjectiveCentrality:
		return l.Centrality
	case ObjectivePearsonReg:
		return l.PearsonReg
	}
	return math.Inf(1)
}

func (l *Losses) set(obj Objective, v float64) {
	switch obj {
	case ObjectivePearson:
		l.Pearson = v
	case ObjectiveMSE:
		l.MSE = v
	case ObjectiveStd:
		l.Std = v
	case ObjectiveCentrality:
		l.Centrality = v
	case ObjectivePearsonReg:
		l.PearsonReg = v
	}
}

// AllLosses evaluates scores under every objective.
func AllLosses(scores, relevance []float64) Losses {
	var l Losses
	for _, o := range Objectives() {
		l.set(o, Loss(o, scores, relevance))
	}
	return l
}

var errUnknownFamily = errors.New("calibrate: unknown metric family")

// Scores computes the score of family for every trial under p. Second-order
// families refit each trial's Beta pair from p's link; scores are then
// compressed with p.Compression unless it is NoCompression.
func Scores(trials []trial.Trial, family metric.Family, p Params) ([]float64, error) {
	spec, ok := metric.Lookup(family)
	if !ok {
		return nil, fmt.Errorf("%w: %d", errUnknownFamily, int(family))
	}
	link := p.Link()
	out := make([]float64, len(trials))
	for i, t := range trials {
		var (
			v   float64
			err error
		)
		if spec.Order == metric.FirstOrder {
			v, err = spec.ScoreScalar(t.PriorProbability, t.PosteriorProbability)
		} else {
			pair, ferr := betafit.FitPair(link, t.PriorProbability, t.PriorConfidence, t.PosteriorProbability, t.PosteriorConfidence)
			if ferr != nil {
				return nil, fmt.Errorf("trial %d: %w", i, ferr)
			}
			v, err = spec.ScoreBeta(pair.Prior, pair.Posterior)
		}
		if err != nil {
			return nil, fmt.Errorf("trial %d: score %s: %w", i, spec.Name, err)
		}
		if p.Compresses() {
			if v, err = metric.Compress(v, p.Compression); err != nil {
				return nil, fmt.Errorf("trial %d: compress: %w", i, err)
			}
		}
		out[i] = v
	}
	return out, nil
}

// Evaluate is the loss of family under p on trials. It never fails: a
// candidate that cannot be scored gets +Inf.
func Evaluate(trials []trial.Trial, family metric.Family, p Params, obj Objective) float64 {
	scores, err := Scores(trials, family, p)
	if err != nil {
		return math.Inf(1)
	}
	return Loss(obj, scores, trial.Relevances(trials))
}

// EvaluateAll is Evaluate under every objective, scoring the trials once.
func EvaluateAll(trials []trial.Trial, family metric.Family, p Params) Losses {
	scores, err := Scores(trials, family, p)
	if err != nil {
		return InfiniteLosses()
	}
	return AllLosses(scores, trial.Relevances(trials))
}

// EvaluateJoint averages Evaluate over families under one shared vector and
// also returns the per-family losses in order.
func EvaluateJoint(trials []trial.Trial, families []metric.Family, p Params, obj Objective) (float64, []float64) {
	per := make([]float64, len(families))
	if len(families) == 0 {
		return math.Inf(1), per
	}
	var sum float64
	for i, f := range families {
		per[i] = Evaluate(trials, f, p, obj)
		sum += per[i]
	}
	return sum / float64(len(families)), per
}

// EvaluateJointAll averages EvaluateAll over families, objective by objective.
func EvaluateJointAll(trials []trial.Trial, families []metric.Family, p Params) Losses {
	if len(families) == 0 {
		return InfiniteLosses()
	}
	var sum Losses
	for _, f := range families {
		l := EvaluateAll(trials, f, p)
		for _, o := range Objectives() {
			sum.set(o, sum.Get(o)+l.Get(o))
		}
	}
	n := float64(len(families))
	for _, o := range Objectives() {
		sum.set(o, sum.Get(o)/n)
	}
	return sum
}
