package calibrate

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// Method selects the local search algorithm.
type Method int

const (
	MethodNelderMead Method = iota + 1
	MethodBFGS
)

func (m Method) String() string {
	switch m {
	case MethodNelderMead:
		return "nelder-mead"
	case MethodBFGS:
		return "bfgs"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod resolves "nelder-mead" or "bfgs".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nelder-mead", "neldermead", "nm":
		return MethodNelderMead, nil
	case "bfgs":
		return MethodBFGS, nil
	}
	return 0, fmt.Errorf("unknown optimizer method %q (want nelder-mead or bfgs)", s)
}

func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Method) UnmarshalText(b []byte) error {
	v, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// penalty stands in for non-finite losses inside the search so the simplex
// and line searches stay numeric.
const penalty = 1e10

// Optimizer is a bounded local minimizer over gonum/optimize.
type Optimizer struct {
	Method         Method  `json:"method" yaml:"method"`
	MaxEvaluations int     `json:"max_evaluations" yaml:"max_evaluations"`
	Tolerance      float64 `json:"tolerance" yaml:"tolerance"`
}

// DefaultOptimizer is Nelder-Mead with a generous evaluation budget.
func DefaultOptimizer() Optimizer {
	return Optimizer{Method: MethodNelderMead, MaxEvaluations: 2000, Tolerance: 1e-8}
}

// Result is the outcome of one minimization.
type Result struct {
	X           []float64
	Loss        float64
	Evaluations int
	Status      string
}

// Minimize searches for the minimum of f inside the box [lower, upper]
// starting from x0 (clamped into the box). Dimensions with lower == upper
// are held fixed. The returned point is never worse than the start, and the
// search is deterministic for a fixed start.
func (o Optimizer) Minimize(ctx context.Context, f func(x []float64) float64, x0, lower, upper []float64) (Result, error) {
	tr, err := newTransform(lower, upper)
	if err != nil {
		return Result{}, err
	}
	if len(x0) != len(lower) {
		return Result{}, fmt.Errorf("minimize: start has %d dimensions, bounds have %d", len(x0), len(lower))
	}

	evals := 0
	eval := func(x []float64) float64 {
		evals++
		return f(x)
	}

	start := tr.clamp(x0)
	best := Result{X: start, Loss: eval(start), Status: "initial"}
	if len(tr.free) == 0 {
		best.Evaluations = evals
		return best, ctx.Err()
	}

	search := func(u []float64) float64 {
		v := eval(tr.fromSearch(u))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return penalty
		}
		return v
	}

	problem := optimize.Problem{Func: search}
	var method optimize.Method
	switch o.Method {
	case MethodBFGS:
		problem.Grad = func(grad, u []float64) {
			fd.Gradient(grad, search, u, nil)
		}
		method = &optimize.BFGS{}
	default:
		method = &optimize.NelderMead{SimplexSize: 0.25}
	}

	tol := o.Tolerance
	if tol <= 0 {
		tol = DefaultOptimizer().Tolerance
	}
	settings := &optimize.Settings{
		FuncEvaluations: o.MaxEvaluations,
		Converger: &ctxConverger{
			ctx:  ctx,
			next: &optimize.FunctionConverge{Absolute: tol, Iterations: 50},
		},
	}

	res, merr := optimize.Minimize(problem, tr.toSearch(start), settings, method)
	if cerr := ctx.Err(); cerr != nil {
		return Result{}, cerr
	}
	status := "failed"
	if res != nil {
		status = res.Status.String()
		x := tr.fromSearch(res.X)
		if loss := eval(x); loss < best.Loss {
			best = Result{X: x, Loss: loss}
		}
	}
	if merr != nil {
		status += ": " + merr.Error()
	}
	best.Status = status
	best.Evaluations = evals
	return best, nil
}

// ctxConverger stops the search once ctx is done.
type ctxConverger struct {
	ctx  context.Context
	next optimize.Converger
}

func (c *ctxConverger) Init(dim int) { c.next.Init(dim) }

func (c *ctxConverger) Converged(loc *optimize.Location) optimize.Status {
	if c.ctx.Err() != nil {
		return optimize.RuntimeLimit
	}
	return c.next.Converged(loc)
}

type boundKind int

const (
	unbounded boundKind = iota
	lowerOnly
	upperOnly
	boxed
	pinned
)

// transform maps an unconstrained search vector onto the box:
//
//	lower only:  x = lb + u²
//	upper only:  x = ub - u²
//	both:        x = lb + (ub-lb)(1+sin u)/2
//
// Pinned dimensions are dropped from the search vector.
type transform struct {
	lower, upper []float64
	kinds        []boundKind
	free         []int
}

func newTransform(lower, upper []float64) (transform, error) {
	if len(lower) != len(upper) {
		return transform{}, fmt.Errorf("minimize: %d lower bounds, %d upper bounds", len(lower), len(upper))
	}
	t := transform{lower: lower, upper: upper, kinds: make([]boundKind, len(lower))}
	for i := range lower {
		lb, ub := lower[i], upper[i]
		if math.IsNaN(lb) || math.IsNaN(ub) || lb > ub || math.IsInf(lb, 1) || math.IsInf(ub, -1) {
			return transform{}, fmt.Errorf("minimize: invalid bounds [%g, %g] for dimension %d", lb, ub, i)
		}
		hasLo, hasHi := !math.IsInf(lb, -1), !math.IsInf(ub, 1)
		switch {
		case lb == ub:
			t.kinds[i] = pinned
		case hasLo && hasHi:
			t.kinds[i] = boxed
		case hasLo:
			t.kinds[i] = lowerOnly
		case hasHi:
			t.kinds[i] = upperOnly
		default:
			t.kinds[i] = unbounded
		}
		if t.kinds[i] != pinned {
			t.free = append(t.free, i)
		}
	}
	return t, nil
}

func (t transform) clamp(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Min(math.Max(v, t.lower[i]), t.upper[i])
	}
	return out
}

// toSearch inverts fromSearch for a point inside the box.
func (t transform) toSearch(x []float64) []float64 {
	u := make([]float64, len(t.free))
	for j, i := range t.free {
		lb, ub := t.lower[i], t.upper[i]
		switch t.kinds[i] {
		case lowerOnly:
			u[j] = math.Sqrt(x[i] - lb)
		case upperOnly:
			u[j] = math.Sqrt(ub - x[i])
		case boxed:
			u[j] = math.Asin(2*(x[i]-lb)/(ub-lb) - 1)
		default:
			u[j] = x[i]
		}
	}
	return u
}

func (t transform) fromSearch(u []float64) []float64 {
	x := make([]float64, len(t.lower))
	for i, k := range t.kinds {
		if k == pinned {
			x[i] = t.lower[i]
		}
	}
	for j, i := range t.free {
		lb, ub := t.lower[i], t.upper[i]
		switch t.kinds[i] {
		case lowerOnly:
			x[i] = lb + u[j]*u[j]
		case upperOnly:
			x[i] = ub - u[j]*u[j]
		case boxed:
			x[i] = lb + (ub-lb)*(1+math.Sin(u[j]))/2
		default:
			x[i] = u[j]
		}
	}
	return x
}
