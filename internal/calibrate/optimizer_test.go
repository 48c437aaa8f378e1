package calibrate

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestTransform_RoundTrip(t *testing.T) {
	inf := math.Inf(1)
	lower := []float64{2, math.Inf(-1), 0, math.Inf(-1), 5}
	upper := []float64{inf, 10, 1, inf, 5}
	tr, err := newTransform(lower, upper)
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.free) != 4 {
		t.Fatalf("free dimensions = %d, want 4 (pinned one dropped)", len(tr.free))
	}
	x := []float64{3.5, 7, 0.25, -12, 5}
	back := tr.fromSearch(tr.toSearch(x))
	for i := range x {
		if math.Abs(back[i]-x[i]) > 1e-9 {
			t.Errorf("dimension %d: round trip %g -> %g", i, x[i], back[i])
		}
	}
	// Any search vector lands inside the box.
	for _, u := range [][]float64{{-100, 100, 37, 5}, {0, 0, 0, 0}, {1e3, -1e3, -2, 9}} {
		x := tr.fromSearch(u)
		for i := range x {
			if x[i] < lower[i] || x[i] > upper[i] {
				t.Errorf("fromSearch(%v)[%d] = %g outside [%g, %g]", u, i, x[i], lower[i], upper[i])
			}
		}
	}
}

func TestTransform_InvalidBounds(t *testing.T) {
	if _, err := newTransform([]float64{2}, []float64{1}); err == nil {
		t.Error("lower > upper accepted")
	}
	if _, err := newTransform([]float64{math.NaN()}, []float64{1}); err == nil {
		t.Error("NaN bound accepted")
	}
	if _, err := newTransform([]float64{1, 2}, []float64{3}); err == nil {
		t.Error("length mismatch accepted")
	}
}

func quadratic(center []float64) func([]float64) float64 {
	return func(x []float64) float64 {
		var s float64
		for i := range x {
			d := x[i] - center[i]
			s += d * d
		}
		return s
	}
}

func TestMinimize_InteriorOptimum(t *testing.T) {
	for _, m := range []Method{MethodNelderMead, MethodBFGS} {
		t.Run(m.String(), func(t *testing.T) {
			o := DefaultOptimizer()
			o.Method = m
			res, err := o.Minimize(context.Background(), quadratic([]float64{3, 0.5}),
				[]float64{2, 0.2}, []float64{1, 0}, []float64{math.Inf(1), 1})
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(res.X[0]-3) > 1e-3 || math.Abs(res.X[1]-0.5) > 1e-3 {
				t.Errorf("minimum at %v, want near (3, 0.5); status %s", res.X, res.Status)
			}
			if res.Evaluations == 0 {
				t.Error("no evaluations reported")
			}
		})
	}
}

func TestMinimize_OptimumOnBound(t *testing.T) {
	res, err := DefaultOptimizer().Minimize(context.Background(), quadratic([]float64{0}),
		[]float64{4}, []float64{1}, []float64{math.Inf(1)})
	if err != nil {
		t.Fatal(err)
	}
	if res.X[0] < 1 || res.X[0] > 1.001 {
		t.Errorf("minimum at %g, want just above the bound 1", res.X[0])
	}
}

func TestMinimize_PinnedDimensionsStay(t *testing.T) {
	res, err := DefaultOptimizer().Minimize(context.Background(), quadratic([]float64{0, 0, 7}),
		[]float64{2, 2, 1}, []float64{2, 2, 1}, []float64{2, 2, math.Inf(1)})
	if err != nil {
		t.Fatal(err)
	}
	if res.X[0] != 2 || res.X[1] != 2 {
		t.Errorf("pinned dimensions moved: %v", res.X)
	}
	if math.Abs(res.X[2]-7) > 1e-3 {
		t.Errorf("free dimension at %g, want 7", res.X[2])
	}
}

func TestMinimize_AllPinned(t *testing.T) {
	res, err := DefaultOptimizer().Minimize(context.Background(), quadratic([]float64{0}),
		[]float64{5}, []float64{2}, []float64{2})
	if err != nil {
		t.Fatal(err)
	}
	if res.X[0] != 2 || res.Loss != 4 || res.Evaluations != 1 {
		t.Errorf("all-pinned result = %+v, want X=[2] Loss=4 after one evaluation", res)
	}
}

func TestMinimize_NeverWorseThanStart(t *testing.T) {
	start := []float64{3, 3}
	// Only the start point is finite.
	f := func(x []float64) float64 {
		if x[0] == start[0] && x[1] == start[1] {
			return 1
		}
		return math.Inf(1)
	}
	res, err := DefaultOptimizer().Minimize(context.Background(), f, start,
		[]float64{1, 1}, []float64{math.Inf(1), math.Inf(1)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Loss != 1 || res.X[0] != 3 || res.X[1] != 3 {
		t.Errorf("result %+v, want the start point with loss 1", res)
	}
}

func TestMinimize_StartClampedIntoBox(t *testing.T) {
	res, err := DefaultOptimizer().Minimize(context.Background(), quadratic([]float64{5}),
		[]float64{-3}, []float64{1}, []float64{math.Inf(1)})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.X[0]-5) > 1e-3 {
		t.Errorf("minimum at %g, want 5", res.X[0])
	}
}

func TestMinimize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DefaultOptimizer().Minimize(ctx, quadratic([]float64{3}),
		[]float64{2}, []float64{1}, []float64{math.Inf(1)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestMinimize_Deterministic(t *testing.T) {
	f := quadratic([]float64{2.5, 1.5, 4})
	x0, lo, hi := []float64{3, 2, 2}, []float64{2, 1, 1}, []float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	a, err := DefaultOptimizer().Minimize(context.Background(), f, x0, lo, hi)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := DefaultOptimizer().Minimize(context.Background(), f, x0, lo, hi)
	for i := range a.X {
		if a.X[i] != b.X[i] {
			t.Fatalf("runs differ: %v vs %v", a.X, b.X)
		}
	}
}

func TestParseMethod(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Method
	}{{"nelder-mead", MethodNelderMead}, {"NM", MethodNelderMead}, {"bfgs", MethodBFGS}} {
		got, err := ParseMethod(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseMethod(%q) = %v, %v", tc.in, got, err)
		}
	}
	if _, err := ParseMethod("slsqp"); err == nil {
		t.Error("ParseMethod(slsqp) succeeded")
	}
}
