package calibrate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"beliefshift/internal/metric"
	"beliefshift/internal/trial"
)

// Axis kinds.
const (
	AxisLinear = "linear"
	AxisLog    = "log"
	AxisValues = "values"
)

// AxisSpec describes the candidate values of one parameter.
type AxisSpec struct {
	Kind   string    `json:"kind" yaml:"kind"`
	Start  float64   `json:"start,omitempty" yaml:"start,omitempty"`
	Stop   float64   `json:"stop,omitempty" yaml:"stop,omitempty"`
	Count  int       `json:"count,omitempty" yaml:"count,omitempty"`
	Values []float64 `json:"values,omitempty" yaml:"values,omitempty"`
}

// Values builds an explicit axis.
func Values(v ...float64) AxisSpec { return AxisSpec{Kind: AxisValues, Values: v} }

// Linear builds an evenly spaced axis over [start, stop].
func Linear(start, stop float64, n int) AxisSpec {
	return AxisSpec{Kind: AxisLinear, Start: start, Stop: stop, Count: n}
}

// Log builds a logarithmically spaced axis over [start, stop].
func Log(start, stop float64, n int) AxisSpec {
	return AxisSpec{Kind: AxisLog, Start: start, Stop: stop, Count: n}
}

// ParseAxis reads the command-line form of an axis:
//
//	linear:START:STOP:N
//	log:START:STOP:N
//	values:V1,V2,...   or a bare V1,V2,...
func ParseAxis(s string) (AxisSpec, error) {
	kind, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		kind, rest = AxisValues, s
	}
	switch kind {
	case AxisValues:
		var vals []float64
		for _, f := range strings.Split(rest, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return AxisSpec{}, fmt.Errorf("parse axis %q: %w", s, err)
			}
			vals = append(vals, v)
		}
		return Values(vals...), nil
	case AxisLinear, AxisLog:
		parts := strings.Split(rest, ":")
		if len(parts) != 3 {
			return AxisSpec{}, fmt.Errorf("parse axis %q: want %s:START:STOP:N", s, kind)
		}
		start, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return AxisSpec{}, fmt.Errorf("parse axis %q: %w", s, err)
		}
		stop, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return AxisSpec{}, fmt.Errorf("parse axis %q: %w", s, err)
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return AxisSpec{}, fmt.Errorf("parse axis %q: %w", s, err)
		}
		return AxisSpec{Kind: kind, Start: start, Stop: stop, Count: n}, nil
	}
	return AxisSpec{}, fmt.Errorf("parse axis %q: unknown kind %q", s, kind)
}

// Points expands the axis into its candidate values.
func (a AxisSpec) Points() ([]float64, error) {
	switch a.Kind {
	case AxisValues:
		if len(a.Values) == 0 {
			return nil, fmt.Errorf("axis: no values")
		}
		return append([]float64(nil), a.Values...), nil
	case AxisLinear, AxisLog:
		if a.Count < 1 {
			return nil, fmt.Errorf("axis %s: count must be >= 1, got %d", a.Kind, a.Count)
		}
		if a.Kind == AxisLog && (a.Start <= 0 || a.Stop <= 0) {
			return nil, fmt.Errorf("axis log: endpoints must be positive, got %g..%g", a.Start, a.Stop)
		}
		if a.Count == 1 {
			return []float64{a.Start}, nil
		}
		dst := make([]float64, a.Count)
		if a.Kind == AxisLog {
			return floats.LogSpan(dst, a.Start, a.Stop), nil
		}
		return floats.Span(dst, a.Start, a.Stop), nil
	}
	return nil, fmt.Errorf("axis: unknown kind %q", a.Kind)
}

func (a AxisSpec) String() string {
	switch a.Kind {
	case AxisValues:
		parts := make([]string, len(a.Values))
		for i, v := range a.Values {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return AxisValues + ":" + strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%s:%g:%g:%d", a.Kind, a.Start, a.Stop, a.Count)
	}
}

// GridSpec is the Cartesian product searched in grid mode.
type GridSpec struct {
	Scale       AxisSpec `json:"scale" yaml:"scale"`
	Growth      AxisSpec `json:"growth" yaml:"growth"`
	Compression AxisSpec `json:"compression" yaml:"compression"`
}

// DefaultGrid spans the region the local search usually lands in, with the
// compression exponent on a 1.1^k ladder.
func DefaultGrid() GridSpec {
	return GridSpec{
		Scale:       Linear(2.01, 5, 12),
		Growth:      Linear(1.01, 5, 12),
		Compression: Log(1.1, math.Pow(1.1, 100), 20),
	}
}

type gridAxes struct {
	scale, growth, compression []float64
}

func (g GridSpec) shape(compress bool) (gridAxes, error) {
	var (
		ax  gridAxes
		err error
	)
	if ax.scale, err = g.Scale.Points(); err != nil {
		return ax, fmt.Errorf("grid scale: %w", err)
	}
	if ax.growth, err = g.Growth.Points(); err != nil {
		return ax, fmt.Errorf("grid growth: %w", err)
	}
	if !compress {
		ax.compression = []float64{NoCompression}
		return ax, nil
	}
	if ax.compression, err = g.Compression.Points(); err != nil {
		return ax, fmt.Errorf("grid compression: %w", err)
	}
	return ax, nil
}

func (ax gridAxes) size() int { return len(ax.scale) * len(ax.growth) * len(ax.compression) }

// at decodes a flat index in scale-major order.
func (ax gridAxes) at(i int) Params {
	nc, ng := len(ax.compression), len(ax.growth)
	return Params{
		Scale:       ax.scale[i/(ng*nc)],
		Growth:      ax.growth[(i/nc)%ng],
		Compression: ax.compression[i%nc],
	}
}

// GridPoint is the joint loss of one grid vector.
type GridPoint struct {
	Index  int       `json:"index"`
	Params Params    `json:"params"`
	Loss   float64   `json:"loss"`
	Losses []float64 `json:"losses"`
}

// GridReport holds the full loss surface in grid order.
type GridReport struct {
	Objective   Objective       `json:"objective"`
	Families    []metric.Family `json:"families"`
	Shape       [3]int          `json:"shape"`
	Points      []GridPoint     `json:"points"`
	Evaluations int             `json:"evaluations"`
	Trials      int             `json:"trials"`
	Elapsed     time.Duration   `json:"elapsed"`
}

// Best returns the point with the lowest finite loss.
func (g *GridReport) Best() (GridPoint, bool) {
	best, ok := GridPoint{Loss: math.Inf(1)}, false
	for _, p := range g.Points {
		if p.Loss < best.Loss {
			best, ok = p, true
		}
	}
	return best, ok
}

// Ranked returns the points ordered by ascending loss, grid order breaking ties.
func (g *GridReport) Ranked() []GridPoint {
	out := append([]GridPoint(nil), g.Points...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Loss < out[j].Loss })
	return out
}

// Grid evaluates the joint loss at every point of the configured grid
// exactly once. Points run on a bounded worker pool and are reported in
// grid order.
func (e *Engine) Grid(ctx context.Context, train []trial.Trial) (*GridReport, error) {
	if err := e.checkTraining(train); err != nil {
		return nil, err
	}
	ax, err := e.cfg.Grid.shape(e.cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	start := time.Now()
	families := e.cfg.SelectedFamilies()
	obj := e.cfg.Objective
	n := ax.size()
	points := make([]GridPoint, n)

	e.log.Info("grid search", "points", n, "families", len(families), "objective", obj.String(), "workers", e.cfg.workers())

	var evals atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.workers())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := ax.at(i)
			loss, per := EvaluateJoint(train, families, p, obj)
			evals.Add(1)
			points[i] = GridPoint{Index: i, Params: p, Loss: loss, Losses: per}
			if e.obs != nil {
				e.obs.ObserveGridPoint(points[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}

	rep := &GridReport{
		Objective:   obj,
		Families:    families,
		Shape:       [3]int{len(ax.scale), len(ax.growth), len(ax.compression)},
		Points:      points,
		Evaluations: int(evals.Load()),
		Trials:      len(train),
		Elapsed:     time.Since(start),
	}
	if best, ok := rep.Best(); ok {
		e.log.Info("grid best", "params", best.Params.String(), "loss", best.Loss)
	} else {
		e.log.Warn("grid search found no finite loss")
	}
	return rep, nil
}
