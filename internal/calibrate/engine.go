package calibrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"beliefshift/internal/logging"
	"beliefshift/internal/metric"
	"beliefshift/internal/trial"
)

var ErrNoTrainingData = errors.New("calibrate: no training trials")

// Observer receives fits and grid points as they are produced.
// ObserveGridPoint is called from grid workers concurrently.
type Observer interface {
	ObserveFit(f Fit)
	ObserveGridPoint(p GridPoint)
}

// Fit is one fitted vector with its training losses.
type Fit struct {
	// Family is zero for the aggregate row of a joint fit.
	Family      metric.Family `json:"family,omitempty"`
	Regime      Regime        `json:"regime"`
	Params      Params        `json:"params"`
	Loss        float64       `json:"loss"`
	Losses      Losses        `json:"losses"`
	Evaluations int           `json:"evaluations"`
	Status      string        `json:"status,omitempty"`
}

// Name is the row label: the family name, "<family>_joint" for a family
// under the joint vector, or "joint" for the aggregate.
func (f Fit) Name() string {
	if f.Family == 0 {
		return "joint"
	}
	if f.Regime == RegimeJoint {
		return f.Family.String() + "_joint"
	}
	return f.Family.String()
}

// Aggregate reports whether f is the joint aggregate row.
func (f Fit) Aggregate() bool { return f.Family == 0 }

// Report is the outcome of a calibration run.
type Report struct {
	Mode      Mode            `json:"mode"`
	Objective Objective       `json:"objective"`
	Families  []metric.Family `json:"families"`
	Trials    int             `json:"trials"`
	Fits      []Fit           `json:"fits"`
	Elapsed   time.Duration   `json:"elapsed"`
}

// ParamSet freezes the fitted vectors for metric application.
func (r *Report) ParamSet() ParamSet {
	s := NewParamSet()
	for _, f := range r.Fits {
		switch {
		case f.Aggregate():
			p := f.Params
			s.Joint = &p
		case f.Regime == RegimeSeparate:
			s.Separate[f.Family] = f.Params
		}
	}
	return s
}

// Engine runs calibrations for one Config.
type Engine struct {
	cfg Config
	log *slog.Logger
	obs Observer
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option { return func(e *Engine) { e.obs = o } }

// NewEngine validates cfg and returns an engine for it.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, log: logging.New("calibrate")}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) checkTraining(train []trial.Trial) error {
	if len(train) == 0 {
		return ErrNoTrainingData
	}
	if err := trial.RequireRelevance(train); err != nil {
		return fmt.Errorf("check training: %w", err)
	}
	return nil
}

// Calibrate fits the configured regimes on train. Grid mode is served by
// Grid.
func (e *Engine) Calibrate(ctx context.Context, train []trial.Trial) (*Report, error) {
	if e.cfg.Mode == ModeGrid {
		return nil, fmt.Errorf("%w: grid mode produces a surface, use Grid", ErrInvalidConfig)
	}
	if err := e.checkTraining(train); err != nil {
		return nil, err
	}
	start := time.Now()
	families := e.cfg.SelectedFamilies()
	rep := &Report{
		Mode:      e.cfg.Mode,
		Objective: e.cfg.Objective,
		Families:  families,
		Trials:    len(train),
	}

	e.log.Info("calibration started", "mode", e.cfg.Mode.String(), "objective", e.cfg.Objective.String(),
		"families", len(families), "trials", len(train))

	if e.cfg.Mode.Separate() {
		for _, f := range families {
			fit, err := e.fitSeparate(ctx, train, f)
			if err != nil {
				return nil, err
			}
			rep.Fits = append(rep.Fits, fit)
		}
	}
	if e.cfg.Mode.Joint() {
		fits, err := e.fitJoint(ctx, train, families)
		if err != nil {
			return nil, err
		}
		rep.Fits = append(rep.Fits, fits...)
	}

	rep.Elapsed = time.Since(start)
	e.log.Info("calibration finished", "fits", len(rep.Fits), "elapsed", rep.Elapsed)
	return rep, nil
}

func (e *Engine) fitSeparate(ctx context.Context, train []trial.Trial, f metric.Family) (Fit, error) {
	x0, lower, upper := e.cfg.searchSpace(f.Order() == metric.FirstOrder)
	obj := e.cfg.Objective
	res, err := e.cfg.Optimizer.Minimize(ctx, func(x []float64) float64 {
		return Evaluate(train, f, paramsFrom(x), obj)
	}, x0, lower, upper)
	if err != nil {
		return Fit{}, fmt.Errorf("fit %s: %w", f, err)
	}
	p := paramsFrom(res.X)
	fit := Fit{
		Family:      f,
		Regime:      RegimeSeparate,
		Params:      p,
		Loss:        res.Loss,
		Losses:      EvaluateAll(train, f, p),
		Evaluations: res.Evaluations,
		Status:      res.Status,
	}
	e.record(fit)
	return fit, nil
}

func (e *Engine) fitJoint(ctx context.Context, train []trial.Trial, families []metric.Family) ([]Fit, error) {
	x0, lower, upper := e.cfg.searchSpace(false)
	obj := e.cfg.Objective
	res, err := e.cfg.Optimizer.Minimize(ctx, func(x []float64) float64 {
		avg, _ := EvaluateJoint(train, families, paramsFrom(x), obj)
		return avg
	}, x0, lower, upper)
	if err != nil {
		return nil, fmt.Errorf("fit joint: %w", err)
	}
	p := paramsFrom(res.X)
	agg := Fit{
		Regime:      RegimeJoint,
		Params:      p,
		Loss:        res.Loss,
		Losses:      EvaluateJointAll(train, families, p),
		Evaluations: res.Evaluations,
		Status:      res.Status,
	}
	e.record(agg)

	fits := make([]Fit, 0, len(families)+1)
	for _, f := range families {
		l := EvaluateAll(train, f, p)
		fits = append(fits, Fit{
			Family: f,
			Regime: RegimeJoint,
			Params: p,
			Loss:   l.Get(obj),
			Losses: l,
		})
	}
	return append(fits, agg), nil
}

func (e *Engine) record(f Fit) {
	e.log.Info("fitted",
		"name", f.Name(),
		"regime", f.Regime.String(),
		"link", f.Params.Link().String(),
		"compression", f.Params.Compression,
		"loss", f.Loss,
		"evaluations", f.Evaluations,
		"status", f.Status,
	)
	if e.obs != nil {
		e.obs.ObserveFit(f)
	}
}
