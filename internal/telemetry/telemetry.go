// Package telemetry exports calibration progress as Prometheus metrics. A
// batch run writes them to a node_exporter textfile when it finishes.
package telemetry

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"beliefshift/internal/calibrate"
)

const namespace = "beliefshift"

// Recorder implements calibrate.Observer on a private registry.
type Recorder struct {
	reg *prometheus.Registry

	mu   sync.Mutex
	best float64

	fitLoss        *prometheus.GaugeVec
	fitParam       *prometheus.GaugeVec
	fitEvaluations *prometheus.CounterVec
	gridPoints     prometheus.Counter
	gridInfinite   prometheus.Counter
	gridLoss       prometheus.Histogram
	gridBest       prometheus.Gauge
	runDuration    *prometheus.GaugeVec
	lastRun        prometheus.Gauge
}

var _ calibrate.Observer = (*Recorder)(nil)

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		fitLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "fit", Name: "loss",
			Help: "Training loss of the fitted vector under the run objective.",
		}, []string{"fit", "regime"}),
		fitParam: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "fit", Name: "param",
			Help: "Fitted linking and compression parameters.",
		}, []string{"fit", "regime", "param"}),
		fitEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fit", Name: "evaluations_total",
			Help: "Objective evaluations spent by the optimizer.",
		}, []string{"fit", "regime"}),
		gridPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "grid", Name: "points_total",
			Help: "Grid points evaluated.",
		}),
		gridInfinite: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "grid", Name: "infinite_points_total",
			Help: "Grid points whose loss was not finite.",
		}),
		gridLoss: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "grid", Name: "loss",
			Help:    "Distribution of finite grid losses.",
			Buckets: prometheus.LinearBuckets(-1, 0.1, 21),
		}),
		gridBest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "grid", Name: "best_loss",
			Help: "Lowest finite grid loss seen so far.",
		}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "run", Name: "duration_seconds",
			Help: "Wall time of the last run of each kind.",
		}, []string{"kind"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "run", Name: "last_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
	r.best = math.Inf(1)
	r.gridBest.Set(r.best)
	r.reg.MustRegister(r.fitLoss, r.fitParam, r.fitEvaluations,
		r.gridPoints, r.gridInfinite, r.gridLoss, r.gridBest, r.runDuration, r.lastRun)
	return r
}

// Registry exposes the registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// ObserveFit records one fitted vector.
func (r *Recorder) ObserveFit(f calibrate.Fit) {
	name, regime := f.Name(), f.Regime.String()
	r.fitLoss.WithLabelValues(name, regime).Set(f.Loss)
	r.fitParam.WithLabelValues(name, regime, "scale").Set(f.Params.Scale)
	r.fitParam.WithLabelValues(name, regime, "growth").Set(f.Params.Growth)
	r.fitParam.WithLabelValues(name, regime, "compression").Set(f.Params.Compression)
	r.fitEvaluations.WithLabelValues(name, regime).Add(float64(f.Evaluations))
}

// ObserveGridPoint records one grid evaluation. Safe for concurrent use.
func (r *Recorder) ObserveGridPoint(p calibrate.GridPoint) {
	r.gridPoints.Inc()
	if math.IsInf(p.Loss, 0) || math.IsNaN(p.Loss) {
		r.gridInfinite.Inc()
		return
	}
	r.gridLoss.Observe(p.Loss)
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Loss < r.best {
		r.best = p.Loss
		r.gridBest.Set(p.Loss)
	}
}

// Finish records the duration of a finished run.
func (r *Recorder) Finish(kind string, elapsed time.Duration) {
	r.runDuration.WithLabelValues(kind).Set(elapsed.Seconds())
	r.lastRun.SetToCurrentTime()
}

// FinishReport records a finished calibration run.
func (r *Recorder) FinishReport(rep *calibrate.Report) {
	r.Finish("calibrate", rep.Elapsed)
}

// FinishGrid records a finished grid run.
func (r *Recorder) FinishGrid(g *calibrate.GridReport) {
	r.Finish("grid", g.Elapsed)
}

// WriteFile writes the metrics in the Prometheus text format, atomically.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
