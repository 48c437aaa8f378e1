// Package store persists calibration runs and grid surfaces so fitted
// parameter sets can be applied later without refitting.
package store

import (
	"errors"
	"time"

	"beliefshift/internal/calibrate"
)

// DefaultDBPath is the default relative path for the SQLite DB.
const DefaultDBPath = ".beliefshift/runs.db"

var ErrNotFound = errors.New("store: run not found")

// Run kinds.
const (
	KindCalibrate = "calibrate"
	KindGrid      = "grid"
)

// Run is the header of one stored calibration or grid search.
type Run struct {
	ID        string
	Kind      string
	Mode      string
	Objective string
	Families  []string
	Trials    int
	// Source names the training data, usually a file path.
	Source    string
	Elapsed   time.Duration
	CreatedAt time.Time
}

// Store is the persistence facade. The CLI uses only this interface; the
// implementation is SQLite or in-memory.
type Store interface {
	SaveReport(r *calibrate.Report, source string) (runID string, err error)
	SaveGrid(g *calibrate.GridReport, source string) (runID string, err error)
	GetRun(id string) (*Run, error)
	// ListRuns returns runs newest first.
	ListRuns() ([]Run, error)
	LoadFits(id string) ([]calibrate.Fit, error)
	LoadGrid(id string) ([]calibrate.GridPoint, error)
	Close() error
}

// LoadParamSet rebuilds the frozen parameter set of a calibration run.
func LoadParamSet(s Store, id string) (calibrate.ParamSet, error) {
	fits, err := s.LoadFits(id)
	if err != nil {
		return calibrate.ParamSet{}, err
	}
	rep := &calibrate.Report{Fits: fits}
	return rep.ParamSet(), nil
}
