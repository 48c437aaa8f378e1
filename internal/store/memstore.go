package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"beliefshift/internal/calibrate"
	"beliefshift/internal/metric"
)

// MemStore is an in-memory Store for tests and runs without a database.
type MemStore struct {
	mu   sync.Mutex
	seq  int
	runs map[string]*memRun
}

type memRun struct {
	run  Run
	seq  int
	fits []calibrate.Fit
	grid []calibrate.GridPoint
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{runs: make(map[string]*memRun)}
}

func familyList(fs []metric.Family) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.String()
	}
	return out
}

func (s *MemStore) add(run Run) *memRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	run.ID = uuid.NewString()
	run.CreatedAt = time.Now().UTC()
	r := &memRun{run: run, seq: s.seq}
	s.runs[run.ID] = r
	return r
}

// SaveReport stores a copy of r's fits.
func (s *MemStore) SaveReport(r *calibrate.Report, source string) (string, error) {
	mr := s.add(Run{
		Kind: KindCalibrate, Mode: r.Mode.String(), Objective: r.Objective.String(),
		Families: familyList(r.Families), Trials: r.Trials, Source: source, Elapsed: r.Elapsed,
	})
	mr.fits = append([]calibrate.Fit(nil), r.Fits...)
	return mr.run.ID, nil
}

// SaveGrid stores a copy of g's points.
func (s *MemStore) SaveGrid(g *calibrate.GridReport, source string) (string, error) {
	mr := s.add(Run{
		Kind: KindGrid, Mode: calibrate.ModeGrid.String(), Objective: g.Objective.String(),
		Families: familyList(g.Families), Trials: g.Trials, Source: source, Elapsed: g.Elapsed,
	})
	mr.grid = append([]calibrate.GridPoint(nil), g.Points...)
	return mr.run.ID, nil
}

func (s *MemStore) get(id string) (*memRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

func (s *MemStore) GetRun(id string) (*Run, error) {
	r, err := s.get(id)
	if err != nil {
		return nil, err
	}
	run := r.run
	return &run, nil
}

func (s *MemStore) ListRuns() ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*memRun, 0, len(s.runs))
	for _, r := range s.runs {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq > all[j].seq })
	out := make([]Run, len(all))
	for i, r := range all {
		out[i] = r.run
	}
	return out, nil
}

func (s *MemStore) LoadFits(id string) ([]calibrate.Fit, error) {
	r, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return append([]calibrate.Fit(nil), r.fits...), nil
}

func (s *MemStore) LoadGrid(id string) ([]calibrate.GridPoint, error) {
	r, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return append([]calibrate.GridPoint(nil), r.grid...), nil
}

func (s *MemStore) Close() error { return nil }
