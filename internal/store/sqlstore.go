package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"beliefshift/internal/calibrate"
	"beliefshift/internal/metric"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds so created_at sorts
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// nowUTC returns the current UTC time in timeLayout.
func nowUTC() string { return time.Now().UTC().Format(timeLayout) }

// nullable maps NaN to SQL NULL. Infinite losses are stored as REAL.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// nullFloat converts a sql.NullFloat64 back, NULL becoming NaN.
func nullFloat(nf sql.NullFloat64) float64 {
	if nf.Valid {
		return nf.Float64
	}
	return math.NaN()
}

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV2

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SqlStore) Close() error { return s.db.Close() }

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		// schema_version exists but is empty: treat as v1.
		v = schemaVersionV1
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", v); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}

	switch v {
	case currentSchemaVersion:
		return nil
	case schemaVersionV1:
		return s.migrateV1ToV2()
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

func (s *SqlStore) freshInstall() error {
	if _, err := s.db.Exec(schemaV2); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// migrateV1ToV2 runs inside a transaction so a failed upgrade leaves the
// v1 database untouched.
func (s *SqlStore) migrateV1ToV2() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migrationV1ToV2); err != nil {
		return fmt.Errorf("v1→v2 migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	return nil
}

func insertRun(tx *sql.Tx, id, kind, mode string, obj calibrate.Objective, fams []metric.Family, trials int, source string, elapsed time.Duration) error {
	_, err := tx.Exec(
		`INSERT INTO runs(id, kind, mode, objective, families, trials, source, elapsed_ms, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, kind, mode, obj.String(), strings.Join(familyList(fams), ","), trials, source, elapsed.Milliseconds(), nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SaveReport stores a calibration report under a new run ID.
func (s *SqlStore) SaveReport(r *calibrate.Report, source string) (string, error) {
	id := uuid.NewString()
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertRun(tx, id, KindCalibrate, r.Mode.String(), r.Objective, r.Families, r.Trials, source, r.Elapsed); err != nil {
		return "", err
	}
	stmt, err := tx.Prepare(`INSERT INTO fits(run_id, position, family, regime, scale, growth, compression,
		loss, pearson, mse, std, centrality, pearson_reg, evaluations, status)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare fit insert: %w", err)
	}
	defer stmt.Close()
	for i, f := range r.Fits {
		family := ""
		if !f.Aggregate() {
			family = f.Family.String()
		}
		l := f.Losses
		if _, err := stmt.Exec(id, i, family, f.Regime.String(),
			f.Params.Scale, f.Params.Growth, f.Params.Compression,
			nullable(f.Loss), nullable(l.Pearson), nullable(l.MSE), nullable(l.Std),
			nullable(l.Centrality), nullable(l.PearsonReg), f.Evaluations, f.Status); err != nil {
			return "", fmt.Errorf("insert fit %s: %w", f.Name(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save: %w", err)
	}
	return id, nil
}

// SaveGrid stores a grid surface under a new run ID.
func (s *SqlStore) SaveGrid(g *calibrate.GridReport, source string) (string, error) {
	id := uuid.NewString()
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertRun(tx, id, KindGrid, calibrate.ModeGrid.String(), g.Objective, g.Families, g.Trials, source, g.Elapsed); err != nil {
		return "", err
	}
	pointStmt, err := tx.Prepare(`INSERT INTO grid_points(run_id, idx, scale, growth, compression, loss) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare grid insert: %w", err)
	}
	defer pointStmt.Close()
	lossStmt, err := tx.Prepare(`INSERT INTO grid_losses(run_id, idx, family, loss) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare grid loss insert: %w", err)
	}
	defer lossStmt.Close()

	for _, p := range g.Points {
		if _, err := pointStmt.Exec(id, p.Index, p.Params.Scale, p.Params.Growth, p.Params.Compression, nullable(p.Loss)); err != nil {
			return "", fmt.Errorf("insert grid point %d: %w", p.Index, err)
		}
		for i, l := range p.Losses {
			if i >= len(g.Families) {
				break
			}
			if _, err := lossStmt.Exec(id, p.Index, g.Families[i].String(), nullable(l)); err != nil {
				return "", fmt.Errorf("insert grid loss %d/%s: %w", p.Index, g.Families[i], err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save: %w", err)
	}
	return id, nil
}

const runColumns = `id, kind, mode, objective, families, trials, source, elapsed_ms, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r         Run
		families  string
		elapsedMS int64
		created   string
	)
	if err := sc.Scan(&r.ID, &r.Kind, &r.Mode, &r.Objective, &families, &r.Trials, &r.Source, &elapsedMS, &created); err != nil {
		return nil, err
	}
	if families != "" {
		r.Families = strings.Split(families, ",")
	}
	r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	r.CreatedAt = t
	return &r, nil
}

// GetRun returns one run header.
func (s *SqlStore) GetRun(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns every run, newest first.
func (s *SqlStore) ListRuns() ([]Run, error) {
	rows, err := s.db.Query("SELECT " + runColumns + " FROM runs ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// LoadFits returns the fits of a calibration run in report order.
func (s *SqlStore) LoadFits(id string) ([]calibrate.Fit, error) {
	if _, err := s.GetRun(id); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT family, regime, scale, growth, compression,
		loss, pearson, mse, std, centrality, pearson_reg, evaluations, status
		FROM fits WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("load fits: %w", err)
	}
	defer rows.Close()
	var out []calibrate.Fit
	for rows.Next() {
		var (
			f                             calibrate.Fit
			family, regime                string
			loss, pe, mse, std, cen, preg sql.NullFloat64
			status                        sql.NullString
		)
		if err := rows.Scan(&family, &regime, &f.Params.Scale, &f.Params.Growth, &f.Params.Compression,
			&loss, &pe, &mse, &std, &cen, &preg, &f.Evaluations, &status); err != nil {
			return nil, fmt.Errorf("scan fit: %w", err)
		}
		if family != "" {
			if f.Family, err = metric.ParseFamily(family); err != nil {
				return nil, fmt.Errorf("load fit: %w", err)
			}
		}
		if f.Regime, err = calibrate.ParseRegime(regime); err != nil {
			return nil, fmt.Errorf("load fit: %w", err)
		}
		f.Loss = nullFloat(loss)
		f.Losses = calibrate.Losses{
			Pearson: nullFloat(pe), MSE: nullFloat(mse), Std: nullFloat(std),
			Centrality: nullFloat(cen), PearsonReg: nullFloat(preg),
		}
		f.Status = status.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// LoadGrid returns the points of a grid run in grid order.
func (s *SqlStore) LoadGrid(id string) ([]calibrate.GridPoint, error) {
	run, err := s.GetRun(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT idx, scale, growth, compression, loss FROM grid_points WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("load grid: %w", err)
	}
	var out []calibrate.GridPoint
	pos := map[int]int{}
	for rows.Next() {
		var (
			p    calibrate.GridPoint
			loss sql.NullFloat64
		)
		if err := rows.Scan(&p.Index, &p.Params.Scale, &p.Params.Growth, &p.Params.Compression, &loss); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan grid point: %w", err)
		}
		p.Loss = nullFloat(loss)
		p.Losses = make([]float64, len(run.Families))
		for i := range p.Losses {
			p.Losses[i] = math.NaN()
		}
		pos[p.Index] = len(out)
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	famIdx := make(map[string]int, len(run.Families))
	for i, f := range run.Families {
		famIdx[f] = i
	}
	lrows, err := s.db.Query(`SELECT idx, family, loss FROM grid_losses WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("load grid losses: %w", err)
	}
	defer lrows.Close()
	for lrows.Next() {
		var (
			idx    int
			family string
			loss   sql.NullFloat64
		)
		if err := lrows.Scan(&idx, &family, &loss); err != nil {
			return nil, fmt.Errorf("scan grid loss: %w", err)
		}
		pi, ok := pos[idx]
		fi, fok := famIdx[family]
		if ok && fok {
			out[pi].Losses[fi] = nullFloat(loss)
		}
	}
	return out, lrows.Err()
}
