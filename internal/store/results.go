package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/fluvial-data/flow.report/internal/flow"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run is one persisted analysis run.
type Run struct {
	RunID      string    `json:"run_id"`
	VideoPath  string    `json:"video_path"`
	CreatedAt  time.Time `json:"created_at"`
	ParamsJSON string    `json:"params_json"`
	PairCount  int       `json:"pair_count"`
	Units      string    `json:"units"`
}

// ResultsDB persists completed runs to SQLite.
type ResultsDB struct {
	*sql.DB
}

// OpenResults opens (or creates) the results database at path and
// applies any pending migrations.
func OpenResults(path string) (*ResultsDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	rdb := &ResultsDB{db}
	if err := rdb.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return rdb, nil
}

func (db *ResultsDB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: load migrations: %w", err)
	}
	drv, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("store: migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("store: migrate instance: %w", err)
	}
	// Note: we don't close m because it would close the underlying DB
	// connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migration up failed: %w", err)
	}
	return nil
}

// SaveRun writes a completed run and its per-pair results in one
// transaction, so a crash mid-save never leaves a half-visible run.
func (db *ResultsDB) SaveRun(run Run, fs *FieldStore) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO analysis_runs (run_id, video_path, created_unix_nanos, params_json, pair_count, units)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.VideoPath, run.CreatedAt.UnixNano(), run.ParamsJSON, run.PairCount, run.Units)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	for _, ps := range fs.Stats() {
		_, err = tx.Exec(
			`INSERT INTO pair_stats (run_id, pair_index, frame_a, frame_b, avg_speed, max_speed, std_speed)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, ps.PairIndex, ps.FrameA, ps.FrameB,
			nullable(ps.AvgSpeed), nullable(ps.MaxSpeed), nullable(ps.StdSpeed))
		if err != nil {
			return fmt.Errorf("store: insert stats for pair %d: %w", ps.PairIndex, err)
		}
	}

	for _, g := range fs.Grids() {
		blob, err := encodeGrid(g)
		if err != nil {
			return fmt.Errorf("store: encode grid for pair %d: %w", g.PairIndex, err)
		}
		_, err = tx.Exec(
			`INSERT INTO velocity_grids (run_id, pair_index, grid_rows, grid_cols, units, grid_blob)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			run.RunID, g.PairIndex, g.Rows(), g.Cols(), g.Units, blob)
		if err != nil {
			return fmt.Errorf("store: insert grid for pair %d: %w", g.PairIndex, err)
		}
	}

	for idx, msg := range fs.Failures() {
		_, err = tx.Exec(
			`INSERT INTO pair_failures (run_id, pair_index, error) VALUES (?, ?, ?)`,
			run.RunID, idx, msg)
		if err != nil {
			return fmt.Errorf("store: insert failure for pair %d: %w", idx, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns persisted runs, newest first.
func (db *ResultsDB) ListRuns() ([]Run, error) {
	rows, err := db.Query(
		`SELECT run_id, video_path, created_unix_nanos, params_json, pair_count, units
		 FROM analysis_runs ORDER BY created_unix_nanos DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var nanos int64
		if err := rows.Scan(&r.RunID, &r.VideoPath, &nanos, &r.ParamsJSON, &r.PairCount, &r.Units); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		r.CreatedAt = time.Unix(0, nanos)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by ID.
func (db *ResultsDB) GetRun(runID string) (Run, error) {
	var r Run
	var nanos int64
	err := db.QueryRow(
		`SELECT run_id, video_path, created_unix_nanos, params_json, pair_count, units
		 FROM analysis_runs WHERE run_id = ?`, runID).
		Scan(&r.RunID, &r.VideoPath, &nanos, &r.ParamsJSON, &r.PairCount, &r.Units)
	if err != nil {
		return Run{}, fmt.Errorf("store: get run %s: %w", runID, err)
	}
	r.CreatedAt = time.Unix(0, nanos)
	return r, nil
}

// RunStats returns the per-pair statistics of a run in schedule order.
// NULL columns come back as the NoData sentinel, preserving the
// distinction between "measured, low speed" and "no data". Units live
// on the run row and are joined back onto every stat.
func (db *ResultsDB) RunStats(runID string) ([]flow.PairStats, error) {
	rows, err := db.Query(
		`SELECT s.pair_index, s.frame_a, s.frame_b, s.avg_speed, s.max_speed, s.std_speed, r.units
		 FROM pair_stats s
		 JOIN analysis_runs r ON r.run_id = s.run_id
		 WHERE s.run_id = ? ORDER BY s.pair_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: run stats: %w", err)
	}
	defer rows.Close()

	var stats []flow.PairStats
	for rows.Next() {
		var ps flow.PairStats
		var avg, max, std sql.NullFloat64
		if err := rows.Scan(&ps.PairIndex, &ps.FrameA, &ps.FrameB, &avg, &max, &std, &ps.Units); err != nil {
			return nil, fmt.Errorf("store: scan stats: %w", err)
		}
		ps.AvgSpeed = fromNullable(avg)
		ps.MaxSpeed = fromNullable(max)
		ps.StdSpeed = fromNullable(std)
		stats = append(stats, ps)
	}
	return stats, rows.Err()
}

// LoadGrid returns one persisted velocity grid of a run.
func (db *ResultsDB) LoadGrid(runID string, pairIndex int) (*flow.GridFrame, error) {
	var blob []byte
	err := db.QueryRow(
		`SELECT grid_blob FROM velocity_grids WHERE run_id = ? AND pair_index = ?`,
		runID, pairIndex).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("store: load grid %s/%d: %w", runID, pairIndex, err)
	}
	return decodeGrid(blob)
}

// RunFailures returns the recorded per-pair errors of a run.
func (db *ResultsDB) RunFailures(runID string) (map[int]string, error) {
	rows, err := db.Query(
		`SELECT pair_index, error FROM pair_failures WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: run failures: %w", err)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var idx int
		var msg string
		if err := rows.Scan(&idx, &msg); err != nil {
			return nil, fmt.Errorf("store: scan failure: %w", err)
		}
		out[idx] = msg
	}
	return out, rows.Err()
}

// DeleteRun removes a run and all dependent rows.
func (db *ResultsDB) DeleteRun(runID string) error {
	_, err := db.Exec(`DELETE FROM analysis_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("store: delete run %s: %w", runID, err)
	}
	return nil
}

func nullable(v float64) sql.NullFloat64 {
	if flow.IsNoData(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return flow.NoData()
	}
	return v.Float64
}
