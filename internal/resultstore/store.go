// Package resultstore exports finished runs to SQLite.
package resultstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/KaramelBytes/surveyate/internal/balance"
	"github.com/KaramelBytes/surveyate/internal/effect"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

var pragmas = []string{
	`PRAGMA foreign_keys = ON`,
	`PRAGMA busy_timeout = 5000`,
	`PRAGMA journal_mode = WAL`,
}

// Store is an open result database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	// one connection keeps the pragmas in force for every statement
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("results db %s: %w", p, err)
		}
	}
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply results schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// ModelRecord is one estimated pair with its analysis unit.
type ModelRecord struct {
	Origin   string
	Subgroup string
	Label    string
	Pair     effect.Pair
}

// FailureRecord is one unit that produced no result.
type FailureRecord struct {
	Stage    string // balance|effect|mapping
	Origin   string
	Subgroup string
	Target   string
	Message  string
}

// RunRecord is everything a run exports.
type RunRecord struct {
	// ID is generated when empty.
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	PlanVersion int
	Level       float64
	Test        string
	Origins     []string
	Balance     []*balance.Report
	Models      []ModelRecord
	Failures    []FailureRecord
}

// SaveRun writes rec in a single transaction and returns its run ID.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, plan_version, level, test, origins) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.FinishedAt.UTC().Format(time.RFC3339Nano),
		rec.PlanVersion, rec.Level, rec.Test, strings.Join(rec.Origins, ","),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	bal, err := tx.PrepareContext(ctx, `INSERT INTO balance_rows
		(run_id, origin, position, covariate, mean_arm1, mean_arm2, n1, n2, t, df, p_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer bal.Close()
	for _, rep := range rec.Balance {
		for i, r := range rep.Rows {
			if _, err := bal.ExecContext(ctx, rec.ID, rep.Origin, i, r.Covariate,
				nullable(r.MeanArm1), nullable(r.MeanArm2), r.N1, r.N2, nullable(r.T), nullable(r.DF), nullable(r.PValue)); err != nil {
				return "", fmt.Errorf("insert balance row %s/%s: %w", rep.Origin, r.Covariate, err)
			}
		}
	}

	mod, err := tx.PrepareContext(ctx, `INSERT INTO model_results
		(run_id, position, origin, subgroup, outcome, label, spec, coef, std_err, t, p_value, ci_low, ci_high, level, n, df, r2, adj_r2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer mod.Close()
	for i, m := range rec.Models {
		for _, r := range []effect.ModelResult{m.Pair.Unadjusted, m.Pair.Adjusted} {
			if _, err := mod.ExecContext(ctx, rec.ID, i, m.Origin, m.Subgroup, m.Pair.Outcome, m.Label, string(r.Spec),
				nullable(r.Coef), nullable(r.StdErr), nullable(r.T), nullable(r.PValue), nullable(r.CILow), nullable(r.CIHigh),
				r.Level, r.N, r.DF, nullable(r.R2), nullable(r.AdjR2)); err != nil {
				return "", fmt.Errorf("insert model %s/%s/%s: %w", m.Origin, m.Subgroup, m.Pair.Outcome, err)
			}
		}
	}

	for _, f := range rec.Failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, stage, origin, subgroup, target, message) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, f.Stage, f.Origin, f.Subgroup, f.Target, f.Message); err != nil {
			return "", fmt.Errorf("insert failure: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return rec.ID, nil
}

// RunSummary is one row of the runs listing.
type RunSummary struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	PlanVersion int
	Level       float64
	Test        string
	Origins     []string
	Models      int
	Failures    int
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.id, r.started_at, r.finished_at, r.plan_version, r.level, r.test, r.origins,
		(SELECT COUNT(*) FROM model_results m WHERE m.run_id = r.id),
		(SELECT COUNT(*) FROM failures f WHERE f.run_id = r.id)
		FROM runs r ORDER BY r.started_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		var started, finished, origins string
		if err := rows.Scan(&rs.ID, &started, &finished, &rs.PlanVersion, &rs.Level, &rs.Test, &origins, &rs.Models, &rs.Failures); err != nil {
			return nil, err
		}
		rs.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rs.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		if origins != "" {
			rs.Origins = strings.Split(origins, ",")
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// ModelRow is one stored model fit.
type ModelRow struct {
	Origin   string
	Subgroup string
	Outcome  string
	Label    string
	Spec     effect.Specification
	Coef     float64
	StdErr   float64
	PValue   float64
	CILow    float64
	CIHigh   float64
	Level    float64
	N        int
}

// Models returns a run's model fits in plan order, unadjusted first.
func (s *Store) Models(ctx context.Context, runID string) ([]ModelRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT origin, subgroup, outcome, label, spec, coef, std_err, p_value, ci_low, ci_high, level, n
		FROM model_results WHERE run_id = ? ORDER BY position, spec DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query models: %w", err)
	}
	defer rows.Close()
	var out []ModelRow
	for rows.Next() {
		var m ModelRow
		var spec string
		var coef, se, p, lo, hi sql.NullFloat64
		if err := rows.Scan(&m.Origin, &m.Subgroup, &m.Outcome, &m.Label, &spec, &coef, &se, &p, &lo, &hi, &m.Level, &m.N); err != nil {
			return nil, err
		}
		m.Spec = effect.Specification(spec)
		m.Coef, m.StdErr, m.PValue, m.CILow, m.CIHigh = orNaN(coef), orNaN(se), orNaN(p), orNaN(lo), orNaN(hi)
		out = append(out, m)
	}
	return out, rows.Err()
}

// nullable maps non-finite values to NULL.
func nullable(x float64) any {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return x
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
