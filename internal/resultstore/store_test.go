package resultstore

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/surveyate/internal/balance"
	"github.com/KaramelBytes/surveyate/internal/effect"
	"github.com/KaramelBytes/surveyate/internal/stats"
)

func record() RunRecord {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pair := effect.Pair{
		Outcome:    "opinioneu",
		Unadjusted: effect.ModelResult{Spec: effect.Unadjusted, Outcome: "opinioneu", Coef: -0.2, StdErr: 0.1, PValue: 0.04, CILow: -0.36, CIHigh: -0.04, Level: 0.9, N: 120, DF: 118},
		Adjusted:   effect.ModelResult{Spec: effect.Adjusted, Outcome: "opinioneu", Coef: -0.18, StdErr: 0.1, PValue: 0.07, CILow: -0.35, CIHigh: -0.01, Level: 0.9, N: 110, DF: 103, R2: math.NaN()},
	}
	return RunRecord{
		StartedAt:   start,
		FinishedAt:  start.Add(2 * time.Second),
		PlanVersion: 1,
		Level:       0.9,
		Test:        string(stats.Welch),
		Origins:     []string{"original", "synthetic"},
		Balance: []*balance.Report{{
			Origin: "original",
			Rows:   []balance.Row{{Covariate: "age", MeanArm1: 44.1, MeanArm2: 45.3, N1: 60, N2: 60, T: 0.7, DF: 117.2, PValue: 0.48}},
		}},
		Models:   []ModelRecord{{Origin: "original", Subgroup: "all", Label: "Positive Opinion EU - General", Pair: pair}},
		Failures: []FailureRecord{{Stage: "effect", Origin: "synthetic", Subgroup: "spain", Target: "opinioneu", Message: "insufficient sample"}},
	}
}

func TestSaveAndReadBack(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	id, err := s.SaveRun(ctx, record())
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if len(id) != 36 {
		t.Fatalf("run id = %q, want a uuid", id)
	}
	runs, err := s.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != id || runs[0].Models != 2 || runs[0].Failures != 1 {
		t.Fatalf("runs = %+v", runs)
	}
	if len(runs[0].Origins) != 2 || runs[0].Test != "welch" {
		t.Fatalf("run summary = %+v", runs[0])
	}

	models, err := s.Models(ctx, id)
	if err != nil {
		t.Fatalf("Models: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("models = %d, want 2", len(models))
	}
	if models[0].Spec != effect.Unadjusted || models[0].Coef != -0.2 || models[0].N != 120 {
		t.Fatalf("first model = %+v", models[0])
	}
	if models[1].Spec != effect.Adjusted || models[1].Label != "Positive Opinion EU - General" {
		t.Fatalf("second model = %+v", models[1])
	}
}

func TestSaveRunIsAtomic(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	rec := record()
	rec.ID = "fixed"
	if _, err := s.SaveRun(ctx, rec); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	// same ID again violates the primary key and must leave nothing behind
	rec.Models = append(rec.Models, rec.Models[0])
	if _, err := s.SaveRun(ctx, rec); err == nil {
		t.Fatalf("expected duplicate run to fail")
	}
	runs, _ := s.Runs(ctx)
	if len(runs) != 1 || runs[0].Models != 2 {
		t.Fatalf("runs after failed save = %+v", runs)
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.SaveRun(ctx, record()); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	runs, err := s.Runs(ctx)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %v, %v", runs, err)
	}
}
