package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/pipeline"
	"github.com/matzehuels/forestplot/pkg/stats"
)

func sampleRun(id string, created time.Time) *Run {
	return &Run{
		ID:        id,
		CreatedAt: created,
		Title:     "Trial A",
		Options: pipeline.Options{
			Variables: effect.Variables{Response: "RSP", Biomarkers: []string{"BMRKR1"}},
			Formats:   []string{"svg"},
		},
		Rows: []effect.Row{
			{
				Biomarker: "BMRKR1", Label: "All patients", Kind: effect.KindAnalysis,
				NTotal: 80, NEvent: 30,
				Proportion: stats.Of(0.375), Median: stats.NA(),
				Estimate: stats.Of(1.4), Lower: stats.Of(0.9), Upper: stats.Of(2.1),
				ConfLevel: 0.95, PValue: stats.Of(0.12),
				Status: effect.StatusOK,
			},
			{
				Biomarker: "BMRKR1", Var: "SEX", Label: "F", Kind: effect.KindAnalysis,
				NTotal: 3, Proportion: stats.NA(), Median: stats.NA(),
				Estimate: stats.NA(), Lower: stats.NA(), Upper: stats.NA(),
				ConfLevel: 0.95, PValue: stats.NA(),
				Status: effect.StatusFitDegeneracy, Detail: "separation",
			},
		},
		SVG: []byte("<svg/>"),
	}
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "runs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"sqlite": sq,
		"memory": NewMemoryStore(),
	}
}

func TestSaveGet(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save(ctx, sampleRun("run-1", created)); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := s.Get(ctx, "run-1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !got.CreatedAt.Equal(created) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
			}
			if got.Title != "Trial A" {
				t.Errorf("Title = %q, want %q", got.Title, "Trial A")
			}
			if string(got.SVG) != "<svg/>" {
				t.Errorf("SVG = %q", got.SVG)
			}
			if len(got.Rows) != 2 {
				t.Fatalf("len(Rows) = %d, want 2", len(got.Rows))
			}
			if got.Rows[0].Estimate.Float() != 1.4 {
				t.Errorf("Rows[0].Estimate = %v, want 1.4", got.Rows[0].Estimate)
			}
			if !got.Rows[1].Estimate.IsNA() {
				t.Errorf("Rows[1].Estimate = %v, want NA", got.Rows[1].Estimate)
			}
			if got.Rows[1].Status != effect.StatusFitDegeneracy {
				t.Errorf("Rows[1].Status = %q", got.Rows[1].Status)
			}
			if bs := got.Options.Variables.Biomarkers; len(bs) != 1 || bs[0] != "BMRKR1" {
				t.Errorf("Options.Variables.Biomarkers = %v", bs)
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "nope")
			if !errors.Is(err, errors.ErrCodeNotFound) {
				t.Errorf("Get error = %v, want NOT_FOUND", err)
			}
		})
	}
}

func TestSaveRequiresID(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Save(context.Background(), &Run{})
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("Save error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for i, id := range []string{"a", "b", "c"} {
				if err := s.Save(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
					t.Fatalf("Save %s: %v", id, err)
				}
			}
			got, err := s.List(ctx, 2)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("len(List) = %d, want 2", len(got))
			}
			if got[0].ID != "c" || got[1].ID != "b" {
				t.Errorf("List IDs = %s, %s, want c, b", got[0].ID, got[1].ID)
			}
			if got[0].Rows != 2 || got[0].Degenerate != 1 {
				t.Errorf("Summary = %+v, want 2 rows with 1 degenerate", got[0])
			}
		})
	}
}

func TestSaveReplaces(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			run := sampleRun("same", time.Now().UTC())
			if err := s.Save(ctx, run); err != nil {
				t.Fatal(err)
			}
			run.Title = "Renamed"
			if err := s.Save(ctx, run); err != nil {
				t.Fatal(err)
			}
			got, err := s.Get(ctx, "same")
			if err != nil {
				t.Fatal(err)
			}
			if got.Title != "Renamed" {
				t.Errorf("Title = %q, want Renamed", got.Title)
			}
			list, _ := s.List(ctx, 0)
			if len(list) != 1 {
				t.Errorf("len(List) = %d, want 1", len(list))
			}
		})
	}
}

func TestNewRun(t *testing.T) {
	opts := pipeline.Options{Title: "T"}
	res := &pipeline.Result{
		Rows:      sampleRun("x", time.Now()).Rows,
		Artifacts: map[string][]byte{pipeline.FormatSVG: []byte("<svg/>")},
	}
	a := NewRun(opts, res)
	b := NewRun(opts, res)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("NewRun IDs = %q, %q, want distinct", a.ID, b.ID)
	}
	if a.Title != "T" || string(a.SVG) != "<svg/>" || len(a.Rows) != 2 {
		t.Errorf("NewRun = %+v", a)
	}
}

func TestMongoRoundTrip(t *testing.T) {
	run := sampleRun("m", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	doc, err := toMongo(run)
	if err != nil {
		t.Fatal(err)
	}
	if doc.NRows != 2 || doc.Degenerate != 1 {
		t.Errorf("doc summary = %d rows, %d degenerate", doc.NRows, doc.Degenerate)
	}
	got, err := fromMongo(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Rows[1].Lower.IsNA() || got.Rows[0].Upper.Float() != 2.1 {
		t.Errorf("rows = %+v", got.Rows)
	}
}
