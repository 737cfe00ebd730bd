// Package store archives pipeline runs so plots can be listed and fetched
// again later.
//
// [SQLiteStore] is the local archive used by the CLI; [MongoStore] backs
// the HTTP server when several instances share one archive.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/pipeline"
)

// Run is one archived pipeline run.
type Run struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Title     string           `json:"title,omitempty"`
	Options   pipeline.Options `json:"options"`
	Rows      []effect.Row     `json:"rows"`
	SVG       []byte           `json:"-"`
}

// Summary is the listing view of a run.
type Summary struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Title      string    `json:"title,omitempty"`
	Biomarkers []string  `json:"biomarkers"`
	Rows       int       `json:"rows"`
	Degenerate int       `json:"degenerate"`
}

// Store persists runs.
type Store interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	// List returns up to limit runs, newest first.
	List(ctx context.Context, limit int) ([]Summary, error)
	Close() error
}

// DefaultListLimit is used when List is called with limit <= 0.
const DefaultListLimit = 20

// NewRun creates a run with a fresh ID from a pipeline result.
func NewRun(opts pipeline.Options, res *pipeline.Result) *Run {
	run := &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Title:     opts.Title,
		Options:   opts,
	}
	if res != nil {
		run.Rows = res.Rows
		run.SVG = res.Artifacts[pipeline.FormatSVG]
	}
	return run
}

// Summarize builds the listing view of run.
func Summarize(run *Run) Summary {
	s := Summary{
		ID:         run.ID,
		CreatedAt:  run.CreatedAt,
		Title:      run.Title,
		Biomarkers: run.Options.Variables.Biomarkers,
		Rows:       len(run.Rows),
	}
	for _, r := range run.Rows {
		if r.Status == effect.StatusFitDegeneracy {
			s.Degenerate++
		}
	}
	return s
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeNotFound, "run %q not found", id)
}

func validateRun(run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "run needs an id")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	return nil
}
