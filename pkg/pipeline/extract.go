package pipeline

import (
	"bytes"
	"context"

	"github.com/matzehuels/forestplot/pkg/cache"
	"github.com/matzehuels/forestplot/pkg/dataset"
	"github.com/matzehuels/forestplot/pkg/effect"
)

// Extract fits the models and returns the effect rows.
func Extract(ctx context.Context, ds *dataset.Dataset, opts Options) ([]effect.Row, error) {
	if err := opts.ValidateForExtract(); err != nil {
		return nil, err
	}
	if len(opts.Labels) > 0 {
		ds = ds.WithLabels(opts.Labels)
	}
	return effect.Extract(ctx, ds, opts.Variables, opts.Subgroups, effect.Options{
		ConfLevel:   opts.ConfLevel,
		LabelAll:    opts.LabelAll,
		SkipOverall: opts.SkipOverall,
		Workers:     opts.Workers,
		Fitter:      opts.Fitter,
		Logger:      opts.Logger,
	})
}

// DatasetHash returns the content hash of ds, used in cache keys.
func DatasetHash(ds *dataset.Dataset) string {
	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, ds); err != nil {
		return ""
	}
	return cache.Hash(buf.Bytes())
}

// summarize counts recovered rows.
func summarize(rows []effect.Row) (empty, degenerate int) {
	for _, r := range rows {
		switch r.Status {
		case effect.StatusEmptyData:
			empty++
		case effect.StatusFitDegeneracy:
			degenerate++
		}
	}
	return empty, degenerate
}
