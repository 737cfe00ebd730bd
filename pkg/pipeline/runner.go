package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/forestplot/pkg/cache"
	"github.com/matzehuels/forestplot/pkg/dataset"
	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/forest/layout"
	"github.com/matzehuels/forestplot/pkg/forest/render"
	fpio "github.com/matzehuels/forestplot/pkg/io"
	"github.com/matzehuels/forestplot/pkg/observability"
	"github.com/matzehuels/forestplot/pkg/table"
)

// Runner encapsulates pipeline execution with caching. The CLI and the
// HTTP server share it.
//
// A Runner holds no per-run state, so one Runner can serve concurrent
// runs with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil keyer means DefaultKeyer, a nil cache
// disables caching and a nil logger means log.Default().
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: cache.Instrument(c), Keyer: keyer, Logger: logger}
}

// Execute runs extract → table → layout → render.
func (r *Runner) Execute(ctx context.Context, ds *dataset.Dataset, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, hit, err := r.ExtractWithCacheInfo(ctx, ds, opts)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	result := &Result{}
	result.Stats.ExtractTime = time.Since(start)
	result.CacheInfo.RowsHit = hit

	if err := r.renderRows(ctx, rows, opts, result); err != nil {
		return nil, err
	}
	return result, nil
}

// RenderRows runs table → layout → render on rows that were extracted
// earlier.
func (r *Runner) RenderRows(ctx context.Context, rows []effect.Row, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForRender(); err != nil {
		return nil, err
	}

	result := &Result{}
	if err := r.renderRows(ctx, rows, opts, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) renderRows(ctx context.Context, rows []effect.Row, opts Options, result *Result) error {
	result.Rows = rows
	result.Stats.Rows = len(rows)
	result.Stats.Empty, result.Stats.Degenerate = summarize(rows)
	if data, err := fpio.MarshalRows(rows); err == nil {
		result.RowsHash = cache.Hash(data)
	}

	layoutStart := time.Now()
	t, g, err := r.LayoutRows(ctx, rows, opts)
	if err != nil {
		return err
	}
	result.Table, result.Geometry = t, g
	result.Stats.LayoutTime = time.Since(layoutStart)

	r.Logger.Info("computed layout",
		"rows", t.NumRows(),
		"domain", fmt.Sprintf("[%.3g, %.3g]", g.Domain.Lo, g.Domain.Hi),
		"duration", result.Stats.LayoutTime)

	renderStart := time.Now()
	artifacts, d, hit, err := r.RenderWithCacheInfo(ctx, t, g, result.RowsHash, opts)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	result.Artifacts, result.Drawing = artifacts, d
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = hit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)
	return nil
}

// ExtractWithCacheInfo extracts effect rows, using cached rows for the
// same data and extraction settings unless opts.Refresh is set.
func (r *Runner) ExtractWithCacheInfo(ctx context.Context, ds *dataset.Dataset, opts Options) ([]effect.Row, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForExtract(); err != nil {
		return nil, false, err
	}

	key := r.Keyer.RowsKey(DatasetHash(ds), opts.RowsKeyOpts())
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if rows, err := fpio.UnmarshalRows(data); err == nil {
				r.Logger.Debug("effect rows from cache", "rows", len(rows))
				return rows, true, nil
			}
		}
	}

	hooks := observability.Pipeline()
	hooks.OnExtractStart(ctx, len(opts.Variables.Biomarkers))
	start := time.Now()
	rows, err := Extract(ctx, ds, opts)
	_, degenerate := summarize(rows)
	hooks.OnExtractComplete(ctx, len(rows), degenerate, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	if data, err := fpio.MarshalRows(rows); err == nil {
		_ = r.Cache.Set(ctx, key, data, cache.TTLRows)
	}
	return rows, false, nil
}

// Extract is ExtractWithCacheInfo without the cache hit info.
func (r *Runner) Extract(ctx context.Context, ds *dataset.Dataset, opts Options) ([]effect.Row, error) {
	rows, _, err := r.ExtractWithCacheInfo(ctx, ds, opts)
	return rows, err
}

// LayoutRows builds the table and computes its geometry.
func (r *Runner) LayoutRows(ctx context.Context, rows []effect.Row, opts Options) (*table.EffectTable, *layout.Geometry, error) {
	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, len(rows))
	start := time.Now()

	t, err := BuildTable(rows, opts)
	if err != nil {
		hooks.OnLayoutComplete(ctx, time.Since(start), err)
		return nil, nil, fmt.Errorf("table: %w", err)
	}
	g, err := ComputeLayout(t, opts)
	hooks.OnLayoutComplete(ctx, time.Since(start), err)
	if err != nil {
		return nil, nil, fmt.Errorf("layout: %w", err)
	}
	return t, g, nil
}

// RenderWithCacheInfo renders every requested format. Artifacts are served
// from the cache only when all formats are cached; the drawing is
// composed either way.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, t *table.EffectTable, g *layout.Geometry, rowsHash string, opts Options) (map[string][]byte, *render.Drawing, bool, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, nil, false, err
	}

	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()

	if rowsHash != "" {
		artifacts := make(map[string][]byte, len(opts.Formats))
		for _, format := range opts.Formats {
			data, hit, err := r.Cache.Get(ctx, r.Keyer.ArtifactKey(rowsHash, opts.ArtifactKeyOpts(format)))
			if err != nil || !hit {
				break
			}
			artifacts[format] = data
		}
		if len(artifacts) == len(opts.Formats) {
			d, err := render.Render(t, g, render.Options{})
			hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
			if err != nil {
				return nil, nil, false, err
			}
			return artifacts, d, true, nil
		}
	}

	artifacts, d, err := Render(ctx, t, g, opts)
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, nil, false, err
	}
	if rowsHash != "" {
		for format, data := range artifacts {
			_ = r.Cache.Set(ctx, r.Keyer.ArtifactKey(rowsHash, opts.ArtifactKeyOpts(format)), data, cache.TTLArtifact)
		}
	}
	return artifacts, d, false, nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
