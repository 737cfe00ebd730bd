// Package pkg provides the core libraries for forestplot, a tool that turns
// subject-level trial data into subgroup forest plots.
//
// # Overview
//
// A forest plot pairs a table of per-subgroup statistics with a panel of
// point estimates and confidence intervals drawn against a common axis. The
// pkg directory is organized into these areas:
//
//  1. [dataset] and [stats] - Tabular input and the model fitting collaborator
//  2. [effect] and [table] - Effect extraction and the nested effect table
//  3. [forest/layout], [forest/render] and [forest/sink] - Geometry, drawing and output
//  4. [pipeline] - Orchestration (extract → table → layout → render)
//  5. [cache], [store] and [server] - Caching, run archive and HTTP API
//
// # Architecture
//
// The typical data flow:
//
//	CSV / JSON records
//	         ↓
//	    [effect] package (one model fit per biomarker and subgroup level)
//	         ↓
//	    [table] package (header, content and analysis rows)
//	         ↓
//	    [forest/layout] package (domain, ticks, clipping, widths)
//	         ↓
//	    [forest/render] package (drawing primitives on a device)
//	         ↓
//	    SVG/PNG/PDF/JSON/text output
//
// # Quick Start
//
//	ds, _ := dataset.ReadCSVFile("trial.csv")
//
//	opts := pipeline.Options{
//	    Variables: effect.Variables{
//	        Response:   "response",
//	        Biomarkers: []string{"marker"},
//	    },
//	    Subgroups: []effect.Subgroup{{Var: "sex", Label: "Sex"}},
//	    Formats:   []string{"svg"},
//	}
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	result, err := runner.Execute(ctx, ds, opts)
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("forest.svg", result.Artifacts["svg"], 0o644)
//
// # Main Packages
//
// [stats/fit] - Logistic regression (IRLS) and stratified Cox proportional
// hazards (Newton-Raphson) with degeneracy detection. Fits that cannot be
// estimated are recorded on the row instead of failing the batch.
//
// [effect] - Runs the fits in parallel and re-joins them in input order.
//
// [table] - The [table.Table] interface, display formatting with capped
// ratios, and [table.Build] for biomarker tables.
//
// [forest/layout] - Pure geometry: nothing is drawn until a device is given
// to [forest/render].
//
// [forest/sink] - SVG, PNG and PDF (rsvg-convert), JSON and terminal output.
//
// [io] - JSON import and export of effect rows.
//
// [config] - TOML and YAML plot configuration files.
//
// [errors] - Coded errors shared by every package.
//
// [dataset]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/dataset
// [stats]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/stats
// [stats/fit]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/stats/fit
// [effect]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/effect
// [table]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/table
// [forest/layout]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/forest/layout
// [forest/render]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/forest/render
// [forest/sink]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/forest/sink
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/cache
// [store]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/store
// [server]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/server
// [io]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/io
// [config]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/forestplot/pkg/errors
package pkg
