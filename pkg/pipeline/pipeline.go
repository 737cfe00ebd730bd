// Package pipeline provides the forest plot pipeline shared by the CLI and
// the HTTP server.
//
// # Architecture
//
// The pipeline has four stages:
//
//  1. Extract: fit one model per biomarker and subgroup level
//  2. Table: assemble the effect rows into a formatted table
//  3. Layout: compute the forest panel geometry
//  4. Render: produce SVG, PNG, PDF, JSON or terminal text
//
// Extraction results and rendered artifacts are cached by content hash.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, ds, pipeline.Options{
//	    Variables: effect.Variables{Response: "RSP", Biomarkers: []string{"BMRKR1"}},
//	    Subgroups: []effect.Subgroup{{Var: "SEX"}},
//	    Formats:   []string{"svg"},
//	})
//	svg := result.Artifacts["svg"]
//
// When effect rows already exist (for example exported with the extract
// command), [Runner.RenderRows] runs stages 2 to 4 only.
package pipeline

import (
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/forestplot/pkg/cache"
	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/forest/layout"
	"github.com/matzehuels/forestplot/pkg/forest/render"
	"github.com/matzehuels/forestplot/pkg/forest/styles"
	"github.com/matzehuels/forestplot/pkg/stats/fit"
	"github.com/matzehuels/forestplot/pkg/table"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultVLine is the reference line for ratio estimates.
	DefaultVLine = 1.0

	// DefaultStyle is the default SVG style.
	DefaultStyle = "simple"
)

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatJSON = "json"
	FormatText = "txt"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
	FormatJSON: true,
	FormatText: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the pipeline. It is the request
// body of the HTTP API and the target of configuration files.
type Options struct {
	// Extraction options
	Variables   effect.Variables  `json:"variables"`
	Subgroups   []effect.Subgroup `json:"subgroups,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"` // variable display labels
	ConfLevel   float64           `json:"conf_level,omitempty"`
	LabelAll    string            `json:"label_all,omitempty"`
	SkipOverall bool              `json:"skip_overall,omitempty"`
	Workers     int               `json:"workers,omitempty"`
	Refresh     bool              `json:"refresh,omitempty"` // ignore cached rows

	// Table options
	Vars   []string         `json:"vars,omitempty"`
	Spans  []table.SpanSpec `json:"spans,omitempty"`
	Format *table.Format    `json:"format,omitempty"`

	// Layout options
	ColX            *int      `json:"col_x,omitempty"`  // default: the estimate column
	ColCI           *int      `json:"col_ci,omitempty"` // default: the interval column
	VLine           *float64  `json:"vline,omitempty"`  // default 1
	NoVLine         bool      `json:"no_vline,omitempty"`
	ForestHeader    []string  `json:"forest_header,omitempty"`
	XLim            []float64 `json:"xlim,omitempty"`
	XAt             []float64 `json:"x_at,omitempty"`
	LinearX         bool      `json:"linear_x,omitempty"` // default is a log axis
	WidthRowNames   *float64  `json:"width_row_names,omitempty"`
	WidthColumns    []float64 `json:"width_columns,omitempty"`
	WidthForest     *float64  `json:"width_forest,omitempty"`
	ColSymbolSize   *int      `json:"col_symbol_size,omitempty"`
	PlotContentRows bool      `json:"plot_content_rows,omitempty"`
	FontSize        float64   `json:"font_size,omitempty"`

	// Render options
	Formats   []string `json:"formats,omitempty"`
	Style     string   `json:"style,omitempty"`
	Title     string   `json:"title,omitempty"`
	TextWidth int      `json:"text_width,omitempty"` // terminal columns for txt, 0 = detect

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`
	Fitter fit.Fitter  `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Rows are the extracted effect rows in input order.
	Rows []effect.Row

	// RowsHash is the content hash of Rows.
	RowsHash string

	Table    *table.EffectTable
	Geometry *layout.Geometry
	Drawing  *render.Drawing

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Rows        int
	Empty       int
	Degenerate  int
	ExtractTime time.Duration
	LayoutTime  time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	RowsHit   bool // Whether effect rows came from cache
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: svg, png, pdf, json, txt)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateStyle checks that a style is valid.
func ValidateStyle(style string) error {
	_, err := styles.ByName(style)
	return err
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks the options for the full pipeline and
// applies defaults. It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForExtract(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForExtract checks the extraction settings and applies defaults.
// Column names are checked against the data by the extractor itself.
func (o *Options) ValidateForExtract() error {
	if len(o.Variables.Biomarkers) == 0 {
		return errors.Configuration("at least one biomarker is required")
	}
	if o.ConfLevel == 0 {
		o.ConfLevel = effect.DefaultConfLevel
	}
	if err := errors.ValidateConfLevel(o.ConfLevel); err != nil {
		return err
	}
	if o.Workers < 0 {
		return errors.Configuration("workers must not be negative, got %d", o.Workers)
	}
	for _, g := range o.Subgroups {
		if g.Var == "" {
			return errors.Configuration("subgroup without a variable")
		}
	}
	if o.LabelAll == "" {
		o.LabelAll = effect.DefaultLabelAll
	}
	o.setLogger()
	return nil
}

// SetTableDefaults fills the table format.
func (o *Options) SetTableDefaults() {
	if o.Format == nil {
		f := table.DefaultFormat()
		o.Format = &f
	}
	o.setLogger()
}

// SetLayoutDefaults fills the reference line.
func (o *Options) SetLayoutDefaults() {
	if o.VLine == nil && !o.NoVLine {
		v := DefaultVLine
		o.VLine = &v
	}
	o.setLogger()
}

// ValidateForLayout applies defaults and checks settings that do not need
// the table. Everything else is checked by the layout engine.
func (o *Options) ValidateForLayout() error {
	o.SetTableDefaults()
	o.SetLayoutDefaults()
	if o.NoVLine && len(o.ForestHeader) > 0 {
		return errors.Configuration("forest_header requires a reference line")
	}
	if o.FontSize < 0 {
		return errors.Configuration("font_size must be positive, got %v", o.FontSize)
	}
	return nil
}

// SetRenderDefaults fills formats and style.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Style == "" {
		o.Style = DefaultStyle
	}
	o.setLogger()
}

// ValidateForRender applies defaults and checks render settings.
func (o *Options) ValidateForRender() error {
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	o.SetRenderDefaults()
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	return ValidateStyle(o.Style)
}

// HasFormat reports whether f is one of the requested formats.
func (o *Options) HasFormat(f string) bool {
	return slices.Contains(o.Formats, f)
}

func (o *Options) setLogger() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// LayoutConfig translates the options into a layout configuration for t.
func (o *Options) LayoutConfig(t *table.EffectTable) layout.Config {
	cfg := layout.Config{
		ColX:            t.EstimateColumn(),
		ColCI:           t.IntervalColumn(),
		VLine:           o.VLine,
		ForestHeader:    o.ForestHeader,
		XLim:            o.XLim,
		LogX:            !o.LinearX,
		XAt:             o.XAt,
		WidthRowNames:   o.WidthRowNames,
		WidthColumns:    o.WidthColumns,
		WidthForest:     o.WidthForest,
		ColSymbolSize:   o.ColSymbolSize,
		PlotContentRows: o.PlotContentRows,
		FontSize:        o.FontSize,
	}
	if o.ColX != nil {
		cfg.ColX = *o.ColX
	}
	if o.ColCI != nil {
		cfg.ColCI = *o.ColCI
	}
	if o.NoVLine {
		cfg.VLine = nil
	}
	return cfg
}

// RowsKeyOpts returns cache key options for extraction.
func (o *Options) RowsKeyOpts() cache.RowsKeyOpts {
	groups := make([]string, len(o.Subgroups))
	for i, g := range o.Subgroups {
		groups[i] = cache.HashJSON(g)
	}
	fitter := ""
	if o.Fitter != nil {
		fitter = o.Fitter.TestName()
	}
	return cache.RowsKeyOpts{
		Outcome:    o.Variables.Outcome().String(),
		Variables:  cache.HashJSON(variablesKey{o.Variables, o.Labels}),
		Subgroups:  groups,
		ConfLevel:  o.ConfLevel,
		LabelAll:   o.LabelAll,
		SkipAll:    o.SkipOverall,
		FitterName: fitter,
	}
}

// ArtifactKeyOpts returns cache key options for one rendered format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format: format,
		Style:  o.Style,
		Table:  cache.HashJSON(tableKey{o.Vars, o.Spans, o.Format}),
		Layout: cache.HashJSON(layoutKey{
			ColX:            o.ColX,
			ColCI:           o.ColCI,
			VLine:           o.VLine,
			NoVLine:         o.NoVLine,
			ForestHeader:    o.ForestHeader,
			XLim:            o.XLim,
			XAt:             o.XAt,
			LinearX:         o.LinearX,
			WidthRowNames:   o.WidthRowNames,
			WidthColumns:    o.WidthColumns,
			WidthForest:     o.WidthForest,
			ColSymbolSize:   o.ColSymbolSize,
			PlotContentRows: o.PlotContentRows,
			FontSize:        o.FontSize,
			Title:           o.Title,
		}),
		Width: o.TextWidth,
	}
}

type variablesKey struct {
	Variables effect.Variables
	Labels    map[string]string
}

type tableKey struct {
	Vars   []string
	Spans  []table.SpanSpec
	Format *table.Format
}

type layoutKey struct {
	ColX, ColCI     *int
	VLine           *float64
	NoVLine         bool
	ForestHeader    []string
	XLim, XAt       []float64
	LinearX         bool
	WidthRowNames   *float64
	WidthColumns    []float64
	WidthForest     *float64
	ColSymbolSize   *int
	PlotContentRows bool
	FontSize        float64
	Title           string
}
