// Package config loads forest plot settings from TOML or YAML files.
//
// Every field is a pointer or a slice so that an absent key leaves the
// corresponding pipeline option untouched. CLI flags are applied after the
// file and win.
//
//	[extract]
//	response = "RSP"
//	biomarkers = ["BMRKR1", "BMRKR2"]
//
//	[[subgroups]]
//	var = "SEX"
//	label = "Sex"
//
//	[layout]
//	xlim = [0.1, 10]
//	forest_header = ["Treatment better", "Control better"]
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/pipeline"
	"github.com/matzehuels/forestplot/pkg/table"
)

// FileConfig is the configuration file.
type FileConfig struct {
	Extract   ExtractConfig     `toml:"extract" yaml:"extract"`
	Subgroups []effect.Subgroup `toml:"subgroups" yaml:"subgroups"`
	Labels    map[string]string `toml:"labels" yaml:"labels"`
	Table     TableConfig       `toml:"table" yaml:"table"`
	Layout    LayoutConfig      `toml:"layout" yaml:"layout"`
	Render    RenderConfig      `toml:"render" yaml:"render"`
	Cache     CacheConfig       `toml:"cache" yaml:"cache"`
	Store     StoreConfig       `toml:"store" yaml:"store"`
}

// ExtractConfig maps the variable roles and fit settings.
type ExtractConfig struct {
	Response        *string             `toml:"response" yaml:"response"`
	ResponderLevels []string            `toml:"responder_levels" yaml:"responder_levels"`
	Time            *string             `toml:"time" yaml:"time"`
	Event           *string             `toml:"event" yaml:"event"`
	Biomarkers      []string            `toml:"biomarkers" yaml:"biomarkers"`
	BiomarkerLevels map[string][]string `toml:"biomarker_levels" yaml:"biomarker_levels"`
	Covariates      []string            `toml:"covariates" yaml:"covariates"`
	Strata          []string            `toml:"strata" yaml:"strata"`
	ConfLevel       *float64            `toml:"conf_level" yaml:"conf_level"`
	LabelAll        *string             `toml:"label_all" yaml:"label_all"`
	SkipOverall     *bool               `toml:"skip_overall" yaml:"skip_overall"`
	Workers         *int                `toml:"workers" yaml:"workers"`
}

// TableConfig maps column selection and number formatting.
type TableConfig struct {
	Vars           []string         `toml:"vars" yaml:"vars"`
	Spans          []table.SpanSpec `toml:"spans" yaml:"spans"`
	CountDigits    *int             `toml:"count_digits" yaml:"count_digits"`
	PercentDigits  *int             `toml:"percent_digits" yaml:"percent_digits"`
	EstimateDigits *int             `toml:"estimate_digits" yaml:"estimate_digits"`
	MedianDigits   *int             `toml:"median_digits" yaml:"median_digits"`
	PValueDigits   *int             `toml:"pvalue_digits" yaml:"pvalue_digits"`
	Missing        *string          `toml:"missing" yaml:"missing"`
	CapThreshold   *float64         `toml:"cap_threshold" yaml:"cap_threshold"`
	IntervalSep    *string          `toml:"interval_sep" yaml:"interval_sep"`
}

// LayoutConfig maps the forest panel settings.
type LayoutConfig struct {
	ColX            *int      `toml:"col_x" yaml:"col_x"`
	ColCI           *int      `toml:"col_ci" yaml:"col_ci"`
	VLine           *float64  `toml:"vline" yaml:"vline"`
	NoVLine         *bool     `toml:"no_vline" yaml:"no_vline"`
	ForestHeader    []string  `toml:"forest_header" yaml:"forest_header"`
	XLim            []float64 `toml:"xlim" yaml:"xlim"`
	XAt             []float64 `toml:"x_at" yaml:"x_at"`
	LinearX         *bool     `toml:"linear_x" yaml:"linear_x"`
	WidthRowNames   *float64  `toml:"width_row_names" yaml:"width_row_names"`
	WidthColumns    []float64 `toml:"width_columns" yaml:"width_columns"`
	WidthForest     *float64  `toml:"width_forest" yaml:"width_forest"`
	ColSymbolSize   *int      `toml:"col_symbol_size" yaml:"col_symbol_size"`
	PlotContentRows *bool     `toml:"plot_content_rows" yaml:"plot_content_rows"`
	FontSize        *float64  `toml:"font_size" yaml:"font_size"`
}

// RenderConfig maps output settings.
type RenderConfig struct {
	Formats []string `toml:"formats" yaml:"formats"`
	Style   *string  `toml:"style" yaml:"style"`
	Title   *string  `toml:"title" yaml:"title"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Dir      *string `toml:"dir" yaml:"dir"`
	RedisURL *string `toml:"redis_url" yaml:"redis_url"`
	Disabled *bool   `toml:"disabled" yaml:"disabled"`
}

// StoreConfig selects the run archive.
type StoreConfig struct {
	Path     *string `toml:"path" yaml:"path"`
	MongoURI *string `toml:"mongo_uri" yaml:"mongo_uri"`
}

// Load reads the configuration at path. The format follows the extension:
// .toml, or .yaml/.yml. A missing file is not an error.
func Load(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, errors.Configuration("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes data in the format named by ext (".toml", ".yaml" or
// ".yml").
func Parse(data []byte, ext string) (FileConfig, error) {
	var cfg FileConfig
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return FileConfig{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "failed to decode config")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return FileConfig{}, errors.New(errors.ErrCodeInvalidInput, "unknown config key %q", undecoded[0].String())
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return FileConfig{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "failed to decode config")
		}
	default:
		return FileConfig{}, errors.New(errors.ErrCodeInvalidFormat, "unsupported config format %q (want .toml, .yaml or .yml)", ext)
	}
	return cfg, nil
}

// Apply overlays the set fields of c onto opts.
func (c FileConfig) Apply(opts *pipeline.Options) {
	e := c.Extract
	v := &opts.Variables
	setIf(&v.Response, e.Response)
	setIf(&v.Time, e.Time)
	setIf(&v.Event, e.Event)
	sliceIf(&v.ResponderLevels, e.ResponderLevels)
	sliceIf(&v.Biomarkers, e.Biomarkers)
	sliceIf(&v.Covariates, e.Covariates)
	sliceIf(&v.Strata, e.Strata)
	if e.BiomarkerLevels != nil {
		v.BiomarkerLevels = e.BiomarkerLevels
	}
	setIf(&opts.ConfLevel, e.ConfLevel)
	setIf(&opts.LabelAll, e.LabelAll)
	setIf(&opts.SkipOverall, e.SkipOverall)
	setIf(&opts.Workers, e.Workers)
	sliceIf(&opts.Subgroups, c.Subgroups)
	if len(c.Labels) > 0 {
		if opts.Labels == nil {
			opts.Labels = make(map[string]string, len(c.Labels))
		}
		for k, l := range c.Labels {
			opts.Labels[k] = l
		}
	}

	c.Table.apply(opts)

	l := c.Layout
	ptrIf(&opts.ColX, l.ColX)
	ptrIf(&opts.ColCI, l.ColCI)
	ptrIf(&opts.VLine, l.VLine)
	setIf(&opts.NoVLine, l.NoVLine)
	sliceIf(&opts.ForestHeader, l.ForestHeader)
	sliceIf(&opts.XLim, l.XLim)
	sliceIf(&opts.XAt, l.XAt)
	setIf(&opts.LinearX, l.LinearX)
	ptrIf(&opts.WidthRowNames, l.WidthRowNames)
	sliceIf(&opts.WidthColumns, l.WidthColumns)
	ptrIf(&opts.WidthForest, l.WidthForest)
	ptrIf(&opts.ColSymbolSize, l.ColSymbolSize)
	setIf(&opts.PlotContentRows, l.PlotContentRows)
	setIf(&opts.FontSize, l.FontSize)

	sliceIf(&opts.Formats, c.Render.Formats)
	setIf(&opts.Style, c.Render.Style)
	setIf(&opts.Title, c.Render.Title)
}

func (t TableConfig) apply(opts *pipeline.Options) {
	sliceIf(&opts.Vars, t.Vars)
	sliceIf(&opts.Spans, t.Spans)
	if t.CountDigits == nil && t.PercentDigits == nil && t.EstimateDigits == nil &&
		t.MedianDigits == nil && t.PValueDigits == nil && t.Missing == nil &&
		t.CapThreshold == nil && t.IntervalSep == nil {
		return
	}
	f := table.DefaultFormat()
	if opts.Format != nil {
		f = *opts.Format
	}
	setIf(&f.CountDigits, t.CountDigits)
	setIf(&f.PercentDigits, t.PercentDigits)
	setIf(&f.EstimateDigits, t.EstimateDigits)
	setIf(&f.MedianDigits, t.MedianDigits)
	setIf(&f.PValueDigits, t.PValueDigits)
	setIf(&f.Missing, t.Missing)
	setIf(&f.CapThreshold, t.CapThreshold)
	setIf(&f.IntervalSep, t.IntervalSep)
	opts.Format = &f
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func ptrIf[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func sliceIf[T any](dst *[]T, src []T) {
	if src != nil {
		*dst = src
	}
}
