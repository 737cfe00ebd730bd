package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/pipeline"
	"github.com/matzehuels/forestplot/pkg/table"
)

// extractFlags holds the flags naming variables and fit settings.
type extractFlags struct {
	response        string
	responderLevels []string
	time            string
	event           string
	biomarkers      []string
	covariates      []string
	strata          []string
	subgroups       []string
	labels          map[string]string
	confLevel       float64
	labelAll        string
	skipOverall     bool
	workers         int
	refresh         bool
}

func (f *extractFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.response, "response", "", "binary response column (logistic regression)")
	fs.StringSliceVar(&f.responderLevels, "responder-levels", nil, "levels of a categorical response that count as responders")
	fs.StringVar(&f.time, "time", "", "survival time column (Cox regression)")
	fs.StringVar(&f.event, "event", "", "survival event column, 1 = event")
	fs.StringSliceVarP(&f.biomarkers, "biomarker", "b", nil, "biomarker column(s), one model each")
	fs.StringSliceVar(&f.covariates, "covariate", nil, "covariate column(s)")
	fs.StringSliceVar(&f.strata, "strata", nil, "stratification column(s)")
	fs.StringArrayVarP(&f.subgroups, "subgroup", "s", nil, `subgroup variable, "VAR" or "VAR:Label" (repeatable)`)
	fs.StringToStringVar(&f.labels, "label", nil, `variable display labels, "VAR=Label"`)
	fs.Float64Var(&f.confLevel, "conf-level", 0, "confidence level (default 0.95)")
	fs.StringVar(&f.labelAll, "label-all", "", `label of the overall row (default "All patients")`)
	fs.BoolVar(&f.skipOverall, "skip-overall", false, "omit the overall row")
	fs.IntVar(&f.workers, "workers", 0, "concurrent fits (default GOMAXPROCS)")
	fs.BoolVar(&f.refresh, "refresh", false, "ignore cached effect rows")
}

// apply overlays the flags the user set onto opts.
func (f *extractFlags) apply(fs *pflag.FlagSet, opts *pipeline.Options) error {
	v := &opts.Variables
	setChanged(fs, "response", &v.Response, f.response)
	setChanged(fs, "responder-levels", &v.ResponderLevels, f.responderLevels)
	setChanged(fs, "time", &v.Time, f.time)
	setChanged(fs, "event", &v.Event, f.event)
	setChanged(fs, "biomarker", &v.Biomarkers, f.biomarkers)
	setChanged(fs, "covariate", &v.Covariates, f.covariates)
	setChanged(fs, "strata", &v.Strata, f.strata)
	setChanged(fs, "conf-level", &opts.ConfLevel, f.confLevel)
	setChanged(fs, "label-all", &opts.LabelAll, f.labelAll)
	setChanged(fs, "skip-overall", &opts.SkipOverall, f.skipOverall)
	setChanged(fs, "workers", &opts.Workers, f.workers)
	setChanged(fs, "refresh", &opts.Refresh, f.refresh)

	if fs.Changed("subgroup") {
		groups := make([]effect.Subgroup, 0, len(f.subgroups))
		for _, s := range f.subgroups {
			g, err := parseSubgroup(s)
			if err != nil {
				return err
			}
			groups = append(groups, g)
		}
		opts.Subgroups = groups
	}
	if fs.Changed("label") {
		if opts.Labels == nil {
			opts.Labels = make(map[string]string, len(f.labels))
		}
		for k, l := range f.labels {
			opts.Labels[k] = l
		}
	}
	return nil
}

// plotFlags holds table, layout and render flags.
type plotFlags struct {
	vars            []string
	spans           []string
	forestHeader    []string
	xlim            []float64
	xat             []float64
	vline           float64
	noVLine         bool
	linearX         bool
	widthForest     float64
	widthRowNames   float64
	plotContentRows bool
	fontSize        float64
	formats         []string
	style           string
	title           string
}

func (f *plotFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.vars, "vars", nil, "table columns: n_tot, n_event, prop, median, est, ci, est_ci, pval")
	fs.StringArrayVar(&f.spans, "span", nil, `spanning header, "Label=from:to" (repeatable)`)
	fs.StringArrayVar(&f.forestHeader, "forest-header", nil, "labels left and right of the reference line (give twice)")
	fs.Float64SliceVar(&f.xlim, "xlim", nil, "axis limits, lo,hi")
	fs.Float64SliceVar(&f.xat, "x-at", nil, "tick positions")
	fs.Float64Var(&f.vline, "vline", pipeline.DefaultVLine, "reference line position")
	fs.BoolVar(&f.noVLine, "no-vline", false, "omit the reference line")
	fs.BoolVar(&f.linearX, "linear-x", false, "linear axis instead of log")
	fs.Float64Var(&f.widthForest, "width-forest", 0, "forest panel width as a share of the total")
	fs.Float64Var(&f.widthRowNames, "width-row-names", 0, "row label column width as a share of the total")
	fs.BoolVar(&f.plotContentRows, "plot-content-rows", false, "also plot the overall rows")
	fs.Float64Var(&f.fontSize, "font-size", 0, "font size in points")
	fs.StringSliceVarP(&f.formats, "format", "f", nil, "output format(s): svg (default), png, pdf, json, txt")
	fs.StringVar(&f.style, "style", "", "visual style: simple (default), journal")
	fs.StringVar(&f.title, "title", "", "plot title")
}

func (f *plotFlags) apply(fs *pflag.FlagSet, opts *pipeline.Options) error {
	setChanged(fs, "vars", &opts.Vars, f.vars)
	setChanged(fs, "forest-header", &opts.ForestHeader, f.forestHeader)
	setChanged(fs, "xlim", &opts.XLim, f.xlim)
	setChanged(fs, "x-at", &opts.XAt, f.xat)
	setChanged(fs, "no-vline", &opts.NoVLine, f.noVLine)
	setChanged(fs, "linear-x", &opts.LinearX, f.linearX)
	setChanged(fs, "plot-content-rows", &opts.PlotContentRows, f.plotContentRows)
	setChanged(fs, "font-size", &opts.FontSize, f.fontSize)
	setChanged(fs, "format", &opts.Formats, f.formats)
	setChanged(fs, "style", &opts.Style, f.style)
	setChanged(fs, "title", &opts.Title, f.title)
	if fs.Changed("vline") {
		v := f.vline
		opts.VLine = &v
	}
	if fs.Changed("width-forest") {
		w := f.widthForest
		opts.WidthForest = &w
	}
	if fs.Changed("width-row-names") {
		w := f.widthRowNames
		opts.WidthRowNames = &w
	}
	if fs.Changed("span") {
		spans := make([]table.SpanSpec, 0, len(f.spans))
		for _, s := range f.spans {
			sp, err := parseSpan(s)
			if err != nil {
				return err
			}
			spans = append(spans, sp)
		}
		opts.Spans = spans
	}
	return pipeline.ValidateFormats(opts.Formats)
}

func setChanged[T any](fs *pflag.FlagSet, name string, dst *T, v T) {
	if fs.Changed(name) {
		*dst = v
	}
}

// parseSubgroup parses "VAR" or "VAR:Label".
func parseSubgroup(s string) (effect.Subgroup, error) {
	name, label, _ := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return effect.Subgroup{}, fmt.Errorf("invalid subgroup %q: want VAR or VAR:Label", s)
	}
	return effect.Subgroup{Var: name, Label: strings.TrimSpace(label)}, nil
}

// parseSpan parses "Label=from:to".
func parseSpan(s string) (table.SpanSpec, error) {
	label, cols, ok := strings.Cut(s, "=")
	from, to, ok2 := strings.Cut(cols, ":")
	if !ok || !ok2 || from == "" || to == "" {
		return table.SpanSpec{}, fmt.Errorf("invalid span %q: want Label=from:to", s)
	}
	return table.SpanSpec{Label: label, From: from, To: to}, nil
}

// addOutputFlag registers -o/--output.
func addOutputFlag(cmd *cobra.Command, dst *string, usage string) {
	cmd.Flags().StringVarP(dst, "output", "o", "", usage)
}
