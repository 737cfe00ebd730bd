package effect

import (
	"context"
	"io"
	"runtime"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/forestplot/pkg/dataset"
	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/stats"
	"github.com/matzehuels/forestplot/pkg/stats/fit"
)

// Defaults for Options.
const (
	DefaultConfLevel = 0.95
	DefaultLabelAll  = "All patients"
)

// Variables names the dataset columns used by the fits.
type Variables struct {
	// Response analyses: a 0/1 column, or a categorical column whose
	// ResponderLevels count as responses.
	Response        string   `json:"response,omitempty"`
	ResponderLevels []string `json:"responder_levels,omitempty"`

	// Survival analyses.
	Time  string `json:"time,omitempty"`
	Event string `json:"event,omitempty"`

	// Biomarkers are fitted one at a time as the effect-of-interest term.
	// Categorical biomarkers need two levels in BiomarkerLevels.
	Biomarkers      []string            `json:"biomarkers"`
	BiomarkerLevels map[string][]string `json:"biomarker_levels,omitempty"`

	Covariates []string `json:"covariates,omitempty"`
	Strata     []string `json:"strata,omitempty"`
}

// Outcome returns KindSurvival when time and event are set.
func (v Variables) Outcome() fit.Kind {
	if v.Time != "" || v.Event != "" {
		return fit.KindSurvival
	}
	return fit.KindResponse
}

// Level is one subgroup. Several raw values can be merged into one level.
type Level struct {
	Label  string   `json:"label"`
	Values []string `json:"values"`
}

// Subgroup defines the levels of one grouping variable. Empty Levels
// means every value of Var, in order of first appearance.
type Subgroup struct {
	Var    string  `json:"var"`
	Label  string  `json:"label,omitempty"`
	Levels []Level `json:"levels,omitempty"`
}

// Options configures Extract.
type Options struct {
	ConfLevel   float64     // default 0.95
	LabelAll    string      // label of the overall row, default "All patients"
	SkipOverall bool        // omit the overall row per biomarker
	Workers     int         // concurrent fits, default GOMAXPROCS
	Fitter      fit.Fitter  // default Logistic or CoxPH by outcome
	Logger      *log.Logger // default discards
}

func (o *Options) setDefaults(vars Variables) {
	if o.ConfLevel == 0 {
		o.ConfLevel = DefaultConfLevel
	}
	if o.LabelAll == "" {
		o.LabelAll = DefaultLabelAll
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Fitter == nil {
		if vars.Outcome() == fit.KindSurvival {
			o.Fitter = fit.CoxPH{}
		} else {
			o.Fitter = fit.Logistic{}
		}
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
}

// job is one fit: a biomarker on one row slice.
type job struct {
	row  Row
	rows []int
}

// Extract fits every biomarker on the full data and on each subgroup
// level and returns one row per fit, ordered by biomarker, then the
// overall row, then subgroup variable and level as given.
//
// Only configuration mistakes and context cancellation return an error.
func Extract(ctx context.Context, ds *dataset.Dataset, vars Variables, groups []Subgroup, opts Options) ([]Row, error) {
	opts.setDefaults(vars)
	if err := errors.ValidateConfLevel(opts.ConfLevel); err != nil {
		return nil, err
	}
	if err := validate(ds, vars, groups, opts.Fitter); err != nil {
		return nil, err
	}

	jobs, err := plan(ds, vars, groups, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows := make([]Row, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, err := fitOne(ds, vars, j, opts)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var empty, degenerate int
	for _, r := range rows {
		switch r.Status {
		case StatusEmptyData:
			empty++
		case StatusFitDegeneracy:
			degenerate++
		}
	}
	opts.Logger.Info("extracted effects",
		"rows", len(rows),
		"empty", empty,
		"degenerate", degenerate,
		"duration", time.Since(start))
	return rows, nil
}

func validate(ds *dataset.Dataset, vars Variables, groups []Subgroup, f fit.Fitter) error {
	if len(vars.Biomarkers) == 0 {
		return errors.Configuration("no biomarkers given")
	}
	if err := errors.ValidateVariableNames(vars.Biomarkers); err != nil {
		return err
	}
	if f.Kind() != vars.Outcome() {
		return errors.Configuration("%s fitter used with %s variables", f.Kind(), vars.Outcome())
	}

	names := slices.Concat(vars.Biomarkers, vars.Covariates, vars.Strata)
	if vars.Outcome() == fit.KindSurvival {
		if vars.Time == "" || vars.Event == "" {
			return errors.Configuration("survival analysis needs both time and event")
		}
		names = append(names, vars.Time, vars.Event)
	} else {
		if vars.Response == "" {
			return errors.Configuration("response analysis needs a response variable")
		}
		names = append(names, vars.Response)
	}
	for _, g := range groups {
		names = append(names, g.Var)
	}
	for _, name := range names {
		if !ds.Has(name) {
			return errors.Configuration("unknown variable %q", name)
		}
	}
	return nil
}

func plan(ds *dataset.Dataset, vars Variables, groups []Subgroup, opts Options) ([]job, error) {
	all := make([]int, ds.NumRows())
	for i := range all {
		all[i] = i
	}

	var jobs []job
	for _, b := range vars.Biomarkers {
		base := emptyRow()
		base.Biomarker = b
		base.BiomarkerLabel = ds.Label(b)
		base.Outcome = vars.Outcome()
		base.ConfLevel = opts.ConfLevel
		base.PValueLabel = opts.Fitter.TestName()

		if !opts.SkipOverall {
			r := base
			r.Kind = KindContent
			r.Label = opts.LabelAll
			jobs = append(jobs, job{row: r, rows: all})
		}

		for _, g := range groups {
			levels := g.Levels
			if len(levels) == 0 {
				values, err := ds.Levels(g.Var)
				if err != nil {
					return nil, err
				}
				for _, v := range values {
					levels = append(levels, Level{Label: v, Values: []string{v}})
				}
			}
			varLabel := g.Label
			if varLabel == "" {
				varLabel = ds.Label(g.Var)
			}
			for _, lvl := range levels {
				idx, err := ds.Where(g.Var, lvl.Values...)
				if err != nil {
					return nil, err
				}
				r := base
				r.Kind = KindAnalysis
				r.Var = g.Var
				r.VarLabel = varLabel
				r.Label = lvl.Label
				jobs = append(jobs, job{row: r, rows: idx})
			}
		}
	}
	return jobs, nil
}

// fitOne computes the descriptive statistics and the effect for one job.
// Empty data and degenerate fits are recorded on the row.
func fitOne(ds *dataset.Dataset, vars Variables, j job, opts Options) (Row, error) {
	row := j.row
	sub := ds.Subset(j.rows)
	model := fit.Model{
		Response:        vars.Response,
		ResponderLevels: vars.ResponderLevels,
		Time:            vars.Time,
		Event:           vars.Event,
		Term:            row.Biomarker,
		TermLevels:      vars.BiomarkerLevels[row.Biomarker],
		Covariates:      vars.Covariates,
		Strata:          vars.Strata,
	}

	if err := describe(sub, vars, model, &row); err != nil {
		return Row{}, err
	}
	if row.NTotal == 0 {
		row.Status = StatusEmptyData
		row.Detail = "no subjects in subgroup"
		opts.Logger.Debug("empty subgroup", "biomarker", row.Biomarker, "var", row.Var, "level", row.Label)
		return row, nil
	}

	res, err := opts.Fitter.Fit(sub, model)
	switch {
	case err == nil:
	case errors.IsConfiguration(err):
		return Row{}, err
	case errors.Is(err, errors.ErrCodeEmptyData):
		row.Status = StatusEmptyData
		row.Detail = errors.UserMessage(err)
		return row, nil
	default:
		row.Status = StatusFitDegeneracy
		row.Detail = errors.UserMessage(err)
		opts.Logger.Warn("degenerate fit",
			"biomarker", row.Biomarker,
			"var", row.Var,
			"level", row.Label,
			"reason", row.Detail)
		return row, nil
	}

	eff := res.Effect(opts.ConfLevel)
	row.NTotal, row.NEvent = res.N, res.Events
	row.Estimate = stats.Of(eff.Estimate)
	row.Lower = stats.Of(eff.Lower)
	row.Upper = stats.Of(eff.Upper)
	row.PValue = stats.Of(eff.P)
	if !row.HasEstimate() {
		row.Estimate, row.Lower, row.Upper = stats.NA(), stats.NA(), stats.NA()
		row.Status = StatusFitDegeneracy
		row.Detail = "effect overflows"
	}
	return row, nil
}

// describe fills the counts and the observed proportion or median from the
// subjects with complete data for the model.
func describe(sub *dataset.Dataset, vars Variables, m fit.Model, row *Row) error {
	if sub.NumRows() == 0 {
		return nil
	}
	outcome := []string{m.Response}
	if vars.Outcome() == fit.KindSurvival {
		outcome = []string{m.Time, m.Event}
	}
	idx, err := sub.CompleteCases(slices.Concat(outcome, []string{m.Term}, m.Covariates, m.Strata)...)
	if err != nil {
		return err
	}
	cc := sub.Subset(idx)
	row.NTotal = cc.NumRows()
	if row.NTotal == 0 {
		return nil
	}

	if vars.Outcome() == fit.KindSurvival {
		times, err := cc.Numeric(m.Time)
		if err != nil {
			return err
		}
		events, err := cc.Numeric(m.Event)
		if err != nil {
			return err
		}
		for _, e := range events {
			if e == 1 {
				row.NEvent++
			}
		}
		row.Median = stats.Of(fit.KaplanMeierMedian(times, events))
		return nil
	}

	col, err := cc.Column(m.Response)
	if err != nil {
		return err
	}
	for i := 0; i < col.Len(); i++ {
		if col.Kind == dataset.Numeric && col.Num[i] == 1 ||
			col.Kind == dataset.Categorical && slices.Contains(m.ResponderLevels, col.Str[i]) {
			row.NEvent++
		}
	}
	row.Proportion = stats.Num(float64(row.NEvent) / float64(row.NTotal))
	return nil
}
