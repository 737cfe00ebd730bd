package table

import (
	"fmt"
	"math"
	"strconv"

	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/stats"
	"github.com/matzehuels/forestplot/pkg/stats/fit"
)

// Column identifiers accepted in BuildOptions.Vars.
const (
	VarNTotal   = "n_tot"
	VarNEvent   = "n_event"
	VarProp     = "prop"
	VarMedian   = "median"
	VarEstimate = "est"
	VarCI       = "ci"
	VarEstCI    = "est_ci"
	VarPValue   = "pval"
)

// DefaultVars returns the default column selection for an outcome kind.
func DefaultVars(kind fit.Kind) []string {
	if kind == fit.KindSurvival {
		return []string{VarNTotal, VarNEvent, VarMedian, VarEstimate, VarCI, VarPValue}
	}
	return []string{VarNTotal, VarNEvent, VarProp, VarEstimate, VarCI, VarPValue}
}

// SpanSpec groups the columns From..To (inclusive, by var id) under Label.
type SpanSpec struct {
	Label string `json:"label"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// BuildOptions configures Build.
type BuildOptions struct {
	Vars   []string   // default DefaultVars of the rows' outcome
	Spans  []SpanSpec // optional parent headers
	Format *Format    // default DefaultFormat()
}

// EffectTable is a Table built from effect rows. Source links each table
// row back to the effect row it came from.
type EffectTable struct {
	head    Header
	rows    []Row
	sources []int
	effects []effect.Row
	vars    []string
	outcome fit.Kind
	format  Format
}

func (t *EffectTable) Header() Header { return t.head }
func (t *EffectTable) NumRows() int   { return len(t.rows) }
func (t *EffectTable) NumCols() int   { return len(t.head.Columns) }
func (t *EffectTable) Row(i int) Row  { return t.rows[i] }

// Source returns the effect row behind table row i. Synthetic header rows
// have none.
func (t *EffectTable) Source(i int) (effect.Row, bool) {
	if s := t.sources[i]; s >= 0 {
		return t.effects[s], true
	}
	return effect.Row{}, false
}

// Vars returns the selected column ids.
func (t *EffectTable) Vars() []string { return t.vars }

// Outcome returns the analysis kind of the source rows.
func (t *EffectTable) Outcome() fit.Kind { return t.outcome }

// Format returns the display rules the table was built with.
func (t *EffectTable) Format() Format { return t.format }

// EstimateColumn returns the index of the column holding the point
// estimate, or -1.
func (t *EffectTable) EstimateColumn() int {
	if i := t.head.Index(VarEstimate); i >= 0 {
		return i
	}
	return t.head.Index(VarEstCI)
}

// IntervalColumn returns the index of the column holding the interval,
// or -1.
func (t *EffectTable) IntervalColumn() int {
	if i := t.head.Index(VarCI); i >= 0 {
		return i
	}
	return t.head.Index(VarEstCI)
}

// Build assembles effect rows into a table. Rows keep their input order;
// header rows are inserted where the biomarker (when there are several)
// or the subgroup variable changes.
func Build(rows []effect.Row, opts BuildOptions) (*EffectTable, error) {
	outcome := fit.KindResponse
	conf := effect.DefaultConfLevel
	pvalLabel := "p-value"
	if len(rows) > 0 {
		outcome = rows[0].Outcome
		if rows[0].ConfLevel > 0 {
			conf = rows[0].ConfLevel
		}
		if rows[0].PValueLabel != "" {
			pvalLabel = rows[0].PValueLabel
		}
	}

	vars := opts.Vars
	if len(vars) == 0 {
		vars = DefaultVars(outcome)
	}
	format := DefaultFormat()
	if opts.Format != nil {
		format = *opts.Format
	}

	head := Header{Columns: make([]Column, len(vars))}
	seen := make(map[string]bool, len(vars))
	for i, id := range vars {
		if seen[id] {
			return nil, errors.Configuration("column %q selected twice", id)
		}
		seen[id] = true
		label, ok := columnLabel(id, outcome, conf, pvalLabel)
		if !ok {
			return nil, errors.Configuration("unknown column %q", id)
		}
		head.Columns[i] = Column{ID: id, Label: label}
	}
	for _, s := range opts.Spans {
		from, to := head.Index(s.From), head.Index(s.To)
		if from < 0 || to < 0 {
			return nil, errors.Configuration("span %q references unselected columns %q..%q", s.Label, s.From, s.To)
		}
		head.Spans = append(head.Spans, Span{Label: s.Label, From: from, To: to})
	}
	if err := head.Validate(); err != nil {
		return nil, err
	}

	t := &EffectTable{head: head, effects: rows, vars: vars, outcome: outcome, format: format}

	multi := false
	for _, r := range rows[min(1, len(rows)):] {
		if r.Biomarker != rows[0].Biomarker {
			multi = true
			break
		}
	}
	base := 0
	if multi {
		base = 1
	}

	var biomarker, group string
	for i, r := range rows {
		if multi && (i == 0 || r.Biomarker != biomarker) {
			t.add(Row{Kind: KindHeader, Label: r.BiomarkerLabel, Group: r.Biomarker, Cells: t.blank()}, -1)
		}
		if i == 0 || r.Biomarker != biomarker {
			group = ""
		}
		biomarker = r.Biomarker

		switch r.Kind {
		case effect.KindAnalysis:
			if r.Var != group {
				t.add(Row{Kind: KindHeader, Label: r.VarLabel, Indent: base, Group: r.Var, Cells: t.blank()}, -1)
				group = r.Var
			}
			t.add(Row{Kind: KindAnalysis, Label: r.Label, Indent: base + 1, Group: r.Var, Cells: t.cells(r)}, i)
		case effect.KindHeader:
			t.add(Row{Kind: KindHeader, Label: r.Label, Indent: base, Group: r.Var, Cells: t.blank()}, i)
		default:
			group = ""
			t.add(Row{Kind: KindContent, Label: r.Label, Indent: base, Cells: t.cells(r)}, i)
		}
	}
	return t, nil
}

func (t *EffectTable) add(r Row, source int) {
	t.rows = append(t.rows, r)
	t.sources = append(t.sources, source)
}

func (t *EffectTable) blank() []Cell {
	return make([]Cell, len(t.head.Columns))
}

func (t *EffectTable) cells(r effect.Row) []Cell {
	f := t.format
	out := make([]Cell, len(t.vars))
	for i, id := range t.vars {
		switch id {
		case VarNTotal:
			out[i] = Cell{Values: []stats.Num{stats.Num(r.NTotal)}, Text: f.Count(r.NTotal)}
		case VarNEvent:
			out[i] = Cell{Values: []stats.Num{stats.Num(r.NEvent)}, Text: f.Count(r.NEvent)}
		case VarProp:
			out[i] = Cell{Values: []stats.Num{r.Proportion}, Text: f.Percent(r.Proportion)}
		case VarMedian:
			out[i] = Cell{Values: []stats.Num{r.Median}, Text: f.Number(r.Median, f.MedianDigits)}
		case VarEstimate:
			out[i] = Cell{Values: []stats.Num{r.Estimate}, Text: f.Ratio(r.Estimate)}
		case VarCI:
			out[i] = Cell{Values: []stats.Num{r.Lower, r.Upper}, Text: f.Interval(r.Lower, r.Upper)}
		case VarEstCI:
			out[i] = Cell{Values: []stats.Num{r.Estimate, r.Lower, r.Upper}, Text: f.EstimateCI(r.Estimate, r.Lower, r.Upper)}
		case VarPValue:
			out[i] = Cell{Values: []stats.Num{r.PValue}, Text: f.PValue(r.PValue)}
		}
	}
	return out
}

func columnLabel(id string, kind fit.Kind, conf float64, pvalLabel string) (string, bool) {
	ratio := "Odds Ratio"
	events := "Responders"
	if kind == fit.KindSurvival {
		ratio = "Hazard Ratio"
		events = "Events"
	}
	ci := strconv.FormatFloat(math.Round(conf*1000)/10, 'f', -1, 64) + "% CI"
	switch id {
	case VarNTotal:
		return "Total n", true
	case VarNEvent:
		return events, true
	case VarProp:
		return "Response (%)", true
	case VarMedian:
		return "Median", true
	case VarEstimate:
		return ratio, true
	case VarCI:
		return ci, true
	case VarEstCI:
		return fmt.Sprintf("%s (%s)", ratio, ci), true
	case VarPValue:
		return pvalLabel, true
	}
	return "", false
}
