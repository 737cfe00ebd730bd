package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/forestplot/pkg/cache"
	"github.com/matzehuels/forestplot/pkg/dataset"
	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/observability"
	"github.com/matzehuels/forestplot/pkg/stats"
	"github.com/matzehuels/forestplot/pkg/stats/fit"
	"github.com/matzehuels/forestplot/pkg/table"
)

func ptr[T any](v T) *T { return &v }

// trial returns 80 subjects with a binary response that rises with the
// biomarker but is not separated by it.
func trial() *dataset.Dataset {
	const n = 80
	rsp := make([]float64, n)
	bm := make([]float64, n)
	sex := make([]string, n)
	for i := range n {
		bm[i] = float64(i % 10)
		if (i*37)%11 < 3+i%10/3 {
			rsp[i] = 1
		}
		sex[i] = "F"
		if i%2 == 1 {
			sex[i] = "M"
		}
	}
	return dataset.MustNew(
		dataset.NumericColumn("RSP", rsp),
		dataset.NumericColumn("BMRKR1", bm),
		dataset.CategoricalColumn("SEX", sex),
	)
}

func trialOptions() Options {
	return Options{
		Variables: effect.Variables{Response: "RSP", Biomarkers: []string{"BMRKR1"}},
		Subgroups: []effect.Subgroup{{Var: "SEX", Label: "Sex"}},
		Labels:    map[string]string{"BMRKR1": "Biomarker 1"},
		Formats:   []string{FormatSVG, FormatJSON, FormatText},
		TextWidth: 100,
		Workers:   2,
	}
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"png", false},
		{"pdf", false},
		{"json", false},
		{"txt", false},
		{"invalid", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidFormat) {
			t.Errorf("ValidateFormat(%q) code = %s, want INVALID_FORMAT", tt.format, errors.GetCode(err))
		}
	}
}

func TestValidateStyle(t *testing.T) {
	tests := []struct {
		style   string
		wantErr bool
	}{
		{"simple", false},
		{"journal", false},
		{"", false},
		{"handdrawn", true},
	}
	for _, tt := range tests {
		err := ValidateStyle(tt.style)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateStyle(%q) error = %v, wantErr %v", tt.style, err, tt.wantErr)
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := trialOptions()
	opts.Formats = nil
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if opts.ConfLevel != effect.DefaultConfLevel {
		t.Errorf("ConfLevel = %v, want %v", opts.ConfLevel, effect.DefaultConfLevel)
	}
	if opts.LabelAll != effect.DefaultLabelAll {
		t.Errorf("LabelAll = %q", opts.LabelAll)
	}
	if opts.VLine == nil || *opts.VLine != DefaultVLine {
		t.Errorf("VLine = %v, want %v", opts.VLine, DefaultVLine)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != FormatSVG {
		t.Errorf("Formats = %v, want [svg]", opts.Formats)
	}
	if opts.Style != DefaultStyle || opts.Format == nil || opts.Logger == nil {
		t.Errorf("Style, Format, Logger = %q, %v, %v", opts.Style, opts.Format, opts.Logger)
	}

	// Idempotent.
	opts.Formats = []string{"bogus"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("second call should be a no-op, got %v", err)
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		code   errors.Code
	}{
		{"no biomarkers", func(o *Options) { o.Variables.Biomarkers = nil }, errors.ErrCodeConfiguration},
		{"conf level", func(o *Options) { o.ConfLevel = 1.5 }, errors.ErrCodeConfiguration},
		{"workers", func(o *Options) { o.Workers = -1 }, errors.ErrCodeConfiguration},
		{"subgroup var", func(o *Options) { o.Subgroups = []effect.Subgroup{{}} }, errors.ErrCodeConfiguration},
		{"header without vline", func(o *Options) { o.NoVLine = true; o.ForestHeader = []string{"a", "b"} }, errors.ErrCodeConfiguration},
		{"format", func(o *Options) { o.Formats = []string{"gif"} }, errors.ErrCodeInvalidFormat},
		{"style", func(o *Options) { o.Style = "neon" }, errors.ErrCodeInvalidStyle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := trialOptions()
			tt.mutate(&opts)
			err := opts.ValidateAndSetDefaults()
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestLayoutConfig(t *testing.T) {
	rows := []effect.Row{{
		Biomarker: "B", Label: "All", Kind: effect.KindContent, Outcome: fit.KindResponse,
		NTotal: 10, NEvent: 3, Proportion: 0.3, Median: stats.NA(),
		Estimate: 2, Lower: 1, Upper: 4, ConfLevel: 0.95, PValue: 0.04,
	}}
	opts := Options{NoVLine: true, LinearX: true}
	tbl, err := BuildTable(rows, opts)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	cfg := opts.LayoutConfig(tbl)
	if cfg.ColX != tbl.EstimateColumn() || cfg.ColCI != tbl.IntervalColumn() {
		t.Errorf("ColX, ColCI = %d, %d, want %d, %d", cfg.ColX, cfg.ColCI, tbl.EstimateColumn(), tbl.IntervalColumn())
	}
	if cfg.VLine != nil || cfg.LogX {
		t.Errorf("VLine, LogX = %v, %v, want nil, false", cfg.VLine, cfg.LogX)
	}

	opts = Options{ColX: ptr(0), ColCI: ptr(1)}
	opts.SetLayoutDefaults()
	cfg = opts.LayoutConfig(tbl)
	if cfg.ColX != 0 || cfg.ColCI != 1 || !cfg.LogX || cfg.VLine == nil {
		t.Errorf("cfg = %+v, want explicit columns, log axis and vline", cfg)
	}
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	runner := NewRunner(fc, nil, nil)

	result, err := runner.Execute(ctx, trial(), trialOptions())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("rows = %d, want 3 (overall + F + M)", len(result.Rows))
	}
	if result.Rows[0].BiomarkerLabel != "Biomarker 1" {
		t.Errorf("BiomarkerLabel = %q, want label applied", result.Rows[0].BiomarkerLabel)
	}
	// overall row, "Sex" header row, two levels
	if result.Table.NumRows() != 4 {
		t.Errorf("table rows = %d, want 4", result.Table.NumRows())
	}
	if len(result.Geometry.Rows) != result.Table.NumRows() {
		t.Errorf("geometry rows = %d, want %d", len(result.Geometry.Rows), result.Table.NumRows())
	}
	for _, f := range []string{FormatSVG, FormatJSON, FormatText} {
		if len(result.Artifacts[f]) == 0 {
			t.Errorf("artifact %s missing", f)
		}
	}
	if !strings.Contains(string(result.Artifacts[FormatSVG]), "All patients") {
		t.Error("svg should contain the overall row label")
	}
	if result.CacheInfo.RowsHit || result.CacheInfo.RenderHit {
		t.Errorf("first run CacheInfo = %+v, want misses", result.CacheInfo)
	}
	if result.Drawing == nil || result.RowsHash == "" {
		t.Error("drawing and rows hash should be set")
	}

	again, err := runner.Execute(ctx, trial(), trialOptions())
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !again.CacheInfo.RowsHit || !again.CacheInfo.RenderHit {
		t.Errorf("second run CacheInfo = %+v, want hits", again.CacheInfo)
	}
	if string(again.Artifacts[FormatSVG]) != string(result.Artifacts[FormatSVG]) {
		t.Error("cached svg differs")
	}

	refresh := trialOptions()
	refresh.Refresh = true
	fresh, err := runner.Execute(ctx, trial(), refresh)
	if err != nil {
		t.Fatalf("refresh Execute: %v", err)
	}
	if fresh.CacheInfo.RowsHit {
		t.Error("Refresh should bypass cached rows")
	}
}

func TestExecuteConfigurationError(t *testing.T) {
	opts := trialOptions()
	opts.Subgroups = []effect.Subgroup{{Var: "ARM"}}
	_, err := NewRunner(nil, nil, nil).Execute(context.Background(), trial(), opts)
	if !errors.IsConfiguration(err) {
		t.Errorf("error = %v, want CONFIGURATION", err)
	}
}

func TestRenderRows(t *testing.T) {
	rows := []effect.Row{
		{
			Biomarker: "B", Label: "All patients", Kind: effect.KindContent, Outcome: fit.KindSurvival,
			NTotal: 100, NEvent: 40, Proportion: stats.NA(), Median: 12.5,
			Estimate: 0.8, Lower: 0.5, Upper: 1.3, ConfLevel: 0.95, PValue: 0.3,
			Status: effect.StatusOK,
		},
		{
			Biomarker: "B", Var: "SEX", VarLabel: "Sex", Label: "F", Kind: effect.KindAnalysis,
			Outcome: fit.KindSurvival, NTotal: 50, NEvent: 20, Proportion: stats.NA(), Median: 10,
			Estimate: 0.6, Lower: 0.3, Upper: 1.2, ConfLevel: 0.95, PValue: 0.15,
			Status: effect.StatusOK,
		},
	}
	opts := Options{
		Formats:      []string{FormatSVG},
		ForestHeader: []string{"Treatment better", "Control better"},
		Vars:         []string{table.VarNTotal, table.VarEstCI},
	}
	result, err := NewRunner(nil, nil, nil).RenderRows(context.Background(), rows, opts)
	if err != nil {
		t.Fatalf("RenderRows: %v", err)
	}
	if got := result.Table.NumCols(); got != 2 {
		t.Errorf("columns = %d, want 2", got)
	}
	if result.Geometry.ColX != 1 || result.Geometry.ColCI != 1 {
		t.Errorf("ColX, ColCI = %d, %d, want the est_ci column", result.Geometry.ColX, result.Geometry.ColCI)
	}
	svg := string(result.Artifacts[FormatSVG])
	for _, want := range []string{"Treatment better", "Hazard Ratio (95% CI)"} {
		if !strings.Contains(svg, want) {
			t.Errorf("svg missing %q", want)
		}
	}
	visible := 0
	for _, rg := range result.Geometry.Rows {
		if rg.Visible {
			visible++
		}
	}
	if visible != 1 {
		t.Errorf("visible rows = %d, want 1 (content rows are not plotted by default)", visible)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	mu     sync.Mutex
	events []string
}

func (h *recordingHooks) record(e string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func (h *recordingHooks) OnExtractStart(context.Context, int) { h.record("extract") }
func (h *recordingHooks) OnLayoutStart(context.Context, int)  { h.record("layout") }
func (h *recordingHooks) OnRenderComplete(_ context.Context, _ []string, _ time.Duration, err error) {
	if err == nil {
		h.record("render")
	}
}

func TestExecuteEmitsHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	defer observability.Reset()

	if _, err := NewRunner(nil, nil, nil).Execute(context.Background(), trial(), trialOptions()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := strings.Join(hooks.events, ","); got != "extract,layout,render" {
		t.Errorf("events = %s, want extract,layout,render", got)
	}
}

func TestDatasetHash(t *testing.T) {
	if DatasetHash(trial()) != DatasetHash(trial()) {
		t.Error("DatasetHash should be deterministic")
	}
	other := dataset.MustNew(dataset.NumericColumn("RSP", []float64{1}))
	if DatasetHash(trial()) == DatasetHash(other) {
		t.Error("different data should hash differently")
	}
}

func TestDecodedOptionsKeepFormatDefaults(t *testing.T) {
	var opts Options
	if err := json.Unmarshal([]byte(`{"format":{"estimate_digits":1}}`), &opts); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	rows := []effect.Row{{
		Biomarker: "B1", Label: "All patients", Kind: effect.KindContent, Outcome: fit.KindResponse,
		NTotal: 10, NEvent: 4, Proportion: 0.4, Median: stats.NA(),
		Estimate: 1500, Lower: 900, Upper: 2500, ConfLevel: 0.95, PValue: stats.NA(),
	}}
	opts.Vars = []string{table.VarEstimate, table.VarPValue}
	tbl, err := BuildTable(rows, opts)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	cells := tbl.Row(0).Cells
	if cells[0].Text != ">999.9" || cells[1].Text != "NA" {
		t.Errorf("cells = %q, %q, want >999.9, NA", cells[0].Text, cells[1].Text)
	}
}
