// Package layout computes forest plot geometry from a table.
//
// [Compute] takes a [table.Table] and the indices of the estimate and
// interval columns and produces a [Geometry]: the axis transform and
// domain, tick positions, the reference line, column widths and one
// [RowGeometry] per table row with point and whisker coordinates.
//
// All x coordinates in Geometry are in transformed units (log10 when LogX
// is set). Values supplied in Config (XLim, XAt, VLine) are in the
// original unit and transformed here. The layout reads raw cell values,
// never display text, so capped values like ">999.9" still clip at their
// true position.
//
// Interval ends outside the domain are clamped to the boundary and
// flagged; rows without an estimate keep their vertical slot but draw
// nothing in the forest panel.
package layout

import (
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/stats"
	"github.com/matzehuels/forestplot/pkg/table"
)

// Default dimensions in output units (pixels for SVG).
const (
	DefaultFontSize     = 12.0
	DefaultRowHeight    = 20.0
	DefaultPadding      = 8.0
	DefaultForestWidth  = 240.0
	DefaultDomainMargin = 0.05
	DefaultSymbolSize   = 4.0

	// glyphAspect approximates average glyph width relative to font size.
	glyphAspect = 0.55
)

// Measurer returns the rendered width of a text.
type Measurer func(text string) float64

// TextMeasurer measures by terminal display width scaled to fontSize.
func TextMeasurer(fontSize float64) Measurer {
	return func(s string) float64 {
		return float64(runewidth.StringWidth(s)) * fontSize * glyphAspect
	}
}

// Config holds the layout request. Pointer and slice fields are optional;
// nil means "not set".
type Config struct {
	ColX  int // column holding the point estimate
	ColCI int // column holding (lower, upper) or (estimate, lower, upper)

	VLine        *float64
	ForestHeader []string // exactly two labels, left and right of VLine
	XLim         []float64
	LogX         bool
	XAt          []float64

	WidthRowNames *float64
	WidthColumns  []float64 // one per table column
	WidthForest   *float64

	// ColSymbolSize scales each row's marker by the square root of this
	// column's first value relative to the largest one.
	ColSymbolSize *int

	// PlotContentRows draws content rows (e.g. "All patients") in the
	// forest panel as well as analysis rows.
	PlotContentRows bool

	FontSize     float64
	RowHeight    float64
	Padding      float64 // negative means none
	ForestWidth  float64 // default width of the forest panel
	DomainMargin float64
	SymbolSize   float64
	Measurer     Measurer
}

func (c *Config) setDefaults() {
	if c.FontSize <= 0 {
		c.FontSize = DefaultFontSize
	}
	if c.RowHeight <= 0 {
		c.RowHeight = DefaultRowHeight
	}
	if c.Padding < 0 {
		c.Padding = 0
	} else if c.Padding == 0 {
		c.Padding = DefaultPadding
	}
	if c.ForestWidth <= 0 {
		c.ForestWidth = DefaultForestWidth
	}
	if c.DomainMargin <= 0 {
		c.DomainMargin = DefaultDomainMargin
	}
	if c.SymbolSize <= 0 {
		c.SymbolSize = DefaultSymbolSize
	}
	if c.Measurer == nil {
		c.Measurer = TextMeasurer(c.FontSize)
	}
}

// Widths are the column widths in output units.
type Widths struct {
	RowNames float64   `json:"row_names"`
	Columns  []float64 `json:"columns"`
	Forest   float64   `json:"forest"`
}

// RowGeometry is the forest panel geometry of one table row.
type RowGeometry struct {
	Row     int        `json:"row"`
	Kind    table.Kind `json:"kind"`
	Y       float64    `json:"y"` // vertical center
	Visible bool       `json:"visible"`

	PointX        stats.Num `json:"point_x"`
	PointInDomain bool      `json:"point_in_domain"`
	IntervalLo    stats.Num `json:"interval_lo"`
	IntervalHi    stats.Num `json:"interval_hi"`
	ClippedLo     bool      `json:"clipped_lo"`
	ClippedHi     bool      `json:"clipped_hi"`
	SymbolSize    float64   `json:"symbol_size"`
}

// Geometry is the complete forest layout.
type Geometry struct {
	Transform    Transform `json:"transform"`
	Domain       Domain    `json:"domain"`
	Ticks        []Tick    `json:"ticks"`
	VLine        stats.Num `json:"vline"`
	ForestHeader []string  `json:"forest_header,omitempty"`

	ColX  int `json:"col_x"`
	ColCI int `json:"col_ci"`

	Widths  Widths    `json:"widths"`
	ColumnX []float64 `json:"column_x"` // left edge of each data column
	ForestX float64   `json:"forest_x"` // left edge of the forest panel
	Padding float64   `json:"padding"`

	Rows []RowGeometry `json:"rows"`

	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	HeaderHeight float64 `json:"header_height"`
	AxisHeight   float64 `json:"axis_height"`
	RowHeight    float64 `json:"row_height"`
	FontSize     float64 `json:"font_size"`
}

// ToPixel maps a transformed x coordinate into the forest panel.
func (g *Geometry) ToPixel(x float64) float64 {
	inner := g.Widths.Forest - 2*g.Padding
	return g.ForestX + g.Padding + (x-g.Domain.Lo)/g.Domain.Span()*inner
}

// Analysis returns the geometry of analysis rows only.
func (g *Geometry) Analysis() []RowGeometry {
	var out []RowGeometry
	for _, r := range g.Rows {
		if r.Kind == table.KindAnalysis {
			out = append(out, r)
		}
	}
	return out
}

// Compute lays out t. Every configuration mistake is returned as a
// CONFIGURATION error before any geometry is built.
func Compute(t table.Table, cfg Config) (*Geometry, error) {
	cfg.setDefaults()
	if err := validate(t, cfg); err != nil {
		return nil, err
	}

	tr := Identity
	if cfg.LogX {
		tr = Log10
	}

	raw := collect(t, cfg)
	if cfg.LogX {
		for _, r := range raw {
			for _, v := range []stats.Num{r.est, r.lo, r.hi} {
				if !v.IsNA() && v <= 0 {
					return nil, errors.Configuration("row %d (%q): value %v cannot be shown on a log axis", r.row, t.Row(r.row).Label, v)
				}
			}
		}
	}

	g := &Geometry{
		Transform:    tr,
		VLine:        stats.NA(),
		ForestHeader: cfg.ForestHeader,
		ColX:         cfg.ColX,
		ColCI:        cfg.ColCI,
		Padding:      cfg.Padding,
		RowHeight:    cfg.RowHeight,
		FontSize:     cfg.FontSize,
	}
	if cfg.VLine != nil {
		g.VLine = stats.Num(tr.Apply(*cfg.VLine))
	}

	if cfg.XLim != nil {
		g.Domain = Domain{Lo: tr.Apply(cfg.XLim[0]), Hi: tr.Apply(cfg.XLim[1])}
	} else {
		var xs []float64
		for _, r := range raw {
			if r.est.IsNA() {
				continue
			}
			xs = append(xs, tr.Apply(float64(r.est)))
			for _, v := range []stats.Num{r.lo, r.hi} {
				if !v.IsNA() {
					xs = append(xs, tr.Apply(float64(v)))
				}
			}
		}
		if !g.VLine.IsNA() {
			xs = append(xs, float64(g.VLine))
		}
		g.Domain = autoDomain(xs, tr, cfg.DomainMargin)
	}

	if cfg.XAt != nil {
		g.Ticks = fixedTicks(cfg.XAt, tr)
	} else {
		g.Ticks = autoTicks(g.Domain, tr)
	}

	g.Widths = measureWidths(t, cfg)
	g.ColumnX = make([]float64, len(g.Widths.Columns))
	x := g.Widths.RowNames
	for i, w := range g.Widths.Columns {
		g.ColumnX[i] = x
		x += w
	}
	g.ForestX = x
	g.Width = x + g.Widths.Forest

	headerLines := 1.0
	if len(t.Header().Spans) > 0 || len(cfg.ForestHeader) > 0 {
		headerLines = 2
	}
	g.HeaderHeight = headerLines * cfg.RowHeight
	g.AxisHeight = 2 * cfg.RowHeight
	g.Height = g.HeaderHeight + float64(t.NumRows())*cfg.RowHeight + g.AxisHeight

	g.Rows = make([]RowGeometry, t.NumRows())
	plotted := make(map[int]rawRow, len(raw))
	for _, r := range raw {
		plotted[r.row] = r
	}
	sizes := symbolSizes(t, cfg, raw)
	for i := range g.Rows {
		rg := RowGeometry{
			Row:        i,
			Kind:       t.Row(i).Kind,
			Y:          g.HeaderHeight + (float64(i)+0.5)*cfg.RowHeight,
			PointX:     stats.NA(),
			IntervalLo: stats.NA(),
			IntervalHi: stats.NA(),
			SymbolSize: cfg.SymbolSize,
		}
		if r, ok := plotted[i]; ok && !r.est.IsNA() {
			place(&rg, r, tr, g.Domain)
			rg.SymbolSize = sizes[i]
		}
		g.Rows[i] = rg
	}
	return g, nil
}

// place fills point and whisker coordinates, clamping interval ends to d.
func place(rg *RowGeometry, r rawRow, tr Transform, d Domain) {
	x := tr.Apply(float64(r.est))
	rg.Visible = true
	rg.PointX = stats.Num(x)
	rg.PointInDomain = d.Contains(x)

	if r.lo.IsNA() || r.hi.IsNA() {
		return
	}
	lo, hi := tr.Apply(float64(r.lo)), tr.Apply(float64(r.hi))
	rg.IntervalLo = stats.Num(d.Clamp(lo))
	rg.IntervalHi = stats.Num(d.Clamp(hi))
	rg.ClippedLo = lo < d.Lo
	rg.ClippedHi = hi > d.Hi
}

// rawRow holds the untransformed values of one plotted row.
type rawRow struct {
	row         int
	est, lo, hi stats.Num
}

func collect(t table.Table, cfg Config) []rawRow {
	var out []rawRow
	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		if row.Kind != table.KindAnalysis && !(cfg.PlotContentRows && row.Kind == table.KindContent) {
			continue
		}
		r := rawRow{row: i, est: stats.NA(), lo: stats.NA(), hi: stats.NA()}
		if cfg.ColX < len(row.Cells) {
			r.est = row.Cells[cfg.ColX].Value(0)
		}
		if cfg.ColCI < len(row.Cells) {
			ci := row.Cells[cfg.ColCI]
			if len(ci.Values) >= 3 {
				r.lo, r.hi = ci.Value(1), ci.Value(2)
			} else {
				r.lo, r.hi = ci.Value(0), ci.Value(1)
			}
		}
		out = append(out, r)
	}
	return out
}

func validate(t table.Table, cfg Config) error {
	n := t.NumCols()
	if cfg.ColX < 0 || cfg.ColX >= n {
		return errors.Configuration("col_x %d out of range for %d columns", cfg.ColX, n)
	}
	if cfg.ColCI < 0 || cfg.ColCI >= n {
		return errors.Configuration("col_ci %d out of range for %d columns", cfg.ColCI, n)
	}
	if cfg.VLine != nil && (math.IsNaN(*cfg.VLine) || math.IsInf(*cfg.VLine, 0)) {
		return errors.Configuration("vline %v is not finite", *cfg.VLine)
	}
	if cfg.ForestHeader != nil {
		if cfg.VLine == nil {
			return errors.Configuration("forest_header requires vline")
		}
		if len(cfg.ForestHeader) != 2 {
			return errors.Configuration("forest_header needs exactly 2 labels, got %d", len(cfg.ForestHeader))
		}
	}
	if cfg.XLim != nil {
		if len(cfg.XLim) != 2 {
			return errors.Configuration("xlim needs 2 values, got %d", len(cfg.XLim))
		}
		for _, v := range cfg.XLim {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Configuration("xlim contains non-finite value %v", v)
			}
		}
		if !(cfg.XLim[0] < cfg.XLim[1]) {
			return errors.Configuration("xlim (%v, %v) is not increasing", cfg.XLim[0], cfg.XLim[1])
		}
	}
	if cfg.LogX {
		var bad []float64
		for _, v := range cfg.XLim {
			if v <= 0 {
				bad = append(bad, v)
			}
		}
		for _, v := range cfg.XAt {
			if v <= 0 {
				bad = append(bad, v)
			}
		}
		if cfg.VLine != nil && *cfg.VLine <= 0 {
			bad = append(bad, *cfg.VLine)
		}
		if len(bad) > 0 {
			return errors.Configuration("non-positive values %v with a log axis", bad)
		}
	}
	for _, v := range cfg.XAt {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Configuration("x_at contains non-finite value %v", v)
		}
	}
	if cfg.WidthColumns != nil && len(cfg.WidthColumns) != n {
		return errors.Configuration("width_columns has %d widths for %d columns", len(cfg.WidthColumns), n)
	}
	widths := slicesOf(cfg.WidthRowNames, cfg.WidthForest)
	for _, w := range append(widths, cfg.WidthColumns...) {
		if !(w > 0) {
			return errors.Configuration("widths must be positive, got %v", w)
		}
	}
	if cfg.ColSymbolSize != nil && (*cfg.ColSymbolSize < 0 || *cfg.ColSymbolSize >= n) {
		return errors.Configuration("col_symbol_size %d out of range for %d columns", *cfg.ColSymbolSize, n)
	}
	return nil
}

func slicesOf(ptrs ...*float64) []float64 {
	var out []float64
	for _, p := range ptrs {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// measureWidths uses each override verbatim and measures only the
// columns without one.
func measureWidths(t table.Table, cfg Config) Widths {
	h := t.Header()
	w := Widths{Columns: make([]float64, len(h.Columns))}

	if cfg.WidthRowNames != nil {
		w.RowNames = *cfg.WidthRowNames
	} else {
		var m float64
		for i := 0; i < t.NumRows(); i++ {
			r := t.Row(i)
			m = math.Max(m, cfg.Measurer(strings.Repeat("  ", r.Indent)+r.Label))
		}
		w.RowNames = m + 2*cfg.Padding
	}

	if cfg.WidthColumns != nil {
		copy(w.Columns, cfg.WidthColumns)
	} else {
		for j, col := range h.Columns {
			m := cfg.Measurer(col.Label)
			for i := 0; i < t.NumRows(); i++ {
				if cells := t.Row(i).Cells; j < len(cells) {
					m = math.Max(m, cfg.Measurer(cells[j].Text))
				}
			}
			w.Columns[j] = m + 2*cfg.Padding
		}
		// A span label wider than its columns widens the last of them.
		for _, s := range h.Spans {
			need := cfg.Measurer(s.Label) + 2*cfg.Padding
			var have float64
			for j := s.From; j <= s.To; j++ {
				have += w.Columns[j]
			}
			if need > have {
				w.Columns[s.To] += need - have
			}
		}
	}

	if cfg.WidthForest != nil {
		w.Forest = *cfg.WidthForest
	} else {
		w.Forest = cfg.ForestWidth
	}
	return w
}

// symbolSizes returns the marker size per row index.
func symbolSizes(t table.Table, cfg Config, raw []rawRow) map[int]float64 {
	out := make(map[int]float64, len(raw))
	if cfg.ColSymbolSize == nil {
		for _, r := range raw {
			out[r.row] = cfg.SymbolSize
		}
		return out
	}
	col := *cfg.ColSymbolSize
	var peak float64
	vals := make(map[int]float64, len(raw))
	for _, r := range raw {
		cells := t.Row(r.row).Cells
		if col >= len(cells) {
			continue
		}
		if v := cells[col].Value(0); !v.IsNA() && v > 0 {
			vals[r.row] = float64(v)
			peak = math.Max(peak, float64(v))
		}
	}
	for _, r := range raw {
		size := cfg.SymbolSize / 2
		if v, ok := vals[r.row]; ok && peak > 0 {
			size = math.Max(size, 2*cfg.SymbolSize*math.Sqrt(v/peak))
		}
		out[r.row] = size
	}
	return out
}
