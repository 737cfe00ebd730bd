package render

import (
	"math"

	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/forest/layout"
	"github.com/matzehuels/forestplot/pkg/table"
)

// Option configures Compose.
type Option func(*composer)

type composer struct {
	indent    float64
	rules     bool
	arrowSize float64
}

// WithIndent sets the horizontal offset per row indent level.
func WithIndent(w float64) Option { return func(c *composer) { c.indent = w } }

// WithoutRules omits the horizontal rules around the header.
func WithoutRules() Option { return func(c *composer) { c.rules = false } }

// WithArrowSize sets the size of clipped-end arrows.
func WithArrowSize(s float64) Option { return func(c *composer) { c.arrowSize = s } }

// Compose lays out the table text and the forest panel as primitives.
// Only visible rows get a marker or whisker; header and content rows are
// drawn as text only unless the layout made them visible.
func Compose(t table.Table, g *layout.Geometry, opts ...Option) (*Drawing, error) {
	if g == nil {
		return nil, errors.Configuration("no geometry to compose")
	}
	if len(g.Rows) != t.NumRows() {
		return nil, errors.Configuration("geometry has %d rows, table has %d", len(g.Rows), t.NumRows())
	}
	if len(g.ColumnX) != t.NumCols() {
		return nil, errors.Configuration("geometry has %d columns, table has %d", len(g.ColumnX), t.NumCols())
	}

	c := composer{indent: g.FontSize, rules: true, arrowSize: g.RowHeight / 4}
	for _, opt := range opts {
		opt(&c)
	}

	d := &Drawing{Width: g.Width, Height: g.Height, FontSize: g.FontSize, RowHeight: g.RowHeight}
	c.header(d, t, g)
	c.body(d, t, g)
	c.axis(d, t, g)
	for _, rg := range g.Rows {
		if rg.Visible {
			c.forestRow(d, g, rg)
		}
	}
	return d, nil
}

func (c *composer) header(d *Drawing, t table.Table, g *layout.Geometry) {
	h := t.Header()
	labelY := g.HeaderHeight - g.RowHeight/2
	topY := g.RowHeight / 2

	for _, s := range h.Spans {
		left := g.ColumnX[s.From]
		right := g.ColumnX[s.To] + g.Widths.Columns[s.To]
		d.Texts = append(d.Texts, Text{X: (left + right) / 2, Y: topY, Content: s.Label, Anchor: AnchorMiddle, Bold: true, Role: RoleSpan, Row: -1})
		d.Lines = append(d.Lines, Line{X1: left + g.Padding, Y1: topY + g.RowHeight/2 - 2, X2: right - g.Padding, Y2: topY + g.RowHeight/2 - 2, Role: RoleRule, Row: -1})
	}
	for j, col := range h.Columns {
		x := g.ColumnX[j] + g.Widths.Columns[j]/2
		d.Texts = append(d.Texts, Text{X: x, Y: labelY, Content: col.Label, Anchor: AnchorMiddle, Bold: true, Role: RoleColumnHeader, Row: -1})
	}

	if len(g.ForestHeader) == 2 && !g.VLine.IsNA() {
		// Labels stay inside the panel when the vline is off-domain.
		vx := g.ToPixel(math.Max(g.Domain.Lo, math.Min(g.Domain.Hi, float64(g.VLine))))
		d.Texts = append(d.Texts,
			Text{X: vx - g.Padding, Y: labelY, Content: g.ForestHeader[0], Anchor: AnchorEnd, Role: RoleForestHeader, Row: -1},
			Text{X: vx + g.Padding, Y: labelY, Content: g.ForestHeader[1], Anchor: AnchorStart, Role: RoleForestHeader, Row: -1},
		)
	}

	if c.rules {
		d.Lines = append(d.Lines, Line{X1: 0, Y1: g.HeaderHeight, X2: g.Width, Y2: g.HeaderHeight, Role: RoleRule, Row: -1})
	}
}

func (c *composer) body(d *Drawing, t table.Table, g *layout.Geometry) {
	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		y := g.Rows[i].Y
		d.Texts = append(d.Texts, Text{
			X:       g.Padding + float64(row.Indent)*c.indent,
			Y:       y,
			Content: row.Label,
			Bold:    row.Kind == table.KindHeader,
			Role:    RoleRowLabel,
			Row:     i,
		})
		for j, cell := range row.Cells {
			if cell.Text == "" || j >= len(g.ColumnX) {
				continue
			}
			d.Texts = append(d.Texts, Text{
				X:       g.ColumnX[j] + g.Widths.Columns[j]/2,
				Y:       y,
				Content: cell.Text,
				Anchor:  AnchorMiddle,
				Role:    RoleCell,
				Row:     i,
			})
		}
	}
}

func (c *composer) axis(d *Drawing, t table.Table, g *layout.Geometry) {
	bottom := g.HeaderHeight + float64(t.NumRows())*g.RowHeight
	x0, x1 := g.ToPixel(g.Domain.Lo), g.ToPixel(g.Domain.Hi)
	d.Lines = append(d.Lines, Line{X1: x0, Y1: bottom, X2: x1, Y2: bottom, Role: RoleAxis, Row: -1})

	for _, tk := range g.Ticks {
		if !g.Domain.Contains(tk.X) {
			continue
		}
		x := g.ToPixel(tk.X)
		d.Lines = append(d.Lines, Line{X1: x, Y1: bottom, X2: x, Y2: bottom + g.RowHeight/4, Role: RoleTick, Row: -1})
		d.Texts = append(d.Texts, Text{X: x, Y: bottom + g.RowHeight*0.8, Content: tk.Label, Anchor: AnchorMiddle, Role: RoleTickLabel, Row: -1})
	}

	if !g.VLine.IsNA() && g.Domain.Contains(float64(g.VLine)) {
		x := g.ToPixel(float64(g.VLine))
		d.Lines = append(d.Lines, Line{X1: x, Y1: g.HeaderHeight, X2: x, Y2: bottom, Role: RoleVLine, Dashed: true, Row: -1})
	}
}

func (c *composer) forestRow(d *Drawing, g *layout.Geometry, rg layout.RowGeometry) {
	if !rg.IntervalLo.IsNA() && !rg.IntervalHi.IsNA() {
		lo, hi := g.ToPixel(float64(rg.IntervalLo)), g.ToPixel(float64(rg.IntervalHi))
		d.Lines = append(d.Lines, Line{X1: lo, Y1: rg.Y, X2: hi, Y2: rg.Y, Role: RoleWhisker, Row: rg.Row})
		if rg.ClippedLo {
			d.Arrows = append(d.Arrows, Arrow{X: lo, Y: rg.Y, Dir: Left, Size: c.arrowSize, Row: rg.Row})
		}
		if rg.ClippedHi {
			d.Arrows = append(d.Arrows, Arrow{X: hi, Y: rg.Y, Dir: Right, Size: c.arrowSize, Row: rg.Row})
		}
	}
	if rg.PointInDomain {
		d.Markers = append(d.Markers, Marker{X: g.ToPixel(float64(rg.PointX)), Y: rg.Y, Size: rg.SymbolSize, Row: rg.Row})
	}
}
