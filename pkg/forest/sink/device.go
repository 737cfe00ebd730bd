package sink

import (
	"io"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/matzehuels/forestplot/pkg/forest/render"
)

// SVGDevice collects drawings into pages of SVG. Drawings sent to the same
// page are overlaid.
type SVGDevice struct {
	Options []SVGOption

	pages [][]*render.Drawing
}

// NewSVGDevice returns a device with no pages.
func NewSVGDevice(opts ...SVGOption) *SVGDevice {
	return &SVGDevice{Options: opts}
}

func (d *SVGDevice) NewPage() error {
	d.pages = append(d.pages, nil)
	return nil
}

func (d *SVGDevice) Draw(dr *render.Drawing) error {
	if len(d.pages) == 0 {
		d.pages = append(d.pages, nil)
	}
	last := len(d.pages) - 1
	d.pages[last] = append(d.pages[last], dr)
	return nil
}

// NumPages returns the number of pages started so far.
func (d *SVGDevice) NumPages() int { return len(d.pages) }

// Page renders page i as an SVG document.
func (d *SVGDevice) Page(i int) []byte {
	if i < 0 || i >= len(d.pages) {
		return nil
	}
	return renderSVG(d.pages[i], d.Options...)
}

// Bytes renders the current page, or nil if nothing has been drawn.
func (d *SVGDevice) Bytes() []byte {
	return d.Page(len(d.pages) - 1)
}

// TextDevice rasterizes drawings onto a character grid, one cell per glyph
// width and one line per table row. Pages are written to Out when a new
// page starts or on Flush.
type TextDevice struct {
	Out io.Writer

	grid      [][]rune
	cellWidth float64
	rowHeight float64
}

// NewTextDevice returns a device writing to w.
func NewTextDevice(w io.Writer) *TextDevice {
	return &TextDevice{Out: w}
}

// NewPage writes out the current page, if any, and starts an empty one.
func (d *TextDevice) NewPage() error {
	if err := d.Flush(); err != nil {
		return err
	}
	d.grid = [][]rune{}
	return nil
}

// Draw overlays dr on the current page.
func (d *TextDevice) Draw(dr *render.Drawing) error {
	d.cellWidth = dr.FontSize * 0.55
	d.rowHeight = dr.RowHeight
	if d.cellWidth <= 0 {
		d.cellWidth = 1
	}
	if d.rowHeight <= 0 {
		d.rowHeight = dr.FontSize * 1.5
	}
	if d.grid == nil {
		d.grid = [][]rune{}
	}

	for _, l := range dr.Lines {
		d.line(l)
	}
	for _, a := range dr.Arrows {
		g := glyphArrowLeft
		if a.Dir == render.Right {
			g = glyphArrowRight
		}
		d.set(d.row(a.Y), d.col(a.X), g)
	}
	for _, m := range dr.Markers {
		d.set(d.row(m.Y), d.col(m.X), glyphPoint)
	}
	for _, t := range dr.Texts {
		r := d.row(t.Y)
		if t.Role == render.RoleTickLabel {
			r++
		}
		d.text(r, t)
	}
	return nil
}

// Flush writes the current page and clears it.
func (d *TextDevice) Flush() error {
	if d.grid == nil {
		return nil
	}
	var b strings.Builder
	for _, line := range d.grid {
		b.WriteString(strings.TrimRight(string(line), " "))
		b.WriteByte('\n')
	}
	d.grid = nil
	_, err := io.WriteString(d.Out, b.String())
	return err
}

// String returns the current page without flushing it.
func (d *TextDevice) String() string {
	var b strings.Builder
	for _, line := range d.grid {
		b.WriteString(strings.TrimRight(string(line), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func (d *TextDevice) row(y float64) int { return int(math.Floor(y / d.rowHeight)) }
func (d *TextDevice) col(x float64) int { return int(math.Round(x / d.cellWidth)) }

func (d *TextDevice) line(l render.Line) {
	switch {
	case l.Role == render.RoleRule:
		// Rules fall on row boundaries and would overwrite text.
	case l.Y1 == l.Y2:
		r := d.row(l.Y1)
		for c := d.col(math.Min(l.X1, l.X2)); c <= d.col(math.Max(l.X1, l.X2)); c++ {
			if l.Role == render.RoleAxis {
				d.setIfEmpty(r, c, glyphAxis)
			} else {
				d.set(r, c, glyphWhisker)
			}
		}
	case l.Role == render.RoleTick:
		d.set(d.row(math.Min(l.Y1, l.Y2)), d.col(l.X1), glyphTick)
	default:
		c := d.col(l.X1)
		for r := d.row(math.Min(l.Y1, l.Y2)); r < d.row(math.Max(l.Y1, l.Y2)); r++ {
			d.setIfEmpty(r, c, glyphVLine)
		}
	}
}

func (d *TextDevice) text(r int, t render.Text) {
	w := runewidth.StringWidth(t.Content)
	c := d.col(t.X)
	switch t.Anchor {
	case render.AnchorMiddle:
		c -= w / 2
	case render.AnchorEnd:
		c -= w
	}
	for _, ch := range t.Content {
		d.set(r, c, ch)
		c++
	}
}

func (d *TextDevice) setIfEmpty(r, c int, ch rune) {
	if d.at(r, c) == ' ' {
		d.set(r, c, ch)
	}
}

func (d *TextDevice) at(r, c int) rune {
	if r < 0 || r >= len(d.grid) || c < 0 || c >= len(d.grid[r]) {
		return ' '
	}
	return d.grid[r][c]
}

func (d *TextDevice) set(r, c int, ch rune) {
	if r < 0 || c < 0 {
		return
	}
	for len(d.grid) <= r {
		d.grid = append(d.grid, nil)
	}
	for len(d.grid[r]) <= c {
		d.grid[r] = append(d.grid[r], ' ')
	}
	d.grid[r][c] = ch
}
