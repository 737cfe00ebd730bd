package sink

import (
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/matzehuels/forestplot/pkg/forest/layout"
	"github.com/matzehuels/forestplot/pkg/table"
)

// Glyphs used by the terminal renditions.
const (
	glyphPoint      = '●'
	glyphWhisker    = '─'
	glyphArrowLeft  = '◀'
	glyphArrowRight = '▶'
	glyphVLine      = '┊'
	glyphTick       = '┬'
	glyphAxis       = '─'

	minStripWidth  = 20
	defaultColumns = 100
	cellPadding    = 2
)

var (
	textHeaderStyle = lipgloss.NewStyle().Bold(true)
	textCellStyle   = lipgloss.NewStyle().PaddingRight(cellPadding)
)

// TerminalWidth returns the width of stdout, or 100 when it is not a
// terminal.
func TerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultColumns
}

// RenderText renders the table as text columns followed by a character
// forest strip, sized to fit width terminal columns.
func RenderText(t table.Table, g *layout.Geometry, width int) string {
	if width <= 0 {
		width = TerminalWidth()
	}
	h := t.Header()

	labels := make([]string, t.NumRows())
	colW := make([]int, t.NumCols()+1)
	for i := range labels {
		r := t.Row(i)
		labels[i] = strings.Repeat("  ", r.Indent) + r.Label
		colW[0] = max(colW[0], runewidth.StringWidth(labels[i]))
		for j, c := range r.Cells {
			colW[j+1] = max(colW[j+1], runewidth.StringWidth(c.Text))
		}
	}
	for j, c := range h.Columns {
		colW[j+1] = max(colW[j+1], runewidth.StringWidth(c.Label))
	}
	offset := 0
	for _, w := range colW {
		offset += w + cellPadding
	}
	strip := max(minStripWidth, width-offset-1)
	sc := stripScale{domain: g.Domain, width: strip}

	headers := make([]string, 0, t.NumCols()+2)
	headers = append(headers, "")
	for _, c := range h.Columns {
		headers = append(headers, c.Label)
	}
	headers = append(headers, forestHeaderText(g, sc))

	rows := make([][]string, t.NumRows())
	for i := range rows {
		r := t.Row(i)
		row := make([]string, 0, len(headers))
		row = append(row, labels[i])
		for j := range h.Columns {
			text := ""
			if j < len(r.Cells) {
				text = r.Cells[j].Text
			}
			row = append(row, text)
		}
		var rg layout.RowGeometry
		if i < len(g.Rows) {
			rg = g.Rows[i]
		}
		rows[i] = append(row, sc.row(g, rg))
	}

	tbl := ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).BorderBottom(false).
		BorderLeft(false).BorderRight(false).
		BorderColumn(false).BorderHeader(true).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow || (row >= 0 && row < t.NumRows() && t.Row(row).Kind == table.KindHeader) {
				return textHeaderStyle.PaddingRight(cellPadding)
			}
			return textCellStyle
		})

	var b strings.Builder
	b.WriteString(tbl.Render())
	b.WriteString("\n")
	b.WriteString(strings.Repeat(" ", offset))
	b.WriteString(sc.axis(g))
	b.WriteString("\n")
	b.WriteString(strings.Repeat(" ", offset))
	b.WriteString(sc.tickLabels(g))
	b.WriteString("\n")
	return b.String()
}

// stripScale maps transformed x values to character columns.
type stripScale struct {
	domain layout.Domain
	width  int
}

func (s stripScale) col(x float64) int {
	c := int(math.Round((x - s.domain.Lo) / s.domain.Span() * float64(s.width-1)))
	return max(0, min(s.width-1, c))
}

func (s stripScale) row(g *layout.Geometry, rg layout.RowGeometry) string {
	cells := []rune(strings.Repeat(" ", s.width))
	if !g.VLine.IsNA() && s.domain.Contains(float64(g.VLine)) {
		cells[s.col(float64(g.VLine))] = glyphVLine
	}
	if !rg.Visible {
		return string(cells)
	}
	if !rg.IntervalLo.IsNA() && !rg.IntervalHi.IsNA() {
		lo, hi := s.col(float64(rg.IntervalLo)), s.col(float64(rg.IntervalHi))
		for c := lo; c <= hi; c++ {
			cells[c] = glyphWhisker
		}
		if rg.ClippedLo {
			cells[lo] = glyphArrowLeft
		}
		if rg.ClippedHi {
			cells[hi] = glyphArrowRight
		}
	}
	if rg.PointInDomain {
		cells[s.col(float64(rg.PointX))] = glyphPoint
	}
	return string(cells)
}

func (s stripScale) axis(g *layout.Geometry) string {
	cells := []rune(strings.Repeat(string(glyphAxis), s.width))
	for _, tk := range g.Ticks {
		if s.domain.Contains(tk.X) {
			cells[s.col(tk.X)] = glyphTick
		}
	}
	return string(cells)
}

// tickLabels centers labels under their ticks, dropping labels that would
// overlap the previous one.
func (s stripScale) tickLabels(g *layout.Geometry) string {
	line := []rune(strings.Repeat(" ", s.width))
	next := 0
	for _, tk := range g.Ticks {
		if !s.domain.Contains(tk.X) {
			continue
		}
		label := []rune(tk.Label)
		start := s.col(tk.X) - len(label)/2
		start = max(start, 0)
		if start < next || start+len(label) > s.width {
			continue
		}
		copy(line[start:], label)
		next = start + len(label) + 1
	}
	return strings.TrimRight(string(line), " ")
}

func forestHeaderText(g *layout.Geometry, s stripScale) string {
	if len(g.ForestHeader) != 2 || g.VLine.IsNA() {
		return ""
	}
	v := s.col(float64(g.VLine))
	left := runewidth.Truncate(g.ForestHeader[0], max(0, v-1), "…")
	right := runewidth.Truncate(g.ForestHeader[1], max(0, s.width-v-2), "…")
	pad := max(0, v-1-runewidth.StringWidth(left))
	return strings.Repeat(" ", pad) + left + " " + string(glyphVLine) + " " + right
}
