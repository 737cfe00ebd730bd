package sink

import (
	"encoding/json"

	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/forest/layout"
	"github.com/matzehuels/forestplot/pkg/stats"
	"github.com/matzehuels/forestplot/pkg/table"
)

// JSONOption configures JSON rendering via [RenderJSON].
type JSONOption func(*jsonRenderer)

type jsonRenderer struct {
	style string
}

// WithJSONStyle records the style name in the JSON output.
func WithJSONStyle(s string) JSONOption { return func(r *jsonRenderer) { r.style = s } }

type jsonOutput struct {
	Width        float64          `json:"width"`
	Height       float64          `json:"height"`
	Style        string           `json:"style,omitempty"`
	Transform    layout.Transform `json:"transform"`
	Domain       layout.Domain    `json:"domain"`
	Ticks        []layout.Tick    `json:"ticks"`
	VLine        stats.Num        `json:"vline"`
	ForestHeader []string         `json:"forest_header,omitempty"`
	ColX         int              `json:"col_x"`
	ColCI        int              `json:"col_ci"`
	Widths       layout.Widths    `json:"widths"`
	Header       table.Header     `json:"header"`
	Rows         []jsonRow        `json:"rows"`
}

type jsonRow struct {
	table.Row
	Geometry layout.RowGeometry `json:"geometry"`
	Status   effect.Status      `json:"status,omitempty"`
	Detail   string             `json:"detail,omitempty"`
}

// sourced is implemented by tables that can link rows back to effect rows.
type sourced interface {
	Source(i int) (effect.Row, bool)
}

// RenderJSON exports the table and its geometry as a pretty-printed JSON
// document. For effect tables each row also carries its extraction status.
func RenderJSON(t table.Table, g *layout.Geometry, opts ...JSONOption) ([]byte, error) {
	r := jsonRenderer{}
	for _, opt := range opts {
		opt(&r)
	}

	out := jsonOutput{
		Width:        g.Width,
		Height:       g.Height,
		Style:        r.style,
		Transform:    g.Transform,
		Domain:       g.Domain,
		Ticks:        g.Ticks,
		VLine:        g.VLine,
		ForestHeader: g.ForestHeader,
		ColX:         g.ColX,
		ColCI:        g.ColCI,
		Widths:       g.Widths,
		Header:       t.Header(),
		Rows:         make([]jsonRow, t.NumRows()),
	}
	src, _ := t.(sourced)
	for i := range out.Rows {
		jr := jsonRow{Row: t.Row(i)}
		if i < len(g.Rows) {
			jr.Geometry = g.Rows[i]
		}
		if src != nil {
			if e, ok := src.Source(i); ok {
				jr.Status, jr.Detail = e.Status, e.Detail
			}
		}
		out.Rows[i] = jr
	}
	return json.MarshalIndent(out, "", "  ")
}
