// Package table defines the nested table consumed by the forest layout and
// the builder that turns effect rows into one.
//
// A [Table] has ordered columns, optionally grouped under spanning parent
// labels, and ordered rows tagged with a [Kind]. Every [Cell] carries the
// raw numeric values and the formatted display text as separate fields:
// display capping never changes the values the layout works with.
//
// Two implementations are provided: [Generic] for tables assembled by
// callers and [EffectTable] for tables built from effect rows by [Build].
package table

import (
	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/stats"
)

// Kind is the structural role of a row.
type Kind int

const (
	KindHeader Kind = iota
	KindContent
	KindAnalysis
)

// String returns "header", "content" or "analysis".
func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindAnalysis:
		return "analysis"
	}
	return "header"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "header":
		*k = KindHeader
	case "content":
		*k = KindContent
	case "analysis":
		*k = KindAnalysis
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unknown row kind %q", b)
	}
	return nil
}

// Cell is one table entry.
type Cell struct {
	Values []stats.Num `json:"values,omitempty"` // raw values, never capped
	Text   string      `json:"text"`             // display string
}

// Value returns the i-th raw value, or NA.
func (c Cell) Value(i int) stats.Num {
	if i < 0 || i >= len(c.Values) {
		return stats.NA()
	}
	return c.Values[i]
}

// Row is one table row. Label is shown in the row-name column.
type Row struct {
	Kind   Kind   `json:"kind"`
	Label  string `json:"label"`
	Indent int    `json:"indent,omitempty"`
	Group  string `json:"group,omitempty"`
	Cells  []Cell `json:"cells"`
}

// Column is a leaf column.
type Column struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Span is a parent label over columns From..To inclusive.
type Span struct {
	Label string `json:"label"`
	From  int    `json:"from"`
	To    int    `json:"to"`
}

// Header describes the column structure.
type Header struct {
	Columns []Column `json:"columns"`
	Spans   []Span   `json:"spans,omitempty"`
}

// Index returns the position of the column with the given id, or -1.
func (h Header) Index(id string) int {
	for i, c := range h.Columns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Validate checks that spans are in range, ordered and non-overlapping.
func (h Header) Validate() error {
	last := -1
	for _, s := range h.Spans {
		if s.From < 0 || s.To >= len(h.Columns) || s.From > s.To {
			return errors.Configuration("span %q covers columns %d..%d of %d", s.Label, s.From, s.To, len(h.Columns))
		}
		if s.From <= last {
			return errors.Configuration("span %q overlaps the previous span", s.Label)
		}
		last = s.To
	}
	return nil
}

// Table is the capability set the layout and renderers need.
type Table interface {
	Header() Header
	NumRows() int
	NumCols() int
	Row(i int) Row
}

// Generic is a caller-assembled table.
type Generic struct {
	head Header
	rows []Row
}

// NewGeneric validates and returns a table. Every row must have one cell
// per column.
func NewGeneric(h Header, rows []Row) (*Generic, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	for i, r := range rows {
		if len(r.Cells) != len(h.Columns) {
			return nil, errors.Configuration("row %d (%q) has %d cells, want %d", i, r.Label, len(r.Cells), len(h.Columns))
		}
	}
	return &Generic{head: h, rows: rows}, nil
}

func (g *Generic) Header() Header { return g.head }
func (g *Generic) NumRows() int   { return len(g.rows) }
func (g *Generic) NumCols() int   { return len(g.head.Columns) }
func (g *Generic) Row(i int) Row  { return g.rows[i] }

// Rows returns every row of t in order.
func Rows(t Table) []Row {
	out := make([]Row, t.NumRows())
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}
