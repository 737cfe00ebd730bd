// Package dataset provides the tabular input consumed by effect extraction:
// ordered named columns with row subsetting.
//
// A column is either numeric (missing = NaN) or categorical (missing = "").
// Datasets are immutable once built; Subset returns a new Dataset that
// shares no slices with the original.
package dataset

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/matzehuels/forestplot/pkg/errors"
)

// Kind distinguishes numeric from categorical columns.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// Column is a single named variable.
type Column struct {
	Name  string
	Label string
	Kind  Kind
	Num   []float64
	Str   []string
}

// NumericColumn builds a numeric column.
func NumericColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: Numeric, Num: values}
}

// CategoricalColumn builds a categorical column.
func CategoricalColumn(name string, values []string) Column {
	return Column{Name: name, Kind: Categorical, Str: values}
}

// Len returns the number of values in the column.
func (c Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Num)
	}
	return len(c.Str)
}

// IsMissing reports whether row i holds no value.
func (c Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Num[i])
	}
	return c.Str[i] == ""
}

// StringAt returns the value at row i as text.
func (c Column) StringAt(i int) string {
	if c.Kind == Categorical {
		return c.Str[i]
	}
	if math.IsNaN(c.Num[i]) {
		return ""
	}
	return strconv.FormatFloat(c.Num[i], 'g', -1, 64)
}

// DisplayLabel returns the label, falling back to the name.
func (c Column) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

func (c Column) subset(idx []int) Column {
	out := Column{Name: c.Name, Label: c.Label, Kind: c.Kind}
	if c.Kind == Numeric {
		out.Num = make([]float64, len(idx))
		for j, i := range idx {
			out.Num[j] = c.Num[i]
		}
		return out
	}
	out.Str = make([]string, len(idx))
	for j, i := range idx {
		out.Str[j] = c.Str[i]
	}
	return out
}

// Dataset is an ordered set of equally long columns.
type Dataset struct {
	cols  []Column
	index map[string]int
	rows  int
}

// New builds a dataset. All columns must have the same length and unique names.
func New(cols ...Column) (*Dataset, error) {
	d := &Dataset{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if err := errors.ValidateVariableName(c.Name); err != nil {
			return nil, err
		}
		if _, dup := d.index[c.Name]; dup {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate column %q", c.Name)
		}
		if i == 0 {
			d.rows = c.Len()
		} else if c.Len() != d.rows {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				"column %q has %d rows, want %d", c.Name, c.Len(), d.rows)
		}
		d.index[c.Name] = i
		d.cols = append(d.cols, c)
	}
	return d, nil
}

// MustNew is like New but panics on error. Intended for tests and fixtures.
func MustNew(cols ...Column) *Dataset {
	d, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return d
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int { return d.rows }

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column returns the named column.
func (d *Dataset) Column(name string) (Column, error) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, errors.Configuration("unknown variable %q", name)
	}
	return d.cols[i], nil
}

// Label returns the display label of a column (its name if unlabeled or unknown).
func (d *Dataset) Label(name string) string {
	if i, ok := d.index[name]; ok {
		return d.cols[i].DisplayLabel()
	}
	return name
}

// WithLabels returns a copy with column labels replaced from labels.
func (d *Dataset) WithLabels(labels map[string]string) *Dataset {
	out := &Dataset{index: d.index, rows: d.rows, cols: slices.Clone(d.cols)}
	for i := range out.cols {
		if l, ok := labels[out.cols[i].Name]; ok {
			out.cols[i].Label = l
		}
	}
	return out
}

// Numeric returns the values of a numeric column.
func (d *Dataset) Numeric(name string) ([]float64, error) {
	c, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Numeric {
		return nil, errors.Configuration("variable %q is categorical, want numeric", name)
	}
	return c.Num, nil
}

// Strings returns the values of a column as text.
func (d *Dataset) Strings(name string) ([]string, error) {
	c, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind == Categorical {
		return c.Str, nil
	}
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.StringAt(i)
	}
	return out, nil
}

// Levels returns the distinct non-missing values of a column in order of
// first appearance.
func (d *Dataset) Levels(name string) ([]string, error) {
	vals, err := d.Strings(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var levels []string
	for _, v := range vals {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		levels = append(levels, v)
	}
	return levels, nil
}

// Where returns the indices of rows whose value of name is one of values.
func (d *Dataset) Where(name string, values ...string) ([]int, error) {
	vals, err := d.Strings(name)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[v] = true
	}
	idx := make([]int, 0)
	for i, v := range vals {
		if v != "" && want[v] {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

// CompleteCases returns the indices of rows with no missing value in any of
// the named columns.
func (d *Dataset) CompleteCases(names ...string) ([]int, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, err := d.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	idx := make([]int, 0, d.rows)
	for i := 0; i < d.rows; i++ {
		ok := true
		for _, c := range cols {
			if c.IsMissing(i) {
				ok = false
				break
			}
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

// Subset returns a new dataset holding only the rows in idx, in that order.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{index: d.index, rows: len(idx), cols: make([]Column, len(d.cols))}
	for i, c := range d.cols {
		out.cols[i] = c.subset(idx)
	}
	return out
}

// String summarizes the dataset shape.
func (d *Dataset) String() string {
	return fmt.Sprintf("dataset(%d rows, %d columns)", d.rows, len(d.cols))
}
