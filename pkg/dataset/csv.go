package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/matzehuels/forestplot/pkg/errors"
)

// missingTokens are cell values read as missing.
var missingTokens = map[string]bool{"": true, "NA": true, "NaN": true, "null": true, ".": true}

// ReadCSV reads a dataset from CSV with a header row. A column is numeric
// when every non-missing cell parses as a float; otherwise it is categorical.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse csv")
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "csv has no header row")
	}

	header := records[0]
	body := records[1:]
	cols := make([]Column, len(header))
	for j, name := range header {
		raw := make([]string, len(body))
		for i, rec := range body {
			raw[i] = strings.TrimSpace(rec[j])
		}
		cols[j] = inferColumn(strings.TrimSpace(name), raw)
	}
	return New(cols...)
}

// ReadCSVFile reads a CSV dataset from path.
func ReadCSVFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func inferColumn(name string, raw []string) Column {
	nums := make([]float64, len(raw))
	numeric := true
	for i, s := range raw {
		if missingTokens[s] {
			nums[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[i] = v
	}
	if numeric {
		return NumericColumn(name, nums)
	}
	strs := make([]string, len(raw))
	for i, s := range raw {
		if !missingTokens[s] {
			strs[i] = s
		}
	}
	return CategoricalColumn(name, strs)
}

// FromRecords builds a dataset from decoded JSON objects. JSON numbers and
// booleans become numeric columns, strings categorical ones, null is missing.
// Columns follow order; when order is empty the keys are sorted.
func FromRecords(records []map[string]any, order []string) (*Dataset, error) {
	if len(order) == 0 {
		keys := make(map[string]bool)
		for _, rec := range records {
			for k := range rec {
				keys[k] = true
			}
		}
		for k := range keys {
			order = append(order, k)
		}
		sort.Strings(order)
	}

	cols := make([]Column, 0, len(order))
	for _, name := range order {
		col, err := recordColumn(name, records)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return New(cols...)
}

func recordColumn(name string, records []map[string]any) (Column, error) {
	numeric := true
	for _, rec := range records {
		switch rec[name].(type) {
		case nil, float64, bool:
		case string:
			numeric = false
		default:
			return Column{}, errors.New(errors.ErrCodeInvalidInput,
				"column %q: unsupported value type %T", name, rec[name])
		}
	}

	if numeric {
		vals := make([]float64, len(records))
		for i, rec := range records {
			switch v := rec[name].(type) {
			case float64:
				vals[i] = v
			case bool:
				if v {
					vals[i] = 1
				}
			default:
				vals[i] = math.NaN()
			}
		}
		return NumericColumn(name, vals), nil
	}

	vals := make([]string, len(records))
	for i, rec := range records {
		switch v := rec[name].(type) {
		case string:
			vals[i] = v
		case float64:
			vals[i] = strconv.FormatFloat(v, 'g', -1, 64)
		case bool:
			vals[i] = strconv.FormatBool(v)
		}
	}
	return CategoricalColumn(name, vals), nil
}

// WriteCSV writes the dataset with a header row.
func WriteCSV(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Names()); err != nil {
		return err
	}
	rec := make([]string, len(d.cols))
	for i := 0; i < d.rows; i++ {
		for j, c := range d.cols {
			rec[j] = c.StringAt(i)
			if rec[j] == "" {
				rec[j] = "NA"
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
