// Package stats holds the numeric value type shared by the extraction,
// table and layout stages.
//
// A statistic that could not be computed (empty subgroup, degenerate fit)
// is represented as NA rather than omitted, so every stage sees the same
// row shape regardless of data availability. NA is stored as NaN in memory
// and encoded as JSON null.
package stats

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Num is a float64 where NaN means "missing".
type Num float64

// NA returns the missing value.
func NA() Num { return Num(math.NaN()) }

// Of converts a float64, mapping ±Inf to NA.
func Of(v float64) Num {
	if math.IsInf(v, 0) {
		return NA()
	}
	return Num(v)
}

// IsNA reports whether n is missing.
func (n Num) IsNA() bool { return math.IsNaN(float64(n)) }

// Float returns the raw float64 (NaN when missing).
func (n Num) Float() float64 { return float64(n) }

// Or returns n, or def when n is missing.
func (n Num) Or(def float64) float64 {
	if n.IsNA() {
		return def
	}
	return float64(n)
}

// String formats n with the shortest representation, or "NA".
func (n Num) String() string {
	if n.IsNA() {
		return "NA"
	}
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

// MarshalJSON encodes NA as null.
func (n Num) MarshalJSON() ([]byte, error) {
	if n.IsNA() || math.IsInf(float64(n), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(n))
}

// UnmarshalJSON decodes null as NA.
func (n *Num) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = NA()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Num(v)
	return nil
}

// AllPresent reports whether none of ns is missing.
func AllPresent(ns ...Num) bool {
	for _, n := range ns {
		if n.IsNA() {
			return false
		}
	}
	return true
}
