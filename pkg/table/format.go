package table

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/matzehuels/forestplot/pkg/stats"
)

// Format holds the display rules for every column type.
type Format struct {
	CountDigits    int     `json:"count_digits"`
	PercentDigits  int     `json:"percent_digits"`
	EstimateDigits int     `json:"estimate_digits"`
	MedianDigits   int     `json:"median_digits"`
	PValueDigits   int     `json:"pvalue_digits"`
	Missing        string  `json:"missing"`
	CapThreshold   float64 `json:"cap_threshold"` // ratio magnitudes above this are shown as ">cap"
	IntervalSep    string  `json:"interval_sep"`
}

// DefaultFormat returns the standard display rules.
func DefaultFormat() Format {
	return Format{
		CountDigits:    0,
		PercentDigits:  1,
		EstimateDigits: 2,
		MedianDigits:   1,
		PValueDigits:   4,
		Missing:        "NA",
		CapThreshold:   999.9,
		IntervalSep:    " – ",
	}
}

// UnmarshalJSON decodes a format on top of DefaultFormat, so fields absent
// from the input keep their defaults.
func (f *Format) UnmarshalJSON(data []byte) error {
	type plain Format
	p := plain(DefaultFormat())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = Format(p)
	return nil
}

// Count formats an integer count.
func (f Format) Count(n int) string {
	return strconv.FormatFloat(float64(n), 'f', f.CountDigits, 64)
}

// Number formats v with digits decimals, or Missing.
func (f Format) Number(v stats.Num, digits int) string {
	if v.IsNA() {
		return f.Missing
	}
	return strconv.FormatFloat(float64(v), 'f', digits, 64)
}

// Ratio formats an estimate or interval bound. Magnitudes beyond
// CapThreshold display as ">999.9" or "<-999.9"; v itself is untouched.
func (f Format) Ratio(v stats.Num) string {
	if v.IsNA() {
		return f.Missing
	}
	if c := f.CapThreshold; c > 0 {
		switch {
		case float64(v) > c:
			return ">" + strconv.FormatFloat(c, 'f', -1, 64)
		case float64(v) < -c:
			return "<-" + strconv.FormatFloat(c, 'f', -1, 64)
		}
	}
	return f.Number(v, f.EstimateDigits)
}

// Percent formats a proportion in [0, 1] as a percentage.
func (f Format) Percent(p stats.Num) string {
	if p.IsNA() {
		return f.Missing
	}
	return strconv.FormatFloat(float64(p)*100, 'f', f.PercentDigits, 64) + "%"
}

// Interval formats "(lower – upper)".
func (f Format) Interval(lo, hi stats.Num) string {
	if lo.IsNA() || hi.IsNA() {
		return f.Missing
	}
	return "(" + f.Ratio(lo) + f.IntervalSep + f.Ratio(hi) + ")"
}

// EstimateCI formats "estimate (lower – upper)".
func (f Format) EstimateCI(est, lo, hi stats.Num) string {
	if est.IsNA() {
		return f.Missing
	}
	return f.Ratio(est) + " " + f.Interval(lo, hi)
}

// PValue formats p with PValueDigits decimals. Values that would round to
// zero print as "<0.0001".
func (f Format) PValue(p stats.Num) string {
	if p.IsNA() {
		return f.Missing
	}
	floor := math.Pow(10, -float64(f.PValueDigits))
	if float64(p) < floor {
		return "<" + strconv.FormatFloat(floor, 'f', f.PValueDigits, 64)
	}
	return fmt.Sprintf("%.*f", f.PValueDigits, float64(p))
}
