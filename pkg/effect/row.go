// Package effect reduces per-subject data into per-biomarker, per-subgroup
// treatment-effect rows.
//
// [Extract] runs one model fit for every (biomarker, subgroup level) pair
// and summarizes each into a [Row]: counts, the observed proportion or
// median, the exponentiated effect with its confidence interval and a
// p-value. Fits run concurrently; the returned rows are always in input
// order.
//
// Empty subgroups and degenerate fits do not fail the call. They produce
// rows whose statistical fields are NA and whose [Row.Status] says why.
package effect

import (
	"encoding/json"
	"fmt"

	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/stats"
	"github.com/matzehuels/forestplot/pkg/stats/fit"
)

// RowKind is the structural role of a row.
type RowKind string

const (
	KindHeader   RowKind = "header"
	KindContent  RowKind = "content"
	KindAnalysis RowKind = "analysis"
)

// Status records how a row's statistics were obtained.
type Status string

const (
	StatusOK            Status = "ok"
	StatusEmptyData     Status = "empty_data"
	StatusFitDegeneracy Status = "fit_degeneracy"
)

// Row is one extracted result. Statistical fields that could not be
// computed are NA.
type Row struct {
	Biomarker      string   `json:"biomarker"`
	BiomarkerLabel string   `json:"biomarker_label"`
	Var            string   `json:"var,omitempty"` // empty for the overall row
	VarLabel       string   `json:"var_label,omitempty"`
	Label          string   `json:"label"`
	Kind           RowKind  `json:"row_type"`
	Outcome        fit.Kind `json:"outcome"`

	NTotal     int       `json:"n_tot"`
	NEvent     int       `json:"n_event"`
	Proportion stats.Num `json:"prop"`
	Median     stats.Num `json:"median"`

	Estimate    stats.Num `json:"est"`
	Lower       stats.Num `json:"lcl"`
	Upper       stats.Num `json:"ucl"`
	ConfLevel   float64   `json:"conf_level"`
	PValue      stats.Num `json:"pval"`
	PValueLabel string    `json:"pval_label"`

	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// emptyRow returns a row with every statistic NA.
func emptyRow() Row {
	return Row{
		Proportion: stats.NA(),
		Median:     stats.NA(),
		Estimate:   stats.NA(),
		Lower:      stats.NA(),
		Upper:      stats.NA(),
		PValue:     stats.NA(),
		Status:     StatusOK,
	}
}

// UnmarshalJSON decodes a row, leaving statistics that are absent from
// the input NA rather than zero.
func (r *Row) UnmarshalJSON(data []byte) error {
	type plain Row
	p := plain(emptyRow())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Row(p)
	return nil
}

// HasEstimate reports whether the row carries a full point estimate and
// interval.
func (r Row) HasEstimate() bool {
	return stats.AllPresent(r.Estimate, r.Lower, r.Upper)
}

// Recovered reports whether the row's statistics are missing because of
// empty data or a degenerate fit.
func (r Row) Recovered() bool {
	return r.Status == StatusEmptyData || r.Status == StatusFitDegeneracy
}

// Validate checks the row invariants.
func (r Row) Validate() error {
	if r.NTotal < 0 || r.NEvent < 0 || r.NEvent > r.NTotal {
		return errors.New(errors.ErrCodeInvalidInput, "%s: counts n_event=%d n_total=%d", r.id(), r.NEvent, r.NTotal)
	}
	est, lo, hi := r.Estimate.IsNA(), r.Lower.IsNA(), r.Upper.IsNA()
	if est != lo || est != hi {
		return errors.New(errors.ErrCodeInvalidInput, "%s: estimate and interval must be missing together", r.id())
	}
	if r.HasEstimate() && (r.Lower > r.Estimate || r.Estimate > r.Upper) {
		return errors.New(errors.ErrCodeInvalidInput, "%s: interval (%v, %v) does not contain %v", r.id(), r.Lower, r.Upper, r.Estimate)
	}
	if !r.Proportion.IsNA() && (r.Proportion < 0 || r.Proportion > 1) {
		return errors.New(errors.ErrCodeInvalidInput, "%s: proportion %v outside [0, 1]", r.id(), r.Proportion)
	}
	if !r.PValue.IsNA() && (r.PValue < 0 || r.PValue > 1) {
		return errors.New(errors.ErrCodeInvalidInput, "%s: p-value %v outside [0, 1]", r.id(), r.PValue)
	}
	if r.ConfLevel != 0 {
		if err := errors.ValidateConfLevel(r.ConfLevel); err != nil {
			return err
		}
	}
	return nil
}

func (r Row) id() string {
	if r.Var == "" {
		return fmt.Sprintf("%s/%s", r.Biomarker, r.Label)
	}
	return fmt.Sprintf("%s/%s=%s", r.Biomarker, r.Var, r.Label)
}
