// Package fit provides the statistical model fits used by effect extraction.
//
// A Fitter fits one model with a single effect-of-interest term (a
// biomarker or a two-level treatment variable) plus adjustment covariates
// and strata, and reports the term's coefficient and standard error. The
// effect is reported on the exponentiated scale: an odds ratio for
// [Logistic] and a hazard ratio for [CoxPH].
//
// Fits that cannot produce a finite, converged estimate return an error with
// code FIT_DEGENERACY; an empty input returns EMPTY_DATA. Callers decide
// whether these abort anything. A CONFIGURATION error means the model
// itself is malformed (unknown column, non-binary response).
package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/matzehuels/forestplot/pkg/dataset"
)

// Kind identifies the outcome type a Fitter handles.
type Kind int

const (
	KindResponse Kind = iota
	KindSurvival
)

// String returns "response" or "survival".
func (k Kind) String() string {
	if k == KindSurvival {
		return "survival"
	}
	return "response"
}

// ParseKind converts "response"/"survival" into a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "response", "rsp", "":
		return KindResponse, true
	case "survival", "surv", "tte":
		return KindSurvival, true
	}
	return KindResponse, false
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown analysis kind %q", b)
	}
	*k = v
	return nil
}

// Model names the dataset columns a fit uses.
type Model struct {
	// Response is a 0/1 numeric column, or a categorical column whose values
	// in ResponderLevels count as responses. Used by KindResponse fits.
	Response        string
	ResponderLevels []string

	// Time and Event (0/1) are used by KindSurvival fits.
	Time  string
	Event string

	// Term is the effect of interest. A categorical term needs exactly two
	// TermLevels: reference first, comparison second.
	Term       string
	TermLevels []string

	Covariates []string
	Strata     []string
}

// Fitter fits a model on a dataset.
type Fitter interface {
	Kind() Kind
	// TestName is the label of the p-value test, e.g. "p-value (Wald)".
	TestName() string
	Fit(ds *dataset.Dataset, m Model) (*Result, error)
}

// Result holds the fitted term.
type Result struct {
	N          int     // subjects used by the fit
	Events     int     // responders or events among them
	Coef       float64 // term coefficient on the linear predictor scale
	SE         float64 // standard error of Coef
	LogLik     float64
	Iterations int
	Converged  bool
}

// Effect is the exponentiated term effect at a confidence level.
type Effect struct {
	Estimate float64
	Lower    float64
	Upper    float64
	P        float64
}

// Effect returns exp(coef) with a two-sided Wald interval and p-value.
func (r *Result) Effect(conf float64) Effect {
	z := distuv.UnitNormal.Quantile((1 + conf) / 2)
	stat := math.Abs(r.Coef / r.SE)
	return Effect{
		Estimate: math.Exp(r.Coef),
		Lower:    math.Exp(r.Coef - z*r.SE),
		Upper:    math.Exp(r.Coef + z*r.SE),
		P:        math.Min(1, 2*distuv.UnitNormal.Survival(stat)),
	}
}
