package fit

import (
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/matzehuels/forestplot/pkg/dataset"
	"github.com/matzehuels/forestplot/pkg/errors"
)

// maxStdCoef bounds |coef|·sd(term). Beyond it the likelihood is taken to be
// monotone (separation) and the coefficient effectively infinite.
const maxStdCoef = 15.0

// design is the model matrix of one fit after complete-case filtering.
type design struct {
	x        *mat.Dense // n × p
	y        []float64  // response (0/1) or event indicator
	time     []float64  // survival only
	strata   []string   // survival only: stratum key per row
	termCol  int
	termName string
	termSD   float64
}

func (d *design) n() int { r, _ := d.x.Dims(); return r }
func (d *design) p() int { _, c := d.x.Dims(); return c }

// buildDesign validates the model against ds and assembles the matrix.
// Strata become fixed-effect dummies when strataAsDummies is set (logistic);
// otherwise they are returned as per-row keys (Cox).
func buildDesign(ds *dataset.Dataset, m Model, kind Kind, intercept, strataAsDummies bool) (*design, error) {
	if m.Term == "" {
		return nil, errors.Configuration("model has no term")
	}

	outcome := []string{m.Response}
	if kind == KindSurvival {
		if m.Time == "" || m.Event == "" {
			return nil, errors.Configuration("survival model needs time and event variables")
		}
		outcome = []string{m.Time, m.Event}
	} else if m.Response == "" {
		return nil, errors.Configuration("response model needs a response variable")
	}

	used := slices.Concat(outcome, []string{m.Term}, m.Covariates, m.Strata)
	rows, err := ds.CompleteCases(used...)
	if err != nil {
		return nil, err
	}

	termCol, err := ds.Column(m.Term)
	if err != nil {
		return nil, err
	}
	if termCol.Kind == dataset.Categorical {
		if len(m.TermLevels) != 2 {
			return nil, errors.Configuration("categorical term %q needs exactly two levels, got %d", m.Term, len(m.TermLevels))
		}
		rows = slices.DeleteFunc(rows, func(i int) bool {
			return !slices.Contains(m.TermLevels, termCol.Str[i])
		})
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyData, "no complete cases for %q", m.Term)
	}

	sub := ds.Subset(rows)
	n := sub.NumRows()
	d := &design{termName: m.Term}

	switch kind {
	case KindResponse:
		if d.y, err = responseValues(sub, m); err != nil {
			return nil, err
		}
	case KindSurvival:
		if d.time, err = sub.Numeric(m.Time); err != nil {
			return nil, err
		}
		for _, t := range d.time {
			if t < 0 {
				return nil, errors.Configuration("time variable %q has negative values", m.Time)
			}
		}
		if d.y, err = binaryValues(sub, m.Event); err != nil {
			return nil, err
		}
	}

	var cols [][]float64
	if intercept {
		ones := make([]float64, n)
		for i := range ones {
			ones[i] = 1
		}
		cols = append(cols, ones)
	}

	term, err := termValues(sub, m)
	if err != nil {
		return nil, err
	}
	d.termSD = stat.StdDev(term, nil)
	if n < 2 || d.termSD == 0 || math.IsNaN(d.termSD) {
		return nil, errors.New(errors.ErrCodeFitDegeneracy, "term %q has no variation", m.Term)
	}
	d.termCol = len(cols)
	cols = append(cols, term)

	adjust := m.Covariates
	if strataAsDummies {
		adjust = slices.Concat(m.Covariates, m.Strata)
	}
	for _, name := range adjust {
		cc, err := adjustmentColumns(sub, name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, cc...)
	}

	if !strataAsDummies && len(m.Strata) > 0 {
		d.strata = strataKeys(sub, m.Strata)
	}

	d.x = mat.NewDense(n, len(cols), nil)
	for j, c := range cols {
		d.x.SetCol(j, c)
	}
	return d, nil
}

func responseValues(ds *dataset.Dataset, m Model) ([]float64, error) {
	col, err := ds.Column(m.Response)
	if err != nil {
		return nil, err
	}
	if col.Kind == dataset.Numeric {
		return binaryValues(ds, m.Response)
	}
	if len(m.ResponderLevels) == 0 {
		return nil, errors.Configuration("categorical response %q needs responder levels", m.Response)
	}
	y := make([]float64, len(col.Str))
	for i, v := range col.Str {
		if slices.Contains(m.ResponderLevels, v) {
			y[i] = 1
		}
	}
	return y, nil
}

func binaryValues(ds *dataset.Dataset, name string) ([]float64, error) {
	vals, err := ds.Numeric(name)
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		if v != 0 && v != 1 {
			return nil, errors.Configuration("variable %q must be 0/1, found %v", name, v)
		}
	}
	return vals, nil
}

func termValues(ds *dataset.Dataset, m Model) ([]float64, error) {
	col, err := ds.Column(m.Term)
	if err != nil {
		return nil, err
	}
	if col.Kind == dataset.Numeric {
		return slices.Clone(col.Num), nil
	}
	x := make([]float64, len(col.Str))
	for i, v := range col.Str {
		if v == m.TermLevels[1] {
			x[i] = 1
		}
	}
	return x, nil
}

// adjustmentColumns returns one column for a numeric covariate and one dummy
// per non-reference level for a categorical one. Constant columns are
// dropped: inside a subgroup the grouping variable is often also a
// covariate and carries no information there.
func adjustmentColumns(ds *dataset.Dataset, name string) ([][]float64, error) {
	col, err := ds.Column(name)
	if err != nil {
		return nil, err
	}
	if col.Kind == dataset.Numeric {
		if stat.StdDev(col.Num, nil) == 0 {
			return nil, nil
		}
		return [][]float64{slices.Clone(col.Num)}, nil
	}

	levels, _ := ds.Levels(name)
	if len(levels) < 2 {
		return nil, nil
	}
	out := make([][]float64, 0, len(levels)-1)
	for _, lvl := range levels[1:] {
		dummy := make([]float64, len(col.Str))
		for i, v := range col.Str {
			if v == lvl {
				dummy[i] = 1
			}
		}
		out = append(out, dummy)
	}
	return out, nil
}

func strataKeys(ds *dataset.Dataset, names []string) []string {
	vals := make([][]string, len(names))
	for j, name := range names {
		vals[j], _ = ds.Strings(name)
	}
	keys := make([]string, ds.NumRows())
	parts := make([]string, len(names))
	for i := range keys {
		for j := range names {
			parts[j] = vals[j][i]
		}
		keys[i] = strings.Join(parts, "\x1f")
	}
	return keys
}

// invert factors a symmetric positive definite information matrix and
// returns its inverse. A failed factorization means the model is not
// identifiable on this data.
func invert(info *mat.SymDense) (*mat.SymDense, *mat.Cholesky, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		return nil, nil, errors.New(errors.ErrCodeFitDegeneracy, "information matrix is singular")
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeFitDegeneracy, err, "invert information matrix")
	}
	return &cov, &chol, nil
}

// finish checks the fitted term and fills the result.
func finish(d *design, beta []float64, cov *mat.SymDense, res *Result) (*Result, error) {
	res.Coef = beta[d.termCol]
	res.SE = math.Sqrt(cov.At(d.termCol, d.termCol))

	if !res.Converged {
		return nil, errors.New(errors.ErrCodeFitDegeneracy, "fit did not converge after %d iterations", res.Iterations)
	}
	if math.IsNaN(res.Coef) || math.IsInf(res.Coef, 0) || math.IsNaN(res.SE) || math.IsInf(res.SE, 0) || res.SE <= 0 {
		return nil, errors.New(errors.ErrCodeFitDegeneracy, "term estimate is not finite")
	}
	if math.Abs(res.Coef)*d.termSD > maxStdCoef {
		return nil, errors.New(errors.ErrCodeFitDegeneracy, "coefficient may be infinite (separation)")
	}
	return res, nil
}
