package fit

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/matzehuels/forestplot/pkg/dataset"
	"github.com/matzehuels/forestplot/pkg/errors"
)

// CoxPH fits a proportional hazards model by Newton-Raphson on the Breslow
// partial likelihood. Strata get separate baseline hazards.
type CoxPH struct {
	MaxIter int     // default 20
	Tol     float64 // relative log-likelihood change, default 1e-9
}

// Kind returns KindSurvival.
func (CoxPH) Kind() Kind { return KindSurvival }

// TestName returns the Wald test label.
func (CoxPH) TestName() string { return "p-value (Wald)" }

// Fit fits the model and returns the term's log hazard ratio.
func (c CoxPH) Fit(ds *dataset.Dataset, m Model) (*Result, error) {
	maxIter, tol := c.MaxIter, c.Tol
	if maxIter <= 0 {
		maxIter = 20
	}
	if tol <= 0 {
		tol = 1e-9
	}

	d, err := buildDesign(ds, m, KindSurvival, false, false)
	if err != nil {
		return nil, err
	}
	centerColumns(d.x)

	res := &Result{N: d.n()}
	for _, e := range d.y {
		if e == 1 {
			res.Events++
		}
	}
	if res.Events == 0 {
		return nil, errors.New(errors.ErrCodeFitDegeneracy, "no events")
	}

	groups := riskGroups(d)
	p := d.p()
	beta := make([]float64, p)
	ll, grad, info := partialLikelihood(d, groups, beta)

	for iter := 1; iter <= maxIter; iter++ {
		res.Iterations = iter
		_, chol, err := invert(info)
		if err != nil {
			return nil, err
		}
		step := mat.NewVecDense(p, nil)
		if err := chol.SolveVecTo(step, mat.NewVecDense(p, grad)); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFitDegeneracy, err, "solve Newton step")
		}

		next := make([]float64, p)
		var nextLL float64
		var nextGrad []float64
		var nextInfo *mat.SymDense
		scale := 1.0
		for halving := 0; halving < 10; halving++ {
			for j := range next {
				next[j] = beta[j] + scale*step.AtVec(j)
			}
			nextLL, nextGrad, nextInfo = partialLikelihood(d, groups, next)
			if nextLL >= ll || math.IsNaN(ll) {
				break
			}
			scale /= 2
		}

		change := math.Abs(nextLL-ll) / math.Max(math.Abs(nextLL), 1e-10)
		copy(beta, next)
		ll, grad, info = nextLL, nextGrad, nextInfo
		if change < tol {
			res.Converged = true
			break
		}
	}
	res.LogLik = ll

	cov, _, err := invert(info)
	if err != nil {
		return nil, err
	}
	// On a monotone likelihood the log-likelihood flattens out while the
	// Newton step for the term stays large.
	var pending float64
	for j := 0; j < p; j++ {
		pending += cov.At(d.termCol, j) * grad[j]
	}
	if res.Converged && math.Abs(pending) > 1e-3*math.Max(math.Abs(beta[d.termCol]), 1) {
		return nil, errors.New(errors.ErrCodeFitDegeneracy, "log-likelihood converged before %q; coefficient may be infinite", d.termName)
	}
	return finish(d, beta, cov, res)
}

// riskGroups returns, per stratum, row indices ordered by descending time.
func riskGroups(d *design) [][]int {
	byStratum := make(map[string][]int)
	var order []string
	for i := 0; i < d.n(); i++ {
		key := ""
		if d.strata != nil {
			key = d.strata[i]
		}
		if _, ok := byStratum[key]; !ok {
			order = append(order, key)
		}
		byStratum[key] = append(byStratum[key], i)
	}
	groups := make([][]int, 0, len(order))
	for _, key := range order {
		idx := byStratum[key]
		slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(d.time[b], d.time[a]) })
		groups = append(groups, idx)
	}
	return groups
}

// partialLikelihood evaluates the Breslow log partial likelihood, its
// gradient and the observed information at beta.
func partialLikelihood(d *design, groups [][]int, beta []float64) (float64, []float64, *mat.SymDense) {
	p := d.p()
	grad := make([]float64, p)
	info := mat.NewSymDense(p, nil)
	s1 := make([]float64, p)
	s2 := make([]float64, p*p)
	var ll float64

	for _, idx := range groups {
		var s0 float64
		clear(s1)
		clear(s2)

		for start := 0; start < len(idx); {
			t := d.time[idx[start]]
			end := start
			for end < len(idx) && d.time[idx[end]] == t {
				i := idx[end]
				xi := d.x.RawRowView(i)
				r := math.Exp(dot(xi, beta))
				s0 += r
				for a := 0; a < p; a++ {
					s1[a] += r * xi[a]
					for b := 0; b < p; b++ {
						s2[a*p+b] += r * xi[a] * xi[b]
					}
				}
				end++
			}

			for k := start; k < end; k++ {
				i := idx[k]
				if d.y[i] != 1 {
					continue
				}
				xi := d.x.RawRowView(i)
				ll += dot(xi, beta) - math.Log(s0)
				for a := 0; a < p; a++ {
					ma := s1[a] / s0
					grad[a] += xi[a] - ma
					for b := a; b < p; b++ {
						mb := s1[b] / s0
						info.SetSym(a, b, info.At(a, b)+s2[a*p+b]/s0-ma*mb)
					}
				}
			}
			start = end
		}
	}
	return ll, grad, info
}

// centerColumns subtracts each column's mean. Hazard ratios are unchanged
// and exp(x·beta) stays in range.
func centerColumns(x *mat.Dense) {
	n, p := x.Dims()
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		mean := stat.Mean(col, nil)
		for i := range col {
			col[i] -= mean
		}
		x.SetCol(j, col)
	}
}
