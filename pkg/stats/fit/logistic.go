package fit

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/matzehuels/forestplot/pkg/dataset"
	"github.com/matzehuels/forestplot/pkg/errors"
)

// Logistic fits a binomial GLM with logit link by iteratively reweighted
// least squares. Strata enter as fixed-effect dummies.
type Logistic struct {
	MaxIter int     // default 25
	Tol     float64 // relative deviance change, default 1e-8
}

// Kind returns KindResponse.
func (Logistic) Kind() Kind { return KindResponse }

// TestName returns the Wald test label.
func (Logistic) TestName() string { return "p-value (Wald)" }

// Fit fits the model and returns the term's log odds ratio.
func (l Logistic) Fit(ds *dataset.Dataset, m Model) (*Result, error) {
	maxIter, tol := l.MaxIter, l.Tol
	if maxIter <= 0 {
		maxIter = 25
	}
	if tol <= 0 {
		tol = 1e-8
	}

	d, err := buildDesign(ds, m, KindResponse, true, true)
	if err != nil {
		return nil, err
	}

	n, p := d.n(), d.p()
	res := &Result{N: n}
	for _, v := range d.y {
		if v == 1 {
			res.Events++
		}
	}
	if res.Events == 0 || res.Events == n {
		return nil, errors.New(errors.ErrCodeFitDegeneracy, "all subjects have the same response")
	}

	beta := make([]float64, p)
	mu := make([]float64, n)
	info := mat.NewSymDense(p, nil)
	rhs := mat.NewVecDense(p, nil)
	dev := math.Inf(1)

	for iter := 1; iter <= maxIter; iter++ {
		res.Iterations = iter
		info.Zero()
		rhs.Zero()
		for i := 0; i < n; i++ {
			xi := d.x.RawRowView(i)
			eta := dot(xi, beta)
			mu[i] = 1 / (1 + math.Exp(-eta))
			w := math.Max(mu[i]*(1-mu[i]), 1e-12)
			z := eta + (d.y[i]-mu[i])/w
			for a := 0; a < p; a++ {
				rhs.SetVec(a, rhs.AtVec(a)+w*xi[a]*z)
				for b := a; b < p; b++ {
					info.SetSym(a, b, info.At(a, b)+w*xi[a]*xi[b])
				}
			}
		}

		_, chol, err := invert(info)
		if err != nil {
			return nil, err
		}
		next := mat.NewVecDense(p, nil)
		if err := chol.SolveVecTo(next, rhs); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFitDegeneracy, err, "solve IRLS step")
		}
		copy(beta, next.RawVector().Data)

		newDev := deviance(d, beta)
		if math.Abs(newDev-dev)/(math.Abs(newDev)+0.1) < tol {
			res.Converged = true
			dev = newDev
			break
		}
		dev = newDev
	}
	res.LogLik = -dev / 2

	// Covariance at the final estimate.
	info.Zero()
	for i := 0; i < n; i++ {
		xi := d.x.RawRowView(i)
		pr := 1 / (1 + math.Exp(-dot(xi, beta)))
		w := pr * (1 - pr)
		for a := 0; a < p; a++ {
			for b := a; b < p; b++ {
				info.SetSym(a, b, info.At(a, b)+w*xi[a]*xi[b])
			}
		}
	}
	cov, _, err := invert(info)
	if err != nil {
		return nil, err
	}
	return finish(d, beta, cov, res)
}

func deviance(d *design, beta []float64) float64 {
	var dev float64
	for i := 0; i < d.n(); i++ {
		pr := 1 / (1 + math.Exp(-dot(d.x.RawRowView(i), beta)))
		if d.y[i] == 1 {
			dev -= 2 * math.Log(math.Max(pr, 1e-300))
		} else {
			dev -= 2 * math.Log(math.Max(1-pr, 1e-300))
		}
	}
	return dev
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
