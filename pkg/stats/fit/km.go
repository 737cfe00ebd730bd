package fit

import (
	"cmp"
	"math"
	"slices"
)

// KaplanMeierMedian returns the median survival time of the Kaplan-Meier
// estimate, or NaN when the curve never drops to one half. Where the curve
// sits exactly at 0.5 over an interval, the midpoint of that interval is
// returned.
func KaplanMeierMedian(time, event []float64) float64 {
	n := len(time)
	if n == 0 || len(event) != n {
		return math.NaN()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(time[a], time[b]) })

	const eps = 1e-12
	surv := 1.0
	atRisk := n
	for start := 0; start < n; {
		t := time[idx[start]]
		end, deaths := start, 0
		for end < n && time[idx[end]] == t {
			if event[idx[end]] == 1 {
				deaths++
			}
			end++
		}
		if deaths > 0 {
			surv *= 1 - float64(deaths)/float64(atRisk)
		}
		atRisk -= end - start

		switch {
		case math.Abs(surv-0.5) < eps:
			for k := end; k < n; k++ {
				if event[idx[k]] == 1 {
					return (t + time[idx[k]]) / 2
				}
			}
			return t
		case surv < 0.5:
			return t
		}
		start = end
	}
	return math.NaN()
}
