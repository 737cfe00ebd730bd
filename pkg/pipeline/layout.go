package pipeline

import (
	"github.com/matzehuels/forestplot/pkg/forest/layout"
	"github.com/matzehuels/forestplot/pkg/table"
)

// ComputeLayout computes the forest geometry of t. The estimate and
// interval columns default to the ones the table was built with.
func ComputeLayout(t *table.EffectTable, opts Options) (*layout.Geometry, error) {
	if err := opts.ValidateForLayout(); err != nil {
		return nil, err
	}
	return layout.Compute(t, opts.LayoutConfig(t))
}
