package pipeline

import (
	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/table"
)

// BuildTable assembles effect rows into the display table.
func BuildTable(rows []effect.Row, opts Options) (*table.EffectTable, error) {
	opts.SetTableDefaults()
	return table.Build(rows, table.BuildOptions{
		Vars:   opts.Vars,
		Spans:  opts.Spans,
		Format: opts.Format,
	})
}
