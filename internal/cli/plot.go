package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/forestplot/pkg/dataset"
	"github.com/matzehuels/forestplot/pkg/pipeline"
	"github.com/matzehuels/forestplot/pkg/store"
)

// plotCommand runs the whole pipeline from a CSV file.
func (c *CLI) plotCommand() *cobra.Command {
	var (
		ef     extractFlags
		pf     plotFlags
		ro     renderOpts
		noSave bool
	)

	cmd := &cobra.Command{
		Use:   "plot [data.csv]",
		Short: "Fit, tabulate and draw a forest plot in one step",
		Example: `  forestplot plot trial.csv --response RSP -b BMRKR1 -s SEX:Sex --show
  forestplot plot trial.csv --time AVAL --event EVENT -b BMRKR2 \
      --forest-header "Treatment better" --forest-header "Control better" -f svg,pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.baseOptions()
			if err := ef.apply(cmd.Flags(), &opts); err != nil {
				return err
			}
			if err := pf.apply(cmd.Flags(), &opts); err != nil {
				return err
			}
			return c.runPlot(cmd.Context(), args[0], ro, opts, !noSave)
		},
	}

	ef.register(cmd.Flags())
	pf.register(cmd.Flags())
	addOutputFlag(cmd, &ro.output, "output file (single format) or base path")
	cmd.Flags().BoolVar(&ro.show, "show", false, "print the plot to the terminal")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not archive the run")
	return cmd
}

func (c *CLI) runPlot(ctx context.Context, input string, ro renderOpts, opts pipeline.Options, save bool) error {
	ds, err := dataset.ReadCSVFile(input)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	requested := opts.Formats
	if len(requested) == 0 {
		requested = []string{pipeline.FormatSVG}
	}
	if save && !opts.HasFormat(pipeline.FormatSVG) {
		opts.Formats = append(slices.Clone(requested), pipeline.FormatSVG)
	}

	prog := newProgress(c.Logger)
	spin := newSpinner(ctx, fmt.Sprintf("Fitting %d biomarker(s)", len(opts.Variables.Biomarkers)))
	spin.Start()
	res, err := runner.Execute(ctx, ds, opts)
	spin.Stop()
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Plotted %d rows", len(res.Rows)))

	run := store.NewRun(opts, res)
	maps.DeleteFunc(res.Artifacts, func(f string, _ []byte) bool {
		return !slices.Contains(requested, f)
	})
	if err := c.finish(input, ro, res); err != nil {
		return err
	}
	if !save {
		return nil
	}

	st, err := c.openStore(ctx, "")
	if err != nil {
		printWarning("Run not archived: %v", err)
		return nil
	}
	defer st.Close()
	if err := st.Save(ctx, run); err != nil {
		printWarning("Run not archived: %v", err)
		return nil
	}
	printDetail("Run %s", run.ID)
	return nil
}
