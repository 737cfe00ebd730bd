package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/forestplot/pkg/dataset"
	fpio "github.com/matzehuels/forestplot/pkg/io"
	"github.com/matzehuels/forestplot/pkg/pipeline"
)

// extractCommand fits the models and writes the effect rows as JSON.
func (c *CLI) extractCommand() *cobra.Command {
	var (
		ef     extractFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "extract [data.csv]",
		Short: "Fit models and export effect rows as JSON",
		Long: `Extract fits one model per biomarker, overall and within each subgroup level,
and writes the resulting effect rows as JSON. The rows can be rendered later
with the render command.`,
		Example: `  forestplot extract trial.csv --response RSP -b BMRKR1 -s SEX:Sex -s AGEGRP
  forestplot extract trial.csv --time AVAL --event EVENT -b BMRKR2 -o rows.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.baseOptions()
			if err := ef.apply(cmd.Flags(), &opts); err != nil {
				return err
			}
			if output == "" {
				output = basePath("", args[0]) + ".rows.json"
			}
			return c.runExtract(cmd.Context(), args[0], output, opts)
		},
	}

	ef.register(cmd.Flags())
	addOutputFlag(cmd, &output, `output file, "-" for stdout (default <input>.rows.json)`)
	return cmd
}

func (c *CLI) runExtract(ctx context.Context, input, output string, opts pipeline.Options) error {
	ds, err := dataset.ReadCSVFile(input)
	if err != nil {
		return err
	}
	c.Logger.Debug("loaded dataset", "path", input, "rows", ds.NumRows(), "columns", len(ds.Names()))

	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	spin := newSpinner(ctx, fmt.Sprintf("Fitting %d biomarker(s)", len(opts.Variables.Biomarkers)))
	spin.Start()
	rows, hit, err := runner.ExtractWithCacheInfo(ctx, ds, opts)
	spin.Stop()
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Extracted %d rows", len(rows)))

	if output == "-" {
		return fpio.WriteRows(rows, os.Stdout)
	}
	if err := fpio.ExportRows(rows, output); err != nil {
		return err
	}
	printSuccess("Extracted effect rows")
	printStats(rows, hit)
	printFile(output)
	printNextStep("Render with", appName+" render "+output)
	return nil
}
