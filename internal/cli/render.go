package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/forestplot/pkg/forest/sink"
	fpio "github.com/matzehuels/forestplot/pkg/io"
	"github.com/matzehuels/forestplot/pkg/pipeline"
)

// renderOpts holds the render flags that are not pipeline options.
type renderOpts struct {
	output  string
	overlay bool // draw every input on one SVG page
	show    bool // print the plot to the terminal
}

// renderCommand renders effect rows exported by extract.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		pf   plotFlags
		opts renderOpts
	)

	cmd := &cobra.Command{
		Use:   "render [rows.json...]",
		Short: "Render effect rows as a forest plot",
		Example: `  forestplot render rows.json
  forestplot render rows.json -f svg,png --style journal --xlim 0.1,10
  forestplot render a.rows.json b.rows.json --overlay -o both.svg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			po := c.baseOptions()
			if err := pf.apply(cmd.Flags(), &po); err != nil {
				return err
			}
			if opts.overlay {
				return c.runOverlay(cmd.Context(), args, opts, po)
			}
			for _, input := range args {
				if err := c.runRender(cmd.Context(), input, opts, po); err != nil {
					return fmt.Errorf("%s: %w", input, err)
				}
			}
			return nil
		},
	}

	pf.register(cmd.Flags())
	addOutputFlag(cmd, &opts.output, "output file (single format) or base path")
	cmd.Flags().BoolVar(&opts.overlay, "overlay", false, "overlay all inputs on one SVG page")
	cmd.Flags().BoolVar(&opts.show, "show", false, "print the plot to the terminal")
	return cmd
}

func (c *CLI) runRender(ctx context.Context, input string, ro renderOpts, opts pipeline.Options) error {
	rows, err := fpio.ImportRows(input)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	res, err := runner.RenderRows(ctx, rows, opts)
	if err != nil {
		return err
	}
	return c.finish(input, ro, res)
}

// finish writes the artifacts of res and reports them.
func (c *CLI) finish(input string, ro renderOpts, res *pipeline.Result) error {
	if ro.show {
		fmt.Fprintln(c.Out, sink.RenderText(res.Table, res.Geometry, sink.TerminalWidth()))
	}
	paths, err := writeArtifacts(res.Artifacts, ro.output, input)
	if err != nil {
		return err
	}
	printSuccess("Rendered %s", filepath.Base(input))
	printStats(res.Rows, res.CacheInfo.RenderHit)
	for _, p := range paths {
		printFile(p)
	}
	return nil
}

// runOverlay draws every input on the same SVG page.
func (c *CLI) runOverlay(ctx context.Context, inputs []string, ro renderOpts, opts pipeline.Options) error {
	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	opts.Formats = []string{pipeline.FormatSVG}
	var dev *sink.SVGDevice
	for _, input := range inputs {
		rows, err := fpio.ImportRows(input)
		if err != nil {
			return err
		}
		res, err := runner.RenderRows(ctx, rows, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		if dev == nil {
			svgOpts, err := pipeline.SVGOptions(opts)
			if err != nil {
				return err
			}
			dev = sink.NewSVGDevice(svgOpts...)
		}
		if err := dev.Draw(res.Drawing); err != nil {
			return err
		}
	}

	output := ro.output
	if output == "" {
		output = basePath("", inputs[0]) + "-overlay.svg"
	}
	if err := os.WriteFile(output, dev.Bytes(), 0o644); err != nil {
		return err
	}
	printSuccess("Overlaid %d plots", len(inputs))
	printFile(output)
	return nil
}
