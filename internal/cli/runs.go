package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// runsCommand inspects the run archive.
func (c *CLI) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived plot runs",
	}
	cmd.AddCommand(c.runsListCommand())
	cmd.AddCommand(c.runsShowCommand())
	return cmd
}

func (c *CLI) runsListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx, "")
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				printInfo("No archived runs")
				return nil
			}
			fmt.Fprintln(c.Out, runsTable(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs")
	return cmd
}

func (c *CLI) runsShowCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one run and optionally write its SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx, "")
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.Get(ctx, args[0])
			if err != nil {
				return err
			}
			printKeyValue("ID", run.ID)
			printKeyValue("Created", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			if run.Title != "" {
				printKeyValue("Title", run.Title)
			}
			printKeyValue("Biomarkers", strings.Join(run.Options.Variables.Biomarkers, ", "))
			fmt.Println(statsLine(run.Rows, false))

			if output == "" {
				return nil
			}
			if len(run.SVG) == 0 {
				return fmt.Errorf("run %s has no plot", run.ID)
			}
			if err := os.WriteFile(output, run.SVG, 0o644); err != nil {
				return err
			}
			printFile(output)
			return nil
		},
	}
	addOutputFlag(cmd, &output, "write the archived SVG to this file")
	return cmd
}
