package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/forestplot/pkg/server"
)

// serveCommand starts the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		mongoURI string
		maxBody  int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the forest plot HTTP API",
		Example: `  forestplot serve --addr :8080
  forestplot serve --redis redis://localhost:6379/0 --mongo mongodb://localhost:27017`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := c.newRunner(ctx)
			if err != nil {
				return err
			}
			defer runner.Close()

			st, err := c.openStore(ctx, mongoURI)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := server.New(runner,
				server.WithStore(st),
				server.WithLogger(c.Logger),
				server.WithMaxBodyBytes(maxBody),
			)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&mongoURI, "mongo", "", "MongoDB URI for the run archive (default: local SQLite)")
	cmd.Flags().Int64Var(&maxBody, "max-body", server.DefaultMaxBodyBytes, "request body limit in bytes")
	return cmd
}
