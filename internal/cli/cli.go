// Package cli implements the forestplot command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/forestplot/pkg/buildinfo"
	"github.com/matzehuels/forestplot/pkg/cache"
	"github.com/matzehuels/forestplot/pkg/config"
	"github.com/matzehuels/forestplot/pkg/pipeline"
	"github.com/matzehuels/forestplot/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "forestplot"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Out receives command output that is not logging.
	Out io.Writer

	configPath string
	noCache    bool
	redisURL   string
	cfg        config.FileConfig
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Forestplot draws subgroup forest plots from trial data",
		Long: `Forestplot fits one model per biomarker and subgroup, tabulates the effect
estimates and draws them as a forest plot next to the table.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.SetOut(c.Out)

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file, .toml or .yaml (default "+config.DefaultConfigPath()+")")
	pf.BoolVar(&c.noCache, "no-cache", false, "disable the result cache")
	pf.StringVar(&c.redisURL, "redis", "", "Redis URL for a shared cache (e.g. redis://localhost:6379/0)")

	// Register all subcommands
	root.AddCommand(c.extractCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.plotCommand())
	root.AddCommand(c.viewCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file. The default path may be missing; an
// explicit --config must exist.
func (c *CLI) loadConfig() error {
	path := c.configPath
	if path == "" {
		path = config.DefaultConfigPath()
	} else if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// baseOptions returns pipeline options seeded from the config file. Flags
// are applied on top by each command.
func (c *CLI) baseOptions() pipeline.Options {
	var opts pipeline.Options
	c.cfg.Apply(&opts)
	opts.Logger = c.Logger
	return opts
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context) (*pipeline.Runner, error) {
	cc, err := c.newCache(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cc, nil, c.Logger), nil
}

func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	if c.noCache || deref(c.cfg.Cache.Disabled) {
		return cache.NewNullCache(), nil
	}
	url := c.redisURL
	if url == "" {
		url = deref(c.cfg.Cache.RedisURL)
	}
	if url != "" {
		rc, err := cache.NewRedisCache(ctx, url)
		if err != nil {
			return nil, err
		}
		c.Logger.Debug("using redis cache", "url", url)
		return rc, nil
	}
	fc, err := cache.NewFileCache(c.cacheDir())
	if err != nil {
		c.Logger.Warn("cache disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory or the XDG default
// (~/.cache/forestplot/).
func (c *CLI) cacheDir() string {
	if dir := deref(c.cfg.Cache.Dir); dir != "" {
		return dir
	}
	return config.DefaultCacheDir()
}

// dbPath returns the configured run archive or the XDG default
// (~/.local/share/forestplot/runs.db).
func (c *CLI) dbPath() string {
	if p := deref(c.cfg.Store.Path); p != "" {
		return p
	}
	return config.DefaultDBPath()
}

// openStore opens the run archive. mongoURI overrides the config file;
// without either the local SQLite archive is used.
func (c *CLI) openStore(ctx context.Context, mongoURI string) (store.Store, error) {
	if mongoURI == "" {
		mongoURI = deref(c.cfg.Store.MongoURI)
	}
	if mongoURI != "" {
		return store.ConnectMongo(ctx, mongoURI)
	}
	return store.OpenSQLite(c.dbPath())
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
