package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/railyard/pkg/config"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/logger"
)

// cli holds state shared by every command of one invocation.
type cli struct {
	configPath string
	logLevel   string
	logJSON    bool

	cfg *config.Config
	app *App
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "railyard",
		Short: "Model railway track layout tool",
		Long: `railyard builds model railway layouts from Lisp scripts.

A script places catalog pieces and extends them connector by connector.
Pieces that touch snap together into one track graph, which railyard can
validate, route over, tessellate and save.

Examples:
  railyard catalog                      # List the track catalog
  railyard run examples/oval.lisp       # Evaluate and validate a script
  railyard watch examples/oval.lisp     # Re-evaluate on every save
  railyard bom examples/yard.lisp       # Bill of materials
  railyard store save oval examples/oval.lisp`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Cleanup()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: ./railyard.toml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&c.logJSON, "log-json", false, "emit JSON logs")

	root.AddCommand(
		newCatalogCmd(c),
		newRunCmd(c),
		newWatchCmd(c),
		newStatsCmd(c),
		newBOMCmd(c),
		newRouteCmd(c),
		newExportCmd(c),
		newStoreCmd(c),
		newConfigCmd(c),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = c.logJSON
	}
	if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Level); err != nil {
		return errors.Wrap(err, "initialize logger")
	}
	c.cfg = cfg
	c.app = NewApp(cfg)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, h := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "Hint:", h)
		}
		os.Exit(1)
	}
}
