package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cli carries state shared by every subcommand once the root command has
// loaded the configuration.
type cli struct {
	configPath string
	verbose    bool

	cfg *Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	app := &cli{}

	root := &cobra.Command{
		Use:   "crossword",
		Short: "Validate crossword puzzles and export them to .puz and ipuz",
		Long: `crossword checks a puzzle's grid, clue numbering and metadata, then writes
it as a legacy .puz file (v1.2), an extended .puz file (v2.0, with rebus
squares) or an ipuz JSON document. The serve command exposes the same
operations over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.log != nil {
				_ = app.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "config file (YAML)")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(app),
		newValidateCmd(app),
		newExportCmd(app),
		newImportCmd(app),
		newInspectCmd(app),
	)
	return root
}

func (app *cli) init() error {
	cfg, err := LoadConfig(app.configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging, app.verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	app.cfg = cfg
	app.log = logger
	return nil
}

// newLogger builds a zap logger writing to stderr.
func newLogger(cfg LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}
