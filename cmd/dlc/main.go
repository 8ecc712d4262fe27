// Package main implements dlc, the compiler pipeline's CLI front end.
//
// File index:
//
//	main.go  - entry point, rootCmd, global flags, logger setup
//	run.go   - `dlc run` subcommand
//	check.go - `dlc check` subcommand
//	watch.go - `dlc watch` subcommand
//	wasm.go  - `dlc wasm` subcommand
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dlcore/internal/config"
	"dlcore/internal/dllog"
)

var (
	debug      bool
	configPath string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dlc",
	Short: "dlc - a Datalog-style logic-programming compiler and execution engine",
	Long: `dlc parses, stratifies, and evaluates Datalog-style logic programs.

Rules determine the derived facts; there is no LLM or heuristic layer here --
the evaluator reaches a fixed point or reports why it could not compile.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if debug {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if debug {
			loaded.Logging.Debug = true
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		if err := dllog.Initialize(cfg.Logging.Dir, cfg.Logging.Debug); err != nil {
			fmt.Fprintf(os.Stderr, "dlc: warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		dllog.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "dlc.yaml", "path to dlc's YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
