package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/kbs/pkg/kbs/config"
)

var (
	verbose        bool
	configPath     string
	definitionPath string
	rulesPaths     []string
	dbPath         string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kbs",
	Short: "Symbolic knowledge base and constraint solver",
	Long: `kbs loads assertions from rule files and YAML definitions, propagates
them to a fixpoint and reports what they force.

Rule files hold one assertion per line:
  eq(add(x, y), 10)
  implies(rain, wet)
  rel(fido, is, dog)
  prop(is(dog), legs, 4)`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.DefaultConfig()
		if configPath != "" {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
		}

		zc := zap.NewProductionConfig()
		level, err := zapcore.ParseLevel(strings.ToLower(cfg.LogLevel))
		if err != nil {
			return err
		}
		zc.Level = zap.NewAtomicLevelAt(level)
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Settings file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&definitionPath, "def", "d", "", "Knowledge base definition (YAML)")
	rootCmd.PersistentFlags().StringSliceVarP(&rulesPaths, "rules", "r", nil, "Rule files, in load order")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Run history database (overrides db_path)")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(closureCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(replCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
