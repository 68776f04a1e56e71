package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/kbs/pkg/kbs/report"
	"github.com/cognicore/kbs/pkg/kbs/taxonomy"
)

var (
	reportOut   string
	reportTitle string
)

// reportCmd writes an HTML page describing the solved knowledge base
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write an HTML report of the solved knowledge base",
	Long: `Solves the knowledge base and renders symbols, relations, properties,
assertions, any conflict and the classification closure as one HTML page.

Example:
  kbs report -r testdata/pets.rules -o pets.html`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Output file (default: stdout)")
	reportCmd.Flags().StringVar(&reportTitle, "title", "", "Page title")
}

func runReport(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(s *session) error {
		tax, err := taxonomy.Build(s.kb, logger)
		if err != nil {
			return err
		}
		opts := report.Options{Title: reportTitle, Taxonomy: tax}

		if reportOut == "" {
			return report.Write(cmd.OutOrStdout(), s.kb, opts)
		}

		f, err := os.Create(reportOut)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()

		w := bufio.NewWriter(f)
		if err := report.Write(w, s.kb, opts); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", reportOut))
		return f.Close()
	})
}
