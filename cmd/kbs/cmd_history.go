package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/kbs/pkg/kbs/store"
)

var historyLimit int

// historyCmd lists or shows recorded runs
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded solve runs or show one",
	Long: `Without arguments lists the most recent runs in the history database.
With a run id prints that run's symbols, assertions and conflict.

Examples:
  kbs history --db kbs.db
  kbs history --db kbs.db 01HZX3K9A2B4C6D8E0F2G4H6J8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", store.DefaultListLimit, "Number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(s *session) error {
		if s.history == nil {
			return errors.New("no history database: set --db or db_path")
		}
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			run, err := s.history.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRun(out, run)
			return nil
		}

		runs, err := s.history.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}
		for _, r := range runs {
			status := "ok"
			if r.Conflict != "" {
				status = "conflict"
			}
			fmt.Fprintf(out, "%s  %s  %2d passes  %-8s  %s\n",
				r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Passes, status, r.Source)
		}
		return nil
	})
}

func printRun(w io.Writer, r store.Run) {
	fmt.Fprintf(w, "Run %s (%s)\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if r.Source != "" {
		fmt.Fprintf(w, "Source: %s\n", r.Source)
	}
	fmt.Fprintf(w, "Passes: %d, transitions: %d of %d nodes, %s\n", r.Passes, r.Transitions, r.Nodes, r.Duration)

	fmt.Fprintln(w, "\nSymbols:")
	for _, sv := range r.Symbols {
		line := fmt.Sprintf("  %s = %s", sv.Name, sv.Value)
		if len(sv.Relations) > 0 {
			line += " [" + strings.Join(sv.Relations, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w, "\nAssertions:")
	for _, a := range r.Assertions {
		fmt.Fprintf(w, "  %s\n", a)
	}

	if r.Conflict != "" {
		fmt.Fprintf(w, "\nConflict:\n  %s\n", strings.ReplaceAll(r.Conflict, "\n", "\n  "))
	}
}
