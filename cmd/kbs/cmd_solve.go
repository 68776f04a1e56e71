package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cognicore/kbs/pkg/kbs"
)

var errConflicts = errors.New("knowledge base has conflicts")

var solvedOnly bool

// solveCmd propagates all assertions and prints the result
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve the knowledge base and print every symbol",
	Long: `Loads the rule files and definition, propagates to a fixpoint and prints
the symbols with their values followed by each assertion's truth.

The run is recorded in the history database named by --db or the config's
db_path.

Example:
  kbs solve -r testdata/pets.rules --solved-only`,
	Args: cobra.NoArgs,
	RunE: runSolve,
}

// conflictsCmd lists every assertion that cannot hold
var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List assertions contradicted by the solution",
	Long: `Solves the knowledge base and prints each conflicting assertion with the
symbol values that contradict it. Exits non-zero when any conflict exists.`,
	Args: cobra.NoArgs,
	RunE: runConflicts,
}

func init() {
	solveCmd.Flags().BoolVar(&solvedOnly, "solved-only", false, "Hide unsolved symbols")
}

func runSolve(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(s *session) error {
		out := cmd.OutOrStdout()
		stats := s.kb.Solve()
		fmt.Fprint(out, s.kb.Render(true, solvedOnly))
		printStats(out, stats)

		if c := s.kb.HasConflict(); c != nil {
			fmt.Fprintf(out, "\nconflict: %s\n", c.Message)
		}

		id, err := s.record(cmd.Context(), stats)
		if err != nil {
			return err
		}
		if id != "" {
			fmt.Fprintf(out, "run %s\n", id)
		}
		return nil
	})
}

func runConflicts(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(s *session) error {
		out := cmd.OutOrStdout()
		conflicts := s.kb.Conflicts()
		if len(conflicts) == 0 {
			fmt.Fprintln(out, "No conflicts.")
			return nil
		}
		for i, c := range conflicts {
			fmt.Fprintf(out, "%d. %s\n", i+1, c.Message)
		}
		return fmt.Errorf("%w: %d found", errConflicts, len(conflicts))
	})
}

func printStats(w io.Writer, stats kbs.SolveStats) {
	fmt.Fprintf(w, "\nsolved in %d passes (%d of %d nodes, %s)\n",
		stats.Passes, stats.Transitions, stats.Nodes, stats.Duration)
}
