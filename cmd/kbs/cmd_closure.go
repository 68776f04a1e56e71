package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cognicore/kbs/pkg/kbs"
	"github.com/cognicore/kbs/pkg/kbs/internalerr"
	"github.com/cognicore/kbs/pkg/kbs/taxonomy"
)

var closureClass string

// closureCmd derives transitive classification facts
var closureCmd = &cobra.Command{
	Use:   "closure [subject [object]]",
	Short: "Show transitive classification facts",
	Long: `Derives the transitive closure of the relations symbols hold after solving.

Without arguments every derived fact is listed, followed by any fact that is
both derived and excluded. With a subject, lists what the subject is. With a
subject and an object, explains how the relation was reached.

Examples:
  kbs closure -r testdata/pets.rules
  kbs closure -r testdata/pets.rules fido
  kbs closure -r testdata/pets.rules fido animal`,
	Args: cobra.MaximumNArgs(2),
	RunE: runClosure,
}

func init() {
	closureCmd.Flags().StringVar(&closureClass, "class", "is", "Relation class to follow")
}

func runClosure(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(s *session) error {
		class, err := lookup(s.kb, closureClass)
		if err != nil {
			return err
		}
		return printClosure(cmd.OutOrStdout(), s.kb, class, args)
	})
}

// printClosure lists all facts, what a subject is, or how subject reaches
// object, depending on how many names args holds.
func printClosure(out io.Writer, kb *kbs.KB, class kbs.SymbolRef, args []string) error {
	tax, err := taxonomy.Build(kb, logger)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		facts := tax.Facts()
		if len(facts) == 0 {
			fmt.Fprintln(out, "No relations.")
		}
		for _, f := range facts {
			fmt.Fprintln(out, f)
		}
		for _, f := range tax.Contradictions() {
			fmt.Fprintf(out, "contradiction: %s is both derived and excluded\n", f)
		}
		return nil
	}

	subject, err := lookup(kb, args[0])
	if err != nil {
		return err
	}
	if len(args) == 1 {
		for _, o := range tax.QueryAll(class, subject) {
			fmt.Fprintf(out, "%s::%s(%s)\n", subject, class, o)
		}
		return nil
	}

	object, err := lookup(kb, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tax.Explain(class, subject, object))
	return nil
}

func lookup(kb *kbs.KB, name string) (kbs.SymbolRef, error) {
	s, ok := kb.Lookup(name)
	if !ok {
		return kbs.SymbolRef{}, fmt.Errorf("symbol %q: %w", name, internalerr.ErrNotFound)
	}
	return s, nil
}
