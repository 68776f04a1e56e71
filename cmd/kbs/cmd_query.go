package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cognicore/kbs/pkg/kbs"
	"github.com/cognicore/kbs/pkg/kbs/config"
	"github.com/cognicore/kbs/pkg/kbs/rules"
)

var queryAssumptions []string

// queryCmd asks about factors under temporary assumptions
var queryCmd = &cobra.Command{
	Use:   "query [expr...]",
	Short: "Evaluate expressions under temporary assumptions",
	Long: `Evaluates each expression against the knowledge base with the --if
assumptions added for this query only. Without arguments the definition's
queries section is used.

Examples:
  kbs query -r testdata/pets.rules y
  kbs query -r testdata/pets.rules --if 'eq(x, 7)' 'add(x, y)'`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringArrayVar(&queryAssumptions, "if", nil, "Assumption holding for this query only (repeatable)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(s *session) error {
		q := s.query
		if len(args) > 0 || len(queryAssumptions) > 0 {
			var err error
			if q, err = parseQuery(s.kb, queryAssumptions, args); err != nil {
				return err
			}
		}
		if q.Empty() {
			return errors.New("nothing to ask: pass expressions or define queries.ask")
		}
		return printQuery(cmd.OutOrStdout(), s.kb, q)
	})
}

func parseQuery(kb *kbs.KB, assumptions, asks []string) (config.Query, error) {
	var q config.Query
	for _, text := range assumptions {
		f, err := rules.ParseExpr(kb, text)
		if err != nil {
			return config.Query{}, fmt.Errorf("assumption %q: %w", text, err)
		}
		q.If = append(q.If, f)
	}
	for _, text := range asks {
		f, err := rules.ParseExpr(kb, text)
		if err != nil {
			return config.Query{}, fmt.Errorf("query %q: %w", text, err)
		}
		q.Ask = append(q.Ask, f)
	}
	return q, nil
}

func printQuery(w io.Writer, kb *kbs.KB, q config.Query) error {
	sols, err := q.Run(kb)
	if err != nil {
		return err
	}
	for i, f := range q.Ask {
		fmt.Fprintf(w, "%s = %s\n", f, sols[i])
	}
	return nil
}
