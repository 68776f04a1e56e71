package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/kbs/pkg/kbs/rules"
)

// replCmd starts an interactive session
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Add assertions and ask questions interactively",
	Long: `Starts an interactive session on top of the loaded knowledge base.

Lines in rule syntax are asserted. Lines starting with ':' are commands;
type :help for the list. When metrics_addr is configured, solver metrics are
served on /metrics for the duration of the session.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

const replHelp = `Commands:
  <rule>                      assert a rule, e.g. eq(add(x, y), 10)
  :solve                      solve and show solved symbols
  :show                       show symbols and assertions
  :query <expr>               evaluate an expression
  :conflicts                  list conflicts
  :closure [subject [object]] classification closure
  :save                       record the current state in the history
  :help                       this text
  :quit                       leave`

func runRepl(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(s *session) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if cfg.MetricsAddr != "" {
			stop := serveMetrics(s, cfg.MetricsAddr)
			defer stop()
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "===========================================")
		fmt.Fprintln(out, "  kbs interactive session")
		fmt.Fprintln(out, "===========================================")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Type a rule or :help (Ctrl+D to exit):")
		fmt.Fprintln(out)

		r := &repl{ctx: ctx, s: s, out: out}
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			quit, err := r.handle(line)
			if err != nil {
				fmt.Fprintln(out, "Error:", err)
			}
			if quit {
				break
			}
		}

		fmt.Fprintln(out, "\nGoodbye!")
		return scanner.Err()
	})
}

type repl struct {
	ctx context.Context
	s   *session
	out io.Writer
}

// handle runs one input line and reports whether the session should end
func (r *repl) handle(line string) (bool, error) {
	if !strings.HasPrefix(line, ":") {
		return false, rules.LoadRules(r.s.kb, line)
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	kb := r.s.kb

	switch name {
	case "quit", "q", "exit":
		return true, nil
	case "help", "h":
		fmt.Fprintln(r.out, replHelp)
	case "solve":
		stats := kb.Solve()
		fmt.Fprint(r.out, kb.Render(true, true))
		printStats(r.out, stats)
	case "show":
		fmt.Fprint(r.out, kb.String())
	case "query":
		if rest == "" {
			return false, errors.New("usage: :query <expr>")
		}
		q, err := parseQuery(kb, nil, []string{rest})
		if err != nil {
			return false, err
		}
		return false, printQuery(r.out, kb, q)
	case "conflicts":
		conflicts := kb.Conflicts()
		if len(conflicts) == 0 {
			fmt.Fprintln(r.out, "No conflicts.")
		}
		for i, c := range conflicts {
			fmt.Fprintf(r.out, "%d. %s\n", i+1, c.Message)
		}
	case "closure":
		args := strings.Fields(rest)
		if len(args) > 2 {
			return false, errors.New("usage: :closure [subject [object]]")
		}
		return false, printClosure(r.out, kb, kb.Is, args)
	case "save":
		id, err := r.s.record(r.ctx, kb.Solve())
		if err != nil {
			return false, err
		}
		if id == "" {
			return false, errors.New("no history database: set --db or db_path")
		}
		fmt.Fprintf(r.out, "run %s\n", id)
	default:
		return false, fmt.Errorf("unknown command :%s (try :help)", name)
	}
	return false, nil
}

// serveMetrics exposes the session's registry until the returned func is called
func serveMetrics(s *session, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
