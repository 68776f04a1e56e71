package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cognicore/kbs/pkg/kbs"
	"github.com/cognicore/kbs/pkg/kbs/config"
	"github.com/cognicore/kbs/pkg/kbs/metrics"
	"github.com/cognicore/kbs/pkg/kbs/store"
	"github.com/cognicore/kbs/pkg/kbs/store/sqlite"
)

// session is a loaded knowledge base plus the run history it reports to
type session struct {
	kb       *kbs.KB
	query    config.Query
	source   string
	history  store.Store
	registry *prometheus.Registry
}

func openSession(ctx context.Context) (*session, error) {
	reg := prometheus.NewRegistry()
	loader := config.Loader{
		ConfigPath:     configPath,
		DefinitionPath: definitionPath,
		RulesPaths:     rulesPaths,
		Logger:         logger,
		Observer:       metrics.NewObserver(reg),
	}
	comp, err := loader.Load()
	if err != nil {
		return nil, err
	}

	s := &session{
		kb:       comp.KB,
		query:    comp.Query,
		source:   strings.Join(comp.Sources, ","),
		registry: reg,
	}

	path := dbPath
	if path == "" {
		path = comp.Config.DBPath
	}
	if path != "" {
		if s.history, err = sqlite.OpenSQLite(ctx, path); err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	logger.Debug("session opened",
		zap.Strings("sources", comp.Sources),
		zap.Int("assertions", len(s.kb.Assertions())),
		zap.String("history", path))
	return s, nil
}

// record saves the state produced by the solve that returned stats and
// returns the run id. Without a history store it does nothing.
func (s *session) record(ctx context.Context, stats kbs.SolveStats) (string, error) {
	if s.history == nil {
		return "", nil
	}
	run := store.Snapshot(s.kb, stats, s.source)
	if err := s.history.SaveRun(ctx, run); err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	logger.Info("run recorded",
		zap.String("id", run.ID),
		zap.Int("passes", stats.Passes),
		zap.Duration("duration", stats.Duration),
		zap.Bool("conflict", run.Conflict != ""))
	return run.ID, nil
}

func (s *session) Close() error {
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}

// withSession opens a session, runs fn and closes it
func withSession(ctx context.Context, fn func(*session) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	start := time.Now()
	err = fn(s)
	logger.Debug("command finished", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	return err
}
