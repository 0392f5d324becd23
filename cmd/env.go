package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborgrid/c360/internal/jobs"
	"github.com/harborgrid/c360/internal/lineage"
	"github.com/harborgrid/c360/internal/mapping"
	"github.com/harborgrid/c360/internal/quality"
	"github.com/harborgrid/c360/internal/registry"
	"github.com/harborgrid/c360/internal/scan"
	"github.com/harborgrid/c360/internal/store"
	"github.com/harborgrid/c360/internal/suggest"
	"github.com/harborgrid/c360/pkg/anthropic"
)

// env bundles the wired services shared by the CLI commands.
type env struct {
	Store     store.Store
	Adapters  *scan.Registry
	Registry  *registry.Service
	Suggester *suggest.Engine
	Validator *mapping.Validator
	Lineage   *lineage.Assembler
	Quality   *quality.Engine
	Orch      *jobs.Orchestrator
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{MaxConns: cfg.Store.MaxConns})
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func buildEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	adapters := scan.NewRegistry()
	adapters.Register(scan.NewStatic())
	var csvOpts []scan.CSVOption
	if cfg.Scan.Latin1 {
		csvOpts = append(csvOpts, scan.WithLatin1())
	}
	adapters.Register(scan.NewCSV(cfg.Scan.CSVDir, csvOpts...))

	var scorer suggest.Scorer
	if cfg.Scorer.AnthropicKey != "" {
		scorer = suggest.NewAnthropicScorer(anthropic.NewClient(cfg.Scorer.AnthropicKey), cfg.Scorer.Model)
		zap.L().Info("enhanced suggestion scoring enabled", zap.String("model", cfg.Scorer.Model))
	}

	orch := jobs.New(st, adapters, cfg.Scan.Adapter, cfg.Jobs)
	orch.Start(ctx)

	return &env{
		Store:     st,
		Adapters:  adapters,
		Registry:  registry.NewService(st, adapters),
		Suggester: suggest.NewEngine(st, scorer, cfg.Suggest),
		Validator: mapping.NewValidator(st, adapters, cfg.Validate),
		Lineage:   lineage.New(st),
		Quality:   quality.NewEngine(st, cfg.Quality),
		Orch:      orch,
	}, nil
}

func (e *env) Close() {
	e.Orch.Stop()
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}
