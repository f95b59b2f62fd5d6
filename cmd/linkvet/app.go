package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/haukened/linkvet/internal/vet/common/clock"
	"github.com/haukened/linkvet/internal/vet/common/log"
	"github.com/haukened/linkvet/internal/vet/config"
	"github.com/haukened/linkvet/internal/vet/domain"
	"github.com/haukened/linkvet/internal/vet/gateways/probe"
	"github.com/haukened/linkvet/internal/vet/gateways/report"
	"github.com/haukened/linkvet/internal/vet/repos/ruleset"
	"github.com/haukened/linkvet/internal/vet/repos/source"
	"github.com/haukened/linkvet/internal/vet/repos/verdicts"
	"github.com/haukened/linkvet/internal/vet/repos/verdicts/bloom"
	"github.com/haukened/linkvet/internal/vet/repos/verdicts/bolt"
	"github.com/haukened/linkvet/internal/vet/repos/verdicts/lru"
	"github.com/haukened/linkvet/internal/vet/services/runner"
	"github.com/haukened/linkvet/internal/vet/services/verifier"
)

// Application holds the components of a verification run.
type Application struct {
	config   *config.AppConfig
	fs       afero.Fs
	clock    clock.Clock
	logger   log.Logger
	rules    *domain.RuleSet
	verifier *verifier.Verifier
}

// RunResult is what a full run reports back to the command.
type RunResult struct {
	Summary runner.Summary
	Stats   verdicts.RepoStats
	Elapsed time.Duration
}

// buildApplication loads the rules and wires the verifier. Rule problems are
// returned as *domain.ConfigurationError before any URL is processed.
func buildApplication(cfg *config.AppConfig, fs afero.Fs) (*Application, error) {
	logger := log.GetLogger()

	rules, err := loadRules(cfg, fs)
	if err != nil {
		return nil, err
	}

	gw := buildGateways(cfg, logger)

	v, err := verifier.New(verifier.Options{
		Rules:  rules,
		Probe:  gw.probe,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier: %w", err)
	}

	return &Application{
		config:   cfg,
		fs:       fs,
		clock:    clock.RealClock{},
		logger:   logger,
		rules:    rules,
		verifier: v,
	}, nil
}

// loadRules reads the rule document and applies the configured inspect type.
func loadRules(cfg *config.AppConfig, fs afero.Fs) (*domain.RuleSet, error) {
	rules, err := ruleset.Load(fs, cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	if cfg.InspectMIMEType != "" {
		rules, err = rules.WithInspectMIMEType(cfg.InspectMIMEType)
		if err != nil {
			return nil, err
		}
	}
	log.Info(map[string]any{
		"rules_file":  cfg.RulesFile,
		"groups":      len(rules.ForbiddenGroups()),
		"allowed":     rules.AllowedMIMETypes(),
		"inspect":     rules.InspectMIMEType(),
		"fingerprint": rules.Fingerprint(),
	}, "Rule set loaded")
	return rules, nil
}

// gateways holds all gateway implementations
type gateways struct {
	probe verifier.Probe
}

// buildGateways creates the HTTP probe.
func buildGateways(cfg *config.AppConfig, logger log.Logger) *gateways {
	p := probe.New(probe.Options{
		Timeout:         cfg.Timeout,
		HostConcurrency: cfg.HostConcurrency,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		UserAgent:       cfg.UserAgent,
		RatePerHost:     cfg.RatePerHost,
		Logger:          logger,
	})
	log.Debug(map[string]any{
		"timeout":          cfg.Timeout,
		"host_concurrency": cfg.HostConcurrency,
		"rate_per_host":    cfg.RatePerHost,
		"user_agent":       cfg.UserAgent,
	}, "HTTP probe configured")
	return &gateways{probe: p}
}

// buildRepository creates the verdict repository sized for expected URLs.
func buildRepository(cfg *config.AppConfig, rules *domain.RuleSet, clk clock.Clock, expected int) (verdicts.Repository, error) {
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create verdict cache: %w", err)
	}

	var store verdicts.Store
	if cfg.StoreEnabled {
		store, err = bolt.New(cfg.StorePath, rules.Fingerprint())
		if err != nil {
			return nil, fmt.Errorf("failed to open verdict store: %w", err)
		}
		log.Info(map[string]any{
			"path":     cfg.StorePath,
			"verdicts": store.Stats().Verdicts,
			"max_age":  cfg.StoreMaxAge,
		}, "Verdict store opened")
	}

	repo, err := verdicts.NewRepository(verdicts.Options{
		Cache:        cache,
		Factory:      bloom.NewFactory(),
		Store:        store,
		Clock:        clk,
		MaxAge:       cfg.StoreMaxAge,
		ExpectedURLs: uint64(expected),
		FPRate:       cfg.StoreFPRate,
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("failed to create verdict repository: %w", err)
	}
	return repo, nil
}

// Run evaluates every link of the source document and writes the report.
func (app *Application) Run(ctx context.Context, progress runner.ProgressFunc) (RunResult, error) {
	start := app.clock.Now()

	groups, err := source.Load(app.fs, app.config.SourceFile)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to load source: %w", err)
	}
	links := source.Count(groups)
	log.Info(map[string]any{
		"source_file": app.config.SourceFile,
		"groups":      len(groups),
		"links":       links,
	}, "Source loaded")

	repo, err := buildRepository(app.config, app.rules, app.clock, links)
	if err != nil {
		return RunResult{}, err
	}

	sink, err := report.NewCSVWriter(app.fs, app.config.OutputFile, app.config.DelimiterRune(), domain.ReportHeaders())
	if err != nil {
		_ = repo.Close()
		return RunResult{}, err
	}

	r, err := runner.New(runner.Options{
		Evaluator:  app.verifier,
		Sink:       sink,
		Repository: repo,
		Workers:    app.config.Workers,
		Review:     app.config.ReviewDefault,
		Logger:     app.logger,
		Progress:   progress,
	})
	if err != nil {
		_ = sink.Close()
		_ = repo.Close()
		return RunResult{}, fmt.Errorf("failed to create runner: %w", err)
	}

	sum, runErr := r.Run(ctx, groups)
	stats := repo.RepoStats()
	err = errors.Join(runErr, sink.Close(), repo.Close())

	res := RunResult{Summary: sum, Stats: stats, Elapsed: app.clock.Now().Sub(start)}
	log.Info(map[string]any{
		"groups":  sum.Groups,
		"links":   sum.Links,
		"valid":   sum.Valid,
		"invalid": sum.Invalid,
		"reused":  sum.Reused,
		"output":  app.config.OutputFile,
	}, "Run finished")
	return res, err
}

// CheckResult pairs a URL with its verdict.
type CheckResult struct {
	URL     string
	Verdict domain.Verdict
}

// Check evaluates urls one by one without reading or writing any report.
func (app *Application) Check(ctx context.Context, urls []string) ([]CheckResult, error) {
	out := make([]CheckResult, 0, len(urls))
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, CheckResult{URL: u, Verdict: app.verifier.Evaluate(ctx, u)})
	}
	return out, nil
}
