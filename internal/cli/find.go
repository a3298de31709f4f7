package cli

import (
	"context"

	"github.com/FranksOps/modfinder/internal/audit"
	"github.com/FranksOps/modfinder/internal/fingerprint"
	"github.com/FranksOps/modfinder/internal/metrics"
	"github.com/FranksOps/modfinder/internal/output"
	"github.com/FranksOps/modfinder/internal/pipeline"
	"github.com/FranksOps/modfinder/internal/report"
	"github.com/FranksOps/modfinder/internal/results"
	"github.com/FranksOps/modfinder/internal/scraper"
	"github.com/FranksOps/modfinder/pkg/proxy"
)

// find runs one search over keywords and publishes the results file.
func (a *app) find(ctx context.Context, keywords []string) error {
	cfg := a.cfg

	// Results from an earlier run must not survive this one, even if setup
	// below fails.
	if err := results.Remove(cfg.Output.Path); err != nil {
		return generalError("failed to remove previous results", err)
	}

	a.logger.Info("searching for keywords", "keywords", keywords)

	backend, err := audit.OpenBackend(ctx, cfg.Audit.Backend, cfg.Audit.DSN)
	if err != nil {
		return generalError("failed to open audit backend", err)
	}
	if backend != nil {
		defer backend.Close()
	}
	recorder := audit.NewRecorder(backend, a.logger)

	if cfg.Metrics.Port > 0 {
		srv := metrics.Start(cfg.Metrics.Port, a.logger)
		defer func() { _ = srv.Stop(context.WithoutCancel(ctx)) }()
	}

	profile, err := fingerprint.ParseProfile(cfg.HTTP.Fingerprint)
	if err != nil {
		return &output.CLIError{Summary: "invalid fingerprint", Detail: err.Error(), ExitCode: output.ExitConfigError}
	}
	proxies := cfg.HTTP.Proxies
	if cfg.HTTP.ProxyFile != "" {
		listed, err := proxy.ReadFile(cfg.HTTP.ProxyFile)
		if err != nil {
			return &output.CLIError{Summary: "failed to load proxies", Detail: err.Error(), ExitCode: output.ExitConfigError}
		}
		proxies = append(proxies, listed...)
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		PageTimeout:  cfg.HTTP.PageTimeout,
		ProbeTimeout: cfg.HTTP.ProbeTimeout,
		MaxRedirects: cfg.HTTP.MaxRedirects,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		UserAgent:    cfg.HTTP.UserAgent,
		Fingerprint:  profile,
		Proxies:      proxies,
		Observer:     recorder,
	})
	if err != nil {
		return &output.CLIError{Summary: "failed to set up http client", Detail: err.Error(), ExitCode: output.ExitConfigError}
	}

	finderCfg := pipeline.Config{
		Engines: searchEngines(),
		Fetcher: fetcher,
		Prober:  scraper.NewProber(fetcher, a.logger),
		Logger:  a.logger,
	}
	if cfg.Crawl.RespectRobots {
		finderCfg.Robots = scraper.NewRobotsTxtAuditor(fetcher, cfg.HTTP.UserAgent, a.logger)
	}
	finder, err := pipeline.New(finderCfg)
	if err != nil {
		return generalError("failed to set up search", err)
	}

	matches := finder.Run(ctx, keywords)

	written, err := results.Publish(cfg.Output.Path, matches)
	if err != nil {
		return generalError("failed to write results", err)
	}
	if written {
		if err := a.printer.Matches(matches); err != nil {
			a.logger.Warn("failed to render match table", "err", err)
		}
		a.printer.Success("Results written to %s", cfg.Output.Path)
	} else {
		a.printer.Diagnostic("No results to save. Skipping write.")
	}

	a.logger.Info("run complete", "run_id", recorder.RunID(), "matches", len(matches))
	if a.verbose {
		if err := report.WriteText(a.stderr, report.GenerateSummary(recorder.Records())); err != nil {
			a.logger.Warn("failed to write run summary", "err", err)
		}
	}
	return nil
}
