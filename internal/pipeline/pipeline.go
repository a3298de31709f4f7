// Package pipeline runs the search, expand, filter and probe steps that turn
// keywords into download matches.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/FranksOps/modfinder/internal/hosts"
	"github.com/FranksOps/modfinder/internal/metrics"
	"github.com/FranksOps/modfinder/internal/results"
	"github.com/FranksOps/modfinder/internal/scraper"
	"github.com/FranksOps/modfinder/internal/serp"
	"github.com/FranksOps/modfinder/internal/storage"
)

// PageFetcher retrieves HTML pages.
type PageFetcher interface {
	Get(ctx context.Context, target string) (*scraper.Page, error)
}

// DownloadProber decides whether a URL serves a downloadable file. It never
// fails; errors count as false.
type DownloadProber interface {
	IsProbableDownload(ctx context.Context, target string) bool
}

// RobotsChecker gates page expansion on robots.txt.
type RobotsChecker interface {
	IsAllowed(ctx context.Context, target string) (bool, error)
}

// Config wires a Finder.
type Config struct {
	// Engines are queried in order for every keyword. Empty means serp.Defaults().
	Engines []serp.Engine
	Fetcher PageFetcher
	Prober  DownloadProber
	// Robots is optional.
	Robots RobotsChecker
	Logger *slog.Logger
}

// Finder searches for mod downloads. A Finder is used by one goroutine at a
// time.
type Finder struct {
	engines []serp.Engine
	fetcher PageFetcher
	prober  DownloadProber
	robots  RobotsChecker
	logger  *slog.Logger
}

// New returns a Finder, or an error if a required component is missing.
func New(cfg Config) (*Finder, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("pipeline: fetcher is nil")
	}
	if cfg.Prober == nil {
		return nil, errors.New("pipeline: prober is nil")
	}
	if len(cfg.Engines) == 0 {
		cfg.Engines = serp.Defaults()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Finder{
		engines: cfg.Engines,
		fetcher: cfg.Fetcher,
		prober:  cfg.Prober,
		robots:  cfg.Robots,
		logger:  cfg.Logger,
	}, nil
}

// Run searches every engine for every keyword and returns the matches in
// discovery order, one per URL. Failed requests only drop what they would
// have contributed. A cancelled ctx stops the run early with the matches
// found so far.
func (f *Finder) Run(ctx context.Context, keywords []string) []results.Match {
	found := results.NewSet()

	for _, keyword := range keywords {
		for _, engine := range f.engines {
			if ctx.Err() != nil {
				f.logger.Warn("search interrupted", "err", ctx.Err(), "matches", found.Len())
				return found.Matches()
			}
			f.search(ctx, found, keyword, engine)
		}
	}

	if found.Len() == 0 {
		f.logger.Info("no results found for the given keywords")
	} else {
		f.logger.Info("finished searching", "matches", found.Len())
	}
	return found.Matches()
}

func (f *Finder) search(ctx context.Context, found *results.Set, keyword string, engine serp.Engine) {
	log := f.logger.With("engine", engine.Name, "keyword", keyword)
	log.Info("searching")

	sctx := scraper.WithLabels(ctx, scraper.Labels{Stage: storage.StageSearch, Keyword: keyword, Engine: engine.Name})
	page, err := f.fetcher.Get(sctx, engine.QueryURL(keyword))
	if err != nil {
		log.Warn("search failed", "err", err)
		return
	}
	if page.DetectedBot {
		log.Warn("search page looks like a bot challenge", "source", page.DetectionSrc, "status", page.StatusCode)
	}

	for _, link := range scraper.ExtractLinks(page.Body) {
		if !strings.HasPrefix(link, "http") || !hosts.IsTrusted(link) {
			continue
		}

		f.expand(ctx, found, keyword, engine, link)
		f.consider(ctx, found, keyword, engine, link, engine.Name, metrics.LevelSearch)
	}
}

// expand looks one level below a trusted search result.
func (f *Finder) expand(ctx context.Context, found *results.Set, keyword string, engine serp.Engine, link string) {
	log := f.logger.With("engine", engine.Name, "keyword", keyword, "url", link)

	if f.robots != nil {
		allowed, err := f.robots.IsAllowed(ctx, link)
		if err != nil {
			log.Debug("robots check failed", "err", err)
		} else if !allowed {
			log.Info("skipping page disallowed by robots.txt")
			return
		}
	}

	pctx := scraper.WithLabels(ctx, scraper.Labels{Stage: storage.StagePage, Keyword: keyword, Engine: engine.Name})
	page, err := f.fetcher.Get(pctx, link)
	if err != nil {
		log.Warn("error scraping secondary links", "err", err)
		return
	}

	source := engine.Name + " > " + link
	for _, sub := range scraper.ExtractLinks(page.Body) {
		if !strings.HasPrefix(sub, "http") || !hosts.IsTrusted(sub) {
			continue
		}
		f.consider(ctx, found, keyword, engine, sub, source, metrics.LevelPage)
	}
}

// consider adds candidate when it is new, mentions keyword and probes as a
// download.
func (f *Finder) consider(ctx context.Context, found *results.Set, keyword string, engine serp.Engine, candidate, source, level string) {
	if found.Has(candidate) {
		return
	}
	if !strings.Contains(strings.ToLower(candidate), strings.ToLower(keyword)) {
		return
	}

	pctx := scraper.WithLabels(ctx, scraper.Labels{Stage: storage.StageProbe, Keyword: keyword, Engine: engine.Name})
	if !f.prober.IsProbableDownload(pctx, candidate) {
		return
	}

	found.Add(results.Match{Keyword: keyword, URL: candidate, Source: source})
	metrics.RecordMatch(level)
	f.logger.Info("match found", "keyword", keyword, "url", candidate, "source", source)
}
