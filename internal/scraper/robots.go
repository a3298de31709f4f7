package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/temoto/robotstxt"

	"github.com/FranksOps/modfinder/internal/storage"
)

// RobotsTxtAuditor answers robots.txt questions, fetching each host's file
// once per run. It is not safe for concurrent use.
type RobotsTxtAuditor struct {
	fetcher   *Fetcher
	userAgent string
	logger    *slog.Logger
	cache     map[string]*robotstxt.RobotsData
}

// NewRobotsTxtAuditor creates a new instance checking rules for userAgent.
func NewRobotsTxtAuditor(fetcher *Fetcher, userAgent string, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &RobotsTxtAuditor{
		fetcher:   fetcher,
		userAgent: userAgent,
		logger:    logger,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether targetURL may be fetched. A robots.txt that
// cannot be fetched or parsed allows everything.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	data := r.rules(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true, nil
	}

	return data.FindGroup(r.userAgent).Test(u.EscapedPath()), nil
}

func (r *RobotsTxtAuditor) rules(ctx context.Context, origin string) *robotstxt.RobotsData {
	if data, ok := r.cache[origin]; ok {
		return data
	}

	data, err := r.fetch(ctx, origin)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, defaulting to allow", "host", origin, "err", err)
	}
	r.cache[origin] = data
	return data
}

func (r *RobotsTxtAuditor) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	ctx = WithLabels(ctx, Labels{Stage: storage.StageRobots})

	page, err := r.fetcher.Get(ctx, origin+"/robots.txt")
	if err != nil {
		return nil, err
	}
	if page.StatusCode >= 400 {
		return nil, nil
	}

	data, err := robotstxt.FromBytes(page.Body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
