package scraper

import (
	"context"
	"log/slog"
	"strings"
)

// downloadMarkers are Content-Type fragments that indicate an archive or
// package rather than a web page.
var downloadMarkers = []string{"zip", "octet-stream", "package", "rar"}

// IsDownloadContentType reports whether a Content-Type value looks like a
// downloadable file. Matching is case-insensitive.
func IsDownloadContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, m := range downloadMarkers {
		if strings.Contains(ct, m) {
			return true
		}
	}
	return false
}

// HeadFetcher issues metadata-only requests.
type HeadFetcher interface {
	Head(ctx context.Context, target string) (*Page, error)
}

// Prober decides whether a URL probably serves a download, using only the
// headers of a HEAD request.
type Prober struct {
	fetcher HeadFetcher
	logger  *slog.Logger
}

// NewProber returns a Prober issuing requests through fetcher.
func NewProber(fetcher HeadFetcher, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{fetcher: fetcher, logger: logger}
}

// IsProbableDownload fails closed: any request error is logged and counts
// as "not a download".
func (p *Prober) IsProbableDownload(ctx context.Context, target string) bool {
	page, err := p.fetcher.Head(ctx, target)
	if err != nil {
		p.logger.Warn("error checking download", "url", target, "err", err)
		return false
	}
	return IsDownloadContentType(page.ContentType())
}
