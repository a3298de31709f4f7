package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/modfinder/internal/bypass"
	"github.com/FranksOps/modfinder/internal/fingerprint"
	"github.com/FranksOps/modfinder/pkg/httpclient"
	"github.com/FranksOps/modfinder/pkg/proxy"
)

// DefaultUserAgent is the generic browser-like User-Agent sent on every request.
const DefaultUserAgent = "Mozilla/5.0"

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	// PageTimeout bounds each GET, ProbeTimeout each HEAD.
	PageTimeout  time.Duration
	ProbeTimeout time.Duration
	MaxRedirects int
	// MaxBodyBytes truncates page bodies; links past the cut are lost.
	MaxBodyBytes int64
	UserAgent    string
	Fingerprint  fingerprint.Profile
	// Proxies are used in rotation when set.
	Proxies []string
	// Observer, when set, sees every exchange.
	Observer Observer
}

// Fetcher issues the GET and HEAD requests of a run. It holds one client so
// connections and cookies are reused across calls.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 10 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}

	var opts fingerprint.Options
	if len(cfg.Proxies) > 0 {
		pool, err := proxy.NewPool(cfg.Proxies...)
		if err != nil {
			return nil, err
		}
		if pool.Len() > 0 {
			opts.Proxy = pool.Func()
		}
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		// Per-call deadlines come from the context; this is only a backstop.
		Timeout:      2 * max(cfg.PageTimeout, cfg.ProbeTimeout),
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: true,
		UserAgent:    cfg.UserAgent,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// Get fetches target and reads its body. Non-2xx responses are returned as
// pages; only transport failures produce a *FetchError.
func (f *Fetcher) Get(ctx context.Context, target string) (*Page, error) {
	return f.do(ctx, http.MethodGet, target, f.config.PageTimeout)
}

// Head issues a HEAD request against target, following redirects.
func (f *Fetcher) Head(ctx context.Context, target string) (*Page, error) {
	return f.do(ctx, http.MethodHead, target, f.config.ProbeTimeout)
}

func (f *Fetcher) do(ctx context.Context, method, target string, timeout time.Duration) (page *Page, err error) {
	start := time.Now()
	defer func() {
		if f.config.Observer != nil {
			f.config.Observer.Observe(ctx, Exchange{
				Labels:   LabelsFrom(ctx),
				Method:   method,
				URL:      target,
				Page:     page,
				Err:      err,
				Start:    start,
				Duration: time.Since(start),
			})
		}
	}()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, requote(target), nil)
	if err != nil {
		return nil, &FetchError{Method: method, URL: target, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(reqCtx, req)
	if err != nil {
		return nil, &FetchError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	page = &Page{
		URL:        target,
		FinalURL:   resp.Request.URL.String(),
		Method:     method,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}

	if method == http.MethodGet {
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
		if err != nil {
			return nil, &FetchError{Method: method, URL: target, Err: fmt.Errorf("read body: %w", err)}
		}
		page.Body = body
		page.DetectedBot, page.DetectionSrc = bypass.Analyze(bypass.Response{
			URL:        page.FinalURL,
			StatusCode: page.StatusCode,
			Header:     page.Header,
			Body:       page.Body,
		}, bypass.DefaultDetectors())
	}

	page.Duration = time.Since(start)
	return page, nil
}

// requote escapes '%' signs that do not start a valid escape, so links
// such as ".../a%zz.zip" can still be requested as ".../a%25zz.zip".
// Well-formed targets are returned unchanged.
func requote(target string) string {
	if _, err := url.Parse(target); err == nil || !strings.Contains(target, "%") {
		return target
	}

	var b strings.Builder
	b.Grow(len(target) + 8)
	for i := 0; i < len(target); i++ {
		if target[i] == '%' && (i+2 >= len(target) || !isHex(target[i+1]) || !isHex(target[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(target[i])
	}
	return b.String()
}

// Page is a received HTTP response.
type Page struct {
	URL          string
	FinalURL     string
	Method       string
	StatusCode   int
	Header       http.Header
	Body         []byte // empty for HEAD
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string
}

// ContentType returns the declared Content-Type header.
func (p *Page) ContentType() string {
	if p == nil {
		return ""
	}
	return p.Header.Get("Content-Type")
}

// FetchError reports a request that produced no usable response.
type FetchError struct {
	Method string
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Method, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Timeout reports whether the request ran out of time.
func (e *FetchError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}
