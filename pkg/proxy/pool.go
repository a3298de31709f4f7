package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
)

// Pool hands out proxy URLs in round-robin order. It is safe for concurrent
// use.
type Pool struct {
	mu      sync.Mutex
	proxies []*url.URL
	next    int
}

// NewPool parses rawURLs into a pool. Entries without a scheme default to
// http; blank entries are skipped.
func NewPool(rawURLs ...string) (*Pool, error) {
	p := &Pool{}
	for _, raw := range rawURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", raw, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q: missing host", raw)
		}
		p.proxies = append(p.proxies, u)
	}
	return p, nil
}

// ReadFile returns the proxy URLs listed in path, one per line. Lines
// starting with '#' and empty lines are ignored.
func ReadFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy list: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy list: %w", err)
	}
	return urls, nil
}

// Len returns the number of proxies in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Next returns the next proxy URL, or nil for an empty pool.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return nil
	}
	u := p.proxies[p.next]
	p.next = (p.next + 1) % len(p.proxies)
	return u
}

// ErrEmpty is returned by the proxy func of an empty pool.
var ErrEmpty = errors.New("proxy pool is empty")

// Func adapts the pool to http.Transport.Proxy.
func (p *Pool) Func() func(*http.Request) (*url.URL, error) {
	return func(*http.Request) (*url.URL, error) {
		if u := p.Next(); u != nil {
			return u, nil
		}
		return nil, ErrEmpty
	}
}
