// Package results holds the match records a run produces and writes them out.
package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Match is one probable download found during a run.
type Match struct {
	Keyword string `json:"keyword"`
	URL     string `json:"url"`
	// Source is the engine name, or "<engine> > <page>" when the link was
	// found one level below a search result.
	Source string `json:"source"`
}

// Encode renders matches as a JSON array indented by four spaces, without
// HTML escaping.
func Encode(matches []Match) ([]byte, error) {
	if matches == nil {
		matches = []Match{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(matches); err != nil {
		return nil, fmt.Errorf("encode matches: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Remove deletes the results file at path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove previous results: %w", err)
	}
	return nil
}

// Publish replaces the results file at path. Any previous file is removed
// first; when matches is empty nothing new is written and written is false.
// The parent directory must already exist.
func Publish(path string, matches []Match) (written bool, err error) {
	if err := Remove(path); err != nil {
		return false, err
	}
	if len(matches) == 0 {
		return false, nil
	}

	data, err := Encode(matches)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write results: %w", err)
	}
	return true, nil
}

// Set accumulates matches in discovery order, keeping only the first match
// for each URL.
type Set struct {
	seen    map[string]struct{}
	matches []Match
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Has reports whether a match for url was already added.
func (s *Set) Has(url string) bool {
	_, ok := s.seen[url]
	return ok
}

// Add appends m unless its URL is already present.
func (s *Set) Add(m Match) bool {
	if s.Has(m.URL) {
		return false
	}
	s.seen[m.URL] = struct{}{}
	s.matches = append(s.matches, m)
	return true
}

// Len returns the number of matches.
func (s *Set) Len() int { return len(s.matches) }

// Matches returns the accumulated matches in insertion order.
func (s *Set) Matches() []Match {
	out := make([]Match, len(s.matches))
	copy(out, s.matches)
	return out
}
