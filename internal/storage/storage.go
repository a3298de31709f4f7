package storage

import (
	"context"
	"time"
)

// Stage identifies which step of a run issued a request.
type Stage string

const (
	StageSearch Stage = "search" // search engine result page
	StagePage   Stage = "page"   // trusted page linked from a result page
	StageProbe  Stage = "probe"  // HEAD request deciding if a link is a download
	StageRobots Stage = "robots" // robots.txt lookup
)

// FetchRecord is the audit entry for a single HTTP exchange made during a run.
type FetchRecord struct {
	ID           string
	RunID        string
	Stage        Stage
	Method       string
	URL          string
	Keyword      string
	Engine       string
	StatusCode   int
	ContentType  string
	Bytes        int64
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string // e.g. "Cloudflare", "Google"
	CreatedAt    time.Time
	Error        string // non-empty if no response was received
}

// Filter selects FetchRecords. Zero fields match everything.
type Filter struct {
	RunID  string
	Stage  Stage
	URL    string
	Since  *time.Time
	Limit  int
	Offset int
}

// Match reports whether r passes every set field of f except Limit/Offset.
func (f Filter) Match(r *FetchRecord) bool {
	if f.RunID != "" && r.RunID != f.RunID {
		return false
	}
	if f.Stage != "" && r.Stage != f.Stage {
		return false
	}
	if f.URL != "" && r.URL != f.URL {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page applies Offset and Limit to records already ordered newest first.
func (f Filter) Page(records []*FetchRecord) []*FetchRecord {
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*FetchRecord{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}

// Backend stores the audit trail of a run. It is append-only and never
// read back while crawling.
type Backend interface {
	Save(ctx context.Context, rec *FetchRecord) error
	Query(ctx context.Context, filter Filter) ([]*FetchRecord, error)
	Close() error
}
