// Package audit turns fetch exchanges into stored records and metrics.
package audit

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/FranksOps/modfinder/internal/metrics"
	"github.com/FranksOps/modfinder/internal/scraper"
	"github.com/FranksOps/modfinder/internal/storage"
)

// Recorder observes every request of one run. Records are always kept in
// memory for the run summary and are also saved to the backend when one is
// configured.
type Recorder struct {
	runID   string
	backend storage.Backend
	logger  *slog.Logger

	mu      sync.Mutex
	records []*storage.FetchRecord
}

// NewRecorder starts recording a new run. backend may be nil.
func NewRecorder(backend storage.Backend, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		runID:   uuid.NewString(),
		backend: backend,
		logger:  logger,
	}
}

// RunID identifies the run in the audit backend.
func (r *Recorder) RunID() string { return r.runID }

// Observe implements scraper.Observer. Save failures are logged and
// otherwise ignored.
func (r *Recorder) Observe(ctx context.Context, ex scraper.Exchange) {
	rec := r.record(ex)

	status := "error"
	if rec.Error == "" {
		status = strconv.Itoa(rec.StatusCode)
	}
	metrics.RecordFetch(string(rec.Stage), status, rec.Duration, int(rec.Bytes))

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	if r.backend == nil {
		return
	}
	if err := r.backend.Save(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("failed to save audit record", "url", rec.URL, "stage", rec.Stage, "err", err)
	}
}

func (r *Recorder) record(ex scraper.Exchange) *storage.FetchRecord {
	rec := &storage.FetchRecord{
		ID:        uuid.NewString(),
		RunID:     r.runID,
		Stage:     ex.Stage,
		Method:    ex.Method,
		URL:       ex.URL,
		Keyword:   ex.Keyword,
		Engine:    ex.Engine,
		Duration:  ex.Duration,
		CreatedAt: ex.Start,
	}
	if ex.Err != nil {
		rec.Error = ex.Err.Error()
	}
	if p := ex.Page; p != nil {
		rec.StatusCode = p.StatusCode
		rec.ContentType = p.ContentType()
		rec.Bytes = int64(len(p.Body))
		rec.DetectedBot = p.DetectedBot
		rec.DetectionSrc = p.DetectionSrc
	}
	return rec
}

// Records returns a copy of everything observed so far.
func (r *Recorder) Records() []*storage.FetchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*storage.FetchRecord, len(r.records))
	copy(out, r.records)
	return out
}
