package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/FranksOps/modfinder/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// line is the on-disk shape of a record; durations are kept in milliseconds
// so the file stays readable with jq.
type line struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Stage        string    `json:"stage"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	Keyword      string    `json:"keyword,omitempty"`
	Engine       string    `json:"engine,omitempty"`
	StatusCode   int       `json:"status_code"`
	ContentType  string    `json:"content_type,omitempty"`
	Bytes        int64     `json:"bytes"`
	DurationMs   int64     `json:"duration_ms"`
	DetectedBot  bool      `json:"detected_bot"`
	DetectionSrc string    `json:"detection_src,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Error        string    `json:"error,omitempty"`
}

func toLine(r *storage.FetchRecord) line {
	return line{
		ID:           r.ID,
		RunID:        r.RunID,
		Stage:        string(r.Stage),
		Method:       r.Method,
		URL:          r.URL,
		Keyword:      r.Keyword,
		Engine:       r.Engine,
		StatusCode:   r.StatusCode,
		ContentType:  r.ContentType,
		Bytes:        r.Bytes,
		DurationMs:   r.Duration.Milliseconds(),
		DetectedBot:  r.DetectedBot,
		DetectionSrc: r.DetectionSrc,
		CreatedAt:    r.CreatedAt,
		Error:        r.Error,
	}
}

func (l line) record() *storage.FetchRecord {
	return &storage.FetchRecord{
		ID:           l.ID,
		RunID:        l.RunID,
		Stage:        storage.Stage(l.Stage),
		Method:       l.Method,
		URL:          l.URL,
		Keyword:      l.Keyword,
		Engine:       l.Engine,
		StatusCode:   l.StatusCode,
		ContentType:  l.ContentType,
		Bytes:        l.Bytes,
		Duration:     time.Duration(l.DurationMs) * time.Millisecond,
		DetectedBot:  l.DetectedBot,
		DetectionSrc: l.DetectionSrc,
		CreatedAt:    l.CreatedAt,
		Error:        l.Error,
	}
}

// New creates a new NDJSON-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &jsonBackend{file: f}, nil
}

func (b *jsonBackend) Save(ctx context.Context, rec *storage.FetchRecord) error {
	data, err := json.Marshal(toLine(rec))
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind audit log: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var matched []*storage.FetchRecord
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}

		rec := l.record()
		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	// Newest first
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	return filter.Page(matched), nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
