package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/modfinder/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// columns defines the CSV column order
var columns = []string{
	"id",
	"run_id",
	"stage",
	"method",
	"url",
	"keyword",
	"engine",
	"status_code",
	"content_type",
	"bytes",
	"duration_ms",
	"detected_bot",
	"detection_src",
	"created_at",
	"error",
}

// New creates a new CSV-backed storage.Backend. The header row is written
// when the file is empty.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit csv: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat audit csv: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(columns); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, rec *storage.FetchRecord) error {
	row := []string{
		rec.ID,
		rec.RunID,
		string(rec.Stage),
		rec.Method,
		rec.URL,
		rec.Keyword,
		rec.Engine,
		strconv.Itoa(rec.StatusCode),
		rec.ContentType,
		strconv.FormatInt(rec.Bytes, 10),
		strconv.FormatInt(rec.Duration.Milliseconds(), 10),
		strconv.FormatBool(rec.DetectedBot),
		rec.DetectionSrc,
		rec.CreatedAt.Format(time.RFC3339Nano),
		rec.Error,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek audit csv: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind audit csv: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.FetchRecord{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var matched []*storage.FetchRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if len(row) != len(columns) {
			continue // skip malformed rows
		}

		rec := parseRow(row)
		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}

	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	return filter.Page(matched), nil
}

func parseRow(row []string) *storage.FetchRecord {
	status, _ := strconv.Atoi(row[7])
	size, _ := strconv.ParseInt(row[9], 10, 64)
	durationMs, _ := strconv.ParseInt(row[10], 10, 64)
	detected, _ := strconv.ParseBool(row[11])
	createdAt, _ := time.Parse(time.RFC3339Nano, row[13])

	return &storage.FetchRecord{
		ID:           row[0],
		RunID:        row[1],
		Stage:        storage.Stage(row[2]),
		Method:       row[3],
		URL:          row[4],
		Keyword:      row[5],
		Engine:       row[6],
		StatusCode:   status,
		ContentType:  row[8],
		Bytes:        size,
		Duration:     time.Duration(durationMs) * time.Millisecond,
		DetectedBot:  detected,
		DetectionSrc: row[12],
		CreatedAt:    createdAt,
		Error:        row[14],
	}
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
