package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/modfinder/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS fetch_records (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	keyword TEXT NOT NULL DEFAULT '',
	engine TEXT NOT NULL DEFAULT '',
	status_code INTEGER NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	bytes BIGINT NOT NULL,
	duration_ms BIGINT NOT NULL,
	detected_bot BOOLEAN NOT NULL,
	detection_src TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS fetch_records_run_id ON fetch_records (run_id);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, rec *storage.FetchRecord) error {
	const query = `
	INSERT INTO fetch_records (
		id, run_id, stage, method, url, keyword, engine, status_code, content_type,
		bytes, duration_ms, detected_bot, detection_src, created_at, error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := b.pool.Exec(ctx, query,
		rec.ID,
		rec.RunID,
		string(rec.Stage),
		rec.Method,
		rec.URL,
		rec.Keyword,
		rec.Engine,
		rec.StatusCode,
		rec.ContentType,
		rec.Bytes,
		rec.Duration.Milliseconds(),
		rec.DetectedBot,
		rec.DetectionSrc,
		rec.CreatedAt,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert fetch record: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	query := `SELECT id, run_id, stage, method, url, keyword, engine, status_code, content_type,
	bytes, duration_ms, detected_bot, detection_src, created_at, error FROM fetch_records WHERE 1=1`
	args := []any{}

	// arg appends v and returns its positional placeholder.
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.RunID != "" {
		query += ` AND run_id = ` + arg(filter.RunID)
	}
	if filter.Stage != "" {
		query += ` AND stage = ` + arg(string(filter.Stage))
	}
	if filter.URL != "" {
		query += ` AND url = ` + arg(filter.URL)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ` + arg(*filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fetch records: %w", err)
	}
	defer rows.Close()

	var records []*storage.FetchRecord
	for rows.Next() {
		var (
			r          storage.FetchRecord
			stage      string
			durationMs int64
		)

		err := rows.Scan(
			&r.ID, &r.RunID, &stage, &r.Method, &r.URL, &r.Keyword, &r.Engine, &r.StatusCode,
			&r.ContentType, &r.Bytes, &durationMs, &r.DetectedBot, &r.DetectionSrc, &r.CreatedAt, &r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fetch record: %w", err)
		}

		r.Stage = storage.Stage(stage)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fetch records: %w", err)
	}

	return records, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
