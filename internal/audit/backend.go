package audit

import (
	"context"
	"fmt"

	"github.com/FranksOps/modfinder/internal/storage"
	"github.com/FranksOps/modfinder/internal/storage/csvbackend"
	"github.com/FranksOps/modfinder/internal/storage/jsonbackend"
	"github.com/FranksOps/modfinder/internal/storage/postgres"
	"github.com/FranksOps/modfinder/internal/storage/sqlite"
)

// Backend kinds accepted by OpenBackend.
const (
	BackendNone     = "none"
	BackendJSONL    = "jsonl"
	BackendCSV      = "csv"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// OpenBackend opens the audit backend of the given kind. dsn is a file path
// for jsonl, csv and sqlite and a connection string for postgres. The none
// kind returns a nil backend.
func OpenBackend(ctx context.Context, kind, dsn string) (storage.Backend, error) {
	if kind != "" && kind != BackendNone && dsn == "" {
		return nil, fmt.Errorf("audit backend %q needs a dsn", kind)
	}

	switch kind {
	case "", BackendNone:
		return nil, nil
	case BackendJSONL:
		return jsonbackend.New(dsn)
	case BackendCSV:
		return csvbackend.New(dsn)
	case BackendSQLite:
		return sqlite.New(dsn)
	case BackendPostgres:
		return postgres.New(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown audit backend %q", kind)
	}
}
