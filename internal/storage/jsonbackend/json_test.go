package jsonbackend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranksOps/modfinder/internal/storage"
)

func TestJSONBackend(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "audit.jsonl")

	b, err := New(filePath)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond).UTC()

	search := &storage.FetchRecord{
		ID:         "rec1",
		RunID:      "run-a",
		Stage:      storage.StageSearch,
		Method:     "GET",
		URL:        "https://duckduckgo.com/html?q=sims+4+hair+mod",
		Keyword:    "hair",
		Engine:     "DuckDuckGo",
		StatusCode: 200,
		Bytes:      4096,
		Duration:   120 * time.Millisecond,
		CreatedAt:  now.Add(-2 * time.Minute),
	}
	probe := &storage.FetchRecord{
		ID:          "rec2",
		RunID:       "run-a",
		Stage:       storage.StageProbe,
		Method:      "HEAD",
		URL:         "https://simfileshare.net/download/hair.zip",
		Keyword:     "hair",
		Engine:      "DuckDuckGo",
		StatusCode:  200,
		ContentType: "application/zip",
		Duration:    30 * time.Millisecond,
		CreatedAt:   now.Add(-1 * time.Minute),
	}
	other := &storage.FetchRecord{
		ID:        "rec3",
		RunID:     "run-b",
		Stage:     storage.StagePage,
		Method:    "GET",
		URL:       "https://nexusmods.com/mods/1",
		CreatedAt: now,
		Error:     "request failed: timeout",
	}

	for _, r := range []*storage.FetchRecord{search, probe, other} {
		require.NoError(t, b.Save(ctx, r))
	}

	byRun, err := b.Query(ctx, storage.Filter{RunID: "run-a"})
	require.NoError(t, err)
	require.Len(t, byRun, 2)
	assert.Equal(t, "rec2", byRun[0].ID, "newest first")
	assert.Equal(t, "application/zip", byRun[0].ContentType)
	assert.Equal(t, 30*time.Millisecond, byRun[0].Duration)
	assert.Equal(t, storage.StageProbe, byRun[0].Stage)

	byStage, err := b.Query(ctx, storage.Filter{Stage: storage.StagePage})
	require.NoError(t, err)
	require.Len(t, byStage, 1)
	assert.Equal(t, "request failed: timeout", byStage[0].Error)

	since := now.Add(-90 * time.Second)
	recent, err := b.Query(ctx, storage.Filter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	paged, err := b.Query(ctx, storage.Filter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "rec2", paged[0].ID)

	// Saving after a query still appends.
	require.NoError(t, b.Save(ctx, &storage.FetchRecord{ID: "rec4", RunID: "run-b", CreatedAt: now}))
	all, err := b.Query(ctx, storage.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
