package telemetry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempograph/tempograph/pkg/types"
)

func readSegments[T any](t *testing.T, dir string) []T {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []T
	for _, e := range entries {
		rows, err := parquet.ReadFile[T](filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out = append(out, rows...)
	}
	return out
}

func TestIngestionJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j, err := NewJournal(dir, nil)
	require.NoError(t, err)

	result := &types.IngestionResult{
		EpisodeUUID:        "ep-1",
		CreatedNodeIDs:     []string{"n1", "n2"},
		InvalidatedEdgeIDs: []string{"e1"},
	}
	j.RecordIngestion("g1", result, 250*time.Millisecond, nil)
	j.RecordIngestion("g1", nil, 5*time.Millisecond, errors.New("model unavailable"))
	require.NoError(t, j.Close())

	rows := readSegments[IngestionEvent](t, filepath.Join(dir, "ingestion"))
	require.Len(t, rows, 2)
	assert.Equal(t, "ep-1", rows[0].EpisodeUUID)
	assert.Equal(t, int32(2), rows[0].CreatedNodes)
	assert.Equal(t, int32(1), rows[0].InvalidatedEdges)
	assert.Equal(t, int64(250), rows[0].DurationMs)
	assert.Equal(t, "model unavailable", rows[1].Error)
}

func TestSearchJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j, err := NewJournal(dir, nil)
	require.NoError(t, err)

	results := &types.SearchResults{
		Nodes: []*types.Node{{UUID: "n1"}},
		Edges: []*types.Edge{{UUID: "e1"}, {UUID: "e2"}},
	}
	j.RecordSearch("g1", "who works where", results, 40*time.Millisecond)
	j.Flush()

	rows := readSegments[SearchEvent](t, filepath.Join(dir, "search"))
	require.Len(t, rows, 1)
	assert.Equal(t, "who works where", rows[0].Query)
	assert.Equal(t, int32(1), rows[0].NodeHits)
	assert.Equal(t, int32(2), rows[0].EdgeHits)
}

func TestNilJournalIsNoOp(t *testing.T) {
	var j *Journal
	j.RecordIngestion("g1", nil, 0, nil)
	j.RecordSearch("g1", "q", nil, 0)
	j.Flush()
	assert.NoError(t, j.Close())
}
