// Package telemetry writes an append-only parquet journal of ingestion and
// search activity for offline analysis.
package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// IngestionEvent is one row in the ingestion journal.
type IngestionEvent struct {
	ID                string    `parquet:"id"`
	Timestamp         time.Time `parquet:"timestamp"`
	GroupID           string    `parquet:"group_id"`
	EpisodeUUID       string    `parquet:"episode_uuid"`
	Duplicate         bool      `parquet:"duplicate"`
	CreatedNodes      int32     `parquet:"created_nodes"`
	MergedNodes       int32     `parquet:"merged_nodes"`
	CreatedEdges      int32     `parquet:"created_edges"`
	UpdatedEdges      int32     `parquet:"updated_edges"`
	InvalidatedEdges  int32     `parquet:"invalidated_edges"`
	SkippedCandidates int32     `parquet:"skipped_candidates"`
	DurationMs        int64     `parquet:"duration_ms"`
	Error             string    `parquet:"error"`
}

// SearchEvent is one row in the search journal.
type SearchEvent struct {
	ID            string    `parquet:"id"`
	Timestamp     time.Time `parquet:"timestamp"`
	GroupID       string    `parquet:"group_id"`
	Query         string    `parquet:"query"`
	NodeHits      int32     `parquet:"node_hits"`
	EdgeHits      int32     `parquet:"edge_hits"`
	EpisodeHits   int32     `parquet:"episode_hits"`
	CommunityHits int32     `parquet:"community_hits"`
	FailedMethods int32     `parquet:"failed_methods"`
	DurationMs    int64     `parquet:"duration_ms"`
}

// Journal buffers events in memory and flushes them to timestamped parquet
// files under its base directory. A nil Journal is a no-op.
type Journal struct {
	baseDir   string
	batchSize int
	logger    *slog.Logger

	mu        sync.Mutex
	ingestion []IngestionEvent
	searches  []SearchEvent
	closed    bool
}

// NewJournal prepares the journal directories under baseDir.
func NewJournal(baseDir string, logger *slog.Logger) (*Journal, error) {
	for _, d := range []string{"ingestion", "search"} {
		if err := os.MkdirAll(filepath.Join(baseDir, d), 0o755); err != nil {
			return nil, fmt.Errorf("telemetry: create %s dir: %w", d, err)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{baseDir: baseDir, batchSize: 100, logger: logger}, nil
}

// RecordIngestion appends one ingestion outcome to the journal.
func (j *Journal) RecordIngestion(groupID string, result *types.IngestionResult, took time.Duration, err error) {
	if j == nil {
		return
	}
	ev := IngestionEvent{
		ID:         utils.GenerateUUID(),
		Timestamp:  time.Now().UTC(),
		GroupID:    groupID,
		DurationMs: took.Milliseconds(),
	}
	if result != nil {
		ev.EpisodeUUID = result.EpisodeUUID
		ev.Duplicate = result.Duplicate
		ev.CreatedNodes = int32(len(result.CreatedNodeIDs))
		ev.MergedNodes = int32(len(result.MergedNodeIDs))
		ev.CreatedEdges = int32(len(result.CreatedEdgeIDs))
		ev.UpdatedEdges = int32(len(result.UpdatedEdgeIDs))
		ev.InvalidatedEdges = int32(len(result.InvalidatedEdgeIDs))
		ev.SkippedCandidates = int32(len(result.Skipped))
	}
	if err != nil {
		ev.Error = err.Error()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	j.ingestion = append(j.ingestion, ev)
	if len(j.ingestion) >= j.batchSize {
		j.flushIngestionLocked()
	}
}

// RecordSearch appends one search outcome to the journal.
func (j *Journal) RecordSearch(groupID, query string, results *types.SearchResults, took time.Duration) {
	if j == nil {
		return
	}
	ev := SearchEvent{
		ID:         utils.GenerateUUID(),
		Timestamp:  time.Now().UTC(),
		GroupID:    groupID,
		Query:      query,
		DurationMs: took.Milliseconds(),
	}
	if results != nil {
		ev.NodeHits = int32(len(results.Nodes))
		ev.EdgeHits = int32(len(results.Edges))
		ev.EpisodeHits = int32(len(results.Episodes))
		ev.CommunityHits = int32(len(results.Communities))
		ev.FailedMethods = int32(len(results.FailedMethods))
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	j.searches = append(j.searches, ev)
	if len(j.searches) >= j.batchSize {
		j.flushSearchLocked()
	}
}

// Flush writes any buffered events out immediately.
func (j *Journal) Flush() {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.flushIngestionLocked()
	j.flushSearchLocked()
}

// Close flushes and disables the journal.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.flushIngestionLocked()
	j.flushSearchLocked()
	j.closed = true
	return nil
}

func (j *Journal) flushIngestionLocked() {
	if len(j.ingestion) == 0 {
		return
	}
	path := j.segmentPath("ingestion")
	if err := parquet.WriteFile(path, j.ingestion); err != nil {
		j.logger.Warn("telemetry flush failed", "file", path, "err", err)
		return
	}
	j.ingestion = j.ingestion[:0]
}

func (j *Journal) flushSearchLocked() {
	if len(j.searches) == 0 {
		return
	}
	path := j.segmentPath("search")
	if err := parquet.WriteFile(path, j.searches); err != nil {
		j.logger.Warn("telemetry flush failed", "file", path, "err", err)
		return
	}
	j.searches = j.searches[:0]
}

func (j *Journal) segmentPath(kind string) string {
	name := fmt.Sprintf("%s_%s_%d.parquet", kind, time.Now().Format("20060102_150405"), time.Now().UnixNano())
	return filepath.Join(j.baseDir, kind, name)
}
