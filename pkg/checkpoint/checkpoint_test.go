package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempograph/tempograph/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMarkAndSeen(t *testing.T) {
	s := openTestStore(t)

	seen, err := s.Seen("g1", "ep-1")
	require.NoError(t, err)
	assert.False(t, seen)

	result := &types.IngestionResult{EpisodeUUID: "ep-1", CreatedNodeIDs: []string{"n1"}}
	require.NoError(t, s.Mark("g1", "ep-1", result))

	seen, err = s.Seen("g1", "ep-1")
	require.NoError(t, err)
	assert.True(t, seen)

	rec, err := s.Get("g1", "ep-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "ep-1", rec.EpisodeUUID)
	assert.Equal(t, []string{"n1"}, rec.Result.CreatedNodeIDs)
	assert.False(t, rec.IngestedAt.IsZero())
}

func TestGroupsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Mark("g1", "ep-1", nil))

	seen, err := s.Seen("g2", "ep-1")
	require.NoError(t, err)
	assert.False(t, seen, "checkpoints must not leak across groups")

	records, err := s.List("g1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	records, err = s.List("g2")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestForgetAllowsReplay(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Mark("g1", "ep-1", nil))
	require.NoError(t, s.Forget("g1", "ep-1"))

	seen, err := s.Seen("g1", "ep-1")
	require.NoError(t, err)
	assert.False(t, seen)

	rec, err := s.Get("g1", "ep-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Mark("g1", "ep-1", nil), ErrClosed)
	_, err = s.Seen("g1", "ep-1")
	assert.ErrorIs(t, err, ErrClosed)
}
