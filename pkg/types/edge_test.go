package types

import (
	"errors"
	"testing"
	"time"
)

func newRelatesEdge(t *testing.T) *Edge {
	t.Helper()
	return &Edge{
		UUID:         "edge-1",
		Kind:         RelatesEdgeKind,
		GroupID:      "group-1",
		SourceNodeID: "node-a",
		TargetNodeID: "node-b",
		Name:         "LIVES_IN",
		Fact:         "Alice lives in Boston",
		CreatedAt:    time.Now().UTC(),
	}
}

func TestEdgeValidate(t *testing.T) {
	edge := newRelatesEdge(t)
	if err := edge.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	missing := newRelatesEdge(t)
	missing.GroupID = ""
	if err := missing.Validate(); !errors.Is(err, ErrEmptyGroupID) {
		t.Errorf("Validate() = %v, want ErrEmptyGroupID", err)
	}

	inverted := newRelatesEdge(t)
	validAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	invalidAt := validAt.Add(-time.Hour)
	inverted.ValidAt = &validAt
	inverted.InvalidAt = &invalidAt
	if err := inverted.Validate(); !errors.Is(err, ErrInvalidTemporalRange) {
		t.Errorf("Validate() = %v, want ErrInvalidTemporalRange", err)
	}
}

func TestEdgeInvalidateSetOnce(t *testing.T) {
	edge := newRelatesEdge(t)
	validAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	edge.ValidAt = &validAt

	closeAt := validAt.AddDate(0, 6, 0)
	if err := edge.Invalidate(closeAt); err != nil {
		t.Fatalf("Invalidate() = %v, want nil", err)
	}
	if edge.InvalidAt == nil || !edge.InvalidAt.Equal(closeAt) {
		t.Fatalf("InvalidAt = %v, want %v", edge.InvalidAt, closeAt)
	}

	if err := edge.Invalidate(closeAt.Add(time.Hour)); !errors.Is(err, ErrEdgeAlreadyInvalid) {
		t.Errorf("second Invalidate() = %v, want ErrEdgeAlreadyInvalid", err)
	}
	if !edge.InvalidAt.Equal(closeAt) {
		t.Errorf("InvalidAt changed after rejected second invalidation")
	}
}

func TestEdgeInvalidateBeforeValidAt(t *testing.T) {
	edge := newRelatesEdge(t)
	validAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	edge.ValidAt = &validAt

	if err := edge.Invalidate(validAt.Add(-time.Minute)); !errors.Is(err, ErrInvalidTemporalRange) {
		t.Errorf("Invalidate() = %v, want ErrInvalidTemporalRange", err)
	}
	if edge.InvalidAt != nil {
		t.Errorf("InvalidAt set despite rejected invalidation")
	}
}

func TestEdgeIsLiveAt(t *testing.T) {
	edge := newRelatesEdge(t)
	validAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	invalidAt := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	edge.ValidAt = &validAt
	edge.InvalidAt = &invalidAt

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before valid_at", validAt.Add(-time.Hour), false},
		{"at valid_at", validAt, true},
		{"inside interval", validAt.AddDate(0, 3, 0), true},
		{"at invalid_at", invalidAt, false},
		{"after invalid_at", invalidAt.Add(time.Hour), false},
	}
	for _, tc := range cases {
		if got := edge.IsLiveAt(tc.at); got != tc.want {
			t.Errorf("%s: IsLiveAt(%v) = %v, want %v", tc.name, tc.at, got, tc.want)
		}
	}
}

func TestEdgeAttachEpisodeAppendOnly(t *testing.T) {
	edge := newRelatesEdge(t)
	edge.AttachEpisode("ep-1")
	edge.AttachEpisode("ep-2")
	edge.AttachEpisode("ep-1")
	edge.AttachEpisode("")

	if len(edge.Episodes) != 2 {
		t.Fatalf("Episodes = %v, want 2 unique entries", edge.Episodes)
	}
	if edge.Episodes[0] != "ep-1" || edge.Episodes[1] != "ep-2" {
		t.Errorf("Episodes = %v, want insertion order preserved", edge.Episodes)
	}
}

func TestEdgeSamePair(t *testing.T) {
	a := newRelatesEdge(t)
	b := newRelatesEdge(t)
	b.SourceNodeID, b.TargetNodeID = a.TargetNodeID, a.SourceNodeID
	if !a.SamePair(b) {
		t.Errorf("SamePair() = false for reversed direction, want true")
	}

	c := newRelatesEdge(t)
	c.TargetNodeID = "node-c"
	if a.SamePair(c) {
		t.Errorf("SamePair() = true for different target, want false")
	}
}
