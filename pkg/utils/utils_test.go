package utils

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
)

func TestSemaphoreGatherPreservesOrder(t *testing.T) {
	errBoom := errors.New("boom")
	errs := SemaphoreGather(context.Background(), 2,
		func() error { return nil },
		func() error { return errBoom },
		func() error { return nil },
	)
	if len(errs) != 3 {
		t.Fatalf("len(errs) = %d, want 3", len(errs))
	}
	if errs[0] != nil || errs[2] != nil {
		t.Errorf("unexpected errors in successful slots: %v", errs)
	}
	if !errors.Is(errs[1], errBoom) {
		t.Errorf("errs[1] = %v, want boom", errs[1])
	}
}

func TestSemaphoreGatherBoundsConcurrency(t *testing.T) {
	const limit = 3
	var inFlight, peak atomic.Int32
	fns := make([]func() error, 20)
	for i := range fns {
		fns[i] = func() error {
			cur := inFlight.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			defer inFlight.Add(-1)
			return nil
		}
	}
	SemaphoreGather(context.Background(), limit, fns...)
	if p := peak.Load(); p > limit {
		t.Errorf("peak concurrency = %d, want <= %d", p, limit)
	}
}

func TestSemaphoreGatherRecoversPanic(t *testing.T) {
	errs := SemaphoreGather(context.Background(), 1,
		func() error { panic("unexpected state") },
	)
	var pe *PanicError
	if !errors.As(errs[0], &pe) {
		t.Fatalf("errs[0] = %v, want PanicError", errs[0])
	}
}

func TestSemaphoreGatherWithResults(t *testing.T) {
	results, errs := SemaphoreGatherWithResults(context.Background(), 4,
		func() (int, error) { return 1, nil },
		func() (int, error) { return 0, errors.New("fail") },
		func() (int, error) { return 3, nil },
	)
	if results[0] != 1 || results[2] != 3 {
		t.Errorf("results = %v, want values in submission order", results)
	}
	if errs[1] == nil {
		t.Errorf("errs[1] = nil, want failure")
	}
}

func TestBatch(t *testing.T) {
	batches := Batch([]int{1, 2, 3, 4, 5}, 2)
	if len(batches) != 3 {
		t.Fatalf("len(batches) = %d, want 3", len(batches))
	}
	if len(batches[2]) != 1 || batches[2][0] != 5 {
		t.Errorf("last batch = %v, want [5]", batches[2])
	}
	if Batch([]int{}, 2) != nil {
		t.Errorf("Batch(empty) != nil")
	}
}

func TestValidateGroupID(t *testing.T) {
	if err := ValidateGroupID("tenant_42-a"); err != nil {
		t.Errorf("ValidateGroupID(valid) = %v", err)
	}
	if err := ValidateGroupID(`g") DETACH DELETE`); !errors.Is(err, ErrInvalidGroupID) {
		t.Errorf("ValidateGroupID(injection) = %v, want ErrInvalidGroupID", err)
	}
}

func TestSanitizeFulltextQuery(t *testing.T) {
	got := SanitizeFulltextQuery(`who is alice? (boston)`)
	if got != `who is alice\? \(boston\)` {
		t.Errorf("SanitizeFulltextQuery() = %q", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if got := CosineSimilarity(a, b); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors: cosine = %v, want 1", got)
	}
	c := []float32{0, 1, 0}
	if got := CosineSimilarity(a, c); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: cosine = %v, want 0", got)
	}
	if got := CosineSimilarity(a, nil); got != 0 {
		t.Errorf("empty vector: cosine = %v, want 0", got)
	}
}

func TestNormalizeL2(t *testing.T) {
	v := NormalizeL2([]float32{3, 4})
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("norm^2 = %v, want 1", sum)
	}
}

func TestWordOverlap(t *testing.T) {
	if got := WordOverlap("Acme Corp", "acme corporation"); got <= 0 {
		t.Errorf("WordOverlap = %v, want > 0", got)
	}
	if got := WordOverlap("alpha", "beta"); got != 0 {
		t.Errorf("disjoint WordOverlap = %v, want 0", got)
	}
	if got := WordOverlap("same same", "same"); math.Abs(got-1) > 1e-9 {
		t.Errorf("WordOverlap = %v, want 1", got)
	}
}
