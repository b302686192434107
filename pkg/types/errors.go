package types

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors shared across the module.
var (
	ErrEmptyName    = errors.New("name cannot be empty")
	ErrEmptyGroupID = errors.New("group_id cannot be empty")
	ErrEmptyUUID    = errors.New("uuid cannot be empty")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrInvalidLimit = errors.New("limit must be positive")
)

// Data-integrity errors. These mark a single candidate or episode as
// unprocessable; they never abort a whole batch.
var (
	// ErrExtractionIncomplete is returned when an extracted candidate is
	// missing a required field such as the entity name.
	ErrExtractionIncomplete = errors.New("extraction incomplete: candidate missing required field")

	// ErrPartitionMismatch is returned when a shortlist or merge would span
	// group boundaries. This indicates a graph store bug, never normal input.
	ErrPartitionMismatch = errors.New("partition mismatch: results span group boundaries")

	// ErrEdgeAlreadyInvalid is returned when a second invalidation is
	// attempted on an edge. InvalidAt transitions exactly once.
	ErrEdgeAlreadyInvalid = errors.New("edge is already invalidated")

	// ErrInvalidTemporalRange is returned when InvalidAt would precede ValidAt.
	ErrInvalidTemporalRange = errors.New("invalid_at must not precede valid_at")
)

// Degradation errors surfaced to callers after retries are exhausted.
var (
	ErrIngestionDegraded = errors.New("ingestion degraded: upstream provider failures exhausted retries")
	ErrSearchDegraded    = errors.New("search degraded: all retrieval methods failed")
)

// ProviderError wraps a transient upstream failure (extraction, embedding,
// graph store, reranker). Callers retry these with bounded backoff.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error in %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err as a retryable provider failure.
func NewProviderError(op string, err error) *ProviderError {
	return &ProviderError{Op: op, Err: err}
}

// ProviderRejected marks a non-retryable upstream refusal (content policy,
// invalid request). The affected unit is skipped and processing continues.
type ProviderRejected struct {
	Op     string
	Reason string
}

func (e *ProviderRejected) Error() string {
	return fmt.Sprintf("provider rejected %s: %s", e.Op, e.Reason)
}

// IsRetryable reports whether err should be retried at the call site.
// ProviderError is retryable, ProviderRejected and integrity errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return true
	}
	var pr *ProviderRejected
	if errors.As(err, &pr) {
		return false
	}
	return false
}

// FailedWrite identifies a single write that did not commit.
type FailedWrite struct {
	UUID string
	Kind string // "node" or "edge"
	Err  error
}

// PartialFailure reports which writes of a commit failed when the store
// lacks multi-statement transactions. Already-committed writes stay.
type PartialFailure struct {
	Failed []FailedWrite
}

func (e *PartialFailure) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.Kind+":"+f.UUID)
	}
	return fmt.Sprintf("commit partially failed: %d writes did not apply (%s)",
		len(e.Failed), strings.Join(ids, ", "))
}
