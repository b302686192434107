package utils

import (
	"context"
	"os"
	"strconv"
	"sync"
)

// DefaultSemaphoreLimit bounds concurrent provider calls when no explicit
// limit is configured.
const DefaultSemaphoreLimit = 20

// SemaphoreLimit returns the concurrency limit from SEMAPHORE_LIMIT or the
// default.
func SemaphoreLimit() int {
	val := os.Getenv("SEMAPHORE_LIMIT")
	if val == "" {
		return DefaultSemaphoreLimit
	}
	limit, err := strconv.Atoi(val)
	if err != nil || limit <= 0 {
		return DefaultSemaphoreLimit
	}
	return limit
}

// ConcurrentExecutor runs functions concurrently under a shared semaphore.
type ConcurrentExecutor struct {
	semaphore chan struct{}
}

// NewConcurrentExecutor creates an executor allowing at most maxConcurrency
// functions in flight. Non-positive values fall back to SemaphoreLimit.
func NewConcurrentExecutor(maxConcurrency int) *ConcurrentExecutor {
	if maxConcurrency <= 0 {
		maxConcurrency = SemaphoreLimit()
	}
	return &ConcurrentExecutor{semaphore: make(chan struct{}, maxConcurrency)}
}

// Execute runs the functions concurrently and returns one error slot per
// function, in submission order. Panics are recovered as PanicError.
func (e *ConcurrentExecutor) Execute(ctx context.Context, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}

	errs := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func() error) {
			defer wg.Done()
			defer RecoverWithCallback(func(err error) {
				errs[index] = err
			})

			select {
			case e.semaphore <- struct{}{}:
				defer func() { <-e.semaphore }()
			case <-ctx.Done():
				errs[index] = ctx.Err()
				return
			}

			errs[index] = function()
		}(i, fn)
	}

	wg.Wait()
	return errs
}

// SemaphoreGather runs functions concurrently with bounded concurrency and
// returns their errors in submission order.
func SemaphoreGather(ctx context.Context, maxConcurrency int, functions ...func() error) []error {
	return NewConcurrentExecutor(maxConcurrency).Execute(ctx, functions...)
}

// SemaphoreGatherWithResults runs functions concurrently and returns results
// and errors in submission order. A failed slot holds the zero value.
func SemaphoreGatherWithResults[T any](ctx context.Context, maxConcurrency int, functions ...func() (T, error)) ([]T, []error) {
	if len(functions) == 0 {
		return nil, nil
	}

	executor := NewConcurrentExecutor(maxConcurrency)
	results := make([]T, len(functions))
	errs := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func() (T, error)) {
			defer wg.Done()
			defer RecoverWithCallback(func(err error) {
				errs[index] = err
			})

			select {
			case executor.semaphore <- struct{}{}:
				defer func() { <-executor.semaphore }()
			case <-ctx.Done():
				errs[index] = ctx.Err()
				return
			}

			results[index], errs[index] = function()
		}(i, fn)
	}

	wg.Wait()
	return results, errs
}

// FirstError returns the first non-nil error from a gather result.
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
