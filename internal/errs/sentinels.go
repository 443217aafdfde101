// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a request that can never succeed as given
	// (empty username, non-positive word limit, malformed slot).
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreFailure indicates an I/O failure of the media store or the directory backing store.
	ErrStoreFailure = errors.New("store failure")

	// ErrTimeout indicates an enclosing deadline expired while waiting on a dependency.
	ErrTimeout = errors.New("timeout")

	// ErrPartialFailure indicates the media upload succeeded but the directory commit did not.
	ErrPartialFailure = errors.New("partial failure")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)

var known = []error{
	ErrNotFound, ErrInvalidInput, ErrStoreFailure, ErrTimeout,
	ErrPartialFailure, ErrUnauthorized, ErrAlreadyExists,
}

// Classify maps an arbitrary dependency error onto one of the sentinels.
// Deadline expiry becomes ErrTimeout, errors that already carry a sentinel
// are returned unchanged and everything else is wrapped as ErrStoreFailure.
// Cancellation by the caller is passed through as is.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if errors.Is(err, ErrTimeout) {
			return err
		}
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, s := range known {
		if errors.Is(err, s) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
}

// deadlineSlack is how close to its deadline a canceled context still counts
// as expired. A peer whose timer fires first cancels the call before the local
// deadline is reached.
const deadlineSlack = 100 * time.Millisecond

// ContextErr is ctx.Err(), except that a cancellation at or near the deadline
// of ctx is reported as context.DeadlineExceeded.
func ContextErr(ctx context.Context) error {
	err := ctx.Err()
	if !errors.Is(err, context.Canceled) {
		return err
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < deadlineSlack {
		return context.DeadlineExceeded
	}
	return err
}

// Kind returns the sentinel carried by err, or nil when err carries none.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	// PartialFailure and Timeout win over whatever cause they wrap.
	if errors.Is(err, ErrPartialFailure) {
		return ErrPartialFailure
	}
	if errors.Is(err, ErrTimeout) {
		return ErrTimeout
	}
	for _, s := range known {
		if errors.Is(err, s) {
			return s
		}
	}
	return nil
}
