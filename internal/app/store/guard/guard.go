// Package guard implements optimistic concurrency for documents that are
// mutated by whole-list read-modify-write.
//
// Every guarded document carries a version counter. Writes filter on the
// version read and increment it; a matched count of zero means another
// writer got there first and the caller must re-read and retry.
package guard

import (
	"context"
	"errors"

	"github.com/jmestre/hearth/internal/app/system/metrics"
)

// ErrVersionConflict means a guarded write lost the race: the document's
// version changed between the read and the write.
var ErrVersionConflict = errors.New("record version conflict")

// MaxAttempts bounds conflict retries. Conflicts are short races between
// handlers of the same group or inbox, so a small bound suffices.
const MaxAttempts = 5

// Retry runs fn until it succeeds, fails with a non-conflict error, or
// exhausts MaxAttempts. fn must re-read the document on every attempt so
// each write is guarded by a fresh version.
func Retry(ctx context.Context, collection string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if err = fn(ctx); !errors.Is(err, ErrVersionConflict) {
			return err
		}
		metrics.VersionConflicts.WithLabelValues(collection).Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
