package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
)

// SnapshotCache persists complete playlist track listings keyed by version token.
//
// Implementations live in the repositories package.
type SnapshotCache interface {
	// Has reports whether an entry exists for snapshotID. There is no TTL.
	Has(ctx context.Context, snapshotID string) (bool, error)

	// Load returns the entry for snapshotID, a [shared.CacheCorruptError] when it cannot be decoded,
	// or an error wrapping [shared.ErrCacheMiss].
	Load(ctx context.Context, snapshotID string) (*models.Snapshot, error)

	// Store overwrites any entry for snapshotID in a single atomic write.
	Store(ctx context.Context, snapshotID string, snap *models.Snapshot) error

	// Invalidate removes the entry for snapshotID. Missing entries are not an error.
	Invalidate(ctx context.Context, snapshotID string) error
}

// HistoryRecorder receives every track change observed by the [PlaybackWorker].
type HistoryRecorder interface {
	Record(ctx context.Context, entry *models.PlaybackEntry) error
}

// Move returns a copy of items with the element at from reinserted just before to.
//
// Both positions refer to the pre-move order and are zero-based; to may equal len(items) to move to the end.
// When to > from the insertion point shifts down by one once the element is removed.
func Move[T any](items []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(items) {
		return nil, fmt.Errorf("%w: from %d outside [0, %d)", shared.ErrInvalidIndex, from, len(items))
	}
	if to < 0 || to > len(items) {
		return nil, fmt.Errorf("%w: to %d outside [0, %d]", shared.ErrInvalidIndex, to, len(items))
	}

	moved := items[from]
	out := make([]T, 0, len(items))
	out = append(out, items[:from]...)
	out = append(out, items[from+1:]...)
	if to > from {
		to--
	}
	out = append(out[:to], append([]T{moved}, out[to:]...)...)
	return out, nil
}

func loggerOrDiscard(logger *log.Logger, component string) *log.Logger {
	if logger == nil {
		return shared.DiscardLogger()
	}
	return shared.WithLogger(logger, "component", component)
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}
