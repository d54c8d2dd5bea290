// package repositories provides persistence layer implementations for snapshots and playback history.
package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
)

// CacheInfo summarizes a snapshot store for `playdeck cache info`.
type CacheInfo struct {
	Backend  string `json:"backend"`
	Location string `json:"location"`
	Entries  int    `json:"entries"`
	Bytes    int64  `json:"bytes"`
}

// encodeSnapshot serializes snap for storage under snapshotID.
func encodeSnapshot(snapshotID string, snap *models.Snapshot) ([]byte, error) {
	if snapshotID == "" {
		return nil, fmt.Errorf("%w: empty snapshot id", shared.ErrInvalidArgument)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", shared.ErrInvalidArgument)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshot parses a stored payload, reporting any failure as a [shared.CacheCorruptError].
func decodeSnapshot(snapshotID string, data []byte) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &shared.CacheCorruptError{Key: snapshotID, Err: err}
	}
	if snap.Tracks == nil {
		return nil, &shared.CacheCorruptError{Key: snapshotID, Err: fmt.Errorf("missing tracks")}
	}
	return &snap, nil
}

func cacheMiss(snapshotID string) error {
	return fmt.Errorf("%w: %s", shared.ErrCacheMiss, snapshotID)
}
