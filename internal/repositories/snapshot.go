package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
)

// SnapshotRepository stores snapshots in the SQLite snapshots table.
type SnapshotRepository struct {
	db   *sql.DB
	path string
}

// NewSnapshotRepository creates a new [SnapshotRepository]. path is only reported by [SnapshotRepository.Info].
func NewSnapshotRepository(db *sql.DB, path string) *SnapshotRepository {
	return &SnapshotRepository{db: db, path: path}
}

// Has reports whether an entry exists for snapshotID.
func (r *SnapshotRepository) Has(ctx context.Context, snapshotID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM snapshots WHERE snapshot_id = ?)", snapshotID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot: %w", err)
	}
	return exists, nil
}

// Load reads the snapshot stored under snapshotID.
func (r *SnapshotRepository) Load(ctx context.Context, snapshotID string) (*models.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, "SELECT payload FROM snapshots WHERE snapshot_id = ?", snapshotID)
	return r.scanOne(snapshotID, row)
}

// Store writes snap under snapshotID, replacing any existing entry.
func (r *SnapshotRepository) Store(ctx context.Context, snapshotID string, snap *models.Snapshot) error {
	payload, err := encodeSnapshot(snapshotID, snap)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO snapshots (id, snapshot_id, playlist_id, name, track_count, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(snapshot_id) DO UPDATE SET
			playlist_id = excluded.playlist_id,
			name = excluded.name,
			track_count = excluded.track_count,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, query, shared.GenerateID(), snapshotID, snap.PlaylistID, snap.Name, len(snap.Tracks), payload, now, now)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Invalidate removes the entry for snapshotID. Removing an absent entry is not an error.
func (r *SnapshotRepository) Invalidate(ctx context.Context, snapshotID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM snapshots WHERE snapshot_id = ?", snapshotID); err != nil {
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}
	return nil
}

// Info counts entries and payload bytes.
func (r *SnapshotRepository) Info(ctx context.Context) (CacheInfo, error) {
	info := CacheInfo{Backend: "sqlite", Location: r.path}
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(LENGTH(payload)), 0) FROM snapshots").Scan(&info.Entries, &info.Bytes)
	if err != nil {
		return CacheInfo{}, fmt.Errorf("failed to query cache info: %w", err)
	}
	return info, nil
}

// Clear removes every entry and returns how many were removed.
func (r *SnapshotRepository) Clear(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM snapshots")
	if err != nil {
		return 0, fmt.Errorf("failed to clear snapshots: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

// List returns the stored entries for playlistID, newest first, without decoding payloads.
func (r *SnapshotRepository) List(ctx context.Context, playlistID string) ([]SnapshotRecord, error) {
	query := `
		SELECT snapshot_id, playlist_id, name, track_count, updated_at
		FROM snapshots
		WHERE playlist_id = ?
		ORDER BY updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		record, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// SnapshotRecord is the metadata of a stored snapshot.
type SnapshotRecord struct {
	SnapshotID string    `json:"snapshot_id"`
	PlaylistID string    `json:"playlist_id"`
	Name       string    `json:"name"`
	TrackCount int       `json:"track_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// scanOne scans a payload row into a [models.Snapshot]
func (r *SnapshotRepository) scanOne(snapshotID string, row *sql.Row) (*models.Snapshot, error) {
	var payload []byte
	err := row.Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cacheMiss(snapshotID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	return decodeSnapshot(snapshotID, payload)
}

// scanRow scans a row from [sql.Rows] into a [SnapshotRecord]
func (r *SnapshotRepository) scanRow(rows *sql.Rows) (SnapshotRecord, error) {
	var record SnapshotRecord
	err := rows.Scan(&record.SnapshotID, &record.PlaylistID, &record.Name, &record.TrackCount, &record.UpdatedAt)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	return record, nil
}
