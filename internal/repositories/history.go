package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
)

// HistoryRepository persists [models.PlaybackEntry] rows in the playback_log table.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new [HistoryRepository] with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record inserts entry, filling in its ID and observation time when unset.
func (r *HistoryRepository) Record(ctx context.Context, entry *models.PlaybackEntry) error {
	if entry.TrackURI == "" {
		return &shared.MissingFieldError{Record: "playback entry", Field: "track_uri"}
	}
	if entry.ID == "" {
		entry.ID = shared.GenerateID()
	}
	if entry.ObservedAt.IsZero() {
		entry.ObservedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO playback_log (id, track_uri, title, device_id, observed_at) VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, entry.ID, entry.TrackURI, entry.Title, entry.DeviceID, entry.ObservedAt)
	if err != nil {
		return fmt.Errorf("failed to insert playback entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]models.PlaybackEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, track_uri, title, device_id, observed_at
		FROM playback_log
		ORDER BY observed_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query playback log: %w", err)
	}
	defer rows.Close()

	var entries []models.PlaybackEntry
	for rows.Next() {
		var e models.PlaybackEntry
		if err := rows.Scan(&e.ID, &e.TrackURI, &e.Title, &e.DeviceID, &e.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playback entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}
