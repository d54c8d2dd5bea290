package tasks

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
)

// ReorderCoordinator applies playlist mutations remotely and propagates the returned version token.
//
// After a successful mutation the catalog (when set) carries the new token and the cache entry for the old token
// is invalidated. A failed mutation leaves the token unchanged; callers that moved tracks locally re-stream
// the playlist to recover the authoritative order.
type ReorderCoordinator struct {
	remote  services.RemoteLibrary
	cache   SnapshotCache
	catalog *PlaylistCatalog
	logger  *log.Logger
}

// NewReorderCoordinator creates a coordinator. cache and catalog may be nil.
func NewReorderCoordinator(remote services.RemoteLibrary, cache SnapshotCache, catalog *PlaylistCatalog, logger *log.Logger) *ReorderCoordinator {
	return &ReorderCoordinator{remote: remote, cache: cache, catalog: catalog, logger: loggerOrDiscard(logger, "reorder")}
}

// MoveTracks is the optimistic local half of a reorder: it moves tracks[from] before tracks[to] and renumbers.
// Remote positions are shifted the way the remote move shifts them.
func MoveTracks(tracks []models.PlaylistTrack, from, to int) ([]models.PlaylistTrack, error) {
	remoteFrom, remoteTo, err := RemotePositions(tracks, from, to)
	if err != nil {
		return nil, err
	}
	moved, err := Move(tracks, from, to)
	if err != nil {
		return nil, err
	}
	models.Renumber(moved)
	for i := range moved {
		moved[i].Position = shiftPosition(moved[i].Position, remoteFrom, remoteTo)
	}
	return moved, nil
}

// RemotePositions translates a move between local indices into the remote listing, where items without a
// track payload still occupy a position. to may equal len(tracks) to mean after the last track.
func RemotePositions(tracks []models.PlaylistTrack, from, to int) (int, int, error) {
	if from < 0 || from >= len(tracks) || to < 0 || to > len(tracks) {
		return 0, 0, fmt.Errorf("%w: move %d -> %d in %d tracks", shared.ErrInvalidIndex, from, to, len(tracks))
	}
	if to == len(tracks) {
		return tracks[from].Position, tracks[to-1].Position + 1, nil
	}
	return tracks[from].Position, tracks[to].Position, nil
}

// shiftPosition is where pos lands after the remote item at from moves before to.
func shiftPosition(pos, from, to int) int {
	switch {
	case pos == from && to > from:
		return to - 1
	case pos == from:
		return to
	case from < pos && pos < to:
		return pos - 1
	case to <= pos && pos < from:
		return pos + 1
	default:
		return pos
	}
}

// Reorder moves the item at from to just before to (zero-based, pre-move positions) and returns p with its new token.
//
// A move onto itself is a no-op and makes no remote call.
func (r *ReorderCoordinator) Reorder(ctx context.Context, p models.Playlist, from, to int) (models.Playlist, error) {
	if err := mutable(p); err != nil {
		return p, err
	}
	if from < 0 || to < 0 {
		return p, fmt.Errorf("%w: move %d -> %d", shared.ErrInvalidIndex, from, to)
	}
	if to == from || to == from+1 {
		return p, nil
	}

	token, err := r.remote.ReorderPlaylist(ctx, p.ID, from, to, p.SnapshotID)
	if err != nil {
		return p, shared.NewRemoteError("reorder playlist", err)
	}
	r.logger.Info("reordered playlist", "id", p.ID, "from", from, "to", to, "snapshot", token)
	return r.propagate(ctx, p, token), nil
}

// ReorderTracks moves tracks[from] to just before tracks[to], where tracks is the listing streamed for p.
// Local indices are translated with [RemotePositions] so skipped items are counted remotely.
func (r *ReorderCoordinator) ReorderTracks(ctx context.Context, p models.Playlist, tracks []models.PlaylistTrack, from, to int) (models.Playlist, error) {
	if err := mutable(p); err != nil {
		return p, err
	}
	remoteFrom, remoteTo, err := RemotePositions(tracks, from, to)
	if err != nil {
		return p, err
	}
	if to == from || to == from+1 {
		return p, nil
	}
	return r.Reorder(ctx, p, remoteFrom, remoteTo)
}

// AddTracks appends tracks to p. Local tracks are rejected before any remote call.
func (r *ReorderCoordinator) AddTracks(ctx context.Context, p models.Playlist, tracks []models.Track) (models.Playlist, error) {
	if err := mutable(p); err != nil {
		return p, err
	}
	if len(tracks) == 0 {
		return p, fmt.Errorf("%w: no tracks to add", shared.ErrInvalidArgument)
	}

	uris := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.IsLocal() {
			return p, fmt.Errorf("%s: %w", t.Title, shared.ErrLocalTrack)
		}
		uris = append(uris, t.URI)
	}

	token, err := r.remote.AddTracks(ctx, p.ID, uris)
	if err != nil {
		return p, shared.NewRemoteError("add tracks", err)
	}
	r.logger.Info("added tracks", "id", p.ID, "count", len(uris), "snapshot", token)
	return r.propagate(ctx, p, token), nil
}

// RemoveTracks removes the given occurrences from p, identified by URI and remote position.
func (r *ReorderCoordinator) RemoveTracks(ctx context.Context, p models.Playlist, tracks []models.PlaylistTrack) (models.Playlist, error) {
	if err := mutable(p); err != nil {
		return p, err
	}
	if len(tracks) == 0 {
		return p, fmt.Errorf("%w: no tracks to remove", shared.ErrInvalidArgument)
	}

	var removals []services.Removal
	byURI := make(map[string]int)
	for _, pt := range tracks {
		if pt.Position < 0 {
			return p, fmt.Errorf("%w: position %d", shared.ErrInvalidIndex, pt.Position)
		}
		i, ok := byURI[pt.Track.URI]
		if !ok {
			i = len(removals)
			byURI[pt.Track.URI] = i
			removals = append(removals, services.Removal{URI: pt.Track.URI})
		}
		removals[i].Positions = append(removals[i].Positions, pt.Position)
	}
	for i := range removals {
		slices.Sort(removals[i].Positions)
	}

	token, err := r.remote.RemoveTracks(ctx, p.ID, removals, p.SnapshotID)
	if err != nil {
		return p, shared.NewRemoteError("remove tracks", err)
	}
	r.logger.Info("removed tracks", "id", p.ID, "count", len(tracks), "snapshot", token)
	return r.propagate(ctx, p, token), nil
}

func (r *ReorderCoordinator) propagate(ctx context.Context, p models.Playlist, token string) models.Playlist {
	old := p.SnapshotID
	if token == "" || token == old {
		return p
	}

	updated := p.WithSnapshotID(token)
	if r.catalog != nil {
		r.catalog.UpdateSnapshot(p.ID, token)
	}
	if r.cache != nil && old != "" {
		if err := r.cache.Invalidate(ctx, old); err != nil {
			r.logger.Warn("failed to invalidate snapshot", "id", p.ID, "snapshot", old, "error", err)
		}
	}
	return updated
}

func mutable(p models.Playlist) error {
	switch {
	case p.IsEmpty():
		return fmt.Errorf("%w: no playlist selected", shared.ErrInvalidArgument)
	case p.Liked:
		return fmt.Errorf("%w: %s cannot be modified", shared.ErrInvalidArgument, p.Name)
	default:
		return nil
	}
}
