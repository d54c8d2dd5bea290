package tasks

import (
	"context"
	"errors"
	"iter"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
)

// TrackStreamer produces a playlist's tracks one at a time.
//
// A cached snapshot for the playlist's version token is replayed without remote calls.
// Otherwise pages are fetched on demand and each track is yielded before the next page is requested;
// the snapshot is committed only after the last page has been consumed.
type TrackStreamer struct {
	remote services.RemoteLibrary
	cache  SnapshotCache
	logger *log.Logger
}

// NewTrackStreamer creates a streamer. A nil cache disables caching.
func NewTrackStreamer(remote services.RemoteLibrary, cache SnapshotCache, logger *log.Logger) *TrackStreamer {
	return &TrackStreamer{remote: remote, cache: cache, logger: loggerOrDiscard(logger, "streamer")}
}

// Stream returns a fresh traversal of p's tracks with 1-based contiguous indices.
//
// Each call starts over. Breaking out of the loop abandons the traversal and nothing is cached.
// A remote failure is yielded once as the error value and ends the sequence.
// The sequence must not be advanced from more than one goroutine.
func (s *TrackStreamer) Stream(ctx context.Context, p models.Playlist) iter.Seq2[models.PlaylistTrack, error] {
	return func(yield func(models.PlaylistTrack, error) bool) {
		if p.Liked {
			s.traverse(ctx, p, nil, s.remote.FetchLikedTracksPage, yield)
			return
		}

		if snap := s.lookup(ctx, p); snap != nil {
			s.replay(snap, yield)
			return
		}

		var draft *models.Snapshot
		if s.cache != nil && p.Cacheable() {
			draft = models.NewSnapshotDraft(p)
		}
		first := func(ctx context.Context) (*services.Page, error) {
			return s.remote.FetchPlaylistTracksPage(ctx, p.ID)
		}
		if !s.traverse(ctx, p, draft, first, yield) || draft == nil {
			return
		}
		s.commit(ctx, p, draft)
	}
}

// Collect drains a full traversal of p, reporting each track on progress.
func (s *TrackStreamer) Collect(ctx context.Context, p models.Playlist, progress chan<- ProgressUpdate) ([]models.PlaylistTrack, error) {
	var tracks []models.PlaylistTrack
	for pt, err := range s.Stream(ctx, p) {
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, pt)
		sendProgress(progress, streamTrackUpdate(pt))
	}
	sendProgress(progress, streamDoneUpdate(p, len(tracks)))
	return tracks, nil
}

// lookup returns the cached snapshot for p, or nil on any miss. Unreadable entries count as misses.
func (s *TrackStreamer) lookup(ctx context.Context, p models.Playlist) *models.Snapshot {
	if s.cache == nil || !p.Cacheable() {
		return nil
	}

	ok, err := s.cache.Has(ctx, p.SnapshotID)
	if err != nil {
		s.logger.Warn("cache check failed", "playlist", p.ID, "snapshot", p.SnapshotID, "error", err)
		return nil
	}
	if !ok {
		s.logger.Debug("cache miss", "playlist", p.ID, "snapshot", p.SnapshotID)
		return nil
	}

	snap, err := s.cache.Load(ctx, p.SnapshotID)
	switch {
	case errors.Is(err, shared.ErrCacheCorrupt):
		s.logger.Warn("discarding corrupt snapshot", "playlist", p.ID, "snapshot", p.SnapshotID, "error", err)
		return nil
	case err != nil:
		s.logger.Warn("cache load failed", "playlist", p.ID, "snapshot", p.SnapshotID, "error", err)
		return nil
	}

	s.logger.Debug("cache hit", "playlist", p.ID, "snapshot", p.SnapshotID, "tracks", len(snap.Tracks))
	return snap
}

func (s *TrackStreamer) replay(snap *models.Snapshot, yield func(models.PlaylistTrack, error) bool) {
	index := 0
	for i, item := range snap.Tracks {
		pt, err := wrapItem(index+1, snap.Position(i), item)
		if err != nil {
			s.logger.Warn("skipping cached item", "snapshot", snap.SnapshotID, "error", err)
			continue
		}
		index++
		if !yield(pt, nil) {
			return
		}
	}
}

// traverse pages through the remote listing starting at first, appending usable items to draft when set.
// It reports whether every page was consumed.
func (s *TrackStreamer) traverse(
	ctx context.Context,
	p models.Playlist,
	draft *models.Snapshot,
	first func(context.Context) (*services.Page, error),
	yield func(models.PlaylistTrack, error) bool,
) bool {
	op := "playlist tracks"
	if p.Liked {
		op = "liked tracks"
	}

	page, err := first(ctx)
	index, pages, base := 0, 1, 0
	for {
		if err != nil {
			yield(models.PlaylistTrack{}, shared.NewRemoteError(op, err))
			return false
		}
		s.logger.Debug("fetched page", "playlist", p.ID, "page", pages, "items", len(page.Items))

		for offset, item := range page.Items {
			pt, err := wrapItem(index+1, base+offset, item)
			if err != nil {
				s.logger.Warn("skipping playlist item", "playlist", p.ID, "page", pages, "error", err)
				continue
			}
			index++
			if draft != nil {
				draft.Append(item, pt.Position)
			}
			if !yield(pt, nil) {
				s.logger.Debug("traversal abandoned", "playlist", p.ID, "yielded", index)
				return false
			}
		}

		base += len(page.Items)
		if !page.HasNext() {
			return true
		}
		if err := ctx.Err(); err != nil {
			yield(models.PlaylistTrack{}, err)
			return false
		}
		page, err = s.remote.FetchNextPage(ctx, page)
		pages++
	}
}

func (s *TrackStreamer) commit(ctx context.Context, p models.Playlist, draft *models.Snapshot) {
	if err := s.cache.Store(ctx, p.SnapshotID, draft); err != nil {
		s.logger.Warn("failed to commit snapshot", "playlist", p.ID, "snapshot", p.SnapshotID, "error", err)
		return
	}
	s.logger.Debug("committed snapshot", "playlist", p.ID, "snapshot", p.SnapshotID, "tracks", len(draft.Tracks))
}

// wrapItem builds the track at index, found at a zero-based remote position.
// Items without a usable track payload are rejected.
func wrapItem(index, position int, item models.RawPlaylistItem) (models.PlaylistTrack, error) {
	if item.Track == nil {
		return models.PlaylistTrack{}, &shared.InvalidTrackPayloadError{Offset: position}
	}
	pt, err := models.NewPlaylistTrack(index, item)
	if err != nil {
		return pt, err
	}
	return pt.At(position), nil
}
