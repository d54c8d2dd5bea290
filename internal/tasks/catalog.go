package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/sourcegraph/conc/iter"
)

const (
	ownerLookupWorkers = 4
	matchThreshold     = 0.85
)

// PlaylistCatalog holds the session's playlist collection.
//
// The remote collection is fetched once and replayed from memory until [PlaylistCatalog.Invalidate].
// Owner profiles are memoized for the catalog's lifetime. Display order is local to the session.
type PlaylistCatalog struct {
	remote services.RemoteLibrary
	logger *log.Logger

	mu        sync.Mutex
	loaded    bool
	playlists []models.Playlist
	owners    map[string]models.User
	me        *models.User
}

// NewPlaylistCatalog creates a catalog backed by remote. A nil logger discards output.
func NewPlaylistCatalog(remote services.RemoteLibrary, logger *log.Logger) *PlaylistCatalog {
	return &PlaylistCatalog{
		remote: remote,
		logger: loggerOrDiscard(logger, "catalog"),
		owners: make(map[string]models.User),
	}
}

// ListPlaylists returns the session's playlists in display order.
func (c *PlaylistCatalog) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	return c.ListPlaylistsWithProgress(ctx, nil)
}

// ListPlaylistsWithProgress is [PlaylistCatalog.ListPlaylists] reporting the initial fetch on progress.
func (c *PlaylistCatalog) ListPlaylistsWithProgress(ctx context.Context, progress chan<- ProgressUpdate) ([]models.Playlist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(ctx, progress); err != nil {
		return nil, err
	}
	return slices.Clone(c.playlists), nil
}

func (c *PlaylistCatalog) load(ctx context.Context, progress chan<- ProgressUpdate) error {
	if c.loaded {
		return nil
	}

	sendProgress(progress, fetchPlaylistsUpdate())
	raw, err := c.remote.FetchUserPlaylists(ctx)
	if err != nil {
		return shared.NewRemoteError("list playlists", err)
	}

	playlists := make([]models.Playlist, 0, len(raw))
	for _, r := range raw {
		p, err := models.NewPlaylist(r)
		if err != nil {
			c.logger.Warn("skipping malformed playlist", "id", r.ID, "error", err)
			continue
		}
		playlists = append(playlists, p)
	}

	if err := c.resolveOwners(ctx, playlists, progress); err != nil {
		return err
	}

	c.playlists = playlists
	c.loaded = true
	c.logger.Debug("loaded playlists", "count", len(playlists))
	return nil
}

// resolveOwners replaces each playlist's embedded owner with the full profile, fetching unseen owners concurrently.
func (c *PlaylistCatalog) resolveOwners(ctx context.Context, playlists []models.Playlist, progress chan<- ProgressUpdate) error {
	var pending []string
	seen := make(map[string]bool)
	for _, p := range playlists {
		id := p.Owner.ID
		if _, ok := c.owners[id]; ok || seen[id] {
			continue
		}
		seen[id] = true
		pending = append(pending, id)
	}

	if len(pending) > 0 {
		sendProgress(progress, resolveOwnersUpdate(len(pending)))

		mapper := iter.Mapper[string, models.RawUser]{MaxGoroutines: ownerLookupWorkers}
		profiles, err := mapper.MapErr(pending, func(id *string) (models.RawUser, error) {
			return c.remote.FetchUserProfile(ctx, *id)
		})
		if err != nil {
			return shared.NewRemoteError("resolve playlist owners", err)
		}

		for i, raw := range profiles {
			owner, err := models.NewUser(raw)
			if err != nil {
				c.logger.Warn("owner profile incomplete", "owner", pending[i], "error", err)
				continue
			}
			c.owners[pending[i]] = owner
		}
	}

	for i := range playlists {
		if owner, ok := c.owners[playlists[i].Owner.ID]; ok {
			playlists[i].Owner = owner
		}
	}
	return nil
}

// CurrentUser returns the authenticated user, fetched once per catalog.
func (c *PlaylistCatalog) CurrentUser(ctx context.Context) (models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentUser(ctx)
}

func (c *PlaylistCatalog) currentUser(ctx context.Context) (models.User, error) {
	if c.me != nil {
		return *c.me, nil
	}
	raw, err := c.remote.CurrentUser(ctx)
	if err != nil {
		return models.User{}, shared.NewRemoteError("current user", err)
	}
	me, err := models.NewUser(raw)
	if err != nil {
		return models.User{}, err
	}
	c.me = &me
	c.owners[me.ID] = me
	return me, nil
}

// LikedSongs returns the saved-tracks pseudo-playlist for the authenticated user.
func (c *PlaylistCatalog) LikedSongs(ctx context.Context) (models.Playlist, error) {
	me, err := c.CurrentUser(ctx)
	if err != nil {
		return models.Playlist{}, err
	}
	return models.LikedSongs(me), nil
}

// CreatePlaylist creates name remotely and places it first in the session order.
func (c *PlaylistCatalog) CreatePlaylist(ctx context.Context, name string) (models.Playlist, error) {
	if name == "" {
		return models.Playlist{}, fmt.Errorf("%w: playlist name is required", shared.ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	me, err := c.currentUser(ctx)
	if err != nil {
		return models.Playlist{}, err
	}

	raw, err := c.remote.CreatePlaylist(ctx, me.ID, name)
	if err != nil {
		return models.Playlist{}, shared.NewRemoteError("create playlist", err)
	}
	p, err := models.NewPlaylist(raw)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("created playlist: %w", err)
	}
	p.Owner = me

	if c.loaded {
		c.playlists = slices.Insert(c.playlists, 0, p)
	}
	c.logger.Info("created playlist", "id", p.ID, "name", p.Name)
	return p, nil
}

// DeletePlaylist unfollows p remotely and drops it from the session order.
func (c *PlaylistCatalog) DeletePlaylist(ctx context.Context, p models.Playlist) error {
	if p.Liked || p.IsEmpty() {
		return fmt.Errorf("%w: cannot delete %q", shared.ErrInvalidArgument, p.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	me, err := c.currentUser(ctx)
	if err != nil {
		return err
	}
	if err := c.remote.DeletePlaylist(ctx, me.ID, p.ID); err != nil {
		return shared.NewRemoteError("delete playlist", err)
	}

	c.playlists = slices.DeleteFunc(c.playlists, func(q models.Playlist) bool { return q.ID == p.ID })
	c.logger.Info("deleted playlist", "id", p.ID, "name", p.Name)
	return nil
}

// MovePlaylist reorders the session list with the same convention as [Move]. Nothing is sent remotely.
func (c *PlaylistCatalog) MovePlaylist(ctx context.Context, from, to int) ([]models.Playlist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(ctx, nil); err != nil {
		return nil, err
	}
	moved, err := Move(c.playlists, from, to)
	if err != nil {
		return nil, err
	}
	c.playlists = moved
	return slices.Clone(moved), nil
}

// FindPlaylist resolves query as a playlist id, then as the closest playlist name.
//
// The query "liked" (or the Liked Songs name) selects the saved-tracks pseudo-playlist.
func (c *PlaylistCatalog) FindPlaylist(ctx context.Context, query string) (models.Playlist, error) {
	if query == models.LikedSongsID || shared.NormalizeName(query) == shared.NormalizeName(models.LikedSongsName) {
		return c.LikedSongs(ctx)
	}

	playlists, err := c.ListPlaylists(ctx)
	if err != nil {
		return models.Playlist{}, err
	}

	names := make([]string, len(playlists))
	for i, p := range playlists {
		if p.ID == query {
			return p, nil
		}
		names[i] = p.Name
	}

	if i := shared.BestMatch(query, names, matchThreshold); i >= 0 {
		return playlists[i], nil
	}
	return models.Playlist{}, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, query)
}

// UpdateSnapshot records a new version token for playlistID and returns the updated playlist.
func (c *PlaylistCatalog) UpdateSnapshot(playlistID, token string) (models.Playlist, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.playlists {
		if c.playlists[i].ID == playlistID {
			c.playlists[i] = c.playlists[i].WithSnapshotID(token)
			return c.playlists[i], true
		}
	}
	return models.Playlist{}, false
}

// Invalidate drops the memoized collection; the next listing fetches it again. Owner profiles are kept.
func (c *PlaylistCatalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.playlists = nil
}

// Refresh invalidates and re-fetches the collection.
func (c *PlaylistCatalog) Refresh(ctx context.Context) ([]models.Playlist, error) {
	c.Invalidate()
	return c.ListPlaylists(ctx)
}
