// package services defines interface RemoteLibrary for interacting with a music service
package services

import (
	"context"

	"github.com/desertthunder/playdeck/internal/models"
)

// Page is one page of playlist (or saved-track) items.
type Page struct {
	Items []models.RawPlaylistItem `json:"items"`
	Next  string                   `json:"next"` // handle for the following page; empty on the last page
	Total int                      `json:"total"`
}

// HasNext reports whether a further page exists.
func (p *Page) HasNext() bool { return p != nil && p.Next != "" }

// Removal identifies occurrences of a track to remove. Positions are zero-based.
type Removal struct {
	URI       string
	Positions []int
}

// RemoteLibrary is the remote music service as seen by the playlist pipeline.
type RemoteLibrary interface {
	// CurrentUser returns the authenticated user's profile.
	CurrentUser(ctx context.Context) (models.RawUser, error)

	// FetchUserPlaylists returns every playlist in the user's collection, in service order.
	FetchUserPlaylists(ctx context.Context) ([]models.RawPlaylist, error)

	// FetchUserProfile returns the public profile of userID.
	FetchUserProfile(ctx context.Context, userID string) (models.RawUser, error)

	// FetchPlaylistTracksPage returns the first page of a playlist's items.
	FetchPlaylistTracksPage(ctx context.Context, playlistID string) (*Page, error)

	// FetchLikedTracksPage returns the first page of the user's saved tracks.
	FetchLikedTracksPage(ctx context.Context) (*Page, error)

	// FetchNextPage follows page's Next handle.
	FetchNextPage(ctx context.Context, page *Page) (*Page, error)

	// FetchCurrentPlayback returns nil when nothing is playing on any device.
	FetchCurrentPlayback(ctx context.Context) (*models.RawPlayback, error)

	FetchDevices(ctx context.Context) ([]models.RawDevice, error)

	// ReorderPlaylist moves the item at from to just before to (zero-based, pre-move positions)
	// and returns the new version token.
	ReorderPlaylist(ctx context.Context, playlistID string, from, to int, snapshotID string) (string, error)

	// AddTracks appends tracks and returns the new version token.
	AddTracks(ctx context.Context, playlistID string, uris []string) (string, error)

	// RemoveTracks removes the given occurrences and returns the new version token.
	RemoveTracks(ctx context.Context, playlistID string, removals []Removal, snapshotID string) (string, error)

	CreatePlaylist(ctx context.Context, ownerID, name string) (models.RawPlaylist, error)

	DeletePlaylist(ctx context.Context, ownerID, playlistID string) error

	Transport
}

// Transport relays playback commands to the active device.
type Transport interface {
	SetShuffle(ctx context.Context, on bool) error
	PreviousTrack(ctx context.Context) error
	NextTrack(ctx context.Context) error
	TogglePlayPause(ctx context.Context, play bool) error
	SetVolume(ctx context.Context, percent int) error

	// PlayTrack plays trackURI within contextURI, or on its own when contextURI is empty.
	PlayTrack(ctx context.Context, contextURI, trackURI string) error

	SetRepeat(ctx context.Context, mode models.RepeatMode) error

	// CycleRepeatMode advances off, context, track, off from the current remote state and returns the new mode.
	CycleRepeatMode(ctx context.Context) (models.RepeatMode, error)
}
