package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/playdeck/internal/formatter"
	"github.com/desertthunder/playdeck/internal/models"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	if i.playlist.Liked {
		return "Your saved tracks"
	}
	return fmt.Sprintf("by %s", i.playlist.Owner.DisplayName)
}

// trackItem wraps [models.PlaylistTrack] to implement [list.Item].
type trackItem struct {
	track models.PlaylistTrack
}

func (i trackItem) FilterValue() string { return i.track.Track.Title }
func (i trackItem) Title() string {
	return fmt.Sprintf("%d. %s", i.track.Index, i.track.Track.Title)
}
func (i trackItem) Description() string {
	desc := i.track.Track.ArtistLine()
	if i.track.Track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Track.Album)
	}
	desc = fmt.Sprintf("%s • %s", desc, formatter.FormatDuration(i.track.Track.DurationMS))
	if i.track.IsLocal {
		desc += " • local"
	}
	return desc
}

func playlistItems(playlists []models.Playlist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, p := range playlists {
		items[i] = playlistItem{playlist: p}
	}
	return items
}

func trackItems(tracks []models.PlaylistTrack) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, pt := range tracks {
		items[i] = trackItem{track: pt}
	}
	return items
}
