// package models defines the data model for playlists, tracks and playback
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/playdeck/internal/shared"
)

const (
	LikedSongsID   = "liked"
	LikedSongsName = "Liked Songs"
	localURIPrefix = "spotify:local:"
)

// RawImage is an image reference as returned by the remote service.
type RawImage struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

// RawUser is a public user profile.
type RawUser struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	URI         string     `json:"uri"`
	Images      []RawImage `json:"images,omitempty"`
}

type RawArtist struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type RawAlbum struct {
	Name        string     `json:"name"`
	ReleaseDate string     `json:"release_date,omitempty"`
	Images      []RawImage `json:"images,omitempty"`
}

// RawTrack is a full track object.
type RawTrack struct {
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name"`
	Artists    []RawArtist `json:"artists"`
	Album      RawAlbum    `json:"album"`
	DurationMS int         `json:"duration_ms"`
	URI        string      `json:"uri"`
}

// RawPlaylistItem is one entry of a playlist or saved-tracks page. Track is nil for removed tracks.
type RawPlaylistItem struct {
	AddedAt string    `json:"added_at"`
	IsLocal bool      `json:"is_local"`
	Track   *RawTrack `json:"track"`
}

// RawPlaylist is a simplified playlist object from the user's playlist collection.
type RawPlaylist struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Images     []RawImage `json:"images,omitempty"`
	Owner      RawUser    `json:"owner"`
	SnapshotID string     `json:"snapshot_id"`
	URI        string     `json:"uri"`
}

type RawDevice struct {
	ID               string `json:"id"`
	IsActive         bool   `json:"is_active"`
	IsPrivateSession bool   `json:"is_private_session"`
	IsRestricted     bool   `json:"is_restricted"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	VolumePercent    *int   `json:"volume_percent"`
}

// RawPlayback is the current playback record. Item is nil when nothing is loaded.
type RawPlayback struct {
	Device       *RawDevice `json:"device"`
	ShuffleState bool       `json:"shuffle_state"`
	RepeatState  string     `json:"repeat_state"`
	IsPlaying    bool       `json:"is_playing"`
	ProgressMS   int        `json:"progress_ms"`
	Item         *RawTrack  `json:"item"`
}

// User is an authenticated user or playlist owner.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ImageURL    string `json:"image_url,omitempty"`
	URI         string `json:"uri"`
}

// NewUser builds a [User]. The display name falls back to the id.
func NewUser(raw RawUser) (User, error) {
	if raw.ID == "" {
		return User{}, &shared.MissingFieldError{Record: "user", Field: "id"}
	}
	name := raw.DisplayName
	if name == "" {
		name = raw.ID
	}
	uri := raw.URI
	if uri == "" {
		uri = "spotify:user:" + raw.ID
	}
	return User{ID: raw.ID, DisplayName: name, ImageURL: firstImage(raw.Images), URI: uri}, nil
}

// Device is a playback target on the user's account. Devices compare and sort by ID.
type Device struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	IsActive         bool   `json:"is_active"`
	IsPrivateSession bool   `json:"is_private_session"`
	IsRestricted     bool   `json:"is_restricted"`
	VolumePercent    int    `json:"volume_percent"`
}

func NewDevice(raw RawDevice) (Device, error) {
	if raw.ID == "" {
		return Device{}, &shared.MissingFieldError{Record: "device", Field: "id"}
	}
	if raw.Name == "" {
		return Device{}, &shared.MissingFieldError{Record: "device", Field: "name"}
	}
	volume := 0
	if raw.VolumePercent != nil {
		volume = min(max(*raw.VolumePercent, 0), 100)
	}
	return Device{
		ID:               raw.ID,
		Name:             raw.Name,
		Type:             raw.Type,
		IsActive:         raw.IsActive,
		IsPrivateSession: raw.IsPrivateSession,
		IsRestricted:     raw.IsRestricted,
		VolumePercent:    volume,
	}, nil
}

// Playlist is a playlist in the user's collection, or the Liked Songs pseudo-playlist.
type Playlist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ImageURL   string `json:"image_url,omitempty"`
	Owner      User   `json:"owner"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	URI        string `json:"uri,omitempty"`
	Liked      bool   `json:"liked,omitempty"`
}

// NewPlaylist builds a [Playlist] from a raw record. The owner is taken from the embedded owner object.
func NewPlaylist(raw RawPlaylist) (Playlist, error) {
	if raw.ID == "" {
		return Playlist{}, &shared.MissingFieldError{Record: "playlist", Field: "id"}
	}
	if raw.SnapshotID == "" {
		return Playlist{}, &shared.MissingFieldError{Record: "playlist", Field: "snapshot_id"}
	}
	owner, err := NewUser(raw.Owner)
	if err != nil {
		return Playlist{}, fmt.Errorf("playlist %s owner: %w", raw.ID, err)
	}
	uri := raw.URI
	if uri == "" {
		uri = "spotify:playlist:" + raw.ID
	}
	return Playlist{
		ID:         raw.ID,
		Name:       raw.Name,
		ImageURL:   firstImage(raw.Images),
		Owner:      owner,
		SnapshotID: raw.SnapshotID,
		URI:        uri,
	}, nil
}

// LikedSongs returns the saved-tracks pseudo-playlist for owner. It has no version token.
func LikedSongs(owner User) Playlist {
	return Playlist{ID: LikedSongsID, Name: LikedSongsName, Owner: owner, Liked: true}
}

// EmptyPlaylist is the "nothing selected" placeholder.
func EmptyPlaylist() Playlist { return Playlist{} }

func (p Playlist) IsEmpty() bool { return p.ID == "" }

// Cacheable reports whether tracks for p may be read from or written to the snapshot cache.
func (p Playlist) Cacheable() bool { return !p.Liked && p.SnapshotID != "" }

// WithSnapshotID returns a copy of p carrying a new version token.
func (p Playlist) WithSnapshotID(token string) Playlist {
	p.SnapshotID = token
	return p
}

// Track is an immutable catalog track.
type Track struct {
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	ArtistURIs []string `json:"artist_uris"`
	Album      string   `json:"album"`
	CoverURL   string   `json:"cover_url,omitempty"`
	DurationMS int      `json:"duration_ms"`
	URI        string   `json:"uri"`
	Year       int      `json:"year,omitempty"`
}

// NewTrack builds a [Track]. Artist names and URIs stay index-aligned.
//
// The cover is the last (smallest) album image.
func NewTrack(raw RawTrack) (Track, error) {
	if raw.URI == "" {
		return Track{}, &shared.MissingFieldError{Record: "track", Field: "uri"}
	}
	if raw.Name == "" {
		return Track{}, &shared.MissingFieldError{Record: "track", Field: "name"}
	}
	if raw.DurationMS < 0 {
		return Track{}, fmt.Errorf("%w: track %s has negative duration", shared.ErrInvalidInput, raw.URI)
	}

	artists := make([]string, 0, len(raw.Artists))
	uris := make([]string, 0, len(raw.Artists))
	for _, a := range raw.Artists {
		artists = append(artists, a.Name)
		uris = append(uris, a.URI)
	}

	var cover string
	if n := len(raw.Album.Images); n > 0 {
		cover = raw.Album.Images[n-1].URL
	}

	return Track{
		Title:      raw.Name,
		Artists:    artists,
		ArtistURIs: uris,
		Album:      raw.Album.Name,
		CoverURL:   cover,
		DurationMS: raw.DurationMS,
		URI:        raw.URI,
		Year:       releaseYear(raw.Album.ReleaseDate),
	}, nil
}

func (t Track) ArtistLine() string { return strings.Join(t.Artists, ", ") }

func (t Track) Duration() time.Duration { return time.Duration(t.DurationMS) * time.Millisecond }

// IsLocal reports whether the track is a local file rather than a catalog item.
func (t Track) IsLocal() bool { return IsLocalURI(t.URI) }

func IsLocalURI(uri string) bool { return strings.HasPrefix(uri, localURIPrefix) }

// PlaylistTrack is a [Track] at a 1-based position within a playlist.
//
// Index counts only usable tracks. Position is the zero-based offset in the remote listing, which also counts
// items without a track payload; mutations must address the remote listing by Position.
type PlaylistTrack struct {
	Index    int    `json:"index"`
	Position int    `json:"position"`
	AddedAt  string `json:"added_at"`
	IsLocal  bool   `json:"is_local"`
	Track    Track  `json:"track"`
}

// NewPlaylistTrack wraps raw at position index, assuming no earlier item was skipped.
// Use [PlaylistTrack.At] to record the remote offset when it differs.
func NewPlaylistTrack(index int, raw RawPlaylistItem) (PlaylistTrack, error) {
	if index < 1 {
		return PlaylistTrack{}, fmt.Errorf("%w: %d", shared.ErrInvalidIndex, index)
	}
	if raw.Track == nil {
		return PlaylistTrack{}, fmt.Errorf("position %d: %w", index, shared.ErrInvalidTrackPayload)
	}
	track, err := NewTrack(*raw.Track)
	if err != nil {
		return PlaylistTrack{}, err
	}
	return PlaylistTrack{
		Index:    index,
		Position: index - 1,
		AddedAt:  raw.AddedAt,
		IsLocal:  raw.IsLocal || track.IsLocal(),
		Track:    track,
	}, nil
}

// At returns a copy of pt located at a zero-based remote offset.
func (pt PlaylistTrack) At(position int) PlaylistTrack {
	pt.Position = position
	return pt
}

// Renumber rewrites indices so they run 1..len(tracks) in slice order.
func Renumber(tracks []PlaylistTrack) {
	for i := range tracks {
		tracks[i].Index = i + 1
	}
}

// RepeatMode is the player's repeat setting.
type RepeatMode string

const (
	RepeatOff     RepeatMode = "off"
	RepeatContext RepeatMode = "context"
	RepeatTrack   RepeatMode = "track"
)

// ParseRepeatMode maps the remote repeat_state onto a [RepeatMode]; unknown values are off.
func ParseRepeatMode(s string) RepeatMode {
	switch RepeatMode(s) {
	case RepeatContext, RepeatTrack:
		return RepeatMode(s)
	default:
		return RepeatOff
	}
}

// Next cycles off, context, track, off.
func (r RepeatMode) Next() RepeatMode {
	switch r {
	case RepeatOff:
		return RepeatContext
	case RepeatContext:
		return RepeatTrack
	default:
		return RepeatOff
	}
}

// PlaybackState is replaced wholesale on every poll.
type PlaybackState struct {
	Shuffle    bool       `json:"shuffle"`
	Playing    bool       `json:"playing"`
	Repeat     RepeatMode `json:"repeat"`
	ProgressMS int        `json:"progress_ms"`
}

// Playback is one poll result. Any field may be nil.
type Playback struct {
	Track  *Track         `json:"track,omitempty"`
	Device *Device        `json:"device,omitempty"`
	State  *PlaybackState `json:"state,omitempty"`
}

// NewPlayback converts a raw playback record. A nil record yields an empty [Playback].
func NewPlayback(raw *RawPlayback) (Playback, error) {
	var pb Playback
	if raw == nil {
		return pb, nil
	}
	if raw.Device != nil {
		d, err := NewDevice(*raw.Device)
		if err != nil {
			return Playback{}, err
		}
		pb.Device = &d
	}
	if raw.Item != nil {
		t, err := NewTrack(*raw.Item)
		if err != nil {
			return Playback{}, err
		}
		pb.Track = &t
	}
	pb.State = &PlaybackState{
		Shuffle:    raw.ShuffleState,
		Playing:    raw.IsPlaying,
		Repeat:     ParseRepeatMode(raw.RepeatState),
		ProgressMS: max(raw.ProgressMS, 0),
	}
	return pb, nil
}

// SnapshotOwner is the denormalized owner stored with a [Snapshot].
type SnapshotOwner struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// Snapshot is the persisted, complete track listing of a playlist at one version token.
type Snapshot struct {
	PlaylistID string            `json:"id"`
	Name       string            `json:"name"`
	Owner      SnapshotOwner     `json:"owner"`
	ImageURL   string            `json:"image,omitempty"`
	SnapshotID string            `json:"snapshot_id"`
	Tracks     []RawPlaylistItem `json:"tracks"`
	// Positions holds the remote offset of each entry in Tracks. It stays nil while every offset equals the
	// slice index, which keeps payloads without gaps unchanged.
	Positions []int `json:"positions,omitempty"`
}

// NewSnapshotDraft seeds an empty snapshot with p's display metadata.
func NewSnapshotDraft(p Playlist) *Snapshot {
	return &Snapshot{
		PlaylistID: p.ID,
		Name:       p.Name,
		Owner:      SnapshotOwner{Name: p.Owner.DisplayName, ImageURL: p.Owner.ImageURL},
		ImageURL:   p.ImageURL,
		SnapshotID: p.SnapshotID,
		Tracks:     []RawPlaylistItem{},
	}
}

// Append records item found at a zero-based remote offset.
func (s *Snapshot) Append(item RawPlaylistItem, position int) {
	if s.Positions == nil && position != len(s.Tracks) {
		s.Positions = make([]int, len(s.Tracks), len(s.Tracks)+1)
		for i := range s.Positions {
			s.Positions[i] = i
		}
	}
	if s.Positions != nil {
		s.Positions = append(s.Positions, position)
	}
	s.Tracks = append(s.Tracks, item)
}

// Position returns the remote offset of Tracks[i].
func (s *Snapshot) Position(i int) int {
	if i < len(s.Positions) {
		return s.Positions[i]
	}
	return i
}

// PlaybackEntry is a track change recorded by the playback worker.
type PlaybackEntry struct {
	ID         string    `json:"id"`
	TrackURI   string    `json:"track_uri"`
	Title      string    `json:"title"`
	DeviceID   string    `json:"device_id,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

func firstImage(images []RawImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
