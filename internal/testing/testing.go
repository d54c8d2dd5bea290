// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/services"
)

// FakeLibrary is an in-memory [services.RemoteLibrary] that counts every call.
//
// Playlist items are served in pages of PageSize. Page handles have the form "<playlist>@<offset>".
type FakeLibrary struct {
	mu sync.Mutex

	Me        models.RawUser
	Profiles  map[string]models.RawUser
	Playlists []models.RawPlaylist
	Items     map[string][]models.RawPlaylistItem
	Liked     []models.RawPlaylistItem
	PageSize  int
	Playback  *models.RawPlayback
	Devices   []models.RawDevice
	Errors    map[string]error // op name -> error returned by that op
	Commands  []string         // transport commands in call order

	calls   map[string]int
	version int
}

// NewFakeLibrary returns an empty library owned by user "me".
func NewFakeLibrary() *FakeLibrary {
	return &FakeLibrary{
		Me:       models.RawUser{ID: "me", DisplayName: "Me", URI: "spotify:user:me"},
		Profiles: map[string]models.RawUser{},
		Items:    map[string][]models.RawPlaylistItem{},
		PageSize: 2,
		Errors:   map[string]error{},
		calls:    map[string]int{},
	}
}

// Track builds a raw playlist item for a catalog track named name.
func Track(name string) models.RawPlaylistItem {
	return models.RawPlaylistItem{
		AddedAt: "2024-01-01T00:00:00Z",
		Track: &models.RawTrack{
			ID:         name,
			Name:       name,
			URI:        "spotify:track:" + name,
			DurationMS: 180000,
			Artists:    []models.RawArtist{{Name: "Artist " + name, URI: "spotify:artist:" + name}},
			Album:      models.RawAlbum{Name: "Album " + name, ReleaseDate: "2020-01-01"},
		},
	}
}

// NullTrack is an item whose track payload is missing.
func NullTrack() models.RawPlaylistItem {
	return models.RawPlaylistItem{AddedAt: "2024-01-01T00:00:00Z"}
}

// AddPlaylist registers a playlist owned by ownerID with the given items.
func (f *FakeLibrary) AddPlaylist(id, name, snapshotID, ownerID string, items ...models.RawPlaylistItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Playlists = append(f.Playlists, models.RawPlaylist{
		ID:         id,
		Name:       name,
		SnapshotID: snapshotID,
		URI:        "spotify:playlist:" + id,
		Owner:      models.RawUser{ID: ownerID},
	})
	f.Items[id] = items
	if _, ok := f.Profiles[ownerID]; !ok {
		f.Profiles[ownerID] = models.RawUser{
			ID:          ownerID,
			DisplayName: strings.ToUpper(ownerID),
			Images:      []models.RawImage{{URL: "https://img/" + ownerID}},
		}
	}
}

// Calls returns how many times op was invoked.
func (f *FakeLibrary) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of calls across every op.
func (f *FakeLibrary) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// ResetCalls zeroes the call counters.
func (f *FakeLibrary) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = map[string]int{}
}

// SetError makes op fail with err until cleared with a nil err.
func (f *FakeLibrary) SetError(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Errors, op)
		return
	}
	f.Errors[op] = err
}

// ItemURIs returns the track URIs of playlistID in remote order.
func (f *FakeLibrary) ItemURIs(playlistID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var uris []string
	for _, item := range f.Items[playlistID] {
		if item.Track != nil {
			uris = append(uris, item.Track.URI)
		}
	}
	return uris
}

// enter records a call to op and returns its configured error. Callers hold f.mu.
func (f *FakeLibrary) enter(op string) error {
	f.calls[op]++
	return f.Errors[op]
}

func (f *FakeLibrary) nextToken() string {
	f.version++
	return "fake-v" + strconv.Itoa(f.version)
}

func (f *FakeLibrary) CurrentUser(ctx context.Context) (models.RawUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CurrentUser"); err != nil {
		return models.RawUser{}, err
	}
	return f.Me, nil
}

func (f *FakeLibrary) FetchUserPlaylists(ctx context.Context) ([]models.RawPlaylist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FetchUserPlaylists"); err != nil {
		return nil, err
	}
	return append([]models.RawPlaylist(nil), f.Playlists...), nil
}

func (f *FakeLibrary) FetchUserProfile(ctx context.Context, userID string) (models.RawUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FetchUserProfile"); err != nil {
		return models.RawUser{}, err
	}
	profile, ok := f.Profiles[userID]
	if !ok {
		return models.RawUser{}, fmt.Errorf("no profile for %s", userID)
	}
	return profile, nil
}

func (f *FakeLibrary) FetchPlaylistTracksPage(ctx context.Context, playlistID string) (*services.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FetchPlaylistTracksPage"); err != nil {
		return nil, err
	}
	items, ok := f.Items[playlistID]
	if !ok {
		return nil, fmt.Errorf("playlist %s not found", playlistID)
	}
	return f.page(playlistID, items, 0), nil
}

func (f *FakeLibrary) FetchLikedTracksPage(ctx context.Context) (*services.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FetchLikedTracksPage"); err != nil {
		return nil, err
	}
	return f.page(models.LikedSongsID, f.Liked, 0), nil
}

func (f *FakeLibrary) FetchNextPage(ctx context.Context, page *services.Page) (*services.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FetchNextPage"); err != nil {
		return nil, err
	}

	id, rawOffset, ok := strings.Cut(page.Next, "@")
	if !ok {
		return nil, fmt.Errorf("bad page handle %q", page.Next)
	}
	offset, err := strconv.Atoi(rawOffset)
	if err != nil {
		return nil, fmt.Errorf("bad page handle %q: %w", page.Next, err)
	}

	items := f.Items[id]
	if id == models.LikedSongsID {
		items = f.Liked
	}
	return f.page(id, items, offset), nil
}

func (f *FakeLibrary) page(id string, items []models.RawPlaylistItem, offset int) *services.Page {
	size := max(f.PageSize, 1)
	end := min(offset+size, len(items))
	p := &services.Page{Items: append([]models.RawPlaylistItem(nil), items[offset:end]...), Total: len(items)}
	if end < len(items) {
		p.Next = fmt.Sprintf("%s@%d", id, end)
	}
	return p
}

func (f *FakeLibrary) FetchCurrentPlayback(ctx context.Context) (*models.RawPlayback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FetchCurrentPlayback"); err != nil {
		return nil, err
	}
	if f.Playback == nil {
		return nil, nil
	}
	pb := *f.Playback
	return &pb, nil
}

func (f *FakeLibrary) FetchDevices(ctx context.Context) ([]models.RawDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FetchDevices"); err != nil {
		return nil, err
	}
	return append([]models.RawDevice(nil), f.Devices...), nil
}

// ReorderPlaylist applies the range-move convention to the stored items and issues a new token.
func (f *FakeLibrary) ReorderPlaylist(ctx context.Context, playlistID string, from, to int, snapshotID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ReorderPlaylist"); err != nil {
		return "", err
	}

	items := f.Items[playlistID]
	if from < 0 || from >= len(items) || to < 0 || to > len(items) {
		return "", fmt.Errorf("range out of bounds: %d -> %d", from, to)
	}
	moved := items[from]
	rest := append(append([]models.RawPlaylistItem(nil), items[:from]...), items[from+1:]...)
	if to > from {
		to--
	}
	out := append(append(append([]models.RawPlaylistItem(nil), rest[:to]...), moved), rest[to:]...)
	f.Items[playlistID] = out
	return f.bump(playlistID), nil
}

func (f *FakeLibrary) AddTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AddTracks"); err != nil {
		return "", err
	}
	for _, uri := range uris {
		f.Items[playlistID] = append(f.Items[playlistID], Track(strings.TrimPrefix(uri, "spotify:track:")))
	}
	return f.bump(playlistID), nil
}

func (f *FakeLibrary) RemoveTracks(ctx context.Context, playlistID string, removals []services.Removal, snapshotID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RemoveTracks"); err != nil {
		return "", err
	}

	items := f.Items[playlistID]
	drop := map[int]bool{}
	for _, r := range removals {
		for _, pos := range r.Positions {
			if pos < 0 || pos >= len(items) || items[pos].Track == nil || items[pos].Track.URI != r.URI {
				return "", fmt.Errorf("no %s at position %d", r.URI, pos)
			}
			drop[pos] = true
		}
	}
	var kept []models.RawPlaylistItem
	for i, item := range items {
		if !drop[i] {
			kept = append(kept, item)
		}
	}
	f.Items[playlistID] = kept
	return f.bump(playlistID), nil
}

func (f *FakeLibrary) bump(playlistID string) string {
	token := f.nextToken()
	for i := range f.Playlists {
		if f.Playlists[i].ID == playlistID {
			f.Playlists[i].SnapshotID = token
		}
	}
	return token
}

func (f *FakeLibrary) CreatePlaylist(ctx context.Context, ownerID, name string) (models.RawPlaylist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreatePlaylist"); err != nil {
		return models.RawPlaylist{}, err
	}
	f.version++
	id := "new" + strconv.Itoa(f.version)
	p := models.RawPlaylist{
		ID:         id,
		Name:       name,
		SnapshotID: "fake-v" + strconv.Itoa(f.version),
		URI:        "spotify:playlist:" + id,
		Owner:      models.RawUser{ID: ownerID},
	}
	f.Playlists = append([]models.RawPlaylist{p}, f.Playlists...)
	f.Items[id] = nil
	return p, nil
}

func (f *FakeLibrary) DeletePlaylist(ctx context.Context, ownerID, playlistID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeletePlaylist"); err != nil {
		return err
	}
	for i, p := range f.Playlists {
		if p.ID == playlistID {
			f.Playlists = append(f.Playlists[:i], f.Playlists[i+1:]...)
			delete(f.Items, playlistID)
			return nil
		}
	}
	return fmt.Errorf("playlist %s not found", playlistID)
}

func (f *FakeLibrary) command(op, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op); err != nil {
		return err
	}
	f.Commands = append(f.Commands, strings.TrimSpace(op+" "+detail))
	return nil
}

func (f *FakeLibrary) SetShuffle(ctx context.Context, on bool) error {
	return f.command("SetShuffle", strconv.FormatBool(on))
}

func (f *FakeLibrary) PreviousTrack(ctx context.Context) error { return f.command("PreviousTrack", "") }

func (f *FakeLibrary) NextTrack(ctx context.Context) error { return f.command("NextTrack", "") }

func (f *FakeLibrary) TogglePlayPause(ctx context.Context, play bool) error {
	return f.command("TogglePlayPause", strconv.FormatBool(play))
}

func (f *FakeLibrary) SetVolume(ctx context.Context, percent int) error {
	return f.command("SetVolume", strconv.Itoa(percent))
}

func (f *FakeLibrary) PlayTrack(ctx context.Context, contextURI, trackURI string) error {
	return f.command("PlayTrack", strings.TrimSpace(contextURI+" "+trackURI))
}

func (f *FakeLibrary) SetRepeat(ctx context.Context, mode models.RepeatMode) error {
	return f.command("SetRepeat", string(mode))
}

func (f *FakeLibrary) CycleRepeatMode(ctx context.Context) (models.RepeatMode, error) {
	f.mu.Lock()
	current := models.RepeatOff
	if f.Playback != nil {
		current = models.ParseRepeatMode(f.Playback.RepeatState)
	}
	f.mu.Unlock()

	next := current.Next()
	if err := f.command("CycleRepeatMode", string(next)); err != nil {
		return "", err
	}
	return next, nil
}

var _ services.RemoteLibrary = (*FakeLibrary)(nil)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
