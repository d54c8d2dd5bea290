package models

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/desertthunder/playdeck/internal/shared"
)

func sampleTrack() RawTrack {
	return RawTrack{
		ID:   "t1",
		Name: "Harvest Moon",
		Artists: []RawArtist{
			{Name: "Neil Young", URI: "spotify:artist:a1"},
			{Name: "Crazy Horse", URI: "spotify:artist:a2"},
		},
		Album: RawAlbum{
			Name:        "Harvest Moon",
			ReleaseDate: "1992-11-02",
			Images:      []RawImage{{URL: "https://img/large"}, {URL: "https://img/small"}},
		},
		DurationMS: 303000,
		URI:        "spotify:track:t1",
	}
}

func TestNewTrack(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		track, err := NewTrack(sampleTrack())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !reflect.DeepEqual(track.Artists, []string{"Neil Young", "Crazy Horse"}) {
			t.Errorf("unexpected artists %v", track.Artists)
		}
		if len(track.ArtistURIs) != len(track.Artists) || track.ArtistURIs[1] != "spotify:artist:a2" {
			t.Errorf("artist uris not index-aligned: %v", track.ArtistURIs)
		}
		if track.CoverURL != "https://img/small" {
			t.Errorf("expected last album image, got %s", track.CoverURL)
		}
		if track.Year != 1992 {
			t.Errorf("expected year 1992, got %d", track.Year)
		}
		if track.ArtistLine() != "Neil Young, Crazy Horse" {
			t.Errorf("unexpected artist line %q", track.ArtistLine())
		}
	})

	tc := []struct {
		name   string
		mutate func(*RawTrack)
		field  string
	}{
		{name: "missing uri", mutate: func(r *RawTrack) { r.URI = "" }, field: "uri"},
		{name: "missing name", mutate: func(r *RawTrack) { r.Name = "" }, field: "name"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			raw := sampleTrack()
			tt.mutate(&raw)

			_, err := NewTrack(raw)
			var mf *shared.MissingFieldError
			if !errors.As(err, &mf) {
				t.Fatalf("expected MissingFieldError, got %v", err)
			}
			if mf.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, mf.Field)
			}
		})
	}

	t.Run("negative duration", func(t *testing.T) {
		raw := sampleTrack()
		raw.DurationMS = -1
		if _, err := NewTrack(raw); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("bad release date", func(t *testing.T) {
		raw := sampleTrack()
		raw.Album.ReleaseDate = "n/a"
		track, err := NewTrack(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if track.Year != 0 {
			t.Errorf("expected unknown year, got %d", track.Year)
		}
	})
}

func TestNewPlaylistTrack(t *testing.T) {
	raw := sampleTrack()

	t.Run("wraps item", func(t *testing.T) {
		pt, err := NewPlaylistTrack(1, RawPlaylistItem{AddedAt: "2024-01-01T00:00:00Z", Track: &raw})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pt.Index != 1 || pt.AddedAt != "2024-01-01T00:00:00Z" || pt.IsLocal {
			t.Errorf("unexpected playlist track %+v", pt)
		}
	})

	t.Run("index zero is invalid", func(t *testing.T) {
		if _, err := NewPlaylistTrack(0, RawPlaylistItem{Track: &raw}); !errors.Is(err, shared.ErrInvalidIndex) {
			t.Errorf("expected ErrInvalidIndex, got %v", err)
		}
	})

	t.Run("null track", func(t *testing.T) {
		if _, err := NewPlaylistTrack(1, RawPlaylistItem{}); !errors.Is(err, shared.ErrInvalidTrackPayload) {
			t.Errorf("expected ErrInvalidTrackPayload, got %v", err)
		}
	})

	t.Run("local uri marks local", func(t *testing.T) {
		local := RawTrack{Name: "demo.mp3", URI: "spotify:local:::demo:120"}
		pt, err := NewPlaylistTrack(2, RawPlaylistItem{Track: &local})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !pt.IsLocal {
			t.Error("expected local flag from spotify:local uri")
		}
	})
}

func TestRenumber(t *testing.T) {
	tracks := []PlaylistTrack{{Index: 4}, {Index: 1}, {Index: 9}}
	Renumber(tracks)
	for i, pt := range tracks {
		if pt.Index != i+1 {
			t.Errorf("position %d has index %d", i, pt.Index)
		}
	}
}

func TestNewPlaylist(t *testing.T) {
	raw := RawPlaylist{
		ID:         "p1",
		Name:       "Road Trip",
		Images:     []RawImage{{URL: "https://img/cover"}},
		Owner:      RawUser{ID: "owner"},
		SnapshotID: "v1",
	}

	t.Run("valid", func(t *testing.T) {
		p, err := NewPlaylist(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.URI != "spotify:playlist:p1" {
			t.Errorf("expected derived uri, got %s", p.URI)
		}
		if p.Owner.DisplayName != "owner" {
			t.Errorf("expected display name to fall back to id, got %s", p.Owner.DisplayName)
		}
		if !p.Cacheable() {
			t.Error("expected playlist with a version token to be cacheable")
		}
	})

	t.Run("missing snapshot id", func(t *testing.T) {
		r := raw
		r.SnapshotID = ""
		if _, err := NewPlaylist(r); !errors.Is(err, shared.ErrMissingField) {
			t.Errorf("expected ErrMissingField, got %v", err)
		}
	})

	t.Run("missing owner id", func(t *testing.T) {
		r := raw
		r.Owner = RawUser{}
		if _, err := NewPlaylist(r); !errors.Is(err, shared.ErrMissingField) {
			t.Errorf("expected ErrMissingField, got %v", err)
		}
	})

	t.Run("liked songs are never cacheable", func(t *testing.T) {
		liked := LikedSongs(User{ID: "me"})
		if liked.Cacheable() {
			t.Error("liked songs must bypass the cache")
		}
		if liked.WithSnapshotID("x").Cacheable() {
			t.Error("liked songs must bypass the cache even with a token")
		}
	})

	t.Run("empty placeholder", func(t *testing.T) {
		if !EmptyPlaylist().IsEmpty() {
			t.Error("expected empty playlist")
		}
	})
}

func TestNewDevice(t *testing.T) {
	vol := 140
	d, err := NewDevice(RawDevice{ID: "d1", Name: "Kitchen", VolumePercent: &vol})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.VolumePercent != 100 {
		t.Errorf("expected volume clamped to 100, got %d", d.VolumePercent)
	}

	if _, err := NewDevice(RawDevice{Name: "No ID"}); !errors.Is(err, shared.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}

func TestRepeatMode(t *testing.T) {
	tc := []struct {
		in   string
		want RepeatMode
		next RepeatMode
	}{
		{in: "off", want: RepeatOff, next: RepeatContext},
		{in: "context", want: RepeatContext, next: RepeatTrack},
		{in: "track", want: RepeatTrack, next: RepeatOff},
		{in: "bogus", want: RepeatOff, next: RepeatContext},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseRepeatMode(tt.in)
			if got != tt.want {
				t.Errorf("ParseRepeatMode(%q) = %s, want %s", tt.in, got, tt.want)
			}
			if got.Next() != tt.next {
				t.Errorf("%s.Next() = %s, want %s", got, got.Next(), tt.next)
			}
		})
	}
}

func TestNewPlayback(t *testing.T) {
	t.Run("nil record", func(t *testing.T) {
		pb, err := NewPlayback(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pb.Track != nil || pb.Device != nil || pb.State != nil {
			t.Errorf("expected empty playback, got %+v", pb)
		}
	})

	t.Run("full record", func(t *testing.T) {
		item := sampleTrack()
		pb, err := NewPlayback(&RawPlayback{
			Device:       &RawDevice{ID: "d1", Name: "Desk"},
			ShuffleState: true,
			RepeatState:  "track",
			IsPlaying:    true,
			ProgressMS:   1200,
			Item:         &item,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pb.Track == nil || pb.Device == nil || pb.State == nil {
			t.Fatalf("expected all fields, got %+v", pb)
		}
		if !pb.State.Shuffle || pb.State.Repeat != RepeatTrack || pb.State.ProgressMS != 1200 {
			t.Errorf("unexpected state %+v", pb.State)
		}
	})
}

func TestSnapshotDraft(t *testing.T) {
	p := Playlist{ID: "p1", Name: "Focus", SnapshotID: "v1", Owner: User{ID: "me", DisplayName: "Me"}}
	draft := NewSnapshotDraft(p)

	if draft.Tracks == nil || len(draft.Tracks) != 0 {
		t.Fatalf("expected empty non-nil track list, got %v", draft.Tracks)
	}

	raw := sampleTrack()
	draft.Append(RawPlaylistItem{Track: &raw}, 0)
	if len(draft.Tracks) != 1 || draft.SnapshotID != "v1" || draft.Owner.Name != "Me" {
		t.Errorf("unexpected draft %+v", draft)
	}
	if draft.Positions != nil {
		t.Errorf("expected no positions while offsets match indices, got %v", draft.Positions)
	}

	t.Run("records positions once an item was skipped", func(t *testing.T) {
		draft.Append(RawPlaylistItem{Track: &raw}, 2)
		draft.Append(RawPlaylistItem{Track: &raw}, 3)
		if want := []int{0, 2, 3}; !slices.Equal(draft.Positions, want) {
			t.Errorf("Positions = %v, want %v", draft.Positions, want)
		}
		for i, want := range []int{0, 2, 3} {
			if got := draft.Position(i); got != want {
				t.Errorf("Position(%d) = %d, want %d", i, got, want)
			}
		}
	})

	t.Run("Position falls back to the index", func(t *testing.T) {
		s := &Snapshot{Tracks: []RawPlaylistItem{{Track: &raw}, {Track: &raw}}}
		if s.Position(1) != 1 {
			t.Errorf("Position(1) = %d, want 1", s.Position(1))
		}
	})
}
