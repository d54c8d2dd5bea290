package tasks

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
	tt "github.com/desertthunder/playdeck/internal/testing"
)

func newFiveTrackLibrary() *tt.FakeLibrary {
	lib := tt.NewFakeLibrary()
	lib.AddPlaylist("p1", "Five", "v1", "me",
		tt.Track("a"), tt.Track("b"), tt.Track("c"), tt.Track("d"), tt.Track("e"),
	)
	return lib
}

func uris(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "spotify:track:" + n
	}
	return out
}

func TestMove(t *testing.T) {
	base := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name     string
		from, to int
		want     []string
		wantErr  bool
	}{
		{name: "back to front", from: 3, to: 0, want: []string{"d", "a", "b", "c", "e"}},
		{name: "front to before last", from: 0, to: 4, want: []string{"b", "c", "d", "a", "e"}},
		{name: "front to end", from: 0, to: 5, want: []string{"b", "c", "d", "e", "a"}},
		{name: "down one", from: 1, to: 3, want: []string{"a", "c", "b", "d", "e"}},
		{name: "onto itself", from: 2, to: 2, want: base},
		{name: "just after itself", from: 2, to: 3, want: base},
		{name: "negative from", from: -1, to: 0, wantErr: true},
		{name: "from past end", from: 5, to: 0, wantErr: true},
		{name: "to past end", from: 0, to: 6, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Move(base, tc.from, tc.to)
			if tc.wantErr {
				if !errors.Is(err, shared.ErrInvalidIndex) {
					t.Errorf("error = %v, want ErrInvalidIndex", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Move() error = %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Move(%d, %d) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
			if !reflect.DeepEqual(base, []string{"a", "b", "c", "d", "e"}) {
				t.Errorf("input mutated: %v", base)
			}
		})
	}
}

func TestMoveTracks(t *testing.T) {
	var tracks []models.PlaylistTrack
	for i, name := range []string{"a", "b", "c"} {
		pt, err := models.NewPlaylistTrack(i+1, tt.Track(name))
		if err != nil {
			t.Fatalf("NewPlaylistTrack() error = %v", err)
		}
		tracks = append(tracks, pt)
	}

	moved, err := MoveTracks(tracks, 2, 0)
	if err != nil {
		t.Fatalf("MoveTracks() error = %v", err)
	}
	if got := titles(moved); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Errorf("titles = %v", got)
	}
	if got := indices(moved); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("indices = %v, want [1 2 3]", got)
	}
	if tracks[0].Track.Title != "a" || tracks[0].Index != 1 {
		t.Errorf("input mutated: %+v", tracks[0])
	}
}

func TestReorderCoordinator(t *testing.T) {
	ctx := context.Background()

	t.Run("Reorder", func(t *testing.T) {
		t.Run("round trip with the range-move convention", func(t *testing.T) {
			lib := newFiveTrackLibrary()
			r := NewReorderCoordinator(lib, nil, nil, nil)
			p := mustPlaylist(t, lib, "p1")

			p, err := r.Reorder(ctx, p, 3, 0)
			if err != nil {
				t.Fatalf("Reorder(3, 0) error = %v", err)
			}
			if got := lib.ItemURIs("p1"); !reflect.DeepEqual(got, uris("d", "a", "b", "c", "e")) {
				t.Fatalf("after Reorder(3, 0) = %v", got)
			}

			t.Run("moving back to 3 does not restore", func(t *testing.T) {
				lib := newFiveTrackLibrary()
				r := NewReorderCoordinator(lib, nil, nil, nil)
				q, _ := r.Reorder(ctx, mustPlaylist(t, lib, "p1"), 3, 0)
				if _, err := r.Reorder(ctx, q, 0, 3); err != nil {
					t.Fatalf("Reorder(0, 3) error = %v", err)
				}
				if got := lib.ItemURIs("p1"); !reflect.DeepEqual(got, uris("a", "b", "d", "c", "e")) {
					t.Errorf("after Reorder(0, 3) = %v", got)
				}
			})

			t.Run("moving back to 4 restores", func(t *testing.T) {
				if _, err := r.Reorder(ctx, p, 0, 4); err != nil {
					t.Fatalf("Reorder(0, 4) error = %v", err)
				}
				if got := lib.ItemURIs("p1"); !reflect.DeepEqual(got, uris("a", "b", "c", "d", "e")) {
					t.Errorf("after Reorder(0, 4) = %v", got)
				}
			})
		})

		t.Run("local move matches remote order", func(t *testing.T) {
			moves := [][2]int{{3, 0}, {0, 3}, {1, 5}, {4, 2}}
			lib := newFiveTrackLibrary()
			cache := newCountingCache(t)
			s := NewTrackStreamer(lib, cache, nil)
			r := NewReorderCoordinator(lib, cache, nil, nil)
			p := mustPlaylist(t, lib, "p1")
			local := collect(t, s, p)

			for _, m := range moves {
				var err error
				local, err = MoveTracks(local, m[0], m[1])
				if err != nil {
					t.Fatalf("MoveTracks(%v) error = %v", m, err)
				}
				if p, err = r.Reorder(ctx, p, m[0], m[1]); err != nil {
					t.Fatalf("Reorder(%v) error = %v", m, err)
				}
			}

			remote := collect(t, s, p)
			if !reflect.DeepEqual(titles(local), titles(remote)) {
				t.Errorf("local %v != remote %v", titles(local), titles(remote))
			}
			if !reflect.DeepEqual(indices(local), indices(remote)) {
				t.Errorf("local indices %v != remote %v", indices(local), indices(remote))
			}
		})

		t.Run("ReorderTracks addresses remote positions past skipped items", func(t *testing.T) {
			lib := tt.NewFakeLibrary()
			lib.AddPlaylist("p1", "Gaps", "v1", "me",
				tt.Track("a"), tt.NullTrack(), tt.Track("b"), tt.Track("c"), tt.NullTrack(), tt.Track("d"),
			)
			cache := newCountingCache(t)
			s := NewTrackStreamer(lib, cache, nil)
			r := NewReorderCoordinator(lib, cache, nil, nil)
			p := mustPlaylist(t, lib, "p1")
			local := collect(t, s, p)

			for _, m := range [][2]int{{3, 0}, {0, 4}, {1, 3}} {
				var err error
				if p, err = r.ReorderTracks(ctx, p, local, m[0], m[1]); err != nil {
					t.Fatalf("ReorderTracks(%v) error = %v", m, err)
				}
				if local, err = MoveTracks(local, m[0], m[1]); err != nil {
					t.Fatalf("MoveTracks(%v) error = %v", m, err)
				}

				remote := collect(t, s, p)
				if !reflect.DeepEqual(titles(local), titles(remote)) {
					t.Errorf("after %v: local %v != remote %v", m, titles(local), titles(remote))
				}
				if !reflect.DeepEqual(positions(local), positions(remote)) {
					t.Errorf("after %v: local positions %v != remote %v", m, positions(local), positions(remote))
				}
			}
			if got := lib.ItemURIs("p1"); !reflect.DeepEqual(got, uris("a", "c", "b", "d")) {
				t.Errorf("items = %v", got)
			}

			t.Run("local no-op across a gap makes no remote call", func(t *testing.T) {
				lib.ResetCalls()
				got, err := r.ReorderTracks(ctx, p, local, 0, 1)
				if err != nil || got.SnapshotID != p.SnapshotID {
					t.Errorf("ReorderTracks(0, 1) = %q, %v", got.SnapshotID, err)
				}
				if n := lib.Calls("ReorderPlaylist"); n != 0 {
					t.Errorf("ReorderPlaylist called %d times", n)
				}
			})

			t.Run("rejects indices outside the listing", func(t *testing.T) {
				if _, err := r.ReorderTracks(ctx, p, local, 0, len(local)+1); !errors.Is(err, shared.ErrInvalidIndex) {
					t.Errorf("error = %v, want ErrInvalidIndex", err)
				}
			})
		})

		t.Run("propagates the new token", func(t *testing.T) {
			lib := newFiveTrackLibrary()
			cache := newCountingCache(t)
			catalog := NewPlaylistCatalog(lib, nil)
			s := NewTrackStreamer(lib, cache, nil)
			r := NewReorderCoordinator(lib, cache, catalog, nil)

			playlists, err := catalog.ListPlaylists(ctx)
			if err != nil {
				t.Fatalf("ListPlaylists() error = %v", err)
			}
			p := playlists[0]
			collect(t, s, p)

			moved, err := r.Reorder(ctx, p, 4, 0)
			if err != nil {
				t.Fatalf("Reorder() error = %v", err)
			}
			if moved.SnapshotID == "v1" || moved.SnapshotID == "" {
				t.Errorf("token not propagated: %q", moved.SnapshotID)
			}
			if ok, _ := cache.Has(ctx, "v1"); ok {
				t.Error("old snapshot still cached")
			}

			listed, _ := catalog.ListPlaylists(ctx)
			if listed[0].SnapshotID != moved.SnapshotID {
				t.Errorf("catalog token = %q, want %q", listed[0].SnapshotID, moved.SnapshotID)
			}

			lib.ResetCalls()
			tracks := collect(t, s, listed[0])
			if lib.Calls("FetchPlaylistTracksPage") != 1 {
				t.Error("stream after reorder did not re-fetch")
			}
			if got := titles(tracks); !reflect.DeepEqual(got, []string{"e", "a", "b", "c", "d"}) {
				t.Errorf("titles after reorder = %v", got)
			}
		})

		t.Run("failure leaves the token unchanged", func(t *testing.T) {
			lib := newFiveTrackLibrary()
			lib.SetError("ReorderPlaylist", errors.New("snapshot mismatch"))
			cache := newCountingCache(t)
			s := NewTrackStreamer(lib, cache, nil)
			r := NewReorderCoordinator(lib, cache, nil, nil)
			p := mustPlaylist(t, lib, "p1")
			collect(t, s, p)

			got, err := r.Reorder(ctx, p, 0, 2)
			if !errors.Is(err, shared.ErrRemoteUnavailable) {
				t.Errorf("error = %v, want ErrRemoteUnavailable", err)
			}
			if got.SnapshotID != "v1" {
				t.Errorf("token = %q, want v1", got.SnapshotID)
			}
			if ok, _ := cache.Has(ctx, "v1"); !ok {
				t.Error("failed reorder invalidated the cache")
			}
		})

		t.Run("no-op moves skip the remote call", func(t *testing.T) {
			lib := newFiveTrackLibrary()
			r := NewReorderCoordinator(lib, nil, nil, nil)
			p := mustPlaylist(t, lib, "p1")

			for _, m := range [][2]int{{2, 2}, {2, 3}} {
				got, err := r.Reorder(ctx, p, m[0], m[1])
				if err != nil || got.SnapshotID != "v1" {
					t.Errorf("Reorder(%v) = %q, %v", m, got.SnapshotID, err)
				}
			}
			if n := lib.Calls("ReorderPlaylist"); n != 0 {
				t.Errorf("ReorderPlaylist called %d times", n)
			}
		})

		t.Run("rejects invalid input", func(t *testing.T) {
			lib := newFiveTrackLibrary()
			r := NewReorderCoordinator(lib, nil, nil, nil)

			tests := []struct {
				name     string
				p        models.Playlist
				from, to int
				want     error
			}{
				{name: "liked songs", p: models.LikedSongs(models.User{ID: "me"}), from: 1, to: 0, want: shared.ErrInvalidArgument},
				{name: "empty selection", p: models.EmptyPlaylist(), from: 1, to: 0, want: shared.ErrInvalidArgument},
				{name: "negative index", p: mustPlaylist(t, lib, "p1"), from: -1, to: 0, want: shared.ErrInvalidIndex},
			}
			for _, tc := range tests {
				t.Run(tc.name, func(t *testing.T) {
					if _, err := r.Reorder(ctx, tc.p, tc.from, tc.to); !errors.Is(err, tc.want) {
						t.Errorf("error = %v, want %v", err, tc.want)
					}
				})
			}
			if n := lib.TotalCalls(); n != 0 {
				t.Errorf("invalid input reached the remote service (%d calls)", n)
			}
		})
	})

	t.Run("AddTracks", func(t *testing.T) {
		t.Run("appends and propagates", func(t *testing.T) {
			lib := newFiveTrackLibrary()
			r := NewReorderCoordinator(lib, nil, nil, nil)

			track, _ := models.NewTrack(*tt.Track("f").Track)
			p, err := r.AddTracks(ctx, mustPlaylist(t, lib, "p1"), []models.Track{track})
			if err != nil {
				t.Fatalf("AddTracks() error = %v", err)
			}
			if p.SnapshotID == "v1" {
				t.Error("token not propagated")
			}
			if got := lib.ItemURIs("p1"); len(got) != 6 || got[5] != "spotify:track:f" {
				t.Errorf("items = %v", got)
			}
		})

		t.Run("rejects local tracks", func(t *testing.T) {
			lib := newFiveTrackLibrary()
			r := NewReorderCoordinator(lib, nil, nil, nil)

			local := models.Track{Title: "Demo", URI: "spotify:local:artist:album:demo:120"}
			remote, _ := models.NewTrack(*tt.Track("f").Track)
			_, err := r.AddTracks(ctx, mustPlaylist(t, lib, "p1"), []models.Track{remote, local})
			if !errors.Is(err, shared.ErrLocalTrack) {
				t.Errorf("error = %v, want ErrLocalTrack", err)
			}
			if n := lib.Calls("AddTracks"); n != 0 {
				t.Errorf("AddTracks reached the remote service (%d calls)", n)
			}
		})

		t.Run("rejects empty input", func(t *testing.T) {
			r := NewReorderCoordinator(newFiveTrackLibrary(), nil, nil, nil)
			if _, err := r.AddTracks(ctx, models.Playlist{ID: "p1", SnapshotID: "v1"}, nil); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("error = %v, want ErrInvalidArgument", err)
			}
		})
	})

	t.Run("RemoveTracks", func(t *testing.T) {
		lib := newFiveTrackLibrary()
		cache := newCountingCache(t)
		s := NewTrackStreamer(lib, cache, nil)
		r := NewReorderCoordinator(lib, cache, nil, nil)
		p := mustPlaylist(t, lib, "p1")
		tracks := collect(t, s, p)

		p, err := r.RemoveTracks(ctx, p, []models.PlaylistTrack{tracks[3], tracks[1]})
		if err != nil {
			t.Fatalf("RemoveTracks() error = %v", err)
		}
		if got := lib.ItemURIs("p1"); !reflect.DeepEqual(got, uris("a", "c", "e")) {
			t.Errorf("items = %v", got)
		}
		if ok, _ := cache.Has(ctx, "v1"); ok {
			t.Error("old snapshot still cached")
		}
		if got := indices(collect(t, s, p)); !reflect.DeepEqual(got, []int{1, 2, 3}) {
			t.Errorf("indices after removal = %v", got)
		}

		t.Run("uses remote positions past skipped items", func(t *testing.T) {
			lib := tt.NewFakeLibrary()
			lib.AddPlaylist("p2", "Gaps", "g1", "me", tt.Track("a"), tt.NullTrack(), tt.Track("b"), tt.Track("c"))
			p2 := mustPlaylist(t, lib, "p2")
			listed := collect(t, NewTrackStreamer(lib, nil, nil), p2)

			if _, err := NewReorderCoordinator(lib, nil, nil, nil).RemoveTracks(ctx, p2, []models.PlaylistTrack{listed[2]}); err != nil {
				t.Fatalf("RemoveTracks() error = %v", err)
			}
			if got := lib.ItemURIs("p2"); !reflect.DeepEqual(got, uris("a", "b")) {
				t.Errorf("items = %v, want [a b]", got)
			}
		})

		t.Run("rejects invalid positions", func(t *testing.T) {
			bad := []models.PlaylistTrack{{Index: 1, Position: -1, Track: tracks[0].Track}}
			if _, err := r.RemoveTracks(ctx, p, bad); !errors.Is(err, shared.ErrInvalidIndex) {
				t.Errorf("error = %v, want ErrInvalidIndex", err)
			}
		})
	})
}
