package repositories

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/redis/go-redis/v9"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// snapshotStore is the method set shared by every backend.
type snapshotStore interface {
	Has(ctx context.Context, snapshotID string) (bool, error)
	Load(ctx context.Context, snapshotID string) (*models.Snapshot, error)
	Store(ctx context.Context, snapshotID string, snap *models.Snapshot) error
	Invalidate(ctx context.Context, snapshotID string) error
	Info(ctx context.Context) (CacheInfo, error)
	Clear(ctx context.Context) (int, error)
}

type backend struct {
	name    string
	open    func(t *testing.T) snapshotStore
	corrupt func(t *testing.T, store snapshotStore, snapshotID string)
}

func backends() []backend {
	return []backend{
		{
			name: "sqlite",
			open: func(t *testing.T) snapshotStore {
				return NewSnapshotRepository(setupTestDB(t), ":memory:")
			},
			corrupt: func(t *testing.T, store snapshotStore, snapshotID string) {
				repo := store.(*SnapshotRepository)
				_, err := repo.db.Exec(
					"INSERT INTO snapshots (id, snapshot_id, playlist_id, name, payload) VALUES (?, ?, ?, ?, ?)",
					shared.GenerateID(), snapshotID, "p1", "broken", []byte(`{"tracks": [`),
				)
				if err != nil {
					t.Fatalf("failed to insert corrupt row: %v", err)
				}
			},
		},
		{
			name: "file",
			open: func(t *testing.T) snapshotStore {
				store, err := NewFileSnapshotStore(filepath.Join(t.TempDir(), "playlists"))
				if err != nil {
					t.Fatalf("failed to create file store: %v", err)
				}
				return store
			},
			corrupt: func(t *testing.T, store snapshotStore, snapshotID string) {
				fs := store.(*FileSnapshotStore)
				if err := os.WriteFile(fs.path(snapshotID), []byte("not json"), 0644); err != nil {
					t.Fatalf("failed to write corrupt file: %v", err)
				}
			},
		},
		{
			name: "redis",
			open: func(t *testing.T) snapshotStore {
				mr := miniredis.RunT(t)
				client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { client.Close() })
				return NewRedisSnapshotStore(client)
			},
			corrupt: func(t *testing.T, store snapshotStore, snapshotID string) {
				rs := store.(*RedisSnapshotStore)
				if err := rs.client.Set(context.Background(), rs.key(snapshotID), "{", 0).Err(); err != nil {
					t.Fatalf("failed to set corrupt key: %v", err)
				}
			},
		},
	}
}

func sampleSnapshot(token string, n int) *models.Snapshot {
	draft := models.NewSnapshotDraft(models.Playlist{
		ID:         "p1",
		Name:       "Road Trip",
		SnapshotID: token,
		Owner:      models.User{ID: "me", DisplayName: "Me"},
	})
	for i := range n {
		draft.Append(models.RawPlaylistItem{
			AddedAt: "2024-01-01T00:00:00Z",
			Track: &models.RawTrack{
				Name:       "Track",
				URI:        "spotify:track:" + string(rune('a'+i)),
				DurationMS: 1000 * (i + 1),
				Artists:    []models.RawArtist{{Name: "Artist", URI: "spotify:artist:x"}},
				Album:      models.RawAlbum{Name: "Album"},
			},
		}, i)
	}
	return draft
}

func TestSnapshotStores(t *testing.T) {
	ctx := context.Background()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Run("Store And Load", func(t *testing.T) {
				store := b.open(t)
				snap := sampleSnapshot("v1", 3)

				if err := store.Store(ctx, "v1", snap); err != nil {
					t.Fatalf("failed to store snapshot: %v", err)
				}

				ok, err := store.Has(ctx, "v1")
				if err != nil || !ok {
					t.Fatalf("expected entry for v1, got %v (err %v)", ok, err)
				}

				loaded, err := store.Load(ctx, "v1")
				if err != nil {
					t.Fatalf("failed to load snapshot: %v", err)
				}
				if !reflect.DeepEqual(loaded, snap) {
					t.Errorf("loaded snapshot differs:\n got %+v\nwant %+v", loaded, snap)
				}
			})

			t.Run("Miss", func(t *testing.T) {
				store := b.open(t)

				ok, err := store.Has(ctx, "unknown")
				if err != nil || ok {
					t.Errorf("expected miss, got %v (err %v)", ok, err)
				}
				if _, err := store.Load(ctx, "unknown"); !errors.Is(err, shared.ErrCacheMiss) {
					t.Errorf("expected ErrCacheMiss, got %v", err)
				}
			})

			t.Run("Idempotent Store", func(t *testing.T) {
				store := b.open(t)
				snap := sampleSnapshot("v1", 2)

				for range 2 {
					if err := store.Store(ctx, "v1", snap); err != nil {
						t.Fatalf("failed to store snapshot: %v", err)
					}
				}

				info, err := store.Info(ctx)
				if err != nil {
					t.Fatalf("failed to get info: %v", err)
				}
				if info.Entries != 1 {
					t.Errorf("expected 1 entry after storing twice, got %d", info.Entries)
				}

				loaded, err := store.Load(ctx, "v1")
				if err != nil {
					t.Fatalf("failed to load snapshot: %v", err)
				}
				if !reflect.DeepEqual(loaded, snap) {
					t.Error("loaded snapshot differs after second store")
				}
			})

			t.Run("Overwrite", func(t *testing.T) {
				store := b.open(t)
				if err := store.Store(ctx, "v1", sampleSnapshot("v1", 1)); err != nil {
					t.Fatalf("failed to store snapshot: %v", err)
				}
				if err := store.Store(ctx, "v1", sampleSnapshot("v1", 4)); err != nil {
					t.Fatalf("failed to overwrite snapshot: %v", err)
				}

				loaded, err := store.Load(ctx, "v1")
				if err != nil {
					t.Fatalf("failed to load snapshot: %v", err)
				}
				if len(loaded.Tracks) != 4 {
					t.Errorf("expected overwritten entry with 4 tracks, got %d", len(loaded.Tracks))
				}
			})

			t.Run("Empty Track List", func(t *testing.T) {
				store := b.open(t)
				if err := store.Store(ctx, "v0", sampleSnapshot("v0", 0)); err != nil {
					t.Fatalf("failed to store snapshot: %v", err)
				}

				loaded, err := store.Load(ctx, "v0")
				if err != nil {
					t.Fatalf("failed to load empty snapshot: %v", err)
				}
				if loaded.Tracks == nil || len(loaded.Tracks) != 0 {
					t.Errorf("expected empty track list, got %v", loaded.Tracks)
				}
			})

			t.Run("Corrupt Entry", func(t *testing.T) {
				store := b.open(t)
				b.corrupt(t, store, "bad")

				_, err := store.Load(ctx, "bad")
				var cerr *shared.CacheCorruptError
				if !errors.As(err, &cerr) {
					t.Fatalf("expected CacheCorruptError, got %v", err)
				}
				if cerr.Key != "bad" {
					t.Errorf("expected key bad, got %s", cerr.Key)
				}
			})

			t.Run("Invalidate", func(t *testing.T) {
				store := b.open(t)
				if err := store.Store(ctx, "v1", sampleSnapshot("v1", 1)); err != nil {
					t.Fatalf("failed to store snapshot: %v", err)
				}

				if err := store.Invalidate(ctx, "v1"); err != nil {
					t.Fatalf("failed to invalidate: %v", err)
				}
				if ok, _ := store.Has(ctx, "v1"); ok {
					t.Error("expected entry to be gone")
				}
				if err := store.Invalidate(ctx, "v1"); err != nil {
					t.Errorf("invalidating an absent entry should succeed: %v", err)
				}
			})

			t.Run("Clear", func(t *testing.T) {
				store := b.open(t)
				for _, token := range []string{"v1", "v2", "v3"} {
					if err := store.Store(ctx, token, sampleSnapshot(token, 1)); err != nil {
						t.Fatalf("failed to store %s: %v", token, err)
					}
				}

				removed, err := store.Clear(ctx)
				if err != nil {
					t.Fatalf("failed to clear: %v", err)
				}
				if removed != 3 {
					t.Errorf("expected 3 removed, got %d", removed)
				}

				info, err := store.Info(ctx)
				if err != nil {
					t.Fatalf("failed to get info: %v", err)
				}
				if info.Entries != 0 || info.Bytes != 0 {
					t.Errorf("expected empty cache, got %+v", info)
				}
			})

			t.Run("Rejects Empty Token", func(t *testing.T) {
				store := b.open(t)
				if err := store.Store(ctx, "", sampleSnapshot("", 1)); !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
			})
		})
	}
}

func TestFileSnapshotStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Escapes Tokens", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileSnapshotStore(dir)
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		if err := store.Store(ctx, "../escape", sampleSnapshot("../escape", 1)); err != nil {
			t.Fatalf("failed to store: %v", err)
		}
		if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.json")); err == nil {
			t.Error("token escaped the cache directory")
		}
		if ok, _ := store.Has(ctx, "../escape"); !ok {
			t.Error("expected escaped token to be found")
		}
	})

	t.Run("Ignores Temp Files", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileSnapshotStore(dir)
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, ".snapshot-123"), []byte("{"), 0644); err != nil {
			t.Fatalf("failed to write temp file: %v", err)
		}

		info, err := store.Info(ctx)
		if err != nil {
			t.Fatalf("failed to get info: %v", err)
		}
		if info.Entries != 0 {
			t.Errorf("expected interrupted write to be ignored, got %d entries", info.Entries)
		}
	})
}

func TestSnapshotRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository(setupTestDB(t), ":memory:")

	for _, token := range []string{"v1", "v2"} {
		if err := repo.Store(ctx, token, sampleSnapshot(token, 2)); err != nil {
			t.Fatalf("failed to store %s: %v", token, err)
		}
	}

	records, err := repo.List(ctx, "p1")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.TrackCount != 2 || rec.Name != "Road Trip" {
			t.Errorf("unexpected record %+v", rec)
		}
	}

	others, err := repo.List(ctx, "p2")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(others) != 0 {
		t.Errorf("expected no records for p2, got %d", len(others))
	}
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Record And Recent", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		for i, uri := range []string{"spotify:track:a", "spotify:track:b", "spotify:track:c"} {
			entry := &models.PlaybackEntry{TrackURI: uri, Title: uri, ObservedAt: base.Add(time.Duration(i) * time.Minute)}
			if err := repo.Record(ctx, entry); err != nil {
				t.Fatalf("failed to record: %v", err)
			}
			if entry.ID == "" {
				t.Error("expected ID to be generated")
			}
		}

		recent, err := repo.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("failed to query recent: %v", err)
		}
		if len(recent) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(recent))
		}
		if recent[0].TrackURI != "spotify:track:c" || recent[1].TrackURI != "spotify:track:b" {
			t.Errorf("expected newest first, got %s, %s", recent[0].TrackURI, recent[1].TrackURI)
		}
	})

	t.Run("Requires Track URI", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		if err := repo.Record(ctx, &models.PlaybackEntry{Title: "x"}); !errors.Is(err, shared.ErrMissingField) {
			t.Errorf("expected ErrMissingField, got %v", err)
		}
	})
}
