package shared

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

func newMigratedDB(t *testing.T) (*sql.DB, *Migrator, *bytes.Buffer) {
	t.Helper()
	db, err := OpenDatabase(DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logs := &bytes.Buffer{}
	m, err := NewMigrator(db, NewLogger(logs))
	if err != nil {
		t.Fatalf("failed to load migrations: %v", err)
	}
	if _, err := m.Up(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db, m, logs
}

func columns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("failed to read columns of %s: %v", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan column: %v", err)
		}
		names = append(names, name)
	}
	return names
}

func TestMigrations(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		want := []struct {
			version int
			name    string
		}{
			{0, "create_snapshots"},
			{1, "create_playback_log"},
		}
		if len(migrations) != len(want) {
			t.Fatalf("expected %d migrations, got %d", len(want), len(migrations))
		}
		for i, w := range want {
			m := migrations[i]
			if m.Version != w.version || m.Name != w.name {
				t.Errorf("migration %d: got %04d_%s, want %04d_%s", i, m.Version, m.Name, w.version, w.name)
			}
			if m.Up == "" || m.Down == "" {
				t.Errorf("migration %04d_%s is missing up or down SQL", m.Version, m.Name)
			}
		}
	})

	t.Run("parseMigrationName", func(t *testing.T) {
		tests := []struct {
			file    string
			version int
			name    string
			up      bool
			ok      bool
		}{
			{"0000_create_snapshots_up.sql", 0, "create_snapshots", true, true},
			{"0001_create_playback_log_down.sql", 1, "create_playback_log", false, true},
			{"0002_no_direction.sql", 0, "", false, false},
			{"abcd_bad_version_up.sql", 0, "", false, false},
			{"0003_notes_up.txt", 0, "", false, false},
		}
		for _, tt := range tests {
			t.Run(tt.file, func(t *testing.T) {
				version, name, up, ok := parseMigrationName(tt.file)
				if ok != tt.ok {
					t.Fatalf("ok = %v, want %v", ok, tt.ok)
				}
				if ok && (version != tt.version || name != tt.name || up != tt.up) {
					t.Errorf("got (%d, %q, %v), want (%d, %q, %v)", version, name, up, tt.version, tt.name, tt.up)
				}
			})
		}
	})

	t.Run("statements skips comments and blank statements", func(t *testing.T) {
		script := "-- header\nCREATE TABLE a (id TEXT);\n\n  -- note\nCREATE INDEX i ON a(id);\n;"
		got := statements(script)
		want := []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX i ON a(id)"}
		if !slices.Equal(got, want) {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("Up", func(t *testing.T) {
		t.Run("creates the snapshots table keyed by snapshot_id", func(t *testing.T) {
			db, _, _ := newMigratedDB(t)

			want := []string{"id", "snapshot_id", "playlist_id", "name", "track_count", "payload", "created_at", "updated_at"}
			if got := columns(t, db, "snapshots"); !slices.Equal(got, want) {
				t.Errorf("snapshots columns = %v, want %v", got, want)
			}

			insert := `INSERT INTO snapshots (id, snapshot_id, playlist_id, name, track_count, payload, created_at, updated_at)
				VALUES (?, ?, 'p1', 'Road Trip', 3, x'00', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
			if _, err := db.Exec(insert, "row-1", "s1"); err != nil {
				t.Fatalf("first insert failed: %v", err)
			}
			if _, err := db.Exec(insert, "row-2", "s1"); err == nil {
				t.Error("expected a second row with the same snapshot_id to violate UNIQUE")
			}

			upsert := `INSERT INTO snapshots (id, snapshot_id, playlist_id, name, track_count, payload, created_at, updated_at)
				VALUES ('row-3', 's1', 'p1', 'Renamed', 3, x'00', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
				ON CONFLICT(snapshot_id) DO UPDATE SET name = excluded.name`
			if _, err := db.Exec(upsert); err != nil {
				t.Fatalf("upsert on snapshot_id failed: %v", err)
			}
			var name string
			var count int
			if err := db.QueryRow("SELECT name, (SELECT COUNT(*) FROM snapshots) FROM snapshots WHERE snapshot_id = 's1'").Scan(&name, &count); err != nil {
				t.Fatalf("failed to read snapshot: %v", err)
			}
			if name != "Renamed" || count != 1 {
				t.Errorf("got name %q with %d rows, want Renamed with 1 row", name, count)
			}
		})

		t.Run("creates the playback_log table", func(t *testing.T) {
			db, _, _ := newMigratedDB(t)

			want := []string{"id", "track_uri", "title", "device_id", "observed_at"}
			if got := columns(t, db, "playback_log"); !slices.Equal(got, want) {
				t.Errorf("playback_log columns = %v, want %v", got, want)
			}

			if _, err := db.Exec("INSERT INTO playback_log (id, track_uri, title, observed_at) VALUES ('e1', 'spotify:track:a', 'A', CURRENT_TIMESTAMP)"); err != nil {
				t.Fatalf("insert without device_id failed: %v", err)
			}
			var device string
			if err := db.QueryRow("SELECT device_id FROM playback_log WHERE id = 'e1'").Scan(&device); err != nil {
				t.Fatalf("failed to read entry: %v", err)
			}
			if device != "" {
				t.Errorf("device_id default = %q, want empty", device)
			}
		})

		t.Run("logs each applied version", func(t *testing.T) {
			_, _, logs := newMigratedDB(t)
			for _, want := range []string{"applied migration", "create_snapshots", "create_playback_log"} {
				if !strings.Contains(logs.String(), want) {
					t.Errorf("expected log to contain %q, got %q", want, logs.String())
				}
			}
		})

		t.Run("is idempotent", func(t *testing.T) {
			db, m, _ := newMigratedDB(t)
			applied, err := m.Up(context.Background())
			if err != nil {
				t.Fatalf("second Up failed: %v", err)
			}
			if len(applied) != 0 {
				t.Errorf("expected nothing applied on second Up, got %d", len(applied))
			}
			if err := RunMigrations(db); err != nil {
				t.Fatalf("RunMigrations on a migrated database failed: %v", err)
			}

			var count int
			if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
				t.Fatalf("failed to query schema_migrations: %v", err)
			}
			if count != 2 {
				t.Errorf("expected 2 recorded migrations, got %d", count)
			}
		})
	})

	t.Run("Down", func(t *testing.T) {
		t.Run("reverts the latest migration and logs it", func(t *testing.T) {
			db, m, logs := newMigratedDB(t)

			reverted, err := m.Down(context.Background(), 1)
			if err != nil {
				t.Fatalf("Down failed: %v", err)
			}
			if len(reverted) != 1 || reverted[0].Name != "create_playback_log" {
				t.Fatalf("expected create_playback_log reverted, got %+v", reverted)
			}
			if !strings.Contains(logs.String(), "rolled back migration") {
				t.Errorf("expected rollback to be logged, got %q", logs.String())
			}

			if cols := columns(t, db, "playback_log"); len(cols) != 0 {
				t.Errorf("playback_log should be dropped, still has %v", cols)
			}
			if cols := columns(t, db, "snapshots"); len(cols) == 0 {
				t.Error("snapshots should survive rollback of a later migration")
			}
		})

		t.Run("reverts newest first and stops when nothing is applied", func(t *testing.T) {
			db, m, _ := newMigratedDB(t)

			reverted, err := m.Down(context.Background(), 5)
			if err != nil {
				t.Fatalf("Down failed: %v", err)
			}
			var versions []int
			for _, mig := range reverted {
				versions = append(versions, mig.Version)
			}
			if !slices.Equal(versions, []int{1, 0}) {
				t.Errorf("reverted versions = %v, want [1 0]", versions)
			}
			if cols := columns(t, db, "snapshots"); len(cols) != 0 {
				t.Errorf("snapshots should be dropped, still has %v", cols)
			}

			reverted, err = m.Down(context.Background(), 1)
			if err != nil || len(reverted) != 0 {
				t.Errorf("expected no-op on empty schema, got %v, %v", reverted, err)
			}
		})

		t.Run("rejects fewer than one step", func(t *testing.T) {
			_, m, _ := newMigratedDB(t)
			if _, err := m.Down(context.Background(), 0); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})

		t.Run("Up re-applies a reverted migration", func(t *testing.T) {
			_, m, _ := newMigratedDB(t)
			if _, err := m.Down(context.Background(), 1); err != nil {
				t.Fatalf("Down failed: %v", err)
			}
			applied, err := m.Up(context.Background())
			if err != nil {
				t.Fatalf("Up failed: %v", err)
			}
			if len(applied) != 1 || applied[0].Version != 1 {
				t.Errorf("expected version 1 re-applied, got %+v", applied)
			}
		})
	})

	t.Run("Status", func(t *testing.T) {
		_, m, _ := newMigratedDB(t)
		if _, err := m.Down(context.Background(), 1); err != nil {
			t.Fatalf("Down failed: %v", err)
		}

		statuses, err := m.Status(context.Background())
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if len(statuses) != 2 {
			t.Fatalf("expected 2 statuses, got %d", len(statuses))
		}
		if !statuses[0].Applied() || statuses[1].Applied() {
			t.Errorf("expected 0000 applied and 0001 pending, got %v and %v", statuses[0].Applied(), statuses[1].Applied())
		}
		if at := *statuses[0].AppliedAt; time.Since(at) > time.Hour {
			t.Errorf("applied_at %v is not recent", at)
		}
	})
}
