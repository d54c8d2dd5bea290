package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/playdeck/internal/repositories"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/urfave/cli/v3"
)

// versionLister is implemented by stores that keep metadata for every cached version of a playlist.
type versionLister interface {
	List(ctx context.Context, playlistID string) ([]repositories.SnapshotRecord, error)
}

// CacheInfo reports the configured snapshot store's backend, location and size.
func (r *Runner) CacheInfo(ctx context.Context, cmd *cli.Command) error {
	store, err := r.snapshotCache(ctx)
	if err != nil {
		return err
	}

	info, err := store.Info(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(info, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Snapshot cache")
	r.writePlain("Backend:  %s\n", info.Backend)
	r.writePlain("Location: %s\n", info.Location)
	r.writePlain("Entries:  %d\n", info.Entries)
	r.writePlain("Size:     %s\n", formatBytes(info.Bytes))
	return nil
}

// CacheClear removes every cached snapshot.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	store, err := r.snapshotCache(ctx)
	if err != nil {
		return err
	}

	n, err := store.Clear(ctx)
	if err != nil {
		return err
	}

	r.logger.Debug("cleared snapshot cache", "entries", n)
	return r.writePlain("✓ Removed %d cached snapshot(s)\n", n)
}

// CacheVersions lists the cached versions of one playlist, newest first.
func (r *Runner) CacheVersions(ctx context.Context, cmd *cli.Command) error {
	store, err := r.snapshotCache(ctx)
	if err != nil {
		return err
	}
	lister, ok := store.(versionLister)
	if !ok {
		return fmt.Errorf("%w: the %s cache backend does not track versions", shared.ErrInvalidConfig, r.config.Cache.Backend)
	}

	records, err := lister.List(ctx, cmd.String("id"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}
	if len(records) == 0 {
		return r.writePlain("No cached versions of %s\n", cmd.String("id"))
	}
	for _, rec := range records {
		r.writePlain("%s  %-24s %4d tracks  %s\n",
			rec.UpdatedAt.Local().Format(time.DateTime), rec.SnapshotID, rec.TrackCount, rec.Name)
	}
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
