package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/playdeck/internal/formatter"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/desertthunder/playdeck/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlaylistsList lists the playlists in the user's collection with their owners.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.playlists(ctx); err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	playlists, err := r.catalog.ListPlaylistsWithProgress(ctx, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Owner: %s\n", p.Owner.DisplayName)
		r.writePlain("   Snapshot: %s\n", p.SnapshotID)
		r.writePlain("\n")
	}
	return nil
}

// PlaylistsTracks streams a playlist's tracks, printing each one as it arrives.
func (r *Runner) PlaylistsTracks(ctx context.Context, cmd *cli.Command) error {
	p, err := r.selectPlaylist(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		tracks, err := r.streamer.Collect(ctx, p, nil)
		if err != nil {
			return err
		}
		return r.writeJSON(formatter.NewExport(p, tracks), cmd.Bool("pretty"))
	}

	r.writePlainHeader(p.Name)
	count := 0
	for pt, err := range r.streamer.Stream(ctx, p) {
		if err != nil {
			return err
		}
		count++
		local := ""
		if pt.IsLocal {
			local = " (local)"
		}
		r.writePlain("%3d. %s - %s [%s]%s\n",
			pt.Index, pt.Track.ArtistLine(), pt.Track.Title, formatter.FormatDuration(pt.Track.DurationMS), local)
	}
	return r.writePlainln("%d tracks", count)
}

// PlaylistsCreate creates an empty playlist owned by the current user.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	if err := r.playlists(ctx); err != nil {
		return err
	}

	p, err := r.catalog.CreatePlaylist(ctx, cmd.String("name"))
	if err != nil {
		return err
	}
	r.writePlain("✓ Created playlist %s\n", p.Name)
	r.writePlain("  ID: %s\n", p.ID)
	return nil
}

// PlaylistsDelete removes a playlist from the user's collection.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	if err := r.playlists(ctx); err != nil {
		return err
	}

	p, err := r.catalog.FindPlaylist(ctx, cmd.String("id"))
	if err != nil {
		return err
	}
	if err := r.catalog.DeletePlaylist(ctx, p); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted playlist %s\n", p.Name)
}

// PlaylistsReorder moves one track. Positions on the command line are 1-based.
func (r *Runner) PlaylistsReorder(ctx context.Context, cmd *cli.Command) error {
	p, err := r.selectPlaylist(ctx, cmd)
	if err != nil {
		return err
	}

	tracks, err := r.streamer.Collect(ctx, p, nil)
	if err != nil {
		return err
	}

	from, to := cmd.Int("from"), cmd.Int("to")
	if from < 1 || from > len(tracks) || to < 1 || to > len(tracks)+1 {
		return fmt.Errorf("%w: move %d -> %d in a playlist of %d tracks", shared.ErrInvalidIndex, from, to, len(tracks))
	}

	updated, err := r.coordinator.ReorderTracks(ctx, p, tracks, from-1, to-1)
	if err != nil {
		return err
	}
	if updated.SnapshotID == p.SnapshotID {
		return r.writePlain("Track %d is already in place\n", from)
	}

	moved, err := tasks.MoveTracks(tracks, from-1, to-1)
	if err != nil {
		return err
	}
	for _, pt := range moved {
		if pt.Track.URI == tracks[from-1].Track.URI && pt.AddedAt == tracks[from-1].AddedAt {
			r.writePlain("✓ Moved %q to position %d\n", pt.Track.Title, pt.Index)
			break
		}
	}
	r.writePlain("  Snapshot: %s\n", updated.SnapshotID)
	return nil
}

// PlaylistsAdd appends --uri tracks to a playlist.
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	p, err := r.selectPlaylist(ctx, cmd)
	if err != nil {
		return err
	}

	uris := cmd.StringSlice("uri")
	tracks := make([]models.Track, len(uris))
	for i, uri := range uris {
		tracks[i] = models.Track{Title: uri, URI: uri}
	}

	updated, err := r.coordinator.AddTracks(ctx, p, tracks)
	if err != nil {
		return err
	}
	r.writePlain("✓ Added %d track(s) to %s\n", len(tracks), p.Name)
	r.writePlain("  Snapshot: %s\n", updated.SnapshotID)
	return nil
}

// PlaylistsRemove removes the occurrence at a 1-based position.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	p, err := r.selectPlaylist(ctx, cmd)
	if err != nil {
		return err
	}

	tracks, err := r.streamer.Collect(ctx, p, nil)
	if err != nil {
		return err
	}

	pos := cmd.Int("position")
	if pos < 1 || pos > len(tracks) {
		return fmt.Errorf("%w: position %d in a playlist of %d tracks", shared.ErrInvalidIndex, pos, len(tracks))
	}

	target := tracks[pos-1]
	updated, err := r.coordinator.RemoveTracks(ctx, p, []models.PlaylistTrack{target})
	if err != nil {
		return err
	}
	r.writePlain("✓ Removed %q from %s\n", target.Track.Title, p.Name)
	r.writePlain("  Snapshot: %s\n", updated.SnapshotID)
	return nil
}

// PlaylistsExport streams a playlist and writes it in the requested format.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	p, err := r.selectPlaylist(ctx, cmd)
	if err != nil {
		return err
	}

	tracks, err := r.streamer.Collect(ctx, p, nil)
	if err != nil {
		return err
	}
	export := formatter.NewExport(p, tracks)

	output := cmd.String("output")
	if output == "-" {
		return formatter.Render(r.output, export, format)
	}

	warn := func(msg string, kv ...any) { r.logger.Warn(msg, kv...) }
	files, err := formatter.NewWriter(r.httpClient, warn).Write(export, format, output)
	if err != nil {
		return err
	}

	r.logger.Infof("playlist exported with %v tracks", len(tracks))
	r.writePlain("✓ Playlist exported: %s\n", p.Name)
	r.writePlain("  Tracks: %d\n", len(tracks))
	for _, f := range files {
		r.writePlain("  File: %s\n", f)
	}
	return nil
}

// selectPlaylist resolves --liked, --id or --name to a playlist.
func (r *Runner) selectPlaylist(ctx context.Context, cmd *cli.Command) (models.Playlist, error) {
	if err := r.playlists(ctx); err != nil {
		return models.EmptyPlaylist(), err
	}

	switch {
	case cmd.Bool("liked"):
		return r.catalog.LikedSongs(ctx)
	case cmd.String("id") != "":
		return r.catalog.FindPlaylist(ctx, cmd.String("id"))
	case cmd.String("name") != "":
		return r.catalog.FindPlaylist(ctx, cmd.String("name"))
	default:
		return models.EmptyPlaylist(), fmt.Errorf("%w: one of --id, --name or --liked is required", shared.ErrInvalidArgument)
	}
}
