package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/playdeck/internal/formatter"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/desertthunder/playdeck/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlayerStatus polls playback and devices once.
func (r *Runner) PlayerStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.player(ctx, false); err != nil {
		return err
	}

	update, err := r.worker.Poll(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(update, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", describePlayback(update))
	if len(update.Devices) == 0 {
		return r.writePlain("\nNo devices available\n")
	}
	r.writePlain("\nDevices:\n")
	for _, d := range update.Devices {
		marker := " "
		if d.IsActive {
			marker = "*"
		}
		r.writePlain(" %s %s (%s) %d%%\n", marker, d.Name, d.Type, d.VolumePercent)
	}
	return nil
}

// PlayerWatch runs the playback worker and prints a line whenever the track, play state or devices change.
func (r *Runner) PlayerWatch(ctx context.Context, cmd *cli.Command) error {
	if err := r.player(ctx, !cmd.Bool("no-history")); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, unsubscribe := r.worker.Subscribe()
	defer unsubscribe()

	if err := r.worker.Start(ctx); err != nil {
		return err
	}

	limit := cmd.Int("count")
	useJSON := cmd.Bool("json")
	seen := 0
	last := ""
	for update := range updates {
		line := describePlayback(update)
		if line == last && !update.DevicesChanged {
			continue
		}
		last = line

		if useJSON {
			if err := r.writeJSON(update, false); err != nil {
				return err
			}
		} else {
			r.writePlain("[%s] %s\n", update.ObservedAt.Local().Format(time.TimeOnly), line)
			if update.DevicesChanged {
				r.writePlain("           devices: %d available\n", len(update.Devices))
			}
		}

		seen++
		if limit > 0 && seen >= limit {
			cancel()
		}
	}
	return nil
}

func (r *Runner) PlayerPlay(ctx context.Context, cmd *cli.Command) error {
	return r.runTransport(ctx, "▶ Playing", func(t *tasks.Transport) error { return t.Play(ctx) })
}

func (r *Runner) PlayerPause(ctx context.Context, cmd *cli.Command) error {
	return r.runTransport(ctx, "⏸ Paused", func(t *tasks.Transport) error { return t.Pause(ctx) })
}

func (r *Runner) PlayerNext(ctx context.Context, cmd *cli.Command) error {
	return r.runTransport(ctx, "⏭ Next track", func(t *tasks.Transport) error { return t.Next(ctx) })
}

func (r *Runner) PlayerPrevious(ctx context.Context, cmd *cli.Command) error {
	return r.runTransport(ctx, "⏮ Previous track", func(t *tasks.Transport) error { return t.Previous(ctx) })
}

// PlayerShuffle sets shuffle from --on/--off, or flips the currently polled value.
func (r *Runner) PlayerShuffle(ctx context.Context, cmd *cli.Command) error {
	on, off := cmd.Bool("on"), cmd.Bool("off")
	if on && off {
		return fmt.Errorf("%w: --on and --off are mutually exclusive", shared.ErrInvalidArgument)
	}
	if err := r.player(ctx, false); err != nil {
		return err
	}

	if !on && !off {
		update, err := r.worker.Poll(ctx)
		if err != nil {
			return err
		}
		on = update.Playback.State == nil || !update.Playback.State.Shuffle
	}

	if err := r.transport.SetShuffle(ctx, on); err != nil {
		return err
	}
	if on {
		return r.writePlain("🔀 Shuffle on\n")
	}
	return r.writePlain("Shuffle off\n")
}

// PlayerRepeat advances the repeat mode.
func (r *Runner) PlayerRepeat(ctx context.Context, cmd *cli.Command) error {
	if err := r.player(ctx, false); err != nil {
		return err
	}
	mode, err := r.transport.CycleRepeat(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("🔁 Repeat %s\n", mode)
}

func (r *Runner) PlayerVolume(ctx context.Context, cmd *cli.Command) error {
	percent := cmd.Int("percent")
	return r.runTransport(ctx, fmt.Sprintf("🔊 Volume %d%%", percent), func(t *tasks.Transport) error {
		return t.SetVolume(ctx, percent)
	})
}

// PlayerPlayTrack plays --uri, within --context when given.
func (r *Runner) PlayerPlayTrack(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.String("uri")
	if models.IsLocalURI(uri) {
		return fmt.Errorf("%w: %s", shared.ErrLocalTrack, uri)
	}
	track := models.Track{URI: uri}
	return r.runTransport(ctx, "▶ Playing "+uri, func(t *tasks.Transport) error {
		return t.PlayTrack(ctx, cmd.String("context"), track)
	})
}

// PlayerHistory lists the most recent track changes recorded by the playback worker.
func (r *Runner) PlayerHistory(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	if limit <= 0 {
		return fmt.Errorf("%w: --limit must be positive", shared.ErrInvalidArgument)
	}

	history := r.historyRepository()
	if history == nil {
		return fmt.Errorf("%w: playback history requires the database", shared.ErrServiceUnavailable)
	}
	entries, err := history.Recent(ctx, limit)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}
	if len(entries) == 0 {
		return r.writePlain("No playback recorded yet. Run 'playdeck player watch' to start recording.\n")
	}
	for _, e := range entries {
		r.writePlain("%s  %s\n", e.ObservedAt.Local().Format(time.DateTime), e.Title)
		r.writePlain("                     %s\n", e.TrackURI)
	}
	return nil
}

func (r *Runner) runTransport(ctx context.Context, done string, fn func(*tasks.Transport) error) error {
	if err := r.player(ctx, false); err != nil {
		return err
	}
	if err := fn(r.transport); err != nil {
		return err
	}
	return r.writePlain("%s\n", done)
}

// describePlayback renders one poll result as a single line.
func describePlayback(u tasks.PlaybackUpdate) string {
	pb := u.Playback
	if u.PrivateSession() {
		return fmt.Sprintf("Private session on %s", pb.Device.Name)
	}
	if pb.Track == nil {
		if pb.Device == nil {
			return "Nothing playing"
		}
		return fmt.Sprintf("Nothing playing on %s", pb.Device.Name)
	}

	state := "⏸"
	line := ""
	if s := pb.State; s != nil {
		if s.Playing {
			state = "▶"
		}
		line = fmt.Sprintf(" [%s/%s]", formatter.FormatDuration(s.ProgressMS), formatter.FormatDuration(pb.Track.DurationMS))
		if s.Shuffle {
			line += " shuffle"
		}
		if s.Repeat != models.RepeatOff {
			line += " repeat:" + string(s.Repeat)
		}
	}

	out := fmt.Sprintf("%s %s - %s%s", state, pb.Track.ArtistLine(), pb.Track.Title, line)
	if pb.Device != nil {
		out += " on " + pb.Device.Name
	}
	return out
}
