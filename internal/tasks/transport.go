package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
)

// Transport relays player commands, consulting the worker's last poll for toggles.
type Transport struct {
	remote services.Transport
	worker *PlaybackWorker
	logger *log.Logger
}

// NewTransport creates a Transport. worker may be nil, in which case toggles assume a stopped, unshuffled player.
func NewTransport(remote services.Transport, worker *PlaybackWorker, logger *log.Logger) *Transport {
	return &Transport{remote: remote, worker: worker, logger: loggerOrDiscard(logger, "transport")}
}

func (t *Transport) state() models.PlaybackState {
	if t.worker != nil {
		if s := t.worker.State(); s != nil {
			return *s
		}
	}
	return models.PlaybackState{Repeat: models.RepeatOff}
}

func (t *Transport) Play(ctx context.Context) error {
	return t.do("play", t.remote.TogglePlayPause(ctx, true))
}

func (t *Transport) Pause(ctx context.Context) error {
	return t.do("pause", t.remote.TogglePlayPause(ctx, false))
}

// TogglePlayPause resumes when the last poll showed the player stopped, and pauses otherwise.
func (t *Transport) TogglePlayPause(ctx context.Context) error {
	play := !t.state().Playing
	return t.do("toggle play", t.remote.TogglePlayPause(ctx, play))
}

func (t *Transport) Next(ctx context.Context) error {
	return t.do("next track", t.remote.NextTrack(ctx))
}

func (t *Transport) Previous(ctx context.Context) error {
	return t.do("previous track", t.remote.PreviousTrack(ctx))
}

func (t *Transport) SetShuffle(ctx context.Context, on bool) error {
	return t.do("shuffle", t.remote.SetShuffle(ctx, on))
}

// ToggleShuffle flips the last polled shuffle flag and returns the new value.
func (t *Transport) ToggleShuffle(ctx context.Context) (bool, error) {
	on := !t.state().Shuffle
	return on, t.SetShuffle(ctx, on)
}

// SetVolume sets the active device's volume. percent must be within [0, 100].
func (t *Transport) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: volume %d outside [0, 100]", shared.ErrInvalidArgument, percent)
	}
	return t.do("volume", t.remote.SetVolume(ctx, percent))
}

// PlayTrack starts track within contextURI, or alone when contextURI is empty. Local tracks are ignored.
func (t *Transport) PlayTrack(ctx context.Context, contextURI string, track models.Track) error {
	if track.IsLocal() {
		t.logger.Debug("ignoring local track", "uri", track.URI)
		return nil
	}
	return t.do("play track", t.remote.PlayTrack(ctx, contextURI, track.URI))
}

// CycleRepeat advances off, context, track, off from the last polled mode.
func (t *Transport) CycleRepeat(ctx context.Context) (models.RepeatMode, error) {
	if t.worker == nil || t.worker.State() == nil {
		mode, err := t.remote.CycleRepeatMode(ctx)
		return mode, t.do("repeat", err)
	}

	next := t.state().Repeat.Next()
	if err := t.remote.SetRepeat(ctx, next); err != nil {
		return "", t.do("repeat", err)
	}
	return next, nil
}

func (t *Transport) do(op string, err error) error {
	if err != nil {
		return shared.NewRemoteError(op, err)
	}
	t.logger.Debug("sent command", "op", op)
	return nil
}
