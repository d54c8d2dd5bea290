package tasks

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
)

const (
	DefaultPollInterval     = time.Second
	DefaultSubscriberBuffer = 8
)

var ErrWorkerRunning = errors.New("playback worker already running")

// PlaybackUpdate is one poll result.
//
// Playback fields are nil when absent. For a private session only Playback.Device is set.
type PlaybackUpdate struct {
	Playback       models.Playback
	Devices        []models.Device // sorted by ID
	ActiveDevice   *models.Device
	DevicesChanged bool // the sorted device IDs differ from the previous poll
	ObservedAt     time.Time
}

// PrivateSession reports whether the update was withheld for a private session.
func (u PlaybackUpdate) PrivateSession() bool {
	return u.Playback.Device != nil && u.Playback.Device.IsPrivateSession
}

// PlaybackWorker polls the remote service once per interval and fans each result out to subscribers.
//
// A failed poll is logged and skipped. Slow subscribers miss updates rather than stall the loop.
type PlaybackWorker struct {
	remote   services.RemoteLibrary
	interval time.Duration
	buffer   int
	history  HistoryRecorder
	logger   *log.Logger

	mu        sync.Mutex
	running   bool
	subs      map[string]chan PlaybackUpdate
	latest    *PlaybackUpdate
	deviceIDs []string
	polled    bool
	lastTrack string
}

// WorkerOption configures a [PlaybackWorker].
type WorkerOption func(*PlaybackWorker)

// WithInterval sets the poll interval. Non-positive values keep the default.
func WithInterval(d time.Duration) WorkerOption {
	return func(w *PlaybackWorker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithSubscriberBuffer sets the channel capacity handed to each subscriber.
func WithSubscriberBuffer(n int) WorkerOption {
	return func(w *PlaybackWorker) {
		if n > 0 {
			w.buffer = n
		}
	}
}

// WithHistory records every observed track change.
func WithHistory(h HistoryRecorder) WorkerOption {
	return func(w *PlaybackWorker) { w.history = h }
}

func WithWorkerLogger(l *log.Logger) WorkerOption {
	return func(w *PlaybackWorker) { w.logger = loggerOrDiscard(l, "playback") }
}

func NewPlaybackWorker(remote services.RemoteLibrary, opts ...WorkerOption) *PlaybackWorker {
	w := &PlaybackWorker{
		remote:   remote,
		interval: DefaultPollInterval,
		buffer:   DefaultSubscriberBuffer,
		logger:   shared.DiscardLogger(),
		subs:     make(map[string]chan PlaybackUpdate),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Subscribe returns a channel of updates and a function that detaches it.
// The channel is closed when the worker stops or the subscription is cancelled.
func (w *PlaybackWorker) Subscribe() (<-chan PlaybackUpdate, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := shared.GenerateID()
	ch := make(chan PlaybackUpdate, w.buffer)
	w.subs[id] = ch

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if c, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(c)
		}
	}
}

// Latest returns the most recent successful poll.
func (w *PlaybackWorker) Latest() (PlaybackUpdate, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.latest == nil {
		return PlaybackUpdate{}, false
	}
	return *w.latest, true
}

// State returns the last polled playback state, or nil.
func (w *PlaybackWorker) State() *models.PlaybackState {
	u, ok := w.Latest()
	if !ok {
		return nil
	}
	return u.Playback.State
}

// Start runs the loop in a new goroutine until ctx is cancelled.
func (w *PlaybackWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrWorkerRunning
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Run polls immediately and then on every tick, blocking until ctx is cancelled.
func (w *PlaybackWorker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrWorkerRunning
	}
	w.running = true
	w.mu.Unlock()

	return w.run(ctx)
}

func (w *PlaybackWorker) run(ctx context.Context) error {
	defer w.stop()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Debug("playback worker started", "interval", w.interval)
	for {
		w.tick(ctx)
		select {
		case <-ctx.Done():
			w.logger.Debug("playback worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *PlaybackWorker) tick(ctx context.Context) {
	update, err := w.Poll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("playback poll failed", "error", err)
		}
		return
	}
	w.publish(update)
}

func (w *PlaybackWorker) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.subs {
		close(ch)
		delete(w.subs, id)
	}
	w.running = false
}

// Poll performs one poll and updates device and history tracking. It does not publish.
func (w *PlaybackWorker) Poll(ctx context.Context) (PlaybackUpdate, error) {
	raw, err := w.remote.FetchCurrentPlayback(ctx)
	if err != nil {
		return PlaybackUpdate{}, shared.NewRemoteError("current playback", err)
	}
	rawDevices, err := w.remote.FetchDevices(ctx)
	if err != nil {
		return PlaybackUpdate{}, shared.NewRemoteError("devices", err)
	}

	update := PlaybackUpdate{ObservedAt: time.Now().UTC()}

	update.Playback, err = w.playback(raw)
	if err != nil {
		return PlaybackUpdate{}, err
	}

	for _, rd := range rawDevices {
		d, err := models.NewDevice(rd)
		if err != nil {
			w.logger.Warn("skipping malformed device", "error", err)
			continue
		}
		update.Devices = append(update.Devices, d)
	}
	slices.SortFunc(update.Devices, func(a, b models.Device) int { return strings.Compare(a.ID, b.ID) })
	for i := range update.Devices {
		if update.Devices[i].IsActive {
			update.ActiveDevice = &update.Devices[i]
			break
		}
	}
	if update.ActiveDevice == nil && update.Playback.Device != nil {
		update.ActiveDevice = update.Playback.Device
	}

	w.track(ctx, &update)
	return update, nil
}

// playback converts raw, withholding track and state for a private session.
func (w *PlaybackWorker) playback(raw *models.RawPlayback) (models.Playback, error) {
	if raw != nil && raw.Device != nil && raw.Device.IsPrivateSession {
		d, err := models.NewDevice(*raw.Device)
		if err != nil {
			return models.Playback{}, err
		}
		w.logger.Debug("withholding playback", "device", d.ID, "reason", shared.ErrPrivateSession)
		return models.Playback{Device: &d}, nil
	}
	return models.NewPlayback(raw)
}

func (w *PlaybackWorker) track(ctx context.Context, update *PlaybackUpdate) {
	ids := make([]string, len(update.Devices))
	for i, d := range update.Devices {
		ids[i] = d.ID
	}

	w.mu.Lock()
	update.DevicesChanged = !w.polled || !slices.Equal(ids, w.deviceIDs)
	w.deviceIDs = ids
	w.polled = true

	var entry *models.PlaybackEntry
	if t := update.Playback.Track; t != nil && t.URI != w.lastTrack {
		w.lastTrack = t.URI
		entry = &models.PlaybackEntry{TrackURI: t.URI, Title: t.Title, ObservedAt: update.ObservedAt}
		if update.Playback.Device != nil {
			entry.DeviceID = update.Playback.Device.ID
		}
	}
	w.mu.Unlock()

	if update.DevicesChanged {
		w.logger.Debug("devices changed", "devices", ids)
	}
	if entry != nil && w.history != nil {
		if err := w.history.Record(ctx, entry); err != nil {
			w.logger.Warn("failed to record playback", "track", entry.TrackURI, "error", err)
		}
	}
}

// publish stores update as the latest and offers it to every subscriber without blocking.
func (w *PlaybackWorker) publish(update PlaybackUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.latest = &update
	for id, ch := range w.subs {
		select {
		case ch <- update:
		default:
			w.logger.Debug("subscriber lagging, dropped update", "subscriber", id)
		}
	}
}
