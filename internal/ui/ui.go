package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/formatter"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/desertthunder/playdeck/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
)

const volumeStep = 10

// Deps are the components the TUI drives.
type Deps struct {
	Catalog     *tasks.PlaylistCatalog
	Streamer    *tasks.TrackStreamer
	Coordinator *tasks.ReorderCoordinator
	Worker      *tasks.PlaybackWorker
	Transport   *tasks.Transport
	Logger      *log.Logger
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	deps   Deps
	logger *log.Logger

	view         ViewState
	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	playlists    []models.Playlist
	tracks       []models.PlaylistTrack
	stream       *trackStream
	selected     models.Playlist

	updates     <-chan tasks.PlaybackUpdate
	unsubscribe func()
	playback    tasks.PlaybackUpdate
	hasPlayback bool

	status string
	err    error
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model. The worker subscription is opened here so no update is missed
// between construction and the first render.
func NewModel(ctx context.Context, deps Deps) *Model {
	logger := deps.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	m := &Model{
		ctx:          ctx,
		deps:         deps,
		logger:       logger,
		view:         PlaylistListView,
		playlistList: newList("Playlists"),
		trackList:    newList(""),
		help:         help.New(),
		keys:         newKeyMap(),
	}
	if deps.Worker != nil {
		m.updates, m.unsubscribe = deps.Worker.Subscribe()
	}
	return m
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

// Init fetches playlists and starts listening for playback updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPlaylists(false), m.waitForPlayback())
}

// Close stops any running traversal and detaches from the playback worker.
func (m *Model) Close() {
	m.abandonStream()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-6)
		m.trackList.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.playlists = data.playlists
		return m, m.playlistList.SetItems(playlistItems(data.playlists))

	case MsgTrackStreamed:
		return m.handleTrack(msg.data.(trackStreamed))

	case MsgPlaybackUpdate:
		m.playback = msg.data.(tasks.PlaybackUpdate)
		m.hasPlayback = true
		return m, m.waitForPlayback()

	case MsgPlaybackClosed:
		m.updates = nil
		return m, nil

	case MsgReordered:
		data := msg.data.(reordered)
		if data.err != nil {
			m.logger.Error("reorder failed", "playlist", m.selected.ID, "error", data.err)
			m.status = styles.err.Render(fmt.Sprintf("Reorder failed: %v", data.err))
			return m, nil
		}
		if data.playlist.ID == m.selected.ID {
			m.selected = data.playlist
		}
		m.status = styles.ok.Render("Order saved")
		return m, nil

	case MsgCommandDone:
		data := msg.data.(commandDone)
		if data.err != nil {
			m.logger.Warn("command failed", "error", data.err)
			m.status = styles.err.Render(data.err.Error())
		} else {
			m.status = data.status
		}
		return m, nil
	}
	return m, nil
}

// handleTrack appends a streamed track and schedules the next pull.
func (m *Model) handleTrack(msg trackStreamed) (tea.Model, tea.Cmd) {
	s := msg.stream
	s.pending = false

	if s != m.stream {
		s.close()
		return m, nil
	}

	if !msg.ok {
		s.close()
		m.status = fmt.Sprintf("%d tracks", len(m.tracks))
		return m, nil
	}
	if msg.err != nil {
		s.close()
		m.logger.Error("track stream failed", "playlist", s.playlist.ID, "error", msg.err)
		m.status = styles.err.Render(fmt.Sprintf("Loading stopped: %v", msg.err))
		return m, nil
	}

	m.tracks = append(m.tracks, msg.track)
	insert := m.trackList.InsertItem(len(m.tracks)-1, trackItem{track: msg.track})
	m.status = fmt.Sprintf("Loading... %d tracks", len(m.tracks))
	return m, tea.Batch(insert, s.pull())
}

// View renders the current view with the status line and help below it.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+r to retry, q to quit", m.err))
	}

	var body string
	var helpKeys []key.Binding
	switch m.view {
	case PlaylistListView:
		body = m.playlistList.View()
		helpKeys = []key.Binding{m.keys.enter, m.keys.refresh, m.keys.play, m.keys.next, m.keys.quit}
	case TrackListView:
		body = m.trackList.View()
		playKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play"))
		helpKeys = []key.Binding{playKey, m.keys.moveUp, m.keys.moveDown, m.keys.back, m.keys.quit}
	}

	return fmt.Sprintf("%s\n%s\n%s", body, m.renderStatus(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderStatus() string {
	var parts []string
	if m.hasPlayback {
		parts = append(parts, describePlayback(m.playback))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	return styles.status.Width(max(m.width-4, 0)).Render(strings.Join(parts, "  |  "))
}

// describePlayback renders one update as a single status line.
func describePlayback(u tasks.PlaybackUpdate) string {
	if u.PrivateSession() {
		return styles.warn.Render(fmt.Sprintf("Private session on %s", u.Playback.Device.Name))
	}
	pb := u.Playback
	if pb.Track == nil {
		if pb.Device == nil {
			return styles.help.Render("No active device")
		}
		return styles.help.Render(fmt.Sprintf("Nothing playing on %s", pb.Device.Name))
	}

	icon := "⏸"
	var flags []string
	if s := pb.State; s != nil {
		if s.Playing {
			icon = "▶"
		}
		if s.Shuffle {
			flags = append(flags, "shuffle")
		}
		if s.Repeat != models.RepeatOff {
			flags = append(flags, "repeat "+string(s.Repeat))
		}
	}

	line := fmt.Sprintf("%s %s - %s", icon, pb.Track.ArtistLine(), pb.Track.Title)
	if pb.State != nil {
		line += fmt.Sprintf(" [%s/%s]", formatter.FormatDuration(pb.State.ProgressMS), formatter.FormatDuration(pb.Track.DurationMS))
	}
	if pb.Device != nil {
		line += fmt.Sprintf(" on %s (%d%%)", pb.Device.Name, pb.Device.VolumePercent)
	}
	if len(flags) > 0 {
		line += " " + styles.help.Render(strings.Join(flags, ", "))
	}
	return line
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.activeList().FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		m.err = nil
		return m, m.fetchPlaylists(true)
	}

	if cmd, ok := m.transportCmd(msg); ok {
		return m, cmd
	}

	switch m.view {
	case PlaylistListView:
		return m.handlePlaylistListKeys(msg)
	case TrackListView:
		return m.handleTrackListKeys(msg)
	}
	return m, nil
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.enter) {
		if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m, m.openPlaylist(item.playlist)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.abandonStream()
		m.view = PlaylistListView
		m.status = ""
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.trackList.SelectedItem().(trackItem); ok {
			return m, m.playTrack(item.track)
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		i := m.trackList.Index()
		return m, m.moveTrack(i, i-1)
	case key.Matches(msg, m.keys.moveDown):
		i := m.trackList.Index()
		return m, m.moveTrack(i, i+2)
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) activeList() *list.Model {
	if m.view == TrackListView {
		return &m.trackList
	}
	return &m.playlistList
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

// openPlaylist switches to the track view and starts a fresh traversal of p.
func (m *Model) openPlaylist(p models.Playlist) tea.Cmd {
	m.abandonStream()

	m.selected = p
	m.tracks = nil
	m.view = TrackListView
	m.trackList.Title = p.Name
	m.trackList.ResetFilter()
	m.trackList.Select(0)
	m.status = "Loading..."

	ctx, cancel := context.WithCancel(m.ctx)
	m.stream = newTrackStream(p, m.deps.Streamer.Stream(ctx, p), cancel)
	return tea.Batch(m.trackList.SetItems(nil), m.stream.pull())
}

// abandonStream detaches the current traversal. A traversal with a pull in flight is closed
// when that pull's message arrives.
func (m *Model) abandonStream() {
	s := m.stream
	if s == nil {
		return
	}
	m.stream = nil
	s.cancel()
	if !s.pending {
		s.close()
	}
}

func (m *Model) loading() bool {
	return m.stream != nil && !m.stream.done
}

// moveTrack applies a move locally and sends it to the remote playlist.
// from and to follow [tasks.Move]: to is a pre-move position in [0, len].
func (m *Model) moveTrack(from, to int) tea.Cmd {
	if m.selected.Liked {
		m.status = styles.warn.Render("Liked Songs cannot be reordered")
		return nil
	}
	if m.loading() {
		m.status = styles.warn.Render("Wait for all tracks to load before reordering")
		return nil
	}
	if from < 0 || to < 0 || to > len(m.tracks) || to == from || to == from+1 {
		return nil
	}

	before := m.tracks
	moved, err := tasks.MoveTracks(before, from, to)
	if err != nil {
		m.status = styles.err.Render(err.Error())
		return nil
	}
	m.tracks = moved

	dest := to
	if to > from {
		dest = to - 1
	}
	setItems := m.trackList.SetItems(trackItems(moved))
	m.trackList.Select(dest)
	m.status = "Saving order..."

	p := m.selected
	coordinator := m.deps.Coordinator
	ctx := m.ctx
	return tea.Batch(setItems, func() tea.Msg {
		updated, err := coordinator.ReorderTracks(ctx, p, before, from, to)
		return reorderedMsg(updated, err)
	})
}

func (m *Model) playTrack(pt models.PlaylistTrack) tea.Cmd {
	if pt.IsLocal {
		m.status = styles.warn.Render("Local tracks cannot be played remotely")
		return nil
	}
	contextURI := m.selected.URI
	transport := m.deps.Transport
	ctx := m.ctx
	return func() tea.Msg {
		err := transport.PlayTrack(ctx, contextURI, pt.Track)
		return commandDoneMsg(fmt.Sprintf("Playing %s", pt.Track.Title), err)
	}
}

// transportCmd returns the player command bound to msg, if any.
func (m *Model) transportCmd(msg tea.KeyMsg) (tea.Cmd, bool) {
	t := m.deps.Transport
	ctx := m.ctx

	var run func() (string, error)
	switch {
	case key.Matches(msg, m.keys.play):
		run = func() (string, error) { return "", t.TogglePlayPause(ctx) }
	case key.Matches(msg, m.keys.next):
		run = func() (string, error) { return "", t.Next(ctx) }
	case key.Matches(msg, m.keys.previous):
		run = func() (string, error) { return "", t.Previous(ctx) }
	case key.Matches(msg, m.keys.shuffle):
		run = func() (string, error) {
			on, err := t.ToggleShuffle(ctx)
			return fmt.Sprintf("Shuffle %s", onOff(on)), err
		}
	case key.Matches(msg, m.keys.repeat):
		run = func() (string, error) {
			mode, err := t.CycleRepeat(ctx)
			return fmt.Sprintf("Repeat %s", mode), err
		}
	case key.Matches(msg, m.keys.volUp, m.keys.volDown):
		d := m.playback.ActiveDevice
		if d == nil {
			m.status = styles.warn.Render("No active device")
			return nil, true
		}
		step := volumeStep
		if key.Matches(msg, m.keys.volDown) {
			step = -volumeStep
		}
		target := min(max(d.VolumePercent+step, 0), 100)
		run = func() (string, error) { return fmt.Sprintf("Volume %d%%", target), t.SetVolume(ctx, target) }
	default:
		return nil, false
	}

	if t == nil {
		return nil, true
	}
	return func() tea.Msg {
		status, err := run()
		if errors.Is(err, shared.ErrRemoteUnavailable) {
			err = fmt.Errorf("player unavailable: %w", err)
		}
		return commandDoneMsg(status, err)
	}, true
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// fetchPlaylists loads the collection with Liked Songs first. refresh drops the catalog's memoized list.
func (m *Model) fetchPlaylists(refresh bool) tea.Cmd {
	catalog := m.deps.Catalog
	ctx := m.ctx
	return func() tea.Msg {
		var playlists []models.Playlist
		var err error
		if refresh {
			playlists, err = catalog.Refresh(ctx)
		} else {
			playlists, err = catalog.ListPlaylists(ctx)
		}
		if err != nil {
			return playlistsFetchedMsg(nil, err)
		}

		liked, err := catalog.LikedSongs(ctx)
		if err != nil {
			return playlistsFetchedMsg(nil, err)
		}
		return playlistsFetchedMsg(append([]models.Playlist{liked}, playlists...), nil)
	}
}

// waitForPlayback blocks on the next worker update.
func (m *Model) waitForPlayback() tea.Cmd {
	updates := m.updates
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return playbackClosedMsg()
		}
		return playbackUpdateMsg(update)
	}
}
