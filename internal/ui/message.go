package ui

import (
	"iter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgTrackStreamed
	MsgPlaybackUpdate
	MsgPlaybackClosed
	MsgReordered
	MsgCommandDone
)

type playlistsFetched struct {
	playlists []models.Playlist
	err       error
}

// trackStreamed carries one pull from a stream. ok is false once the sequence is exhausted.
type trackStreamed struct {
	stream *trackStream
	track  models.PlaylistTrack
	err    error
	ok     bool
}

type reordered struct {
	playlist models.Playlist
	err      error
}

type commandDone struct {
	status string
	err    error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{playlists, err}}
}

// trackStreamedMsg is the constructor for [MsgTrackStreamed]
func trackStreamedMsg(s *trackStream, pt models.PlaylistTrack, err error, ok bool) Msg {
	return Msg{kind: MsgTrackStreamed, data: trackStreamed{s, pt, err, ok}}
}

// playbackUpdateMsg is the constructor for [MsgPlaybackUpdate]
func playbackUpdateMsg(update tasks.PlaybackUpdate) Msg {
	return Msg{kind: MsgPlaybackUpdate, data: update}
}

// playbackClosedMsg is the constructor for [MsgPlaybackClosed]
func playbackClosedMsg() Msg {
	return Msg{kind: MsgPlaybackClosed}
}

// reorderedMsg is the constructor for [MsgReordered]
func reorderedMsg(p models.Playlist, err error) Msg {
	return Msg{kind: MsgReordered, data: reordered{p, err}}
}

// commandDoneMsg is the constructor for [MsgCommandDone]
func commandDoneMsg(status string, err error) Msg {
	return Msg{kind: MsgCommandDone, data: commandDone{status, err}}
}

// trackStream is a pull-based traversal of one playlist. next and stop are never called concurrently:
// at most one pull command is in flight, and stop runs only once that pull has returned.
type trackStream struct {
	playlist models.Playlist
	next     func() (models.PlaylistTrack, error, bool)
	stop     func()
	cancel   func()
	pending  bool
	done     bool
}

func newTrackStream(p models.Playlist, seq iter.Seq2[models.PlaylistTrack, error], cancel func()) *trackStream {
	next, stop := iter.Pull2(seq)
	return &trackStream{playlist: p, next: next, stop: stop, cancel: cancel}
}

// pull returns a command that advances the stream by one track.
func (s *trackStream) pull() tea.Cmd {
	s.pending = true
	return func() tea.Msg {
		pt, err, ok := s.next()
		return trackStreamedMsg(s, pt, err, ok)
	}
}

// close releases the traversal. It must not be called while a pull is pending.
func (s *trackStream) close() {
	if s.done {
		return
	}
	s.done = true
	s.cancel()
	s.stop()
}
