package tasks

import (
	"fmt"

	"github.com/desertthunder/playdeck/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, zero when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylists Phase = iota
	ResolveOwners
	StreamTracks
	CommitSnapshot
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylists:
		return "fetch_playlists"
	case ResolveOwners:
		return "resolve_owners"
	case StreamTracks:
		return "stream_tracks"
	case CommitSnapshot:
		return "commit_snapshot"
	default:
		return ""
	}
}

func fetchPlaylistsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    1,
		Total:   1,
		Message: "Fetching playlists...",
	}
}

func resolveOwnersUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveOwners,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Resolving %d playlist owners...", total),
	}
}

func streamTrackUpdate(pt models.PlaylistTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StreamTracks,
		Step:    pt.Index,
		Message: fmt.Sprintf("[%d] %s - %s", pt.Index, pt.Track.ArtistLine(), pt.Track.Title),
		Data:    pt,
	}
}

func streamDoneUpdate(p models.Playlist, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CommitSnapshot,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("✓ %s (%d tracks)", p.Name, total),
	}
}
