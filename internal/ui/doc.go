// Package ui implements an interactive terminal player using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [PlaylistListView] : Browse the user's playlists, Liked Songs first
//  2. [TrackListView] : Tracks of the selected playlist, loaded one at a time as they stream in
//
// Tracks are pulled from the [tasks.TrackStreamer] sequence with one pull per command, so the list
// fills in while pages are still being fetched. Leaving the view abandons the traversal.
//
// A status line at the bottom follows the [tasks.PlaybackWorker] subscription. Transport keys act on the
// active device from either view. In the track view J/K move the selected track and the new order is
// sent to the remote playlist through the [tasks.ReorderCoordinator].
//
// The terminal belongs to bubbletea, so diagnostics go to a log file rather than stderr.
package ui
