// Package models defines the records exchanged between the remote music service, the snapshot cache and the playdeck front-ends.
//
// The package contains two categories of types:
//
// 1. Raw records: the JSON shapes returned by the remote service
//   - [RawPlaylist], [RawPlaylistItem], [RawTrack], [RawUser], [RawDevice], [RawPlayback]
//
// 2. Domain records: validated, immutable values built from raw records
//   - [User], [Device], [Playlist], [Track], [PlaylistTrack], [PlaybackState], [Playback]
//   - [Snapshot] : the persisted, complete track listing for one playlist version token
//
// Constructors fail fast with a *shared.MissingFieldError when a raw record lacks a required field.
package models
