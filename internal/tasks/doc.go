// Package tasks implements the playlist pipeline on top of a [services.RemoteLibrary].
//
// # Components
//
//  1. [PlaylistCatalog] : the session's playlist collection
//     - Fetched once and replayed from memory until invalidated
//     - Owner profiles resolved concurrently and memoized
//     - Create and delete go through the remote service; display order is session-local
//
//  2. [TrackStreamer] : lazy, restartable track sequences
//     - Replays the cached [models.Snapshot] for the playlist's version token with no remote calls
//     - Otherwise yields tracks page by page and commits the snapshot after the last page
//     - Items without a track payload are skipped and do not consume a position
//     - Liked Songs have no version token and are never cached
//
//  3. [ReorderCoordinator] : remote mutations (reorder, add, remove)
//     - Propagates the returned version token and invalidates the old cache entry
//
//  4. [PlaybackWorker] : a single polling loop fanning [PlaybackUpdate] values out to subscribers
//     - Private sessions reveal the device only
//     - Track changes are handed to an optional [HistoryRecorder]
//
//  5. [Transport] : player commands using the worker's last poll for toggles and repeat cycling
//
// # Progress Reporting
//
// Listing and collecting accept an optional channel of [ProgressUpdate]. Updates use select with default
// so reporting never blocks.
package tasks
