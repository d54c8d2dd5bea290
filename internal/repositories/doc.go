// Package repositories implements persistence for playlist snapshots and playback history.
//
// Snapshot stores are keyed by the playlist version token. Each backend writes an entry atomically and
// reports undecodable payloads as *shared.CacheCorruptError and absent ones as shared.ErrCacheMiss:
//   - [SnapshotRepository] : SQLite table created by the embedded migrations (default)
//   - [FileSnapshotStore] : one JSON file per token, written through a temp file and rename
//   - [RedisSnapshotStore] : one key per token, for caches shared between machines
//
// [HistoryRepository] records the track changes observed by the playback worker.
package repositories
