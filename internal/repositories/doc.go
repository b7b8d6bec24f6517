// Package repositories implements SQLite persistence for the cover mirror.
//
// Key Implementations:
//   - [UserRepository] : users keyed by local ID with a unique provider ID
//   - [PlaylistRepository] : playlists and their current cover pointer
//   - [ImageRepository] : cover images, unique by content identity, with recent-history reads
//   - [Store] : the models.Store contract composed from the three repositories
//
// Writes are single-row INSERT ... ON CONFLICT statements so that concurrent sync jobs converge without locks.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
