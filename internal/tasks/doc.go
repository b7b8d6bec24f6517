// Package tasks implements the playlist cover synchronization pipeline.
//
// # Core Operations
//
//  1. [Reconciler.Reconcile] : bring the local mirror in line with a batch of provider playlists
//     - Skips playlists the owner does not own before touching the store
//     - Creates or renames playlist rows only when they differ
//     - Deduplicates covers by content identity via [Reconciler.ApplyCover]
//     - Records per-playlist failures and keeps going
//
//  2. [CoverUploader.UploadCover] : replace a cover on the provider, then mirror it
//     - Provider write first, then a bounded wait for the new cover URL
//     - [CoverUploader.SelectCover] re-uploads a cover seen before
//     - [CoverUploader.GenerateCover] uploads a cover from the image generator
//
//  3. [SyncController.StartSync] : resolve the user and queue a full reconciliation
//     - Returns an accepted [SyncHandle] immediately
//     - The job runs on a [Queue] worker with its own context and logger
//
// # Progress Reporting
//
// Long operations accept an optional channel of [ProgressUpdate]. Updates use select with default
// so a slow reader never blocks the pipeline.
//
// # Concurrency
//
// No locks guard the store. Every write is keyed by a provider ID or a content identity, so
// concurrent syncs converge on the same state. An upload racing a full sync of the same playlist
// can leave the older cover in place until the next sync.
package tasks
