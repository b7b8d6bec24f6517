// Package models defines the entities mirrored from the music provider and the [Store] contract the sync pipeline persists them through.
//
// Persistent entities:
//   - [User] : local account keyed by the provider's user ID
//   - [Playlist] : a playlist owned by a user, pointing at its current cover
//   - [Image] : a distinct piece of cover content, deduplicated by content identity
//
// Images carry an [ImageKind] recording whether they were uploaded, generated, or mirrored from the provider.
package models
