// Package repositories implements SQLite persistence for the collection tracker.
//
// Key Implementations:
//   - [KVRepository] : fixed-key string storage, the local equivalent of browser storage
//   - [ProgressRepository] : the progress document under [ProgressKey] plus one-time migration markers
//   - [DocumentRepository] : JSON documents held by the sync mirror, with a per-path revision counter
//   - [CollectionRepository] : collections created or joined from this machine
//
// Storage failures wrap [shared.ErrStorage]. Lookups of missing rows wrap [ErrNotFound].
package repositories
