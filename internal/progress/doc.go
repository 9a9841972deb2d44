// Package progress is the synchronization core between the study view, the
// in-memory progress tree and the remote progress store. A Syncer applies
// goal toggles optimistically, deduplicates them into a pending set and
// persists that set in debounced batches. Hydrated trees and aggregate
// statistics are cached for short TTLs and invalidated by every successful
// write.
package progress
