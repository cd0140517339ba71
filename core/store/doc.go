// Package store manages the shared on-disk repository of installed server
// binary versions.
//
// The store holds one subdirectory per installed identifier. Many server
// instances reference the same installed tree; the store itself never
// tracks references, it only installs and removes trees.
//
// # Atomicity
//
// EnsureInstalled downloads, checksums, extracts and verifies entirely
// inside a staging directory, then commits with a single rename. A version
// directory is therefore either absent or fully extracted and verified; a
// killed process leaves at worst an orphaned staging directory, never a
// corrupt final one.
//
// # Concurrency
//
// Independent CLI processes share the store. All per-identifier mutation is
// guarded by an advisory lock file beside the store (plus an in-process
// mutex for goroutines of the same process). Two concurrent installs of
// the same identifier result in exactly one extraction: the second caller
// waits on the lock and takes the fast path. Prune acquires each
// candidate's lock non-blocking and keeps anything it cannot lock, so a
// version is never deleted mid-extraction.
package store
