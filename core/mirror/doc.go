// Package mirror provides an optional S3-compatible cache for release
// archives.
//
// It wraps the MinIO Go client to serve archives from a private bucket
// before falling back to the vendor's download servers. This keeps fleets
// of hosts behind one mirror from re-downloading the same version, and
// keeps installs working when the vendor is unreachable but the mirror
// already holds the archive.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it
// easier to mock storage interactions for unit testing (see mirror/mocks).
//
// # Checksums
//
// The upstream checksum is stored as object user metadata on upload, so a
// later mirror hit remains verifiable without contacting the feed.
package mirror
