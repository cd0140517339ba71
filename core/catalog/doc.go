// Package catalog resolves abstract version specifiers against the remote
// release feed and retrieves the matching server archives.
//
// A specifier (catalog.Spec) is user input: "stable", "experimental", or a
// numeric prefix such as "1.1". Resolution turns it into a concrete,
// immutable catalog.Identifier by querying the feed. The feed is externally
// mutable, so there is no process-wide cache: each Resolve call is a fresh
// query, and callers resolve once per logical operation and carry the
// resulting identifier throughout.
//
// # Wire format
//
// The feed endpoint returns a JSON object keyed by channel:
//
//	{
//	  "stable":       [{"version": "1.1.87", "url": "...", "sha256": "..."}],
//	  "experimental": [{"version": "1.2.0",  "url": "...", "sha256": "..."}]
//	}
//
// # Error kinds
//
//   - ErrUnavailable: the feed could not be reached or was malformed.
//   - ErrNoMatchingVersion: a specifier matched nothing in the feed.
//   - ErrDownloadFailed: an archive request failed at the network level.
//   - ErrArchiveCorrupt: a downloaded archive failed checksum verification.
package catalog
