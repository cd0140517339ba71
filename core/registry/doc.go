// Package registry owns the authoritative set of server instances.
//
// Each instance is persisted as one name-keyed directory holding its record
// (instance.json: declared specifier, autoupdate policy, and the concrete
// pin to its installed version) plus its configuration documents and save
// archive. The registry copies configuration documents opaquely; it never
// interprets server settings or map data.
//
// The registry is the top-level driver of the catalog and the store:
// create resolves the declared specifier, installs the resolved version,
// and only then records the instance, so a record never references a
// version that is not fully installed. Delete removes the registry entry
// only; unreferenced versions are reclaimed by the explicit prune
// operation, which recomputes references by scanning all records.
package registry
