// Package backup exports collections into immutable artifacts with a
// manifest describing everything needed to rebuild them.
//
// A full backup captures four things: the schema, the partition list, the
// index definitions, and every entity. Metadata is captured first, then the
// data exporter streams pages of rows into an artifact writer. The manifest
// is persisted last, so its existence guarantees a complete backup; a failed
// or cancelled run deletes everything it wrote.
//
// The source collection is only ever read. Backups of the same collection
// are mutually exclusive with restores of it, enforced by a per-collection
// lock shared with the restore coordinator.
package backup
