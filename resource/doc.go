// Package resource enforces process-wide limits on backup and restore work:
// a memory budget for pages buffered during parallel export, a cap on
// concurrent page fetches, and an IO throughput throttle for artifact
// streaming.
//
// A single Controller is shared by every coordinator created from the same
// client, so two backups running side by side compete for the same budget
// instead of doubling it. All methods tolerate a nil receiver; a nil
// Controller means no limits.
package resource
