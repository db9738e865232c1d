// Package restore rebuilds a collection from a backup: artifact checksum
// pre-flight, schema reconstruction, partition and index recreation, batch
// loading with retries, and a final verification pass.
//
// A restore replaces the target collection. The backup itself is never
// mutated; a failed or partial restore can always be retried from the same
// artifact. Progress is reported through a state machine whose steps, with
// durations and outcomes, end up in the returned Report.
package restore
