// Package vecback provides backup and recovery tooling for vector
// databases.
//
// Vecback snapshots a collection (schema, partitions, indexes and entities)
// into a compressed, checksummed artifact plus a JSON manifest, and restores
// it into a fresh collection with integrity verification. It consumes a
// vector store through the collection.Store interface and writes backups to
// any blobstore.BlobStore (local directory, S3, MinIO or in-memory).
//
// # Quick Start
//
//	ctx := context.Background()
//
//	blobs := blobstore.NewLocalStore("./backups")
//	client := vecback.New(store, blobs)
//
//	// Snapshot a collection.
//	m, _ := client.CreateBackup(ctx, "articles", "nightly")
//	fmt.Println(m.EntityCount, m.Checksum)
//
//	// Restore it into a new collection.
//	report, _ := client.RestoreBackup(ctx, "nightly", "articles_restored")
//	fmt.Println(report.State, report.Inserted)
//
//	// Check a stored backup without touching any collection.
//	res, _ := client.VerifyBackup(ctx, "nightly")
//	fmt.Println(res.Passed)
//
// # Recovery Drills
//
// A drill rehearses the whole recovery path against a throwaway collection
// and reports per-step timings, so the backup strategy is validated before
// an incident, not during one:
//
//	report, _ := client.RunDrill(ctx, drill.DataCorruptionScenario(), "nightly")
//	fmt.Println(report.Passed)
//
// # Durability Model
//
// A backup becomes visible only when its manifest is written, which happens
// after the artifact is fully stored and checksummed. Failed or cancelled
// backups delete everything they wrote. Restores verify the artifact
// checksum before touching the target collection.
//
// # Key Properties
//
//   - Manifest and artifact are the only persisted state
//   - Artifact frames are compressed (zstd or lz4) and CRC-checked
//   - Parallel page export with deterministic artifact layout
//   - At most one active backup or restore per collection name
//   - Structured reports for every operation instead of bare pass/fail
package vecback
