// Package artifact implements the binary container format for backup data.
//
// An artifact is a single immutable blob holding every entity of one
// collection at backup time. It is written as a short header, one frame per
// exported page, and a footer with aggregate totals:
//
//	header  magic "VBK1", format version, compression id, payload codec name
//	frame   magic "VBFR", page index, row count, payload length, payload CRC32
//	footer  magic "VBFT", frame count, total rows, CRC32 over the frame CRCs
//
// Frame payloads are codec-encoded row batches compressed as a single block.
// Pages must be appended in strictly ascending order starting at zero, so a
// given export always produces a byte-identical layout.
//
// Writers compute a SHA-256 digest of every byte written; the digest is
// recorded in the backup manifest and checked again before any restore
// decodes the container. Readers validate magics, the format version, every
// frame CRC, page ordering, and the footer totals, and report any mismatch
// as a *CorruptError.
package artifact
