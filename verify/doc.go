// Package verify checks restored collections against their manifests and
// backup artifacts against their own integrity metadata.
//
// Collection verification is read-only and deterministic: running it twice
// against an unchanged collection yields the same result. Artifact
// verification needs no collection store at all; it re-reads the blob,
// re-computes the checksum and decodes every frame.
package verify
