// Package manifest defines the backup manifest document and the catalog
// that stores manifests and artifacts in a blob store.
//
// A manifest is the complete description of one backup: identity, the
// captured schema, partitions and index definitions, row counts, and the
// checksum of the data artifact. Together with the artifact it is the only
// state a restore needs; there is no other registry or database.
//
// Manifests are immutable. They are assembled in memory while the backup
// runs and persisted exactly once, as the final step, so a manifest that
// exists always points at a complete artifact.
package manifest

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/vecback/schema"
)

const (
	// CurrentFormatVersion is the manifest format written by this build.
	CurrentFormatVersion = 1

	// FileName is the manifest blob name inside a backup directory.
	FileName = "manifest.json"

	// KindFull marks a full (non-incremental) backup.
	KindFull = "full"
)

// Manifest describes a single completed backup.
type Manifest struct {
	ID            string    `json:"id"`
	FormatVersion int       `json:"format_version"`
	BackupName    string    `json:"backup_name"`
	Collection    string    `json:"collection"`
	Kind          string    `json:"kind"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`

	// ArtifactPath is the artifact blob name relative to the backup
	// directory, e.g. "data.vbk".
	ArtifactPath string `json:"artifact_path"`

	Schema     schema.Descriptor       `json:"schema"`
	Partitions []schema.Partition      `json:"partitions"`
	Indexes    map[string]schema.Index `json:"indexes,omitempty"`

	EntityCount  int64  `json:"entity_count"`
	BatchCount   int    `json:"batch_count"`
	PageSize     int    `json:"page_size"`
	ArtifactSize int64  `json:"artifact_size"`
	Checksum     string `json:"checksum"`
	Compression  string `json:"compression"`
	Codec        string `json:"codec"`

	// ReducedFidelity is set when the export could not capture exact
	// point-in-time row/vector pairing, e.g. when the source store cannot
	// return vectors and scalars in a single scan.
	ReducedFidelity bool     `json:"reduced_fidelity"`
	Warnings        []string `json:"warnings,omitempty"`
}

// New starts a manifest for a backup of collection under backupName.
func New(collection, backupName string) *Manifest {
	return &Manifest{
		ID:            uuid.NewString(),
		FormatVersion: CurrentFormatVersion,
		BackupName:    backupName,
		Collection:    collection,
		Kind:          KindFull,
		StartedAt:     time.Now().UTC(),
	}
}

// Validate checks that the manifest is complete enough to restore from.
// It deliberately does not validate field types inside the schema: those
// may come from a newer writer and are repaired during restore instead.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("missing id")
	}
	if m.FormatVersion <= 0 {
		return fmt.Errorf("format version %d out of range", m.FormatVersion)
	}
	if err := ValidateName(m.BackupName); err != nil {
		return err
	}
	if m.Collection == "" {
		return fmt.Errorf("missing collection")
	}
	if m.Kind != KindFull {
		return fmt.Errorf("unsupported backup kind %q", m.Kind)
	}
	if m.ArtifactPath == "" || strings.ContainsAny(m.ArtifactPath, `/\`) {
		return fmt.Errorf("invalid artifact path %q", m.ArtifactPath)
	}
	if len(m.Schema.Fields) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	if m.EntityCount < 0 {
		return fmt.Errorf("entity count %d out of range", m.EntityCount)
	}
	if m.BatchCount < 0 {
		return fmt.Errorf("batch count %d out of range", m.BatchCount)
	}
	if m.PageSize <= 0 {
		return fmt.Errorf("page size %d out of range", m.PageSize)
	}
	if !strings.HasPrefix(m.Checksum, "sha256:") {
		return fmt.Errorf("unsupported checksum %q", m.Checksum)
	}
	if m.FinishedAt.IsZero() || m.FinishedAt.Before(m.StartedAt) {
		return fmt.Errorf("finished_at is not after started_at")
	}
	return nil
}

// ArtifactKey returns the full blob name of the backup's data artifact.
func (m *Manifest) ArtifactKey() string {
	return m.BackupName + "/" + m.ArtifactPath
}

// ValidateName checks that a backup name is usable as a storage key.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}
