package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hupe1980/vecback/blobstore"
)

// Catalog is the backup registry: one directory per backup name inside a
// blob store, holding manifest.json plus the data artifact.
//
// The catalog itself keeps no state; listing and lookups go straight to the
// store, so any process pointed at the same bucket or directory sees the
// same backups.
type Catalog struct {
	store blobstore.BlobStore
	mu    sync.Mutex
}

// NewCatalog creates a catalog over the given blob store.
func NewCatalog(store blobstore.BlobStore) *Catalog {
	return &Catalog{store: store}
}

// Store exposes the underlying blob store, used by coordinators to stream
// artifacts into the same location the manifests live in.
func (c *Catalog) Store() blobstore.BlobStore {
	return c.store
}

func manifestKey(name string) string {
	return name + "/" + FileName
}

// Exists reports whether a backup with the given name exists.
func (c *Catalog) Exists(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}

	b, err := c.store.Open(ctx, manifestKey(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = b.Close()
	return true, nil
}

// Save persists a manifest as <name>/manifest.json. Saving over an existing
// backup name fails with ErrAlreadyExists; backups are write-once.
func (c *Catalog) Save(ctx context.Context, m *Manifest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := m.Validate(); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}

	exists, err := c.Exists(ctx, m.BackupName)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, m.BackupName)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	return c.store.Put(ctx, manifestKey(m.BackupName), data)
}

// Get loads the manifest for a backup name.
func (c *Catalog) Get(ctx context.Context, name string) (*Manifest, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	b, err := c.store.Open(ctx, manifestKey(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	defer b.Close()

	rc, err := b.NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}

	if m.FormatVersion > CurrentFormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrIncompatibleVersion, m.FormatVersion)
	}

	return m, nil
}

// List returns all readable manifests, sorted by backup name. Unreadable or
// foreign blobs are skipped so one damaged backup does not hide the rest.
func (c *Catalog) List(ctx context.Context) ([]*Manifest, error) {
	names, err := c.store.List(ctx, "")
	if err != nil {
		return nil, err
	}

	var manifests []*Manifest
	for _, key := range names {
		name, ok := strings.CutSuffix(key, "/"+FileName)
		if !ok || strings.Contains(name, "/") {
			continue
		}
		m, err := c.Get(ctx, name)
		if err != nil {
			continue // Skip unreadable manifests
		}
		manifests = append(manifests, m)
	}

	return manifests, nil
}

// Delete removes a backup: the manifest, the artifact, and anything else
// stored under its name. Deleting a missing backup returns ErrNotFound.
func (c *Catalog) Delete(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ValidateName(name); err != nil {
		return err
	}

	keys, err := c.store.List(ctx, name+"/")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// OpenArtifact opens the data artifact referenced by a manifest.
func (c *Catalog) OpenArtifact(ctx context.Context, m *Manifest) (blobstore.Blob, error) {
	b, err := c.store.Open(ctx, m.ArtifactKey())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: artifact %s", ErrNotFound, m.ArtifactKey())
		}
		return nil, err
	}
	return b, nil
}
