package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Checksum utilities for artifact integrity verification.
//
// The whole-container digest uses SHA-256 and is recorded in the backup
// manifest as "sha256:<hex>". Per-frame CRC32 catches localized damage
// during decode; the SHA-256 digest is the restore pre-flight gate.

// Checksum streams r through SHA-256 and returns the manifest form.
func Checksum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", &IOError{Op: "checksum", Err: err}
	}
	return ChecksumPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum streams r through SHA-256 and compares against want, a
// manifest checksum of the form "sha256:<hex>". A mismatch is reported as
// a *CorruptError so callers can distinguish damage from transport failure.
func VerifyChecksum(r io.Reader, want string) error {
	if !strings.HasPrefix(want, ChecksumPrefix) {
		return fmt.Errorf("artifact: unsupported checksum format %q", want)
	}

	got, err := Checksum(r)
	if err != nil {
		return err
	}

	if got != want {
		return &CorruptError{
			Detail: fmt.Sprintf("checksum mismatch: expected %s, got %s", want, got),
		}
	}
	return nil
}
