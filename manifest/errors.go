package manifest

import "errors"

var (
	// ErrIncompatibleVersion is returned when the manifest format version is
	// newer than this build understands.
	ErrIncompatibleVersion = errors.New("incompatible manifest format version")

	// ErrNotFound is returned when no backup with the given name exists.
	ErrNotFound = errors.New("backup not found")

	// ErrAlreadyExists is returned when saving under a backup name that is
	// already taken. Backups are write-once; pick a new name instead.
	ErrAlreadyExists = errors.New("backup already exists")

	// ErrInvalidName is returned for backup names that cannot be used as a
	// storage key.
	ErrInvalidName = errors.New("invalid backup name")
)
