package artifact

import "fmt"

// IOError indicates that reading from or writing to the underlying storage
// failed. The artifact itself may be fine; the operation should be retried
// or the partially written blob aborted.
type IOError struct {
	Op  string // "write header", "write frame", "read footer", ...
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("artifact: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// CorruptError indicates that the artifact bytes are not a valid container:
// a bad magic, an unsupported version, a checksum mismatch, or truncation.
// A corrupt artifact must never be partially restored.
type CorruptError struct {
	Offset int64  // byte offset where the problem was detected
	Detail string // human-readable description
	Err    error  // underlying cause, if any
}

func (e *CorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("artifact: corrupt at offset %d: %s: %v", e.Offset, e.Detail, e.Err)
	}
	return fmt.Sprintf("artifact: corrupt at offset %d: %s", e.Offset, e.Detail)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}
