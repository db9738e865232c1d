package backup

import "fmt"

// ExportError reports a failure while reading from the source store. The
// stage tells which part of the export failed; Page is set for data-scan
// failures and -1 otherwise.
type ExportError struct {
	Collection string
	Stage      string // "schema", "partitions", "count", "scan", "merge"
	Page       int
	Err        error
}

func (e *ExportError) Error() string {
	if e.Page >= 0 {
		return fmt.Sprintf("export %s: %s page %d: %v", e.Collection, e.Stage, e.Page, e.Err)
	}
	return fmt.Sprintf("export %s: %s: %v", e.Collection, e.Stage, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

func exportErr(collection, stage string, err error) *ExportError {
	return &ExportError{Collection: collection, Stage: stage, Page: -1, Err: err}
}

func exportPageErr(collection string, page int, err error) *ExportError {
	return &ExportError{Collection: collection, Stage: "scan", Page: page, Err: err}
}
