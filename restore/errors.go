package restore

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// PartialError reports a restore that completed with some batches lost after
// exhausting their insert retries. The target collection holds the inserted
// rows; the caller decides whether to keep, retry, or drop it.
type PartialError struct {
	// Attempted is the total number of rows in the artifact.
	Attempted int64
	// Inserted is the number of rows that made it into the target.
	Inserted int64
	// Failed is the number of rows in failed batches.
	Failed int64
	// Pages holds the page indexes of the failed batches.
	Pages *roaring.Bitmap
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("restore incomplete: %d of %d rows inserted, %d lost in batches %v",
		e.Inserted, e.Attempted, e.Failed, e.Pages.ToArray())
}
