package vecback

import (
	"github.com/hupe1980/vecback/internal/keyedmutex"
)

// ErrOperationInProgress is returned when a backup or restore is already
// running against the same collection name. Operations are never queued;
// callers retry once the running one finishes.
//
// The lock set lives in an internal package, so the sentinel is re-exported
// here for errors.Is checks.
var ErrOperationInProgress = keyedmutex.ErrOperationInProgress
