// Package drill rehearses the recovery path end to end before a real
// incident forces it.
//
// A drill restores a known-good backup into a throwaway collection, verifies
// the result and tears the collection down again. The production collection
// named in the backup is never read or written. Scenarios are descriptive
// metadata: they frame what the rehearsal simulates without performing any
// destructive action.
package drill
