package commands

import (
	"fmt"
	"time"

	"github.com/hupe1980/vecback/restore"
)

// printKV prints one aligned key/value detail line.
func printKV(key, format string, args ...any) {
	fmt.Printf("  %-12s %s\n", key+":", fmt.Sprintf(format, args...))
}

// printStep prints one timed step line, e.g.
//
//	verify_artifact          succeeded      12ms  checksum ok
func printStep(name string, status restore.StepStatus, d time.Duration, detail string) {
	fmt.Printf("  %-24s %-10s %7s  %s\n", name, status, d.Round(time.Millisecond), detail)
}
