package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecback/artifact"
	"github.com/hupe1980/vecback/verify"
)

// Exit codes. Integrity failures get their own code so scripts can tell
// "this backup cannot be trusted" apart from "the command could not run".
const (
	exitOK        = 0
	exitError     = 1
	exitIntegrity = 2
)

// errDrillFailed marks a drill that finished with failed steps. It maps to
// the integrity exit code: the rehearsal proved the backup cannot be relied
// on for recovery as-is.
var errDrillFailed = errors.New("drill failed")

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:          "vecback",
	Short:        "Backup, restore and recovery drills for vector collections",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `vecback creates checksummed backup artifacts from a vector collection,
restores them into new collections, and rehearses the full recovery path
with disaster drills.

Each backup is a manifest plus one artifact in the configured blob
backend (a local directory, S3, or MinIO). The manifest is written last,
so a backup is either completely visible or absent.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"Path to the YAML config file (default: vecback.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Log operation progress to stderr")
}

// Execute is called by main.go and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCode(err)
	}
	return exitOK
}

// exitCode classifies an error from a command run. Corrupt artifacts,
// failed verifications and failed drills exit with exitIntegrity;
// everything else is an operational error.
func exitCode(err error) int {
	var corrupt *artifact.CorruptError
	var failure *verify.FailureError
	if errors.As(err, &corrupt) || errors.As(err, &failure) || errors.Is(err, errDrillFailed) {
		return exitIntegrity
	}
	return exitError
}
