// Package main provides the vecback command line tool.
//
// Usage:
//
//	vecback [flags] backup create <collection> <name>
//	vecback [flags] backup restore <name> [--target NAME]
//	vecback [flags] backup verify <name>
//	vecback [flags] backup list
//	vecback [flags] backup delete <name>
//	vecback [flags] drill run <name> [--scenario data-corruption|system-failure]
//
// Backups are written to the blob backend named in the config file (a
// local directory, S3, or MinIO) and persist across runs. Collections
// live in the in-memory reference store and are seeded from the demo
// fixture, so the tool doubles as an end-to-end rehearsal harness for
// the backup and recovery path.
//
// Exit codes: 0 on success, 1 on operational errors, 2 when a backup
// fails an integrity check or a recovery drill does not pass.
package main

import (
	"os"

	"github.com/hupe1980/vecback/cmd/vecback/commands"
)

func main() {
	os.Exit(commands.Execute())
}
