package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vecback/testutil"
	"github.com/hupe1980/vecback/verify"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, restore, verify and manage backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create <collection> <name>",
	Short: "Create a full backup of a collection",
	Args:  cobra.ExactArgs(2),
	RunE:  runBackupCreate,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <name>",
	Short: "Restore a backup into a new collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupRestore,
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <name>",
	Short: "Check a backup artifact against its manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupVerify,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all backups in the backend",
	Args:  cobra.NoArgs,
	RunE:  runBackupList,
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a backup and its artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupDelete,
}

var flagRestoreTarget string

func init() {
	backupRestoreCmd.Flags().StringVar(&flagRestoreTarget, "target", "",
		"Name of the restored collection (default: <collection>_restored)")

	backupCmd.AddCommand(backupCreateCmd, backupRestoreCmd, backupVerifyCmd, backupListCmd, backupDeleteCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	collectionName, backupName := args[0], args[1]

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	unlock, err := acquireLock(ctx, a.cfg, lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	// The reference store starts empty on every invocation, so the source
	// collection is seeded from the demo fixture first.
	if err := testutil.SeedCollection(ctx, a.store, collectionName, a.cfg.Demo.Entities); err != nil {
		return fmt.Errorf("cannot seed collection %s: %w", collectionName, err)
	}

	m, err := a.client.CreateBackup(ctx, collectionName, backupName)
	if err != nil {
		return err
	}

	fmt.Printf("backup %q created\n", m.BackupName)
	printKV("collection", "%s", m.Collection)
	printKV("entities", "%s", humanize.Comma(m.EntityCount))
	printKV("artifact", "%s (%s, %s)", m.ArtifactPath, humanize.IBytes(uint64(m.ArtifactSize)), m.Compression)
	printKV("checksum", "%s", m.Checksum)
	printKV("duration", "%s", m.FinishedAt.Sub(m.StartedAt).Round(time.Millisecond))
	if m.ReducedFidelity {
		printKV("warning", "reduced fidelity: vectors and scalars were scanned separately")
	}
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backupName := args[0]

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	unlock, err := acquireLock(ctx, a.cfg, lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	rep, err := a.client.RestoreBackup(ctx, backupName, flagRestoreTarget)
	if rep != nil {
		fmt.Printf("restore of %q into %q: %s\n", rep.Backup, rep.Target, rep.State)
		for _, s := range rep.Steps {
			printStep(s.Name, s.Status, s.Duration, s.Detail)
		}
		printKV("inserted", "%s rows", humanize.Comma(rep.Inserted))
		if rep.FailedRows > 0 {
			printKV("lost", "%s rows in %d batches", humanize.Comma(rep.FailedRows), len(rep.FailedBatches))
		}
		for _, w := range rep.Warnings {
			printKV("warning", "%s", w)
		}
	}
	return err
}

func runBackupVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backupName := args[0]

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	res, err := a.client.VerifyBackup(ctx, backupName)
	if err != nil {
		return err
	}

	for _, c := range res.Checks {
		status := "ok"
		if !c.Passed {
			status = "FAILED"
		}
		fmt.Printf("  %-20s %-7s %s\n", c.Name, status, c.Detail)
	}
	if !res.Passed {
		return &verify.FailureError{Result: res}
	}
	fmt.Printf("backup %q verified: %d checks passed\n", backupName, len(res.Checks))
	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	manifests, err := a.client.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(manifests) == 0 {
		fmt.Println("no backups found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOLLECTION\tENTITIES\tSIZE\tCREATED")
	for _, m := range manifests {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m.BackupName,
			m.Collection,
			humanize.Comma(m.EntityCount),
			humanize.IBytes(uint64(m.ArtifactSize)),
			humanize.Time(m.FinishedAt),
		)
	}
	return w.Flush()
}

func runBackupDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backupName := args[0]

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	unlock, err := acquireLock(ctx, a.cfg, lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	if err := a.client.DeleteBackup(ctx, backupName); err != nil {
		return err
	}
	fmt.Printf("backup %q deleted\n", backupName)
	return nil
}
