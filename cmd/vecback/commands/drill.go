package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecback/drill"
	"github.com/hupe1980/vecback/restore"
)

var drillCmd = &cobra.Command{
	Use:   "drill",
	Short: "Rehearse recovery from a backup",
}

var drillRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a disaster recovery drill against a backup",
	Long: `Run a disaster recovery drill: verify the backup, restore it into a
throwaway collection, check the restored data, and clean up. Production
collections are never read or written.`,
	Args: cobra.ExactArgs(1),
	RunE: runDrillRun,
}

var flagDrillScenario string

func init() {
	drillRunCmd.Flags().StringVar(&flagDrillScenario, "scenario", string(drill.KindDataCorruption),
		fmt.Sprintf("Disaster scenario to rehearse (%s or %s)", drill.KindDataCorruption, drill.KindSystemFailure))

	drillCmd.AddCommand(drillRunCmd)
	rootCmd.AddCommand(drillCmd)
}

func runDrillRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backupName := args[0]

	scenario, err := scenarioByName(flagDrillScenario)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	unlock, err := acquireLock(ctx, a.cfg, lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	fmt.Printf("rehearsing %q against backup %q\n", scenario.Name, backupName)

	rep, err := a.client.RunDrill(ctx, scenario, backupName)
	if rep != nil {
		for _, s := range rep.Steps {
			printStep(s.Name, s.Status, s.Duration, s.Detail)
		}
		if rep.Target != "" {
			printKV("target", "%s", rep.Target)
		}
		printKV("duration", "%s", rep.TotalDuration.Round(time.Millisecond))
	}
	if err != nil {
		return err
	}
	if !rep.Passed {
		return fmt.Errorf("%w: %s", errDrillFailed, strings.Join(unhealthySteps(rep), ", "))
	}

	fmt.Printf("drill passed: backup %q is recoverable\n", backupName)
	return nil
}

func scenarioByName(name string) (drill.Scenario, error) {
	switch drill.Kind(name) {
	case drill.KindDataCorruption:
		return drill.DataCorruptionScenario(), nil
	case drill.KindSystemFailure:
		return drill.SystemFailureScenario(), nil
	default:
		return drill.Scenario{}, fmt.Errorf("unknown scenario %q (expected %s or %s)",
			name, drill.KindDataCorruption, drill.KindSystemFailure)
	}
}

// unhealthySteps names the mandatory steps that did not succeed.
func unhealthySteps(rep *drill.Report) []string {
	var out []string
	for _, s := range rep.Steps {
		if s.Name == drill.StepCleanup {
			continue
		}
		if s.Status != restore.StepSucceeded {
			out = append(out, s.Name)
		}
	}
	return out
}
