package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	runDryRun bool
	runJSON   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one classification cycle",
	Long: `Fetches unlabeled candidate threads, classifies them in batches under the
daily model-call budget, applies exactly one category label per thread, and
dispatches the per-category agents. With --dry-run no labels are written and
no agents execute side effects; the cycle reports what it would have done.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "run")
		defer span.End()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.orchestrator.RunCycle(ctx, runDryRun)
		if err != nil {
			return fmt.Errorf("running cycle: %w", err)
		}

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		fmt.Printf("Cycle %s complete\n", summary.CycleID)
		fmt.Printf("  Candidates:  %d\n", summary.Candidates)
		if runDryRun {
			fmt.Printf("  Would label: %d\n", summary.WouldLabel)
		} else {
			fmt.Printf("  Labeled:     %d\n", summary.Labeled)
		}
		fmt.Printf("  Skipped:     %d\n", summary.Skipped)
		fmt.Printf("  Fallbacks:   %d\n", summary.Fallbacks)
		fmt.Printf("  Errors:      %d\n", summary.Errors)
		fmt.Printf("  Agent runs:  %d\n", len(summary.AgentResults))
		fmt.Printf("  Duration:    %dms\n", summary.DurationMS)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "classify without writing labels or executing agent side effects")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the cycle summary as JSON")
	rootCmd.AddCommand(runCmd)
}
