package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/audit"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/config"
)

var (
	cyclesLimit  int
	cyclesJSON   bool
	cyclesVerify string
)

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "List recent cycle audit records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "cycles")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.EnsureDataDir(); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		store, err := audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey)
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		defer store.Close()

		if cyclesVerify != "" {
			ok, err := store.Verify(ctx, cyclesVerify)
			if err != nil {
				return fmt.Errorf("verifying record: %w", err)
			}
			if !ok {
				return fmt.Errorf("record %s failed signature verification", cyclesVerify)
			}
			fmt.Printf("Record %s signature is valid\n", cyclesVerify)
			return nil
		}

		records, err := store.List(ctx, time.Time{}, time.Time{}, cyclesLimit)
		if err != nil {
			return fmt.Errorf("listing cycle records: %w", err)
		}

		if cyclesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		if len(records) == 0 {
			fmt.Println("No cycle records yet. Run `labeler run` first.")
			return nil
		}
		for _, rec := range records {
			mode := "live"
			if rec.DryRun {
				mode = "dry-run"
			}
			fmt.Printf("%s  %s  %s  candidates=%d labeled=%d skipped=%d fallbacks=%d errors=%d\n",
				rec.Timestamp.Format(time.RFC3339), rec.ID, mode,
				rec.Candidates, rec.Labeled, rec.Skipped, rec.Fallbacks, rec.Errors)
		}
		return nil
	},
}

func init() {
	cyclesCmd.Flags().IntVar(&cyclesLimit, "limit", 20, "maximum records to list")
	cyclesCmd.Flags().BoolVar(&cyclesJSON, "json", false, "print records as JSON")
	cyclesCmd.Flags().StringVar(&cyclesVerify, "verify", "", "verify the HMAC signature of a record ID instead of listing")
	rootCmd.AddCommand(cyclesCmd)
}
