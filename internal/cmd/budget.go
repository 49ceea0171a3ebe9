package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/budget"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/config"
)

var budgetJSON bool

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show today's model-call budget usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "budget")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.EnsureDataDir(); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		counters, err := budget.NewSQLiteStore(cfg.CountersDBPath())
		if err != nil {
			return fmt.Errorf("opening budget counters: %w", err)
		}
		defer counters.Close()

		tracker := budget.NewTracker(counters, map[string]int64{
			budget.CounterModelCall: cfg.DailyModelCalls,
		})

		used, limit, err := tracker.Usage(ctx, budget.CounterModelCall)
		if err != nil {
			return fmt.Errorf("reading budget usage: %w", err)
		}

		if budgetJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"counter": budget.CounterModelCall,
				"day":     time.Now().Format("2006-01-02"),
				"used":    used,
				"limit":   limit,
			})
		}

		fmt.Printf("Model calls today: %d / %d\n", used, limit)
		if used >= limit {
			fmt.Println("Budget exhausted: remaining cycles will fall back to the policy's fallback category.")
		}
		return nil
	},
}

func init() {
	budgetCmd.Flags().BoolVar(&budgetJSON, "json", false, "print budget usage as JSON")
	rootCmd.AddCommand(budgetCmd)
}
