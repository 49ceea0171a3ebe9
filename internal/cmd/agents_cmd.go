package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/agents"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/config"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List registered agents and their dispatch configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "agents")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		registry := agents.NewRegistry()
		// nil draft writer: listing must work without opening the mailbox DB
		if err := agents.Bootstrap(registry, agents.Builtins(cfg, nil)); err != nil {
			return fmt.Errorf("registering agents: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tAGENT\tHOOKS\tENABLED\tDRY-RUN")
		for _, reg := range registry.List() {
			hooks := ""
			if reg.Hooks.OnClassify != nil {
				hooks = "on_classify"
			}
			if reg.Hooks.Scan != nil {
				if hooks != "" {
					hooks += ","
				}
				hooks += "scan"
			}
			dryRun := "skipped"
			if reg.Options.RunWhen == agents.RunWhenAlways {
				dryRun = "runs"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
				reg.Category, reg.Name, hooks, reg.Options.Enabled, dryRun)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}
