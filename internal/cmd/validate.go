package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/config"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/policy"
)

var validateCmd = &cobra.Command{
	Use:   "validate [policy-file]",
	Short: "Validate a classification policy file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "validate")
		defer span.End()

		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			path = cfg.PolicyPath
		}

		pol, err := policy.Load(ctx, path)
		if err != nil {
			return fmt.Errorf("policy %s is invalid: %w", path, err)
		}

		fmt.Printf("Policy %s is valid\n", path)
		fmt.Printf("  Name:       %s\n", pol.Name)
		fmt.Printf("  Version:    %s\n", pol.VersionTag)
		fmt.Printf("  Fallback:   %s\n", pol.Fallback)
		fmt.Printf("  Categories: %d\n", len(pol.Categories))
		for _, cat := range pol.Categories {
			fmt.Printf("    - %s\n", cat.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
