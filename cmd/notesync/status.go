package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusDiagram bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where calls are routed and what is pending",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			if statusDiagram {
				fmt.Fprintln(cmd.OutOrStdout(), s.engine.Diagram())
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), s.engine.State())
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusDiagram, "diagram", false, "Render the topology as a Mermaid diagram")
}
