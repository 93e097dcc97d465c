package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync/internal/platform"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a workspace in the current directory",
	Long: `Create a ` + platform.WorkspaceDir + ` directory here. Commands run in this directory or
below it keep their device storage there.`,
	Args: cobra.NoArgs,
	// config is not needed to create the directory
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir := filepath.Join(cwd, platform.WorkspaceDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Initialized notesync workspace in", dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
