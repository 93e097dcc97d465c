package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync"
)

var (
	folderJSON bool
	folderID   string
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage folders",
}

var folderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders in creation order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			folders := s.engine.Service().ListFolders()
			if folderJSON {
				if folders == nil {
					folders = []notesync.Folder{}
				}
				return writeJSON(cmd.OutOrStdout(), folders)
			}
			for _, f := range folders {
				fmt.Fprintf(cmd.OutOrStdout(), "%s - %s (%d notes)\n", f.ID, f.Name, len(s.engine.Store().NotesInFolder(f.ID)))
			}
			return nil
		})
	},
}

var folderCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			f, err := s.engine.Service().CreateFolder(ctx, notesync.FolderInput{ID: folderID, Name: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), f.ID)
			return nil
		})
	},
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename [id] [name]",
	Short: "Rename a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			_, err := s.engine.Service().UpdateFolder(ctx, args[0], notesync.FolderPatch{Name: &args[1]})
			return err
		})
	},
}

var folderDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a folder; its notes are kept and unfiled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			if err := s.engine.Service().DeleteFolder(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Folder deleted: %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(folderCmd)
	folderCmd.AddCommand(folderListCmd, folderCreateCmd, folderRenameCmd, folderDeleteCmd)
	folderListCmd.Flags().BoolVar(&folderJSON, "json", false, "Output in JSON format")
	folderCreateCmd.Flags().StringVar(&folderID, "id", "", "Folder ID (generated when empty)")
}
