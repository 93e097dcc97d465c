package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/pkg/core"
)

var (
	noteJSON    bool
	noteFolder  string
	noteSearch  string
	noteID      string
	noteTitle   string
	noteContent string
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes",
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, pinned first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			var notes []notesync.Note
			switch {
			case noteSearch != "":
				found, err := s.engine.Search(ctx, noteSearch)
				if err != nil {
					return err
				}
				notes = found
			case noteFolder != "":
				notes = s.engine.Store().NotesInFolder(noteFolder)
			default:
				notes = s.engine.Service().ListNotes()
			}
			return printNotes(cmd.OutOrStdout(), notes, noteJSON)
		})
	},
}

var noteCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			in := notesync.NoteInput{ID: noteID, Title: noteTitle, Content: noteContent}
			if noteFolder != "" {
				in.FolderID = &noteFolder
			}
			n, err := s.engine.Service().CreateNote(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.ID)
			return nil
		})
	},
}

var noteReadCmd = &cobra.Command{
	Use:   "read [id]",
	Short: "Print a note's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			n, ok := s.engine.Store().Note(args[0])
			if !ok {
				return core.NotFound("read note", args[0])
			}
			if noteJSON {
				return writeJSON(cmd.OutOrStdout(), n)
			}
			fmt.Fprint(cmd.OutOrStdout(), n.Content)
			return nil
		})
	},
}

var noteEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Change a note's title or content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch notesync.NotePatch
		if cmd.Flags().Changed("title") {
			patch.Title = &noteTitle
		}
		if cmd.Flags().Changed("content") {
			patch.Content = &noteContent
		}
		if patch.Empty() {
			return fmt.Errorf("nothing to change: pass --title or --content")
		}
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			_, err := s.engine.Service().UpdateNote(ctx, args[0], patch)
			return err
		})
	},
}

var noteMoveCmd = &cobra.Command{
	Use:   "move [id] [folder]",
	Short: "File a note under a folder; without a folder the note is unfiled",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := ""
		if len(args) == 2 {
			folder = args[1]
		}
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			_, err := s.engine.Service().MoveNote(ctx, args[0], folder)
			return err
		})
	},
}

var notePinCmd = &cobra.Command{
	Use:   "pin [id]",
	Short: "Toggle whether a note is pinned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			n, err := s.engine.Service().TogglePin(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s pinned: %t\n", n.ID, n.IsPinned)
			return nil
		})
	},
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			if err := s.engine.Service().DeleteNote(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Note deleted: %s\n", args[0])
			return nil
		})
	},
}

var noteSnapshotCmd = &cobra.Command{
	Use:   "snapshot [id]",
	Short: "Record a cloud version of a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			if err := s.engine.Snapshot(args[0]); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return s.engine.Flush(ctx)
		})
	},
}

var noteVersionsCmd = &cobra.Command{
	Use:   "versions [id]",
	Short: "List the cloud versions of a note, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			versioned, ok := s.engine.Versions()
			if !ok {
				return fmt.Errorf("versions need a signed-in, online cloud session")
			}
			versions, err := versioned.ListVersions(ctx, args[0])
			if err != nil {
				return err
			}
			if noteJSON {
				return writeJSON(cmd.OutOrStdout(), versions)
			}
			for _, v := range versions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", v.ID, v.CreatedAt.Format(time.RFC3339), v.Title)
			}
			return nil
		})
	},
}

var noteRestoreCmd = &cobra.Command{
	Use:   "restore [version-id]",
	Short: "Restore a note to a cloud version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			versioned, ok := s.engine.Versions()
			if !ok {
				return fmt.Errorf("versions need a signed-in, online cloud session")
			}
			n, err := versioned.RestoreVersion(ctx, args[0])
			if err != nil {
				return err
			}
			s.engine.Store().PutNote(n)
			fmt.Fprintf(cmd.OutOrStdout(), "Note restored: %s\n", n.ID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(noteCmd)
	noteCmd.AddCommand(noteListCmd, noteCreateCmd, noteReadCmd, noteEditCmd, noteMoveCmd,
		notePinCmd, noteDeleteCmd, noteSnapshotCmd, noteVersionsCmd, noteRestoreCmd)

	for _, c := range []*cobra.Command{noteListCmd, noteReadCmd, noteVersionsCmd} {
		c.Flags().BoolVar(&noteJSON, "json", false, "Output in JSON format")
	}
	noteListCmd.Flags().StringVar(&noteFolder, "folder", "", "Only notes filed under this folder")
	noteListCmd.Flags().StringVar(&noteSearch, "search", "", "Only notes whose title or content contains this text")

	noteCreateCmd.Flags().StringVar(&noteID, "id", "", "Note ID (generated when empty)")
	noteCreateCmd.Flags().StringVar(&noteFolder, "folder", "", "Folder to file the note under")
	for _, c := range []*cobra.Command{noteCreateCmd, noteEditCmd} {
		c.Flags().StringVar(&noteTitle, "title", "", "Note title")
		c.Flags().StringVar(&noteContent, "content", "", "Note content")
	}
}
