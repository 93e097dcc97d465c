package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync"
)

var loginCmd = &cobra.Command{
	Use:   "login [token]",
	Short: "Sign in with a bearer token",
	Long: `Sign in with a bearer token issued by the cloud service. The token may also be
given through NOTESYNC_TOKEN. Notes written before the first sign-in are copied
to the cloud.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := os.Getenv("NOTESYNC_TOKEN")
		if len(args) == 1 {
			token = args[0]
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return fmt.Errorf("a token is required")
		}
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			sess, err := s.sessions.Login(token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", sess.UserID)

			if !s.engine.Connectivity().Online() {
				fmt.Fprintln(cmd.OutOrStdout(), "Cloud unreachable; run 'notesync migrate' once online to copy local notes.")
				return nil
			}
			res, err := s.engine.Migrate(ctx)
			if errors.Is(err, notesync.ErrNoCloud) {
				return s.engine.Sync(ctx)
			}
			if err != nil {
				return err
			}
			if !res.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "Copied %d notes and %d folders to the cloud\n", res.Notes, res.Folders)
			}
			return s.engine.Sync(ctx)
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			if err := s.sessions.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd)
}
