package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	syncTimeout  time.Duration
	migrateReset bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Send pending cloud writes and reload from the routed backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			if q := s.engine.Queue(); q != nil && q.Depth() > 0 {
				flushCtx, cancel := context.WithTimeout(ctx, syncTimeout)
				err := s.engine.Flush(flushCtx)
				cancel()
				if err != nil {
					return fmt.Errorf("flush pending writes: %w", err)
				}
			}
			if err := s.engine.Sync(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", s.engine.Store().Settings().SyncStatus, s.engine.Router().Target())
			return nil
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy device notes and folders to the cloud",
	Long: `Copy device notes and folders to the cloud, keeping their IDs. This happens
automatically on the first sign-in; it runs once unless --reset is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			if !s.sessions.Current().Authenticated() {
				return fmt.Errorf("sign in first")
			}
			if migrateReset {
				if err := s.engine.ResetMigration(); err != nil {
					return err
				}
			}
			res, err := s.engine.Migrate(ctx)
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "Already migrated")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Copied %d notes and %d folders to the cloud\n", res.Notes, res.Folders)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd, migrateCmd)
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 2*time.Minute, "How long to wait for pending writes")
	migrateCmd.Flags().BoolVar(&migrateReset, "reset", false, "Copy again even if a migration already finished")
}
