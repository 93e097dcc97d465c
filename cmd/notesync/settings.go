package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync"
)

var (
	settingsTheme       string
	settingsFontSize    int
	settingsLineNumbers bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show user settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			return writeJSON(cmd.OutOrStdout(), s.engine.Store().Settings())
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change user settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch notesync.SettingsPatch
		flags := cmd.Flags()
		if flags.Changed("theme") {
			patch.Theme = &settingsTheme
		}
		if flags.Changed("font-size") {
			patch.FontSize = &settingsFontSize
		}
		if flags.Changed("line-numbers") {
			patch.ShowLineNumbers = &settingsLineNumbers
		}
		return withEngine(cmd, func(ctx context.Context, s *cliSession) error {
			settings, err := s.engine.Service().UpdateSettings(ctx, patch)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), settings)
		})
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsSetCmd.Flags().StringVar(&settingsTheme, "theme", "", "Color theme")
	settingsSetCmd.Flags().IntVar(&settingsFontSize, "font-size", 16, "Editor font size")
	settingsSetCmd.Flags().BoolVar(&settingsLineNumbers, "line-numbers", false, "Show line numbers")
}
