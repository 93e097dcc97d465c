package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/internal/config"
	"github.com/aretw0/notesync/internal/logging"
	"github.com/aretw0/notesync/internal/platform"
	"github.com/aretw0/notesync/pkg/connectivity"
	"github.com/aretw0/notesync/pkg/kv"
	"github.com/aretw0/notesync/pkg/session"
)

var (
	verbose  bool
	cfgFile  string
	dataDir  string
	cloudURL string
	mode     string
	offline  bool

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notesync",
	Short: "Notes and folders kept in sync across device, cloud and embedded storage",
	Long: `notesync stores notes, folders and settings on the device and, once you sign in,
in the cloud. Notes written offline are copied to the cloud the first time you sign in.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		loadedDir := c.DataDir
		switch {
		case flags.Changed("data-dir"):
			c.DataDir = dataDir
		case os.Getenv("NOTESYNC_DATA_DIR") == "":
			if ws, err := notesync.FindWorkspace("."); err == nil {
				c.DataDir = ws
			}
		}
		if c.DataDir != loadedDir {
			c.DBPath = filepath.Join(c.DataDir, platform.DatabaseFile)
			c.QueuePath = filepath.Join(c.DataDir, platform.QueueFile)
		}
		if flags.Changed("cloud-url") {
			c.CloudURL = cloudURL
		}
		if flags.Changed("mode") {
			c.Mode = mode
		}
		if verbose {
			c.LogLevel = "debug"
		}
		if err := c.Validate(); err != nil {
			return err
		}

		logging.Setup(c.LogLevel, cmd.ErrOrStderr())
		cfg = c
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	flags.StringVar(&dataDir, "data-dir", "", "Directory holding device storage")
	flags.StringVar(&cloudURL, "cloud-url", "", "Base URL of the cloud service")
	flags.StringVar(&mode, "mode", "", "Storage mode: web or embedded")
	flags.BoolVar(&offline, "offline", false, "Do not contact the cloud service")
}

// cliSession is the engine together with the session manager the CLI drives.
type cliSession struct {
	engine   *notesync.Engine
	sessions *session.Manager
}

// openEngine starts an engine over the configured data directory. The
// caller must call Stop.
func openEngine(ctx context.Context) (*cliSession, error) {
	logger := slog.Default()
	store, err := kv.NewFileStore(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	sessions := session.NewManager(session.WithStore(store), session.WithLogger(logger))

	online := connectivity.NewManual(false)
	if cfg.CloudURL != "" && !offline {
		online.Set(connectivity.Reachable(ctx, cfg.CloudURL, nil))
	}

	engine, err := notesync.New(
		notesync.WithMode(notesync.Mode(cfg.Mode)),
		notesync.WithKV(store),
		notesync.WithDataDir(cfg.DataDir),
		notesync.WithCloudURL(cfg.CloudURL),
		notesync.WithSession(sessions),
		notesync.WithConnectivity(online),
		notesync.WithDBPath(cfg.DBPath),
		notesync.WithQueuePath(cfg.QueuePath),
		notesync.WithRetryBase(cfg.RetryBase),
		notesync.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if err := engine.Start(ctx); err != nil {
		return nil, err
	}
	return &cliSession{engine: engine, sessions: sessions}, nil
}

// withEngine runs fn against a started engine and stops it afterwards.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, s *cliSession) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer s.engine.Stop()
	return fn(ctx, s)
}
