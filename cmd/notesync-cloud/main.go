// Command notesync-cloud runs the reference cloud service for local
// development and end-to-end testing.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/aretw0/notesync/internal/config"
	"github.com/aretw0/notesync/internal/logging"
	"github.com/aretw0/notesync/internal/server"
)

var (
	cfgFile string
	addr    string
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "notesync-cloud",
	Short:        "Reference notesync cloud service",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			c.Server.Addr = addr
		}
		if verbose {
			c.LogLevel = "debug"
		}
		if err := c.ValidateServer(); err != nil {
			return err
		}
		logging.Setup(c.LogLevel, cmd.ErrOrStderr())
		cfg = c
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the remote procedures, presence socket and metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		srv, err := server.New(server.Config{
			Secret:            []byte(cfg.Server.Secret),
			Logger:            slog.Default(),
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
		})
		if err != nil {
			return err
		}

		httpServer := &http.Server{
			Addr:        cfg.Server.Addr,
			Handler:     srv.Handler(),
			ReadTimeout: 5 * time.Second,
			IdleTimeout: 120 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			slog.Info("notesync cloud listening", "addr", cfg.Server.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token [user]",
	Short: "Issue a bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl := cfg.Server.TokenTTL
		if cmd.Flags().Changed("ttl") {
			ttl = tokenTTL
		}
		token, err := server.IssueToken([]byte(cfg.Server.Secret), args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime")
	rootCmd.AddCommand(serveCmd, tokenCmd)
}
