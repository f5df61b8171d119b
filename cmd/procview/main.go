package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"procview/internal/app"
	"procview/internal/config"
	"procview/internal/logger"
	"procview/internal/registry"
	"procview/internal/tui"
)

var (
	configPath string
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "procview [command]",
	Short: "procview: live process and service inventory",
	Long:  `procview watches the processes and system services of this host and shows them in a live terminal view, locally or through a background daemon.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		lc := cfg.Log.Logger()
		// The TUI owns the terminal; it only logs to a file.
		if cmd != cmdTUI {
			lc.Console = cmd.ErrOrStderr()
		}
		l, closer, err := logger.New(lc)
		if err != nil {
			return err
		}
		slog.SetDefault(l)
		logCloser = closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a yaml, toml or json config file")
}

// controllerAPI is the slice of the app facade the commands use.
type controllerAPI interface {
	tui.Controller
	Config() (config.Config, error)
	Ping(ctx context.Context, timeout time.Duration) (string, error)
	List(ctx context.Context, params app.ListParams) ([]registry.Snapshot, error)
	Snapshot(ctx context.Context, params app.SnapshotParams) (app.SnapshotResult, error)
	StopDaemon(force bool) error
	StartDaemon() (*app.DaemonHandle, error)
}

var controllerFactory = func() controllerAPI {
	return app.New(app.Options{ConfigPath: configPath, Logger: slog.Default()})
}

func controller() controllerAPI {
	return controllerFactory()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}
