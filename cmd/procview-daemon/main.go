package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"procview/internal/app"
	"procview/internal/config"
	"procview/internal/daemon"
	"procview/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to a yaml, toml or json config file")
	force := flag.Bool("force", false, "Stop an existing daemon before starting")
	flag.Parse()

	log := logger.Stderr("info")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}
	lc := cfg.Log.Logger()
	lc.Console = os.Stderr
	if l, closer, err := logger.New(lc); err == nil {
		log = l
		defer closer.Close()
	}
	slog.SetDefault(log)

	if daemon.IsRunning() {
		if !*force {
			pid, err := daemon.RunningPID()
			if err != nil {
				log.Error("daemon appears running but pid check failed", "err", err)
				os.Exit(1)
			}
			log.Info("daemon is already running, use --force to restart", "pid", pid)
			return
		}
		log.Info("stopping existing daemon")
		if err := daemon.StopRunningDaemon(true); err != nil {
			log.Error("failed to stop running daemon", "err", err)
			os.Exit(1)
		}
	}

	h, err := app.New(app.Options{ConfigPath: *configPath, Logger: log}).StartDaemon()
	if err != nil {
		log.Error("failed to start daemon", "err", err)
		os.Exit(1)
	}
	log.Info("daemon started, press Ctrl+C to stop", "pid", os.Getpid(), "socket", h.Socket())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Info("stopping daemon")
	if err := h.Close(); err != nil {
		log.Error("error shutting down daemon", "err", err)
		os.Exit(1)
	}
	log.Info("daemon stopped")
}
