package main

import (
	"flag"
	"log"

	"procview/internal/app"
	"procview/internal/config"
	"procview/internal/logger"
	"procview/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "Path to a yaml, toml or json config file")
	remote := flag.Bool("remote", false, "Mirror the running daemon instead of scanning locally")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// File logging only; the terminal belongs to the UI.
	l, closer, err := logger.New(cfg.Log.Logger())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer closer.Close()

	controller := app.New(app.Options{ConfigPath: *configPath, Logger: l})
	err = tui.Run(controller, tui.Options{
		Config:     cfg,
		ConfigPath: *configPath,
		Remote:     *remote,
		Logger:     l,
	})
	if err != nil {
		log.Fatalf("tui exited with error: %v", err)
	}
}
