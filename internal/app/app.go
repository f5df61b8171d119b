// Package app is the controller facade shared by the CLI and the TUI.
package app

import (
	"log/slog"

	"procview/internal/config"
)

// Options configures the top-level controller.
type Options struct {
	// ConfigPath points to the optional config file.
	ConfigPath string
	Logger     *slog.Logger
}

// App exposes high-level operations that the CLI/TUI can reuse.
type App struct {
	cfgPath string
	log     *slog.Logger
}

// New constructs the shared controller facade.
func New(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &App{
		cfgPath: opts.ConfigPath,
		log:     log,
	}
}

// ConfigPath returns the configured config file path (if any).
func (a *App) ConfigPath() string {
	return a.cfgPath
}

// Config loads the configuration the controller was created with.
func (a *App) Config() (config.Config, error) {
	return config.Load(a.cfgPath)
}
