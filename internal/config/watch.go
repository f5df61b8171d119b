package config

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads path whenever it changes and passes the result to fn until
// ctx is done. Invalid files are logged and skipped; fn only ever sees a
// validated Config. The parent directory is watched so atomic renames are
// caught.
func Watch(ctx context.Context, path string, log *slog.Logger, fn func(Config)) error {
	if path == "" {
		return errors.New("watch requires a config file path")
	}
	if log == nil {
		log = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer w.Close()
		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				debounce = time.After(DefaultDebounce)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("config watch error", "path", abs, "err", err)
			case <-debounce:
				debounce = nil
				cfg, err := Load(abs)
				if err != nil {
					log.Warn("config reload rejected", "path", abs, "err", err)
					continue
				}
				log.Info("config reloaded", "path", abs)
				fn(cfg)
			}
		}
	}()
	return nil
}
