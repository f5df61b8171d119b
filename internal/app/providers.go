package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"procview/internal/config"
	"procview/internal/daemon"
	"procview/internal/provider"
	"procview/internal/registry"
	"procview/internal/session"
)

const remoteDialTimeout = 3 * time.Second

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Providers returns what feeds a session. Locally the host is scanned;
// with remote set every kind is mirrored from the daemon, and the returned
// closer drops that connection.
func (a *App) Providers(ctx context.Context, cfg config.Config, remote bool) ([]session.Provider, io.Closer, error) {
	pc := cfg.Providers
	if !remote {
		var out []session.Provider
		if pc.Process.Enabled {
			out = append(out, provider.NewPoller(registry.KindProcess.Plural(), provider.ProcessScanner{}, pc.Process.Interval, a.log))
		}
		if pc.Service.Enabled {
			out = append(out, provider.NewPoller(registry.KindService.Plural(), provider.ServiceScanner{}, pc.Service.Interval, a.log))
		}
		if len(out) == 0 {
			return nil, nil, errors.New("every provider is disabled")
		}
		return out, nopCloser{}, nil
	}

	if !daemonIsRunning() {
		return nil, nil, errors.New("daemon is not running")
	}
	dctx, cancel := context.WithTimeout(ctx, remoteDialTimeout)
	defer cancel()
	client, conn, err := dialDaemonClient(dctx)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to daemon: %w", err)
	}
	if conn == nil {
		conn = nopCloser{}
	}
	out := []session.Provider{
		daemon.NewRemoteSource(client, registry.KindProcess, a.log),
		daemon.NewRemoteSource(client, registry.KindService, a.log),
	}
	return out, conn, nil
}
