package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"procview/internal/daemon"
	"procview/internal/registry"
)

// SnapshotParams selects where the inventory is written.
type SnapshotParams struct {
	Path    string
	Timeout time.Duration
}

// SnapshotResult reports what was written.
type SnapshotResult struct {
	Path   string
	Counts map[string]int
}

// Snapshot fetches every kind from the daemon and writes them as one JSON
// export file.
func (a *App) Snapshot(ctx context.Context, params SnapshotParams) (SnapshotResult, error) {
	path := strings.TrimSpace(params.Path)
	if path == "" {
		return SnapshotResult{}, errors.New("output path must not be empty")
	}

	var exports []registry.Export
	err := a.withClient(ctx, params.Timeout, func(ctx context.Context, client daemon.InventoryClient) error {
		for _, kind := range []registry.Kind{registry.KindProcess, registry.KindService} {
			resp, err := client.List(ctx, daemon.ListRequest(kind, registry.ListFilter{}))
			if err != nil {
				return fmt.Errorf("daemon list RPC failed: %w", err)
			}
			gen, snaps, err := daemon.ParseSnapshots(resp)
			if err != nil {
				return fmt.Errorf("decode %s inventory: %w", kind.Plural(), err)
			}
			exports = append(exports, registry.NewExport(kind, gen, snaps))
		}
		return nil
	})
	if err != nil {
		return SnapshotResult{}, err
	}
	if err := registry.WriteExports(path, exports...); err != nil {
		return SnapshotResult{}, fmt.Errorf("write snapshot: %w", err)
	}

	res := SnapshotResult{Path: path, Counts: make(map[string]int, len(exports))}
	for _, e := range exports {
		res.Counts[e.Kind] = len(e.Entities)
	}
	return res, nil
}
