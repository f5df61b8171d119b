package app

import (
	"context"
	"fmt"
	"time"

	"procview/internal/daemon"
	"procview/internal/registry"
)

// ListParams defines filters and timeout.
type ListParams struct {
	Filters ListFilters
	Timeout time.Duration
}

// List fetches the daemon's current inventory matching the provided filters.
func (a *App) List(ctx context.Context, params ListParams) ([]registry.Snapshot, error) {
	req, err := params.Filters.buildRequest()
	if err != nil {
		return nil, err
	}

	var snaps []registry.Snapshot
	err = a.withClient(ctx, params.Timeout, func(ctx context.Context, client daemon.InventoryClient) error {
		resp, err := client.List(ctx, req)
		if err != nil {
			return fmt.Errorf("daemon list RPC failed: %w", err)
		}
		_, snaps, err = daemon.ParseSnapshots(resp)
		if err != nil {
			return fmt.Errorf("decode list response: %w", err)
		}
		return nil
	})
	return snaps, err
}
