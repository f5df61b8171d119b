package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"procview/internal/events"
	"procview/internal/metrics"
	"procview/internal/provider"
	"procview/internal/registry"
)

// DefaultRetry is the pause between Watch reconnects.
const DefaultRetry = 2 * time.Second

// RemoteSource mirrors one entity kind of a daemon into a local session. The
// daemon streams complete cycles; the local tracker turns them back into
// events, so reconnects never duplicate rows.
type RemoteSource struct {
	client  InventoryClient
	kind    registry.Kind
	tracker *provider.Tracker
	log     *slog.Logger

	// Retry is the reconnect delay; zero means DefaultRetry.
	Retry time.Duration
}

// NewRemoteSource returns a provider fed by client's Watch stream.
func NewRemoteSource(client InventoryClient, kind registry.Kind, log *slog.Logger) *RemoteSource {
	if log == nil {
		log = slog.Default()
	}
	name := "remote-" + kind.String()
	return &RemoteSource{
		client:  client,
		kind:    kind,
		tracker: provider.NewTracker(name, kind, log),
		log:     log.With("provider", name),
	}
}

func (r *RemoteSource) Name() string { return r.tracker.Name() }

// Tracker exposes the local mirror.
func (r *RemoteSource) Tracker() *provider.Tracker { return r.tracker }

// Run watches until ctx is done, reconnecting after stream failures.
func (r *RemoteSource) Run(ctx context.Context, sub *events.Subscription) error {
	defer r.tracker.Close()
	retry := r.Retry
	if retry <= 0 {
		retry = DefaultRetry
	}
	for {
		err := r.watch(ctx, sub)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.IncProviderError(r.Name())
		r.log.Warn("watch stream ended, reconnecting", "err", err, "retry", retry)
		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (r *RemoteSource) watch(ctx context.Context, sub *events.Subscription) error {
	stream, err := r.client.Watch(ctx, ListRequest(r.kind, registry.ListFilter{}))
	if err != nil {
		return err
	}
	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("daemon closed the watch stream")
			}
			return err
		}
		gen, snaps, err := ParseSnapshots(msg)
		if err != nil {
			return err
		}
		st, err := r.tracker.Apply(sub, snaps)
		if err != nil {
			r.log.Warn("remote cycle had invalid entries", "generation", gen, "err", err)
		}
		metrics.ObserveProviderCycle(r.Name(), 0, st.Live)
	}
}
