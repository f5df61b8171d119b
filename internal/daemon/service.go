package daemon

import (
	"context"
	"log/slog"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"procview/internal/provider"
	"procview/internal/registry"
)

// service implements the Inventory gRPC service on top of the latest cycle
// of every local provider.
type service struct {
	UnimplementedInventoryServer

	log *slog.Logger

	mu      sync.Mutex
	cycles  map[registry.Kind]cycle
	changed chan struct{}
	closed  bool
}

type cycle struct {
	gen   uint64
	snaps []registry.Snapshot
}

func newService(log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		log:     log,
		cycles:  make(map[registry.Kind]cycle),
		changed: make(chan struct{}),
	}
}

// observe publishes every cycle of t to List and Watch callers. The hook runs
// on the provider goroutine right after the cycle, when the registry is
// consistent.
func (s *service) observe(t *provider.Tracker) {
	reg := t.Registry()
	t.OnCycle = func(st provider.Stats) {
		s.publish(reg.Kind(), st.Generation, reg.List(registry.ListFilter{}))
	}
}

func (s *service) publish(kind registry.Kind, gen uint64, snaps []registry.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cycles[kind] = cycle{gen: gen, snaps: snaps}
	close(s.changed)
	s.changed = make(chan struct{})
}

// current returns the latest cycle of kind and a channel closed on the next
// publish or on shutdown.
func (s *service) current(kind registry.Kind) (cycle, <-chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles[kind], s.changed, s.closed
}

// shutdown ends every Watch stream.
func (s *service) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.changed)
}

func (s *service) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("pong"), nil
}

func (s *service) List(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	kind, filter, err := ParseListRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	kinds := []registry.Kind{kind}
	if kind == 0 {
		kinds = []registry.Kind{registry.KindProcess, registry.KindService}
	}
	var out []registry.Snapshot
	for _, k := range kinds {
		c, _, _ := s.current(k)
		snaps := append([]registry.Snapshot(nil), c.snaps...)
		out = append(out, registry.Filter(snaps, filter)...)
	}
	registry.SortSnapshots(out)
	return SnapshotsMessage(kind, 0, out), nil
}

// Watch sends the latest cycle of the requested kind, then every newer one,
// until the client goes away or the daemon shuts down. Slow clients skip
// intermediate cycles; each message is a complete inventory.
func (s *service) Watch(req *structpb.Struct, stream InventoryWatchServer) error {
	kind, _, err := ParseListRequest(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if kind == 0 {
		return status.Error(codes.InvalidArgument, "watch requires a kind")
	}
	ctx := stream.Context()
	s.log.Debug("watch started", "kind", kind.String())
	defer s.log.Debug("watch ended", "kind", kind.String())

	var sent uint64
	for {
		c, wait, closed := s.current(kind)
		if closed {
			return status.Error(codes.Unavailable, "daemon is shutting down")
		}
		if c.gen > sent {
			if err := stream.Send(SnapshotsMessage(kind, c.gen, c.snaps)); err != nil {
				return err
			}
			sent = c.gen
		}
		select {
		case <-ctx.Done():
			return nil
		case <-wait:
		}
	}
}
