package daemon

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	"procview/internal/events"
	"procview/internal/registry"
)

// startInventory serves svc over an in-memory listener.
func startInventory(t *testing.T, svc *service) InventoryClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterInventoryServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() {
		svc.shutdown()
		_ = conn.Close()
		srv.Stop()
	})
	return NewInventoryClient(conn)
}

func proc(pid int, name string) registry.Snapshot {
	return registry.Snapshot{Key: registry.KindProcess.String() + "-" + name, Kind: registry.KindProcess, PID: pid, Name: name, State: "S"}
}

func TestInventoryPingAndList(t *testing.T) {
	svc := newService(nil)
	client := startInventory(t, svc)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pong, err := client.Ping(ctx, &emptypb.Empty{})
	if err != nil || pong.GetValue() != "pong" {
		t.Fatalf("ping: %v %v", pong, err)
	}

	svc.publish(registry.KindProcess, 1, []registry.Snapshot{proc(10, "sshd"), proc(20, "bash")})
	svc.publish(registry.KindService, 1, []registry.Snapshot{{Key: "ssh.service", Kind: registry.KindService, PID: 10, State: "active"}})

	resp, err := client.List(ctx, ListRequest(0, registry.ListFilter{PIDs: []int{10}}))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	_, snaps, err := ParseSnapshots(resp)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Kind != registry.KindProcess || snaps[1].Key != "ssh.service" {
		t.Fatalf("unexpected list result %+v", snaps)
	}

	_, err = client.List(ctx, ListRequest(0, registry.ListFilter{PIDs: []int{-1}}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestInventoryWatchStreamsCycles(t *testing.T) {
	svc := newService(nil)
	client := startInventory(t, svc)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	svc.publish(registry.KindProcess, 1, []registry.Snapshot{proc(1, "init")})
	stream, err := client.Watch(ctx, ListRequest(registry.KindProcess, registry.ListFilter{}))
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	msg, err := stream.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	gen, snaps, _ := ParseSnapshots(msg)
	if gen != 1 || len(snaps) != 1 {
		t.Fatalf("unexpected first cycle gen=%d %+v", gen, snaps)
	}

	svc.publish(registry.KindProcess, 2, []registry.Snapshot{proc(1, "init"), proc(2, "kthreadd")})
	msg, err = stream.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	gen, snaps, _ = ParseSnapshots(msg)
	if gen != 2 || len(snaps) != 2 {
		t.Fatalf("unexpected second cycle gen=%d %+v", gen, snaps)
	}

	svc.shutdown()
	if _, err := stream.Recv(); status.Code(err) != codes.Unavailable {
		t.Fatalf("expected unavailable after shutdown, got %v", err)
	}
}

func TestInventoryWatchRequiresKind(t *testing.T) {
	client := startInventory(t, newService(nil))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.Watch(ctx, ListRequest(0, registry.ListFilter{}))
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if _, err := stream.Recv(); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestRemoteSourceMirrorsDaemonCycles(t *testing.T) {
	svc := newService(nil)
	client := startInventory(t, svc)

	got := make(chan events.Event, 64)
	var ch *events.Channel
	ch = events.NewChannel(func() {
		for _, ev := range ch.Drain() {
			got <- ev
		}
	})
	sub := ch.Subscribe("remote")

	src := NewRemoteSource(client, registry.KindProcess, nil)
	src.Retry = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, sub) }()

	next := func() events.Event {
		t.Helper()
		select {
		case ev := <-got:
			return ev
		case <-time.After(5 * time.Second):
			t.Fatal("no event from remote source")
			return events.Event{}
		}
	}

	svc.publish(registry.KindProcess, 1, []registry.Snapshot{proc(1, "init"), proc(7, "cron")})
	first, second := next(), next()
	if first.Type != events.Added || second.Type != events.Added || !first.Initial {
		t.Fatalf("expected two initial adds, got %v %v", first, second)
	}
	first.Release()
	second.Release()

	svc.publish(registry.KindProcess, 2, []registry.Snapshot{proc(1, "init")})
	ev := next()
	if ev.Type != events.Removed || ev.Key() != "process-cron" {
		t.Fatalf("expected cron removal, got %v", ev)
	}
	ev.Release()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("remote source did not stop")
	}
}
