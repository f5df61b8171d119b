package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"procview/internal/daemon"
	"procview/internal/registry"
)

func TestAppSnapshotWritesEveryKind(t *testing.T) {
	stubConn(t, &fakeConn{
		invoke: func(ctx context.Context, method string, args interface{}, reply interface{}, opts ...grpc.CallOption) error {
			kind, _, err := daemon.ParseListRequest(args.(*structpb.Struct))
			if err != nil {
				t.Fatalf("bad request: %v", err)
			}
			var snaps []registry.Snapshot
			if kind == registry.KindProcess {
				snaps = []registry.Snapshot{
					{Key: "1", Kind: kind, PID: 1, Name: "init"},
					{Key: "2", Kind: kind, PID: 2, Name: "kthreadd"},
				}
			}
			reply.(*structpb.Struct).Fields = daemon.SnapshotsMessage(kind, 0, snaps).Fields
			return nil
		},
	})

	path := filepath.Join(t.TempDir(), "out", "inventory.json")
	app := New(Options{})
	res, err := app.Snapshot(context.Background(), SnapshotParams{Path: path, Timeout: time.Second})
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if res.Counts["process"] != 2 || res.Counts["service"] != 0 {
		t.Fatalf("unexpected counts %v", res.Counts)
	}

	exports, err := registry.ReadExports(path)
	if err != nil {
		t.Fatalf("ReadExports: %v", err)
	}
	if len(exports) != 2 || exports[0].Kind != "process" || len(exports[0].Entities) != 2 {
		t.Fatalf("unexpected exports %+v", exports)
	}
	if exports[1].Entities == nil {
		t.Fatal("empty kind must be written as an empty list")
	}
}

func TestAppSnapshotRequiresPath(t *testing.T) {
	app := New(Options{})
	if _, err := app.Snapshot(context.Background(), SnapshotParams{Timeout: time.Second}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestAppProvidersLocalAndRemote(t *testing.T) {
	app := New(Options{})
	cfg, err := app.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	cfg.Providers.Service.Enabled = false
	ps, closer, err := app.Providers(context.Background(), cfg, false)
	if err != nil || len(ps) != 1 || ps[0].Name() != "processes" {
		t.Fatalf("unexpected local providers %v %v", ps, err)
	}
	closer.Close()

	conn := &fakeConn{}
	stubConn(t, conn)
	ps, closer, err = app.Providers(context.Background(), cfg, true)
	if err != nil || len(ps) != 2 {
		t.Fatalf("unexpected remote providers %v %v", ps, err)
	}
	closer.Close()
	if !conn.closed {
		t.Fatal("remote connection not closed")
	}

	stubDaemon(t, false, nil)
	if _, _, err := app.Providers(context.Background(), cfg, true); err == nil {
		t.Fatal("expected error when the daemon is down")
	}
}
