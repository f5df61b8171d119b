package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"

	"procview/internal/config"
	"procview/internal/provider"
	"procview/internal/registry"
)

type staticSource struct {
	kind  registry.Kind
	snaps []registry.Snapshot
}

func (s staticSource) Kind() registry.Kind { return s.kind }

func (s staticSource) Scan(context.Context) ([]registry.Snapshot, error) {
	return s.snaps, nil
}

func withRuntimeDir(t *testing.T) string {
	t.Helper()
	// unix socket paths are length limited, so stay short
	dir, err := os.MkdirTemp("", "pv")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("PROCVIEW_SOCKET", "")
	t.Setenv("PROCVIEW_RUNTIME_DIR", dir)
	return dir
}

func TestSocketPathPrecedence(t *testing.T) {
	dir := withRuntimeDir(t)
	if got := SocketPath(); got != filepath.Join(dir, SocketBaseName) {
		t.Fatalf("runtime dir not honored: %s", got)
	}
	if got := PIDPath(); got != filepath.Join(dir, "procview.pid") {
		t.Fatalf("pid file not next to socket: %s", got)
	}
	t.Setenv("PROCVIEW_SOCKET", "/x/explicit.sock")
	if got := SocketPath(); got != "/x/explicit.sock" {
		t.Fatalf("explicit socket not honored: %s", got)
	}
}

func TestPIDFileLifecycle(t *testing.T) {
	withRuntimeDir(t)
	if err := WritePID(4242); err != nil {
		t.Fatalf("WritePID: %v", err)
	}
	pid, err := RunningPID()
	if err != nil || pid != 4242 {
		t.Fatalf("RunningPID = %d, %v", pid, err)
	}
	if err := RemovePID(); err != nil {
		t.Fatalf("RemovePID: %v", err)
	}
	if err := RemovePID(); err != nil {
		t.Fatalf("second RemovePID should be a no-op: %v", err)
	}
}

func TestRunningPIDRejectsMalformedFile(t *testing.T) {
	dir := withRuntimeDir(t)
	for _, content := range []string{"abc\n", "0\n", "-3"} {
		if err := os.WriteFile(filepath.Join(dir, "procview.pid"), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		if pid, err := RunningPID(); err == nil {
			t.Fatalf("content %q accepted as pid %d", content, pid)
		}
	}
}

func TestStartDaemonServesInventory(t *testing.T) {
	withRuntimeDir(t)
	cfg := config.Default()
	cfg.Providers.Process.Interval = 10 * time.Millisecond
	cfg.Providers.Service.Enabled = false

	srv, err := StartDaemon(Options{
		Config: cfg,
		Sources: map[registry.Kind]provider.Source{
			registry.KindProcess: staticSource{kind: registry.KindProcess, snaps: []registry.Snapshot{
				{Key: "1", PID: 1, Name: "init"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("StartDaemon: %v", err)
	}
	if !IsRunning() {
		srv.Close()
		t.Fatal("daemon does not answer pings")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, conn, err := Dial(ctx)
	if err != nil {
		srv.Close()
		t.Fatalf("Dial: %v", err)
	}
	if _, err := client.Ping(ctx, &emptypb.Empty{}); err != nil {
		t.Fatalf("ping: %v", err)
	}

	var snaps []registry.Snapshot
	deadline := time.Now().Add(5 * time.Second)
	for len(snaps) == 0 && time.Now().Before(deadline) {
		resp, err := client.List(ctx, ListRequest(registry.KindProcess, registry.ListFilter{}))
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		_, snaps, _ = ParseSnapshots(resp)
		time.Sleep(10 * time.Millisecond)
	}
	if len(snaps) != 1 || snaps[0].Name != "init" {
		t.Fatalf("unexpected inventory %+v", snaps)
	}
	conn.Close()

	if err := srv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("pid file left behind: %v", err)
	}
	if IsRunning() {
		t.Fatal("daemon still answering after Close")
	}
}
