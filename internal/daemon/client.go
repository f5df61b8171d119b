package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
)

const probeTimeout = 300 * time.Millisecond

// IsRunning reports whether a daemon answers Ping on the socket. A socket
// file left behind by a crashed daemon does not count.
func IsRunning() bool {
	path := SocketPath()
	if _, err := os.Stat(path); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	client, conn, err := DialSocket(ctx, path)
	if err != nil {
		return false
	}
	defer conn.Close()
	_, err = client.Ping(ctx, &emptypb.Empty{})
	return err == nil
}

// Dial opens a gRPC connection to the local daemon over its UNIX socket.
func Dial(ctx context.Context) (InventoryClient, *grpc.ClientConn, error) {
	return DialSocket(ctx, SocketPath())
}

// DialSocket connects to a daemon listening on path and waits until the
// connection is ready or ctx expires.
func DialSocket(ctx context.Context, path string) (InventoryClient, *grpc.ClientConn, error) {
	if path == "" {
		return nil, nil, errors.New("socket path must not be empty")
	}
	conn, err := grpc.NewClient(
		socketTarget(path),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(unixDialer(path)),
	)
	if err != nil {
		return nil, nil, err
	}
	conn.Connect()
	if err := waitForReady(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return NewInventoryClient(conn), conn, nil
}

func socketTarget(path string) string {
	if trimmed, ok := strings.CutPrefix(path, "/"); ok {
		return "unix:///" + trimmed
	}
	return "unix://" + path
}

func unixDialer(fallback string) func(context.Context, string) (net.Conn, error) {
	return func(ctx context.Context, addr string) (net.Conn, error) {
		if trimmed, ok := strings.CutPrefix(addr, "unix://"); ok {
			addr = trimmed
		}
		if addr == "" {
			addr = fallback
		}
		var d net.Dialer
		return d.DialContext(ctx, "unix", addr)
	}
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		switch state := conn.GetState(); state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection is shut down")
		default:
			if !conn.WaitForStateChange(ctx, state) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("grpc connection stuck in state %s", state.String())
			}
		}
	}
}
