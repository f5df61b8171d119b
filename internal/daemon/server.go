package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"procview/internal/config"
	"procview/internal/events"
	"procview/internal/metrics"
	"procview/internal/provider"
	"procview/internal/registry"
)

// Options configures StartDaemon.
type Options struct {
	Config config.Config
	Logger *slog.Logger

	// Sources replaces the host scanners per kind. Kinds that are missing
	// use the scanner for this host when enabled in Config.
	Sources map[registry.Kind]provider.Source
}

// Server owns the UNIX listener, the gRPC inventory, the providers and the
// optional metrics endpoint.
type Server struct {
	ln      net.Listener
	path    string
	grpc    *grpc.Server
	metrics *http.Server
	svc     *service
	log     *slog.Logger

	cancel  context.CancelFunc
	group   *errgroup.Group
	pollers []*provider.Poller
}

// Close stops the server, waits for the providers and unlinks the socket
func (s *Server) Close() error {
	s.svc.shutdown()
	s.grpc.Stop()
	s.cancel()

	var errs []error
	if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, s.metrics.Shutdown(ctx))
		cancel()
	}
	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	errs = append(errs, RemovePID())
	s.log.Info("daemon stopped")
	return errors.Join(errs...)
}

// Addr returns the socket path the daemon listens on.
func (s *Server) Addr() string { return s.path }

// StartDaemon binds the UNIX socket, starts the providers and serves the
// Inventory service until Close.
func StartDaemon(opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if err := ensureRuntimeDir(); err != nil {
		return nil, err
	}
	path := SocketPath()

	// If stale socket file exists but daemon is not running, remove it
	if _, err := os.Stat(path); err == nil && !IsRunning() {
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, err
	}
	if err := WritePID(os.Getpid()); err != nil {
		ln.Close()
		_ = os.Remove(path)
		return nil, err
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	s := &Server{
		ln:     ln,
		path:   path,
		grpc:   grpc.NewServer(),
		svc:    newService(log),
		log:    log,
		cancel: cancel,
		group:  g,
	}
	RegisterInventoryServer(s.grpc, s.svc)

	// Nothing consumes events in the daemon; the inventory is read from
	// the trackers after each cycle.
	var ch *events.Channel
	ch = events.NewChannel(func() {
		for _, ev := range ch.Drain() {
			ev.Release()
		}
	})
	for _, p := range buildPollers(opts, log) {
		p := p
		s.svc.observe(p.Tracker())
		s.pollers = append(s.pollers, p)
		sub := ch.Subscribe(p.Name())
		g.Go(func() error {
			defer sub.Unregister()
			return p.Run(gctx, sub)
		})
	}

	if addr := opts.Config.Metrics.Addr; addr != "" {
		s.metrics = metrics.Serve(addr, log)
	}

	go func() {
		if err := s.grpc.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("grpc serve failed", "err", err)
		}
	}()
	log.Info("daemon started", "socket", path, "pid", os.Getpid(), "providers", len(s.pollers))
	return s, nil
}

func buildPollers(opts Options, log *slog.Logger) []*provider.Poller {
	cfg := opts.Config.Providers
	var out []*provider.Poller
	add := func(kind registry.Kind, pc config.ProviderConfig, host provider.Source) {
		src, ok := opts.Sources[kind]
		if !ok {
			if !pc.Enabled {
				return
			}
			src = host
		}
		out = append(out, provider.NewPoller(kind.Plural(), src, pc.Interval, log))
	}
	add(registry.KindProcess, cfg.Process, provider.ProcessScanner{})
	add(registry.KindService, cfg.Service, provider.ServiceScanner{})
	return out
}

type stopStep struct {
	sig  syscall.Signal
	wait time.Duration
}

// StopRunningDaemon asks the daemon recorded in the pid file to exit with
// SIGTERM. With force it escalates to SIGKILL when SIGTERM is ignored.
// Having no daemon to stop is not an error.
func StopRunningDaemon(force bool) error {
	pid, err := RunningPID()
	switch {
	case errors.Is(err, os.ErrNotExist):
		if IsRunning() {
			return fmt.Errorf("daemon is running but PID file %q is missing; stop it manually", PIDPath())
		}
		return nil
	case err != nil:
		return fmt.Errorf("unable to read daemon PID: %w", err)
	case pid == os.Getpid():
		return errors.New("refusing to stop current process")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	steps := []stopStep{{syscall.SIGTERM, 3 * time.Second}}
	if force {
		steps = append(steps, stopStep{syscall.SIGKILL, 2 * time.Second})
	}
	for _, step := range steps {
		gone, err := signalDaemon(proc, step.sig)
		if err != nil {
			return err
		}
		if gone || waitForShutdown(step.wait) {
			return nil
		}
	}
	last := steps[len(steps)-1].sig
	return fmt.Errorf("daemon process %d did not exit after %s", pid, last)
}

// signalDaemon reports gone when the process had already exited.
func signalDaemon(proc *os.Process, sig syscall.Signal) (gone bool, err error) {
	err = proc.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return true, RemovePID()
	}
	return false, err
}

func waitForShutdown(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for IsRunning() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
	_ = RemovePID()
	return true
}
