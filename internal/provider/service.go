package provider

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"procview/internal/registry"
)

var serviceProperties = []string{"Id", "Description", "LoadState", "ActiveState", "SubState", "MainPID"}

// ServiceScanner enumerates systemd services through systemctl.
type ServiceScanner struct {
	// Exec runs systemctl with args and returns its stdout. Nil uses exec.
	Exec func(ctx context.Context, args ...string) ([]byte, error)
}

func (s ServiceScanner) Kind() registry.Kind { return registry.KindService }

func (s ServiceScanner) Scan(ctx context.Context) ([]registry.Snapshot, error) {
	run := s.Exec
	if run == nil {
		run = runSystemctl
	}
	out, err := run(ctx, "show", "--no-pager", "--property="+strings.Join(serviceProperties, ","), "*.service")
	if err != nil {
		return nil, err
	}
	return parseSystemctlShow(bytes.NewReader(out))
}

func runSystemctl(ctx context.Context, args ...string) ([]byte, error) {
	path, err := exec.LookPath("systemctl")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("systemctl show: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("systemctl show: %w", err)
	}
	return out, nil
}

// parseSystemctlShow reads KEY=VALUE blocks separated by blank lines, one
// block per unit. Units that are not loaded are skipped.
func parseSystemctlShow(r io.Reader) ([]registry.Snapshot, error) {
	var (
		out   []registry.Snapshot
		props = map[string]string{}
	)
	flush := func() {
		defer clear(props)
		id := props["Id"]
		if id == "" {
			return
		}
		if ls := props["LoadState"]; ls != "" && ls != "loaded" {
			return
		}
		snap := registry.Snapshot{
			Key:         id,
			Kind:        registry.KindService,
			Name:        strings.TrimSuffix(id, ".service"),
			Description: props["Description"],
			State:       serviceState(props["ActiveState"], props["SubState"]),
		}
		if pid, err := strconv.Atoi(props["MainPID"]); err == nil && pid > 0 {
			snap.PID = pid
		}
		out = append(out, snap)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		props[k] = v
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return out, nil
}

func serviceState(active, sub string) string {
	switch {
	case active == "":
		return sub
	case sub == "" || sub == active:
		return active
	default:
		return active + "/" + sub
	}
}
