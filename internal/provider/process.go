package provider

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"procview/internal/registry"
)

// ErrUnavailable means the source cannot work on this host at all.
var ErrUnavailable = errors.New("source unavailable")

// clockTicks is USER_HZ, which is 100 on every Linux ABI Go supports.
const clockTicks = 100

// ProcessScanner enumerates processes from a procfs tree.
type ProcessScanner struct {
	// Root is the procfs mount point, /proc when empty.
	Root string
}

func (s ProcessScanner) Kind() registry.Kind { return registry.KindProcess }

func (s ProcessScanner) root() string {
	if s.Root == "" {
		return "/proc"
	}
	return s.Root
}

// Scan reads every numeric entry under Root. Processes that exit while being
// read are skipped.
func (s ProcessScanner) Scan(ctx context.Context) ([]registry.Snapshot, error) {
	root := s.root()
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	boot, _ := bootTime(root)

	out := make([]registry.Snapshot, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 || !e.IsDir() {
			continue
		}
		snap, err := readProcess(root, pid, boot)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func readProcess(root string, pid int, boot time.Time) (registry.Snapshot, error) {
	st, err := readStat(root, pid)
	if err != nil {
		return registry.Snapshot{}, err
	}
	cmd, err := readProcCmdline(root, pid)
	if err != nil || cmd == "" {
		// Kernel threads have no command line.
		cmd = "[" + st.comm + "]"
	}
	snap := registry.Snapshot{
		Key:   strconv.Itoa(pid),
		Kind:  registry.KindProcess,
		Name:  st.comm,
		PID:   pid,
		PPID:  st.ppid,
		Cmd:   cmd,
		State: st.state,
	}
	if !boot.IsZero() {
		snap.StartedAt = boot.Add(time.Duration(st.startTicks) * time.Second / clockTicks)
	}
	return snap, nil
}

type procStat struct {
	comm       string
	state      string
	ppid       int
	startTicks uint64
}

// readStat parses /proc/<pid>/stat. The command name sits in parentheses and
// may itself contain spaces or parentheses, so fields are split after the
// last ')'.
func readStat(root string, pid int) (procStat, error) {
	data, err := os.ReadFile(filepath.Join(root, strconv.Itoa(pid), "stat"))
	if err != nil {
		return procStat{}, err
	}
	open := bytes.IndexByte(data, '(')
	closing := bytes.LastIndexByte(data, ')')
	if open < 0 || closing < open {
		return procStat{}, fmt.Errorf("malformed stat for pid %d", pid)
	}
	st := procStat{comm: string(data[open+1 : closing])}
	fields := strings.Fields(string(data[closing+1:]))
	// fields[0] is field 3 of proc(5).
	if len(fields) < 20 {
		return procStat{}, fmt.Errorf("short stat for pid %d", pid)
	}
	st.state = fields[0]
	if st.ppid, err = strconv.Atoi(fields[1]); err != nil {
		return procStat{}, fmt.Errorf("parse ppid for pid %d: %w", pid, err)
	}
	if st.startTicks, err = strconv.ParseUint(fields[19], 10, 64); err != nil {
		return procStat{}, fmt.Errorf("parse starttime for pid %d: %w", pid, err)
	}
	return st, nil
}

func readProcCmdline(root string, pid int) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return "", err
	}
	parts := bytes.Split(data, []byte{0})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if len(part) == 0 {
			continue
		}
		out = append(out, string(part))
	}
	return strings.Join(out, " "), nil
}

// bootTime reads the btime line of <root>/stat.
func bootTime(root string) (time.Time, error) {
	f, err := os.Open(filepath.Join(root, "stat"))
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if v, ok := strings.CutPrefix(sc.Text(), "btime "); ok {
			secs, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return time.Time{}, err
			}
			return time.Unix(secs, 0).UTC(), nil
		}
	}
	if err := sc.Err(); err != nil {
		return time.Time{}, err
	}
	return time.Time{}, errors.New("btime not found")
}
