package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const (
	SocketBaseName = "procview.sock"
	pidFileName    = "procview.pid"
)

// RuntimeDir is where the socket and the pid file live. PROCVIEW_RUNTIME_DIR
// wins; on linux the per-user runtime dir follows, anything else gets a
// private directory under /tmp.
func RuntimeDir() string {
	if rd := os.Getenv("PROCVIEW_RUNTIME_DIR"); rd != "" {
		return rd
	}
	uid := currentUID()
	if runtime.GOOS == "linux" {
		if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
			return v
		}
		return filepath.Join("/run/user", uid)
	}
	// sun_path is short on darwin and the BSDs
	return filepath.Join("/tmp", "procview-"+uid)
}

// SocketPath is PROCVIEW_SOCKET when set, otherwise procview.sock in RuntimeDir.
func SocketPath() string {
	if explicit := os.Getenv("PROCVIEW_SOCKET"); explicit != "" {
		return explicit
	}
	return filepath.Join(RuntimeDir(), SocketBaseName)
}

// PIDPath sits next to the socket so an explicit socket keeps its pid file.
func PIDPath() string {
	return filepath.Join(filepath.Dir(SocketPath()), pidFileName)
}

func ensureRuntimeDir() error {
	return os.MkdirAll(filepath.Dir(SocketPath()), 0o700)
}

func WritePID(pid int) error {
	if err := ensureRuntimeDir(); err != nil {
		return err
	}
	return os.WriteFile(PIDPath(), []byte(strconv.Itoa(pid)+"\n"), 0o600)
}

// RemovePID is a no-op when the file is already gone.
func RemovePID() error {
	err := os.Remove(PIDPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RunningPID reads the pid the daemon recorded at startup.
func RunningPID() (int, error) {
	data, err := os.ReadFile(PIDPath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed pid file %s", PIDPath())
	}
	return pid, nil
}

func currentUID() string {
	if u, err := user.Current(); err == nil && u.Uid != "" {
		return u.Uid
	}
	return "0"
}
