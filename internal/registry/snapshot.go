package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// Export schema versioning for forward-compatibility.
const exportVersion = 1

// Export is the on-disk form written by `procview snapshot`.
type Export struct {
	Version    int        `json:"version"`
	Kind       string     `json:"kind"`
	Generation uint64     `json:"generation"`
	Created    int64      `json:"created_unix"`
	Entities   []Snapshot `json:"entities"`
}

// Export captures the registry contents.
func (r *Registry) Export() Export {
	return NewExport(r.kind, r.Generation(), r.List(ListFilter{}))
}

// NewExport wraps snapshots obtained elsewhere, such as from a daemon.
func NewExport(kind Kind, generation uint64, snaps []Snapshot) Export {
	if snaps == nil {
		snaps = []Snapshot{}
	}
	return Export{
		Version:    exportVersion,
		Kind:       kind.String(),
		Generation: generation,
		Created:    now().Unix(),
		Entities:   snaps,
	}
}

// WriteExports writes one or more registry exports to path atomically.
func WriteExports(path string, exports ...Export) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(exports, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadExports loads a file written by WriteExports.
func ReadExports(path string) ([]Export, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("snapshot %s does not exist", path)
		}
		return nil, err
	}
	var out []Export
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	for _, e := range out {
		if e.Version != exportVersion {
			return nil, fmt.Errorf("snapshot %s has unsupported version %d", path, e.Version)
		}
	}
	return out, nil
}
