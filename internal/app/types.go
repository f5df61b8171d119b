package app

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"procview/internal/daemon"
	"procview/internal/registry"
)

// ListFilters aggregates selectors shared across commands.
type ListFilters struct {
	// Kind is "process", "service" or empty for both.
	Kind       string
	PIDs       []int
	Keys       []string
	States     []string
	TextSearch string
}

func (f ListFilters) kind() (registry.Kind, error) {
	if strings.TrimSpace(f.Kind) == "" {
		return 0, nil
	}
	return registry.ParseKind(strings.TrimSpace(f.Kind))
}

func (f ListFilters) buildRequest() (*structpb.Struct, error) {
	kind, err := f.kind()
	if err != nil {
		return nil, err
	}
	lf := registry.ListFilter{TextSearch: strings.TrimSpace(f.TextSearch)}
	for _, pid := range f.PIDs {
		if pid <= 0 {
			return nil, fmt.Errorf("invalid pid filter: %d", pid)
		}
		lf.PIDs = append(lf.PIDs, pid)
	}
	if lf.Keys, err = cleanList(f.Keys, "key"); err != nil {
		return nil, err
	}
	if lf.States, err = cleanList(f.States, "state"); err != nil {
		return nil, err
	}
	return daemon.ListRequest(kind, lf), nil
}

func cleanList(xs []string, what string) ([]string, error) {
	if len(xs) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		clean := strings.TrimSpace(x)
		if clean == "" {
			return nil, errors.New(what + " filters must not be empty")
		}
		out = append(out, clean)
	}
	return out, nil
}
