package registry

import (
	"fmt"
	"time"
)

// Kind distinguishes the entity families the providers enumerate.
type Kind uint8

const (
	KindProcess Kind = iota + 1
	KindService
)

func (k Kind) String() string {
	switch k {
	case KindProcess:
		return "process"
	case KindService:
		return "service"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Plural names a collection of entities of this kind.
func (k Kind) Plural() string {
	switch k {
	case KindProcess:
		return "processes"
	case KindService:
		return "services"
	default:
		return k.String() + "s"
	}
}

// ParseKind maps the textual form used in config and on the wire back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "process", "processes":
		return KindProcess, nil
	case "service", "services":
		return KindService, nil
	default:
		return 0, fmt.Errorf("unknown entity kind %q", s)
	}
}

// Snapshot is an immutable view of an entity at one provider cycle.
type Snapshot struct {
	Key         string    `json:"key"`
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name"`
	PID         int       `json:"pid,omitempty"`
	PPID        int       `json:"ppid,omitempty"`
	Cmd         string    `json:"cmd,omitempty"`
	State       string    `json:"state,omitempty"`
	Description string    `json:"description,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	// Generation is the provider cycle that last observed the entity.
	Generation  uint64    `json:"generation"`
	SeenAt      time.Time `json:"seen_at"`
}

// Diff lists the display fields that differ between s and other.
func (s Snapshot) Diff(other Snapshot) []string {
	var out []string
	if s.Name != other.Name {
		out = append(out, "name")
	}
	if s.PID != other.PID {
		out = append(out, "pid")
	}
	if s.PPID != other.PPID {
		out = append(out, "ppid")
	}
	if s.Cmd != other.Cmd {
		out = append(out, "cmd")
	}
	if s.State != other.State {
		out = append(out, "state")
	}
	if s.Description != other.Description {
		out = append(out, "description")
	}
	if !s.StartedAt.Equal(other.StartedAt) {
		out = append(out, "started_at")
	}
	return out
}

// ListFilter allows narrowing a registry query.
type ListFilter struct {
	PIDs       []int
	Keys       []string
	States     []string
	TextSearch string // naive substring search over Name and Cmd
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
