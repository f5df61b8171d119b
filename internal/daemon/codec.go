package daemon

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"procview/internal/registry"
)

// Wire field names shared by List and Watch messages.
const (
	fieldKind       = "kind"
	fieldGeneration = "generation"
	fieldItems      = "items"
	fieldText       = "text"
	fieldPIDs       = "pids"
	fieldKeys       = "keys"
	fieldStates     = "states"
)

// ListRequest encodes a List call. A zero kind asks for every kind.
func ListRequest(kind registry.Kind, f registry.ListFilter) *structpb.Struct {
	fields := map[string]*structpb.Value{}
	if kind != 0 {
		fields[fieldKind] = structpb.NewStringValue(kind.String())
	}
	if f.TextSearch != "" {
		fields[fieldText] = structpb.NewStringValue(f.TextSearch)
	}
	if len(f.PIDs) > 0 {
		vals := make([]*structpb.Value, 0, len(f.PIDs))
		for _, pid := range f.PIDs {
			vals = append(vals, structpb.NewNumberValue(float64(pid)))
		}
		fields[fieldPIDs] = structpb.NewListValue(&structpb.ListValue{Values: vals})
	}
	if len(f.Keys) > 0 {
		fields[fieldKeys] = stringList(f.Keys)
	}
	if len(f.States) > 0 {
		fields[fieldStates] = stringList(f.States)
	}
	return &structpb.Struct{Fields: fields}
}

// ParseListRequest is the inverse of ListRequest.
func ParseListRequest(req *structpb.Struct) (registry.Kind, registry.ListFilter, error) {
	var (
		kind registry.Kind
		f    registry.ListFilter
	)
	fields := req.GetFields()
	if v, ok := fields[fieldKind]; ok {
		k, err := registry.ParseKind(v.GetStringValue())
		if err != nil {
			return 0, f, err
		}
		kind = k
	}
	f.TextSearch = fields[fieldText].GetStringValue()
	for _, v := range fields[fieldPIDs].GetListValue().GetValues() {
		pid := int(v.GetNumberValue())
		if pid <= 0 {
			return 0, f, fmt.Errorf("invalid pid filter: %v", v.GetNumberValue())
		}
		f.PIDs = append(f.PIDs, pid)
	}
	f.Keys = stringValues(fields[fieldKeys])
	f.States = stringValues(fields[fieldStates])
	return kind, f, nil
}

// SnapshotsMessage encodes one cycle of snapshots.
func SnapshotsMessage(kind registry.Kind, generation uint64, snaps []registry.Snapshot) *structpb.Struct {
	items := make([]*structpb.Value, 0, len(snaps))
	for _, s := range snaps {
		items = append(items, structpb.NewStructValue(encodeSnapshot(s)))
	}
	fields := map[string]*structpb.Value{
		fieldGeneration: structpb.NewNumberValue(float64(generation)),
		fieldItems:      structpb.NewListValue(&structpb.ListValue{Values: items}),
	}
	if kind != 0 {
		fields[fieldKind] = structpb.NewStringValue(kind.String())
	}
	return &structpb.Struct{Fields: fields}
}

// ParseSnapshots decodes a message built by SnapshotsMessage.
func ParseSnapshots(msg *structpb.Struct) (uint64, []registry.Snapshot, error) {
	fields := msg.GetFields()
	gen := uint64(fields[fieldGeneration].GetNumberValue())
	values := fields[fieldItems].GetListValue().GetValues()
	out := make([]registry.Snapshot, 0, len(values))
	for i, v := range values {
		st := v.GetStructValue()
		if st == nil {
			return 0, nil, fmt.Errorf("item %d is not an object", i)
		}
		snap, err := decodeSnapshot(st)
		if err != nil {
			return 0, nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, snap)
	}
	return gen, out, nil
}

func encodeSnapshot(s registry.Snapshot) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"key":        structpb.NewStringValue(s.Key),
		"kind":       structpb.NewStringValue(s.Kind.String()),
		"name":       structpb.NewStringValue(s.Name),
		"pid":        structpb.NewNumberValue(float64(s.PID)),
		"ppid":       structpb.NewNumberValue(float64(s.PPID)),
		"cmd":        structpb.NewStringValue(s.Cmd),
		"state":      structpb.NewStringValue(s.State),
		"generation": structpb.NewNumberValue(float64(s.Generation)),
	}
	if s.Description != "" {
		fields["description"] = structpb.NewStringValue(s.Description)
	}
	if !s.StartedAt.IsZero() {
		fields["started_at"] = structpb.NewStringValue(s.StartedAt.UTC().Format(time.RFC3339Nano))
	}
	if !s.SeenAt.IsZero() {
		fields["seen_at"] = structpb.NewStringValue(s.SeenAt.UTC().Format(time.RFC3339Nano))
	}
	return &structpb.Struct{Fields: fields}
}

func decodeSnapshot(st *structpb.Struct) (registry.Snapshot, error) {
	f := st.GetFields()
	key := f["key"].GetStringValue()
	if key == "" {
		return registry.Snapshot{}, errors.New("missing key")
	}
	kind, err := registry.ParseKind(f["kind"].GetStringValue())
	if err != nil {
		return registry.Snapshot{}, err
	}
	s := registry.Snapshot{
		Key:         key,
		Kind:        kind,
		Name:        f["name"].GetStringValue(),
		PID:         int(f["pid"].GetNumberValue()),
		PPID:        int(f["ppid"].GetNumberValue()),
		Cmd:         f["cmd"].GetStringValue(),
		State:       f["state"].GetStringValue(),
		Description: f["description"].GetStringValue(),
		Generation:  uint64(f["generation"].GetNumberValue()),
	}
	if s.StartedAt, err = parseTime(f["started_at"]); err != nil {
		return registry.Snapshot{}, fmt.Errorf("started_at: %w", err)
	}
	if s.SeenAt, err = parseTime(f["seen_at"]); err != nil {
		return registry.Snapshot{}, fmt.Errorf("seen_at: %w", err)
	}
	return s, nil
}

func parseTime(v *structpb.Value) (time.Time, error) {
	raw := v.GetStringValue()
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func stringList(xs []string) *structpb.Value {
	vals := make([]*structpb.Value, 0, len(xs))
	for _, x := range xs {
		vals = append(vals, structpb.NewStringValue(x))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func stringValues(v *structpb.Value) []string {
	var out []string
	for _, x := range v.GetListValue().GetValues() {
		out = append(out, x.GetStringValue())
	}
	return out
}
