package tui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"procview/internal/presenter"
	"procview/internal/registry"
)

func item(key string, pid int) *presenter.Item {
	return &presenter.Item{Key: key, Snapshot: registry.Snapshot{Key: key, PID: pid, Name: key}}
}

func TestListCollectionBracketsDeferRebuild(t *testing.T) {
	c := newListCollection(registry.KindService, rowDelegate{})
	c.BeginUpdate()
	c.BeginUpdate()
	c.Insert(item("b.service", 0))
	c.Insert(item("a.service", 0))
	c.EndUpdate()
	if c.rebuilds != 0 {
		t.Fatal("rebuilt inside the outer bracket")
	}
	c.EndUpdate()
	if c.rebuilds != 1 || len(c.list.Items()) != 2 {
		t.Fatalf("expected one rebuild with 2 items, got %d/%d", c.rebuilds, len(c.list.Items()))
	}
	if c.rows[0].Key != "a.service" || c.rows[0].Index != 0 {
		t.Fatal("services not ordered by key")
	}

	c.Remove(c.rows[0])
	if c.rebuilds != 2 || len(c.rows) != 1 {
		t.Fatal("unbracketed remove should rebuild immediately")
	}
	c.teardown()
	if c.Live() {
		t.Fatal("collection still live after teardown")
	}
}

func TestFormatColumnsTruncatesWideText(t *testing.T) {
	snap := registry.Snapshot{PID: 1, PPID: 0, State: "S", Name: "名前がとても長いプロセス", Cmd: strings.Repeat("x", 200)}
	line := formatColumns(processColumns, 60, func(c column) string { return c.value(snap) })
	if w := runewidth.StringWidth(line); w > 60 {
		t.Fatalf("line is %d cells wide", w)
	}
	if !strings.Contains(line, "…") {
		t.Fatalf("expected truncation marker in %q", line)
	}
}
