package tui

import (
	"sort"

	"github.com/charmbracelet/bubbles/list"

	"procview/internal/presenter"
	"procview/internal/registry"
)

// listCollection adapts a bubbles list to presenter.Collection. Mutations
// inside an update bracket only mark the list dirty; the items are rebuilt
// once when the outermost bracket closes.
type listCollection struct {
	kind  registry.Kind
	list  list.Model
	rows  []*presenter.Item
	depth int
	dirty bool
	dead  bool

	rebuilds int
}

func newListCollection(kind registry.Kind, delegate list.ItemDelegate) *listCollection {
	lst := list.New(nil, delegate, 0, 0)
	lst.SetShowTitle(false)
	lst.SetShowHelp(false)
	lst.SetShowStatusBar(false)
	lst.SetFilteringEnabled(false)
	lst.DisableQuitKeybindings()
	return &listCollection{kind: kind, list: lst}
}

func (c *listCollection) BeginUpdate() { c.depth++ }

func (c *listCollection) EndUpdate() {
	if c.depth > 0 {
		c.depth--
	}
	if c.depth == 0 && c.dirty {
		c.rebuild()
	}
}

func (c *listCollection) Live() bool { return !c.dead }

func (c *listCollection) Insert(it *presenter.Item) {
	i := sort.Search(len(c.rows), func(i int) bool { return !c.less(c.rows[i], it) })
	c.rows = append(c.rows, nil)
	copy(c.rows[i+1:], c.rows[i:])
	c.rows[i] = it
	c.touch()
}

func (c *listCollection) Update(it *presenter.Item) { c.touch() }

func (c *listCollection) Restyle(it *presenter.Item) { c.touch() }

func (c *listCollection) Remove(it *presenter.Item) {
	for i, row := range c.rows {
		if row == it {
			c.rows = append(c.rows[:i], c.rows[i+1:]...)
			break
		}
	}
	c.touch()
}

func (c *listCollection) Refresh() { c.touch() }

// teardown marks the control as gone; queued highlight batches are dropped.
func (c *listCollection) teardown() {
	c.dead = true
}

func (c *listCollection) touch() {
	c.dirty = true
	if c.depth == 0 {
		c.rebuild()
	}
}

func (c *listCollection) rebuild() {
	items := make([]list.Item, len(c.rows))
	for i, it := range c.rows {
		it.Index = i
		items[i] = row{item: it, kind: c.kind}
	}
	c.list.SetItems(items)
	c.dirty = false
	c.rebuilds++
}

// less orders processes by pid and services by unit name.
func (c *listCollection) less(a, b *presenter.Item) bool {
	if c.kind == registry.KindProcess && a.Snapshot.PID != b.Snapshot.PID {
		return a.Snapshot.PID < b.Snapshot.PID
	}
	return a.Key < b.Key
}

// current returns the row under the cursor.
func (c *listCollection) current() *presenter.Item {
	r, ok := c.list.SelectedItem().(row)
	if !ok {
		return nil
	}
	return r.item
}

// row is the list.Item for one displayed entity.
type row struct {
	item *presenter.Item
	kind registry.Kind
}

func (r row) FilterValue() string {
	return r.item.Snapshot.Name + " " + r.item.Snapshot.Cmd
}
