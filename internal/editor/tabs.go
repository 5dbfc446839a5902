package editor

import (
	"fmt"

	"github.com/AnatoleLucet/forms/internal/reactive"
)

type Tab string

const (
	TabEdit    Tab = "edit"
	TabPreview Tab = "preview"
	TabMap     Tab = "map"
	TabPublish Tab = "publish"
)

// Tabs lists the tabs in header order.
var Tabs = []Tab{TabEdit, TabPreview, TabMap, TabPublish}

func (t Tab) valid() bool {
	switch t {
	case TabEdit, TabPreview, TabMap, TabPublish:
		return true
	}
	return false
}

// Effect runs when entering a tab, before it becomes current.
type Effect func(from, to Tab)

// TabController selects the editor's secondary view. A request first sets
// the pending tab, runs the entry effect of the requested tab, then commits.
type TabController struct {
	current *reactive.Cell[Tab]
	pending *reactive.Cell[Tab]

	effects map[Tab]Effect
}

func NewTabController(rt *reactive.Runtime, effects map[Tab]Effect) *TabController {
	return &TabController{
		current: reactive.NewCell(rt, TabEdit),
		pending: reactive.NewCell[Tab](rt, ""),
		effects: effects,
	}
}

// Current is the active tab.
func (t *TabController) Current() *reactive.Cell[Tab] {
	return t.current
}

// Pending is the tab being entered, "" outside a transition.
func (t *TabController) Pending() *reactive.Cell[Tab] {
	return t.pending
}

// Request switches to tab. Requesting the current tab runs its entry effect
// again.
func (t *TabController) Request(tab Tab) error {
	if !tab.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}

	from := t.current.Get()
	t.pending.Set(tab)

	if effect := t.effects[tab]; effect != nil {
		effect(from, tab)
	}

	t.current.Set(tab)
	t.pending.Set("")
	return nil
}

// Is reports whether tab is active.
func (t *TabController) Is(tab Tab) bool {
	return t.current.Get() == tab
}
