// Package mode decides which top level UI the widget shows and swaps the
// mounted subtree when that decision changes.
package mode

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/reactive"
)

type Mode string

const (
	Waiting Mode = "waiting"
	Viewing Mode = "viewing"
	Editing Mode = "editing"
)

// Of is the mode for a declared style and the availability of rows.
func Of(style string, hasRows bool) Mode {
	switch {
	case style == host.StyleFull:
		return Editing
	case style == host.StyleCustom && hasRows:
		return Viewing
	default:
		return Waiting
	}
}

// Mount builds the subtree of one mode. Everything it creates belongs to
// the current owner and is released when the mode is left.
type Mount func() error

// Machine derives the mode from the declared style and the rows, and keeps
// exactly one subtree mounted for it.
type Machine struct {
	rt    *reactive.Runtime
	owner *reactive.Owner

	mode   *reactive.Derived[Mode]
	mounts map[Mode]Mount

	current *reactive.Owner
	failure *reactive.Cell[error]
}

// New derives the mode and mounts the subtree for it. rows being nil means
// no Records push arrived yet. Modes without a Mount show nothing.
func New(rt *reactive.Runtime, style reactive.Readable[string], rows reactive.Readable[[]*host.Row], mounts map[Mode]Mount) *Machine {
	m := &Machine{
		rt:      rt,
		owner:   rt.NewOwner(),
		mounts:  mounts,
		failure: reactive.NewCell[error](rt, nil),
	}

	m.owner.Run(func() error {
		m.mode = reactive.NewDerived(rt, func(r *reactive.Reader) Mode {
			// rows only matter for the custom style
			s := reactive.Read(r, style)
			if s != host.StyleCustom {
				return Of(s, false)
			}
			return Of(s, reactive.Read(r, rows) != nil)
		})
		m.mode.AddListener(m.mount)
		return nil
	})

	m.mount(m.mode.Get())
	return m
}

// Mode returns the derived mode cell.
func (m *Machine) Mode() *reactive.Derived[Mode] {
	return m.mode
}

// Current returns the current mode.
func (m *Machine) Current() Mode {
	return m.mode.Get()
}

// Failure holds the error that stopped the current subtree, nil while it is
// healthy.
func (m *Machine) Failure() *reactive.Cell[error] {
	return m.failure
}

// Fail marks the current subtree as failed. The machine keeps running and
// the next transition mounts a fresh subtree.
func (m *Machine) Fail(err error) {
	glog.Errorf("[mode]%s subtree failed: %v", m.Current(), err)
	m.failure.Set(err)
}

func (m *Machine) mount(next Mode) {
	if m.current != nil {
		m.current.Dispose()
		m.current = nil
	}
	m.failure.Set(nil)

	glog.V(1).Infof("[mode]mounting %s", next)

	mount := m.mounts[next]
	if mount == nil {
		return
	}

	sub := m.owner.NewChild()
	sub.OnError(func(r any) {
		m.Fail(fmt.Errorf("%s: %v", next, r))
	})
	m.current = sub

	if err := sub.Run(mount); err != nil && m.failure.Get() == nil {
		m.Fail(fmt.Errorf("mount %s: %w", next, err))
	}
}

// Dispose unmounts the current subtree and stops following the mode.
func (m *Machine) Dispose() {
	m.owner.Dispose()
	m.current = nil
}
