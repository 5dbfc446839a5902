package mode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/reactive"
)

func TestOf(t *testing.T) {
	tests := []struct {
		style   string
		hasRows bool
		want    Mode
	}{
		{"", false, Waiting},
		{"", true, Waiting},
		{host.StyleFull, false, Editing},
		{host.StyleFull, true, Editing},
		{host.StyleCustom, false, Waiting},
		{host.StyleCustom, true, Viewing},
		{"compact", true, Waiting},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Of(tt.style, tt.hasRows), "style=%q hasRows=%v", tt.style, tt.hasRows)
	}
}

func TestMachine(t *testing.T) {
	setup := func(mounts map[Mode]Mount) (*reactive.Runtime, *reactive.Cell[string], *reactive.Cell[[]*host.Row], *Machine) {
		rt := reactive.NewRuntime()
		style := reactive.NewCell(rt, "")
		rows := reactive.NewCell[[]*host.Row](rt, nil)
		return rt, style, rows, New(rt, style, rows, mounts)
	}

	t.Run("follows style and rows", func(t *testing.T) {
		_, style, rows, m := setup(nil)
		assert.Equal(t, Waiting, m.Current())

		style.Set(host.StyleCustom)
		assert.Equal(t, Waiting, m.Current())

		rows.Set([]*host.Row{})
		assert.Equal(t, Viewing, m.Current())

		style.Set(host.StyleFull)
		assert.Equal(t, Editing, m.Current())

		rows.Set(nil)
		assert.Equal(t, Editing, m.Current())

		style.Set(host.StyleCustom)
		assert.Equal(t, Waiting, m.Current())
	})

	t.Run("mounts one subtree at a time", func(t *testing.T) {
		log := []string{}
		var rt *reactive.Runtime

		mountFor := func(name string) Mount {
			return func() error {
				log = append(log, "mount:"+name)
				rt.OnCleanup(func() { log = append(log, "unmount:"+name) })
				return nil
			}
		}

		rt, style, rows, m := setup(map[Mode]Mount{
			Viewing: mountFor("viewer"),
			Editing: mountFor("editor"),
		})
		_ = m

		style.Set(host.StyleFull)
		style.Set(host.StyleCustom)
		rows.Set([]*host.Row{{ID: 1}})
		rows.Set([]*host.Row{{ID: 2}})
		style.Set(host.StyleFull)

		assert.Equal(t, []string{
			"mount:editor",
			"unmount:editor",
			"mount:viewer",
			"unmount:viewer",
			"mount:editor",
		}, log)
	})

	t.Run("leaving a mode releases its listeners", func(t *testing.T) {
		var rt *reactive.Runtime
		var rows *reactive.Cell[[]*host.Row]
		seen := 0

		rt, style, rows, m := setup(map[Mode]Mount{
			Viewing: func() error {
				rows.AddListener(func([]*host.Row) { seen++ })
				reactive.NewDerived(rt, func(r *reactive.Reader) int {
					return len(reactive.Read(r, rows))
				}).AddListener(func(int) { seen++ })
				return nil
			},
		})

		style.Set(host.StyleCustom)
		rows.Set([]*host.Row{{ID: 1}})
		require.Equal(t, Viewing, m.Current())

		rows.Set([]*host.Row{{ID: 1}, {ID: 2}})
		assert.Equal(t, 2, seen)

		style.Set(host.StyleFull)
		rows.Set([]*host.Row{{ID: 3}})
		assert.Equal(t, 2, seen)
	})

	t.Run("failed mount", func(t *testing.T) {
		_, style, _, m := setup(map[Mode]Mount{
			Editing: func() error { return errors.New("bundle missing") },
		})

		style.Set(host.StyleFull)
		assert.Equal(t, Editing, m.Current())
		assert.EqualError(t, m.Failure().Get(), "mount editing: bundle missing")

		style.Set("")
		assert.NoError(t, m.Failure().Get())
	})

	t.Run("panicking mount", func(t *testing.T) {
		_, style, _, m := setup(map[Mode]Mount{
			Editing: func() error { panic("renderer exploded") },
		})

		style.Set(host.StyleFull)
		assert.EqualError(t, m.Failure().Get(), "editing: renderer exploded")

		style.Set("")
		assert.Equal(t, Waiting, m.Current())
	})

	t.Run("dispose", func(t *testing.T) {
		unmounted := false
		var rt *reactive.Runtime

		rt, style, _, m := setup(map[Mode]Mount{
			Editing: func() error {
				rt.OnCleanup(func() { unmounted = true })
				return nil
			},
		})

		style.Set(host.StyleFull)
		m.Dispose()
		assert.True(t, unmounted)

		style.Set(host.StyleCustom)
		assert.Equal(t, Editing, m.Current())
	})
}
