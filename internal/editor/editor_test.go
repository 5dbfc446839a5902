package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/forms/internal/collab"
	"github.com/AnatoleLucet/forms/internal/config"
	"github.com/AnatoleLucet/forms/internal/document"
	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/host/memhost"
	"github.com/AnatoleLucet/forms/internal/reactive"
	"github.com/AnatoleLucet/forms/internal/session"
)

func ptr(s string) *string { return &s }

func newSession(t *testing.T, h *memhost.Host, cfg session.Config) *session.Session {
	t.Helper()

	cfg.Host = h
	s := session.New(cfg)

	s.Bridge.Subscribe(host.EventRecords, func(m host.Message) { s.Rows.Set(m.Rows) })
	s.Bridge.Subscribe(host.EventRecord, func(m host.Message) {
		s.CurrentRow.Set(m.Row)
		s.Mapping.Set(m.Mapping)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Writer.Run(context.Background())
	}()
	t.Cleanup(func() {
		s.Close()
		<-done
	})
	return s
}

func settle(t *testing.T, s *session.Session) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Settle(ctx))
}

func mount(t *testing.T, s *session.Session) (*Editor, *reactive.Owner) {
	t.Helper()

	var e *Editor
	owner := s.Runtime.NewOwner()
	err := owner.Run(Mount(s, func(err error) { t.Errorf("mount failed: %v", err) }, func(x *Editor) { e = x }))
	require.NoError(t, err)

	settle(t, s)
	require.NotNil(t, e)
	return e, owner
}

func builder(e *Editor) *collab.HeadlessBuilder {
	return e.Doc.Builder().(*collab.HeadlessBuilder)
}

func renderer(e *Editor) *collab.HeadlessRenderer {
	return e.Doc.Renderer().(*collab.HeadlessRenderer)
}

func TestDocumentSession(t *testing.T) {
	t.Run("loads the selected row", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(&host.Row{ID: 1, FormJson: ptr(`{"components":[{"key":"email","type":"email"}]}`)})
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)

		h.PushTable()
		require.NoError(t, h.SetCursor(context.Background(), 1))

		assert.Equal(t, []string{"email"}, builder(e).CurrentDocument().Keys())
		assert.Equal(t, []string{"email"}, renderer(e).CurrentDocument().Keys())
		assert.Equal(t, []string{"email"}, e.Doc.Document().Get().Keys())
	})

	t.Run("row selected before mount", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(&host.Row{ID: 1, FormJson: ptr(`{"components":[{"key":"a"}]}`)})
		s := newSession(t, h, session.Config{})
		require.NoError(t, h.SetCursor(context.Background(), 1))

		e, _ := mount(t, s)

		assert.Equal(t, []string{"a"}, builder(e).CurrentDocument().Keys())
	})

	t.Run("malformed form loads empty", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(&host.Row{ID: 1, FormJson: ptr(`{"components":`)})
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)

		require.NoError(t, h.SetCursor(context.Background(), 1))
		settle(t, s)

		assert.True(t, builder(e).CurrentDocument().IsEmpty())
		assert.True(t, e.Doc.Document().Get().IsEmpty())
		assert.Empty(t, h.MemTable().Updates())
	})

	t.Run("edit writes the selected row", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(&host.Row{ID: 1})
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)
		require.NoError(t, h.SetCursor(context.Background(), 1))

		builder(e).AddComponent(document.Component{"key": "name", "type": "textfield"})
		settle(t, s)

		updates := h.MemTable().Updates()
		require.Len(t, updates, 1)
		assert.Equal(t, host.RowID(1), updates[0].ID)
		assert.JSONEq(t, `{"components":[{"key":"name","type":"textfield"}]}`, updates[0].Fields["FormJson"].(string))
	})

	t.Run("emptied form writes null", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(&host.Row{ID: 1, FormJson: ptr(`{"components":[{"key":"a"}]}`)})
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)
		require.NoError(t, h.SetCursor(context.Background(), 1))

		assert.True(t, builder(e).RemoveComponent("a"))
		settle(t, s)

		updates := h.MemTable().Updates()
		require.Len(t, updates, 1)
		assert.Nil(t, updates[0].Fields["FormJson"])

		row, _ := h.MemTable().Row(1)
		assert.Nil(t, row.FormJson)
	})

	t.Run("edit without a row is not saved", func(t *testing.T) {
		h := memhost.New()
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)

		builder(e).AddComponent(document.Component{"key": "a"})
		settle(t, s)

		assert.Equal(t, []string{"a"}, e.Doc.Document().Get().Keys())
		assert.Zero(t, s.Writer.Pending())
		assert.Empty(t, h.MemTable().Updates())
	})

	t.Run("write stays on the row it was made for", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(&host.Row{ID: 1}, &host.Row{ID: 2, FormJson: ptr(`{"components":[{"key":"b"}]}`)})
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)
		require.NoError(t, h.SetCursor(context.Background(), 1))

		release := h.MemTable().Hold()
		builder(e).AddComponent(document.Component{"key": "a"})

		require.NoError(t, h.SetCursor(context.Background(), 2))
		assert.Equal(t, []string{"b"}, builder(e).CurrentDocument().Keys())

		release()
		settle(t, s)

		updates := h.MemTable().Updates()
		require.Len(t, updates, 1)
		assert.Equal(t, host.RowID(1), updates[0].ID)

		row2, _ := h.MemTable().Row(2)
		assert.JSONEq(t, `{"components":[{"key":"b"}]}`, *row2.FormJson)
	})

	t.Run("writes keep edit order", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(&host.Row{ID: 1})
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)
		require.NoError(t, h.SetCursor(context.Background(), 1))

		release := h.MemTable().Hold()
		for _, key := range []string{"a", "b", "c"} {
			builder(e).AddComponent(document.Component{"key": key})
		}
		release()
		settle(t, s)

		updates := h.MemTable().Updates()
		require.Len(t, updates, 3)
		assert.JSONEq(t, `{"components":[{"key":"a"},{"key":"b"},{"key":"c"}]}`, updates[2].Fields["FormJson"].(string))

		row, _ := h.MemTable().Row(1)
		assert.Equal(t, []string{"a", "b", "c"}, document.Parse(row.FormJSON()).Keys())
	})

	t.Run("refresh of the edited row keeps the edit", func(t *testing.T) {
		h := memhost.New(memhost.WithAutoPush())
		h.MemTable().Insert(&host.Row{ID: 1})
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)
		require.NoError(t, h.SetCursor(context.Background(), 1))

		release := h.MemTable().Hold()
		builder(e).AddComponent(document.Component{"key": "a"})
		builder(e).AddComponent(document.Component{"key": "b"})
		release()
		settle(t, s)

		assert.Equal(t, []string{"a", "b"}, builder(e).CurrentDocument().Keys())
		assert.Equal(t, []string{"a", "b"}, e.Doc.Document().Get().Keys())
	})

	t.Run("failed write is surfaced", func(t *testing.T) {
		boom := errors.New("boom")

		h := memhost.New()
		h.MemTable().Insert(&host.Row{ID: 1})
		h.MemTable().Fail(boom)
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)
		require.NoError(t, h.SetCursor(context.Background(), 1))

		builder(e).AddComponent(document.Component{"key": "a"})
		settle(t, s)

		saveErr := s.SaveError.Get()
		require.NotNil(t, saveErr)
		assert.ErrorIs(t, saveErr, boom)
		assert.Equal(t, host.RowID(1), saveErr.Write.Row)
		assert.Equal(t, []string{"a"}, e.Doc.Document().Get().Keys())
		assert.Empty(t, h.MemTable().Updates())
	})

	t.Run("disposed subtree stops saving", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(&host.Row{ID: 1})
		s := newSession(t, h, session.Config{})
		e, owner := mount(t, s)
		require.NoError(t, h.SetCursor(context.Background(), 1))

		b := builder(e)
		owner.Dispose()

		b.AddComponent(document.Component{"key": "a"})
		require.NoError(t, h.SetCursor(context.Background(), 1))
		settle(t, s)

		assert.Empty(t, h.MemTable().Updates())
		assert.True(t, e.Doc.Document().Get().IsEmpty())
	})
}

func TestMount(t *testing.T) {
	t.Run("collaborator failure", func(t *testing.T) {
		h := memhost.New()
		s := newSession(t, h, session.Config{
			Builders: func(context.Context) (collab.Builder, error) {
				return nil, errors.New("builder bundle missing")
			},
		})

		var failed error
		mounted := false
		owner := s.Runtime.NewOwner()
		require.NoError(t, owner.Run(Mount(s, func(err error) { failed = err }, func(*Editor) { mounted = true })))
		settle(t, s)

		assert.False(t, mounted)
		assert.ErrorContains(t, failed, "init editor: builder: builder bundle missing")
	})

	t.Run("unmounted before ready", func(t *testing.T) {
		h := memhost.New()
		s := newSession(t, h, session.Config{})

		mounted := false
		owner := s.Runtime.NewOwner()
		require.NoError(t, owner.Run(Mount(s, func(err error) { t.Error(err) }, func(*Editor) { mounted = true })))
		owner.Dispose()
		settle(t, s)

		assert.False(t, mounted)
	})
}

func TestEditor(t *testing.T) {
	rows := func() []*host.Row {
		return []*host.Row{
			{ID: 1, Name: "Signup", Link: "https://forms.example.com/1", FormJson: ptr(`{"components":[{"key":"email","label":"Email","type":"email"}]}`)},
			{ID: 2, Name: "Survey"},
		}
	}

	t.Run("navigation", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(rows()...)
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)

		h.PushTable()
		require.NoError(t, h.SetCursor(context.Background(), 2))

		assert.Equal(t, []NavItem{
			{ID: 1, Name: "Signup"},
			{ID: 2, Name: "Survey", Selected: true},
		}, e.Navigation().Get())
	})

	t.Run("select", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(rows()...)
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)
		h.PushTable()

		require.NoError(t, e.Select(2))
		settle(t, s)

		assert.Equal(t, host.RowID(2), h.Cursor())
		assert.Equal(t, "Survey", s.CurrentRow.Get().Name)

		assert.ErrorIs(t, e.Select(9), ErrNoRow)
	})

	t.Run("create form", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(rows()...)
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)

		var created host.RowID
		require.NoError(t, e.CreateForm(func(id host.RowID, err error) {
			require.NoError(t, err)
			created = id
		}))
		settle(t, s)

		assert.Equal(t, host.RowID(3), created)
		assert.Equal(t, host.RowID(3), h.Cursor())
		assert.Equal(t, UntitledName, s.CurrentRow.Get().Name)
		assert.True(t, e.Doc.Document().Get().IsEmpty())
	})

	t.Run("create form read-only", func(t *testing.T) {
		h := memhost.New()
		s := newSession(t, h, session.Config{Access: config.Access{Level: host.AccessReadTable, ReadOnly: true}})
		e, _ := mount(t, s)

		assert.True(t, e.ReadOnly())
		assert.ErrorIs(t, e.CreateForm(nil), ErrReadOnly)
		settle(t, s)
		assert.Empty(t, h.MemTable().Rows())
	})

	t.Run("publish", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(rows()...)
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)

		assert.Nil(t, e.Publish().Get())

		require.NoError(t, h.SetCursor(context.Background(), 1))
		assert.Equal(t, &PublishView{Name: "Signup", Link: "https://forms.example.com/1"}, e.Publish().Get())
	})

	t.Run("map", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(rows()...)
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)

		h.EmitRecord(rows()[0], host.Mapping{"email": "Email"})
		require.NoError(t, e.Tabs.Request(TabMap))
		settle(t, s)

		view := e.Map().Get()
		require.NotNil(t, view)
		assert.Equal(t, []document.Field{{Key: "email", Label: "Email", Type: "email"}}, view.Fields)
		assert.Equal(t, host.Mapping{"email": "Email"}, view.Mapping)
		assert.Len(t, view.Columns, 4)
		assert.Equal(t, TabMap, e.Tabs.Current().Get())
	})
}

func TestTabController(t *testing.T) {
	t.Run("entry effect runs before commit", func(t *testing.T) {
		rt := reactive.NewRuntime()
		log := []string{}

		var tabs *TabController
		tabs = NewTabController(rt, map[Tab]Effect{
			TabPreview: func(from, to Tab) {
				log = append(log, "effect:"+string(from)+">"+string(to))
				log = append(log, "pending:"+string(tabs.Pending().Get()))
				log = append(log, "current:"+string(tabs.Current().Get()))
			},
		})
		tabs.Current().AddListener(func(tab Tab) { log = append(log, "commit:"+string(tab)) })

		require.NoError(t, tabs.Request(TabPreview))

		assert.Equal(t, []string{
			"effect:edit>preview",
			"pending:preview",
			"current:edit",
			"commit:preview",
		}, log)
		assert.True(t, tabs.Is(TabPreview))
		assert.Equal(t, Tab(""), tabs.Pending().Get())
	})

	t.Run("unknown tab", func(t *testing.T) {
		tabs := NewTabController(reactive.NewRuntime(), nil)

		err := tabs.Request("settings")
		assert.ErrorIs(t, err, ErrUnknownTab)
		assert.True(t, tabs.Is(TabEdit))
	})

	t.Run("preview shows the latest edit while its write is pending", func(t *testing.T) {
		h := memhost.New()
		h.MemTable().Insert(&host.Row{ID: 1})
		s := newSession(t, h, session.Config{})
		e, _ := mount(t, s)
		require.NoError(t, h.SetCursor(context.Background(), 1))

		release := h.MemTable().Hold()
		builder(e).AddComponent(document.Component{"key": "a"})
		assert.True(t, renderer(e).CurrentDocument().IsEmpty())

		require.NoError(t, e.Tabs.Request(TabPreview))
		assert.Equal(t, []string{"a"}, renderer(e).CurrentDocument().Keys())
		assert.Equal(t, 1, s.Writer.Pending())

		release()
		settle(t, s)
	})
}
