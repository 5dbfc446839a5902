package viewer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/forms/internal/collab"
	"github.com/AnatoleLucet/forms/internal/config"
	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/host/memhost"
	"github.com/AnatoleLucet/forms/internal/session"
)

func ptr(s string) *string { return &s }

func newSession(t *testing.T, cfg session.Config) (*memhost.Host, *session.Session) {
	t.Helper()

	h := memhost.New()
	cfg.Host = h
	s := session.New(cfg)
	t.Cleanup(s.Close)

	s.Bridge.Subscribe(host.EventRecords, func(m host.Message) { s.Rows.Set(m.Rows) })
	s.Bridge.Subscribe(host.EventOptions, func(m host.Message) { s.Settings.Set(m.Settings) })
	return h, s
}

func settle(t *testing.T, s *session.Session) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Settle(ctx))
}

func TestSelectRow(t *testing.T) {
	a := &host.Row{ID: 1, Form: "1"}
	b := &host.Row{ID: 2, Form: "2"}

	assert.Nil(t, SelectRow(nil, "1"))
	assert.Same(t, a, SelectRow([]*host.Row{a}, ""))
	assert.Same(t, a, SelectRow([]*host.Row{a}, "2"))
	assert.Same(t, b, SelectRow([]*host.Row{a, b}, "2"))
	assert.Nil(t, SelectRow([]*host.Row{a, b}, ""))
	assert.Nil(t, SelectRow([]*host.Row{a, b}, "3"))

	t.Run("missing form param matches no unnamed row", func(t *testing.T) {
		unnamed := &host.Row{ID: 3}
		assert.Nil(t, SelectRow([]*host.Row{unnamed, a}, ""))
		assert.Nil(t, SelectRow([]*host.Row{a, unnamed}, config.FormParam("https://docs.example.com/d/1")))
	})
}

func TestViewer(t *testing.T) {
	signup := &host.Row{ID: 1, Form: "1", FormJson: ptr(`{"components":[{"key":"email"}]}`)}
	survey := &host.Row{ID: 2, Form: "2", FormJson: ptr(`{"components":[{"key":"rating"},{"key":"comment"}]}`)}

	mount := func(t *testing.T, s *session.Session) *Viewer {
		t.Helper()

		var v *Viewer
		owner := s.Runtime.NewOwner()
		require.NoError(t, owner.Run(Mount(s, func(err error) { t.Error(err) }, func(x *Viewer) { v = x })))
		settle(t, s)
		require.NotNil(t, v)
		return v
	}

	t.Run("single row", func(t *testing.T) {
		h, s := newSession(t, session.Config{})
		h.EmitRecords([]*host.Row{signup})

		v := mount(t, s)

		assert.Same(t, signup, v.Row().Get())
		assert.Equal(t, []string{"email"}, v.Renderer().CurrentDocument().Keys())
	})

	t.Run("picks the form named in the page url", func(t *testing.T) {
		h, s := newSession(t, session.Config{})
		h.EmitOptions(nil, host.Settings{Style: host.StyleCustom, CurrentURL: "https://docs.example.com/d/1?Form_=2"})
		h.EmitRecords([]*host.Row{signup, survey})

		v := mount(t, s)

		assert.Same(t, survey, v.Row().Get())
		assert.Equal(t, []string{"rating", "comment"}, v.Document().Get().Keys())
	})

	t.Run("no match renders nothing", func(t *testing.T) {
		h, s := newSession(t, session.Config{})
		h.EmitRecords([]*host.Row{signup, survey})

		v := mount(t, s)

		assert.Nil(t, v.Row().Get())
		assert.True(t, v.Renderer().CurrentDocument().IsEmpty())
	})

	t.Run("follows later pushes", func(t *testing.T) {
		h, s := newSession(t, session.Config{})
		h.EmitRecords([]*host.Row{signup})
		v := mount(t, s)

		edited := *signup
		edited.FormJson = ptr(`{"components":[{"key":"email"},{"key":"phone"}]}`)
		h.EmitRecords([]*host.Row{&edited})

		assert.Equal(t, []string{"email", "phone"}, v.Renderer().CurrentDocument().Keys())
		assert.Equal(t, 2, v.Renderer().(*collab.HeadlessRenderer).Renders())
	})

	t.Run("renderer failure", func(t *testing.T) {
		_, s := newSession(t, session.Config{
			Renderers: func(context.Context) (collab.Renderer, error) {
				return nil, errors.New("offline")
			},
		})

		var failed error
		owner := s.Runtime.NewOwner()
		require.NoError(t, owner.Run(Mount(s, func(err error) { failed = err }, nil)))
		settle(t, s)

		assert.EqualError(t, failed, "init viewer: renderer: offline")
	})
}
