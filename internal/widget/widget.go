// Package widget assembles a form widget session: it greets the host,
// follows its pushes and mounts the editor or the viewer.
package widget

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/AnatoleLucet/forms/internal/collab"
	"github.com/AnatoleLucet/forms/internal/config"
	"github.com/AnatoleLucet/forms/internal/editor"
	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/mode"
	"github.com/AnatoleLucet/forms/internal/reactive"
	"github.com/AnatoleLucet/forms/internal/session"
	"github.com/AnatoleLucet/forms/internal/viewer"
)

var ErrStarted = errors.New("widget: already started")

type options struct {
	builders  collab.BuilderFactory
	renderers collab.RendererFactory
	onWrite   func(session.Write)
}

type Option func(*options)

// WithBuilders sets how the form builder is created. Headless builders are
// used by default.
func WithBuilders(f collab.BuilderFactory) Option {
	return func(o *options) { o.builders = f }
}

// WithRenderers sets how the form renderer is created.
func WithRenderers(f collab.RendererFactory) Option {
	return func(o *options) { o.renderers = f }
}

// OnWrite registers fn to be called on the writer goroutine with every
// finished write, failed ones included.
func OnWrite(fn func(session.Write)) Option {
	return func(o *options) { o.onWrite = fn }
}

type Widget struct {
	cfg config.Config
	s   *session.Session

	modes  *mode.Machine
	editor *reactive.Cell[*editor.Editor]
	viewer *reactive.Cell[*viewer.Viewer]

	started bool
}

// New builds the session for h. Everything it creates is confined to the
// calling goroutine until Run moves the loop elsewhere.
func New(h host.Host, cfg config.Config, opts ...Option) (*Widget, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	access, err := config.ParseAccess(cfg.WidgetURL)
	if err != nil {
		return nil, fmt.Errorf("new widget: %w", err)
	}

	s := session.New(session.Config{
		Host:      h,
		Access:    access,
		Builders:  o.builders,
		Renderers: o.renderers,
		Writer:    session.WriterConfig{Timeout: cfg.WriteTimeout, OnSent: o.onWrite},
		MaxDepth:  cfg.MaxDepth,
	})

	w := &Widget{
		cfg:    cfg,
		s:      s,
		editor: reactive.NewCell[*editor.Editor](s.Runtime, nil),
		viewer: reactive.NewCell[*viewer.Viewer](s.Runtime, nil),
	}

	w.modes = mode.New(s.Runtime, s.Style, s.Rows, map[mode.Mode]mode.Mount{
		mode.Editing: func() error {
			s.Runtime.OnCleanup(func() { w.editor.Set(nil) })
			return editor.Mount(s, w.fail, w.editor.Set)()
		},
		mode.Viewing: func() error {
			s.Runtime.OnCleanup(func() { w.viewer.Set(nil) })
			return viewer.Mount(s, w.fail, w.viewer.Set)()
		},
	})

	return w, nil
}

func (w *Widget) fail(err error) {
	w.modes.Fail(err)
}

// Start subscribes to the host pushes and sends the ready handshake. It
// must run on the loop goroutine.
func (w *Widget) Start() error {
	if w.started {
		return ErrStarted
	}
	w.started = true

	b := w.s.Bridge
	b.Subscribe(host.EventOptions, w.onOptions)
	b.Subscribe(host.EventRecords, w.onRecords)
	b.Subscribe(host.EventRecord, w.onRecord)

	err := w.s.Host.Ready(host.ReadyOptions{
		RequiredAccess: w.cfg.RequiredAccess,
		OnEditOptions: func() {
			w.s.Loop.Do(w.ShowEditor)
		},
	})
	if err != nil {
		return fmt.Errorf("ready: %w", err)
	}

	glog.V(1).Infof("[widget]ready, access %q, read-only %v", w.cfg.RequiredAccess, w.s.Access.ReadOnly)
	return nil
}

func settingsOf(m host.Message) *host.Settings {
	if m.Settings == nil {
		return &host.Settings{}
	}
	return m.Settings
}

func (w *Widget) onOptions(m host.Message) {
	settings := settingsOf(m)

	w.s.Settings.Set(settings)
	w.s.Style.Set(settings.Style)
}

func (w *Widget) onRecords(m host.Message) {
	rows := m.Rows
	if rows == nil {
		rows = []*host.Row{}
	}
	w.s.Rows.Set(rows)
}

func (w *Widget) onRecord(m host.Message) {
	w.s.CurrentRow.Set(m.Row)
	w.s.Mapping.Set(m.Mapping)
}

// ShowEditor switches to the editor, as when the user asks the host to
// configure the widget.
func (w *Widget) ShowEditor() {
	w.s.Style.Set(host.StyleFull)
}

// Run starts the widget and runs its loop, its writer and the host
// transport until ctx is done or one of them fails. Queued writes are
// still sent after ctx is done.
func (w *Widget) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	started := make(chan error, 1)
	eg.Go(func() error {
		defer w.s.Writer.Close()

		if err := w.s.Loop.Post(func() { started <- w.Start() }); err != nil {
			return err
		}
		return w.s.Loop.Run(ctx)
	})

	eg.Go(func() error {
		return w.s.Writer.Run(context.WithoutCancel(ctx))
	})

	if r, ok := w.s.Host.(host.Runner); ok {
		eg.Go(func() error {
			return r.Run(ctx)
		})
	}

	eg.Go(func() error {
		select {
		case err := <-started:
			return err
		case <-ctx.Done():
			return nil
		}
	})

	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Do runs fn on the loop and waits for it. It must not be called on the
// loop goroutine of a running widget.
func (w *Widget) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := w.s.Loop.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitOptions waits for the first Options push and returns its settings.
// It must not be called on the loop goroutine of a running widget.
func (w *Widget) WaitOptions(ctx context.Context) (*host.Settings, error) {
	ch := make(chan *host.Settings, 1)

	err := w.s.Loop.Post(func() {
		if settings := w.s.Settings.Get(); settings != nil {
			ch <- settings
			return
		}
		w.s.Bridge.SubscribeOnce(host.EventOptions, func(m host.Message) {
			ch <- settingsOf(m)
		})
	})
	if err != nil {
		return nil, err
	}

	select {
	case settings := <-ch:
		return settings, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Settle runs pending turns until the widget is idle. Only for widgets
// driven without Run.
func (w *Widget) Settle(ctx context.Context) error {
	return w.s.Settle(ctx)
}

// Close releases the mounted subtree and stops the loop. Writes already
// queued are still sent by a running writer.
func (w *Widget) Close() {
	w.modes.Dispose()
	w.s.Close()
}

func (w *Widget) Session() *session.Session {
	return w.s
}

// Mode is the current top level mode.
func (w *Widget) Mode() mode.Mode {
	return w.modes.Current()
}

// Modes returns the mode cell.
func (w *Widget) Modes() *reactive.Derived[mode.Mode] {
	return w.modes.Mode()
}

// Err is the error that stopped the mounted subtree, nil while it is
// healthy.
func (w *Widget) Err() error {
	return w.modes.Failure().Get()
}

// Editor is the mounted editor, nil outside editing mode or while the
// builder is loading.
func (w *Widget) Editor() *reactive.Cell[*editor.Editor] {
	return w.editor
}

// Viewer is the mounted viewer, nil outside viewing mode.
func (w *Widget) Viewer() *reactive.Cell[*viewer.Viewer] {
	return w.viewer
}
