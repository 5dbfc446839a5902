// Package viewer is the subtree mounted in viewing mode. It shows one of
// the visible forms with the renderer, read-only.
package viewer

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/AnatoleLucet/forms/internal/collab"
	"github.com/AnatoleLucet/forms/internal/config"
	"github.com/AnatoleLucet/forms/internal/document"
	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/mode"
	"github.com/AnatoleLucet/forms/internal/reactive"
	"github.com/AnatoleLucet/forms/internal/session"
)

type Viewer struct {
	renderer collab.Renderer

	row      *reactive.Derived[*host.Row]
	document *reactive.Cell[*document.Document]
}

// Mount returns the mount of the viewing mode. onMount receives the viewer
// once the renderer is ready.
func Mount(s *session.Session, fail func(error), onMount func(*Viewer)) mode.Mount {
	return func() error {
		owner := s.Runtime.CurrentOwner()

		session.Await(s, owner, func(ctx context.Context) (collab.Renderer, error) {
			return s.Renderers(ctx)
		}, func(renderer collab.Renderer, err error) {
			if err != nil {
				fail(fmt.Errorf("init viewer: renderer: %w", err))
				return
			}

			var v *Viewer
			if err := owner.Run(func() error {
				v = New(s, renderer)
				return nil
			}); err != nil {
				return
			}
			if onMount != nil {
				onMount(v)
			}
		})
		return nil
	}
}

// New creates a viewer under the current owner and renders the selected
// row right away.
func New(s *session.Session, renderer collab.Renderer) *Viewer {
	v := &Viewer{
		renderer: renderer,
		document: reactive.NewCell(s.Runtime, document.Empty()),
	}

	v.row = reactive.NewDerived(s.Runtime, func(r *reactive.Reader) *host.Row {
		rows := reactive.Read(r, s.Rows)
		if len(rows) <= 1 {
			return SelectRow(rows, "")
		}

		var currentURL string
		if settings := reactive.Read(r, s.Settings); settings != nil {
			currentURL = settings.CurrentURL
		}
		return SelectRow(rows, config.FormParam(currentURL))
	})
	v.row.AddListener(v.render)

	v.render(v.row.Get())
	return v
}

// SelectRow picks the form to show: the only row, or among several the one
// whose Form column equals form. It returns nil when nothing matches; an
// empty form matches no row.
func SelectRow(rows []*host.Row, form string) *host.Row {
	switch len(rows) {
	case 0:
		return nil
	case 1:
		return rows[0]
	}

	if form == "" {
		glog.V(1).Infof("[viewer]no form named among %d rows", len(rows))
		return nil
	}
	for _, row := range rows {
		if row.Form == form {
			return row
		}
	}
	glog.V(1).Infof("[viewer]no row for form %q among %d", form, len(rows))
	return nil
}

func (v *Viewer) render(row *host.Row) {
	doc := document.Parse(row.FormJSON())
	v.renderer.SetDocument(doc)
	v.document.Set(doc)
}

// Row is the row being shown, nil when none matches.
func (v *Viewer) Row() *reactive.Derived[*host.Row] {
	return v.row
}

// Document is the rendered document.
func (v *Viewer) Document() *reactive.Cell[*document.Document] {
	return v.document
}

func (v *Viewer) Renderer() collab.Renderer {
	return v.renderer
}
