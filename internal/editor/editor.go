// Package editor is the subtree mounted in editing mode: the document
// session, the tab header and the views behind each tab.
package editor

import (
	"context"
	"fmt"
	"slices"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/AnatoleLucet/forms/internal/collab"
	"github.com/AnatoleLucet/forms/internal/document"
	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/mode"
	"github.com/AnatoleLucet/forms/internal/reactive"
	"github.com/AnatoleLucet/forms/internal/session"
)

// UntitledName is the name of a freshly created form.
const UntitledName = "Untitled"

// NavItem is one entry of the form list.
type NavItem struct {
	ID       host.RowID
	Name     string
	Selected bool
}

// MapView is what the map tab shows: the keys of the selected form next to
// the table columns they can be mapped to.
type MapView struct {
	Fields  []document.Field
	Mapping host.Mapping
	Columns []host.Column
}

// PublishView is what the publish tab shows.
type PublishView struct {
	Name string
	Link string
}

type Editor struct {
	s     *session.Session
	owner *reactive.Owner

	Doc  *DocumentSession
	Tabs *TabController

	columns    *reactive.Cell[[]host.Column]
	navigation *reactive.Derived[[]NavItem]
	mapView    *reactive.Derived[*MapView]
	publish    *reactive.Derived[*PublishView]
}

type collaborators struct {
	builder  collab.Builder
	renderer collab.Renderer
}

// Mount returns the mount of the editing mode. The builder and the renderer
// are initialized off the loop; onMount receives the editor once both are
// ready. Initialization failures go to fail and leave the subtree empty.
func Mount(s *session.Session, fail func(error), onMount func(*Editor)) mode.Mount {
	return func() error {
		owner := s.Runtime.CurrentOwner()

		session.Await(s, owner, initCollaborators(s), func(c collaborators, err error) {
			if err != nil {
				fail(fmt.Errorf("init editor: %w", err))
				return
			}

			var e *Editor
			if err := owner.Run(func() error {
				e = newEditor(s, owner, c.builder, c.renderer)
				return nil
			}); err != nil {
				// already reported to the owner's error listeners
				return
			}
			if onMount != nil {
				onMount(e)
			}
		})
		return nil
	}
}

func initCollaborators(s *session.Session) func(context.Context) (collaborators, error) {
	return func(ctx context.Context) (collaborators, error) {
		var c collaborators

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			b, err := s.Builders(ctx)
			if err != nil {
				return fmt.Errorf("builder: %w", err)
			}
			c.builder = b
			return nil
		})
		eg.Go(func() error {
			r, err := s.Renderers(ctx)
			if err != nil {
				return fmt.Errorf("renderer: %w", err)
			}
			c.renderer = r
			return nil
		})

		if err := eg.Wait(); err != nil {
			return collaborators{}, err
		}
		return c, nil
	}
}

// newEditor builds the editor under the current owner.
func newEditor(s *session.Session, owner *reactive.Owner, builder collab.Builder, renderer collab.Renderer) *Editor {
	e := &Editor{
		s:       s,
		owner:   owner,
		columns: reactive.NewCell[[]host.Column](s.Runtime, nil),
	}

	e.Doc = NewDocumentSession(s, builder, renderer)
	e.Tabs = NewTabController(s.Runtime, map[Tab]Effect{
		TabPreview: func(from, to Tab) { e.Doc.SyncPreview() },
		TabMap:     func(from, to Tab) { e.loadColumns() },
	})

	e.navigation = reactive.NewDerived(s.Runtime, func(r *reactive.Reader) []NavItem {
		return navigation(reactive.Read(r, s.Rows), reactive.Read(r, s.CurrentRow))
	})

	e.mapView = reactive.NewDerived(s.Runtime, func(r *reactive.Reader) *MapView {
		row := reactive.Read(r, s.CurrentRow)
		if row == nil {
			return nil
		}
		return &MapView{
			Fields:  document.Fields(row.FormJSON()),
			Mapping: reactive.Read(r, s.Mapping),
			Columns: reactive.Read(r, e.columns),
		}
	})

	e.publish = reactive.NewDerived(s.Runtime, func(r *reactive.Reader) *PublishView {
		row := reactive.Read(r, s.CurrentRow)
		if row == nil {
			return nil
		}
		return &PublishView{Name: row.Name, Link: row.Link}
	})

	glog.V(1).Infof("[editor]mounted")
	return e
}

func navigation(rows []*host.Row, current *host.Row) []NavItem {
	items := make([]NavItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, NavItem{
			ID:       row.ID,
			Name:     row.Name,
			Selected: current != nil && current.ID == row.ID,
		})
	}
	return items
}

// Navigation lists the visible forms.
func (e *Editor) Navigation() *reactive.Derived[[]NavItem] {
	return e.navigation
}

// Map is the map tab view, nil without a selected row.
func (e *Editor) Map() *reactive.Derived[*MapView] {
	return e.mapView
}

// Publish is the publish tab view, nil without a selected row.
func (e *Editor) Publish() *reactive.Derived[*PublishView] {
	return e.publish
}

// Columns holds the table columns, nil until the map tab was entered.
func (e *Editor) Columns() *reactive.Cell[[]host.Column] {
	return e.columns
}

// ReadOnly reports whether creating forms is hidden.
func (e *Editor) ReadOnly() bool {
	return e.s.Access.ReadOnly
}

func (e *Editor) loadColumns() {
	session.Await(e.s, e.owner, e.s.Host.Table().Columns, func(columns []host.Column, err error) {
		if err != nil {
			glog.Warningf("[editor]load columns: %v", err)
			return
		}
		e.columns.Set(columns)
	})
}

// CreateForm adds an untitled row and moves the host cursor to it. The
// host answers with a Record push which loads the new form. done, when not
// nil, is called on the loop with the new row id.
func (e *Editor) CreateForm(done func(host.RowID, error)) error {
	if e.ReadOnly() {
		return fmt.Errorf("create form: %w", ErrReadOnly)
	}

	session.Await(e.s, e.owner, func(ctx context.Context) (host.RowID, error) {
		id, err := e.s.Host.Table().Create(ctx, host.Fields{"Name": UntitledName})
		if err != nil {
			return 0, fmt.Errorf("create form: %w", err)
		}
		if err := e.s.Host.SetCursor(ctx, id); err != nil {
			return id, fmt.Errorf("select form %d: %w", id, err)
		}
		return id, nil
	}, func(id host.RowID, err error) {
		if err != nil {
			glog.Warningf("[editor]%v", err)
		}
		if done != nil {
			done(id, err)
		}
	})
	return nil
}

// Select asks the host to move its cursor to one of the visible rows.
func (e *Editor) Select(id host.RowID) error {
	if !slices.ContainsFunc(e.s.Rows.Get(), func(row *host.Row) bool { return row.ID == id }) {
		return fmt.Errorf("select %d: %w", id, ErrNoRow)
	}

	session.Await(e.s, e.owner, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.s.Host.SetCursor(ctx, id)
	}, func(_ struct{}, err error) {
		if err != nil {
			glog.Warningf("[editor]select %d: %v", id, err)
		}
	})
	return nil
}

// Flush waits until every edit made so far reached the host.
func (e *Editor) Flush(ctx context.Context) error {
	return e.s.Writer.Flush(ctx)
}
