package editor

import (
	"github.com/golang/glog"

	"github.com/AnatoleLucet/forms/internal/collab"
	"github.com/AnatoleLucet/forms/internal/document"
	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/reactive"
	"github.com/AnatoleLucet/forms/internal/session"
)

// DocumentSession keeps the selected row's form, the builder, the renderer
// and the stored row in step.
type DocumentSession struct {
	s        *session.Session
	builder  collab.Builder
	renderer collab.Renderer

	document *reactive.Cell[*document.Document]

	// row loaded last, 0 when none
	rowID host.RowID
}

// NewDocumentSession wires the builder and the row selection. Listeners
// belong to the current owner. The row selected at creation is loaded
// right away.
func NewDocumentSession(s *session.Session, builder collab.Builder, renderer collab.Renderer) *DocumentSession {
	d := &DocumentSession{
		s:        s,
		builder:  builder,
		renderer: renderer,
		document: reactive.NewCell(s.Runtime, document.Empty()),
	}

	s.Runtime.OnCleanup(builder.OnChange(d.OnBuilderChanged))
	s.CurrentRow.AddListener(d.OnRowSelected)

	if row := s.CurrentRow.Get(); row != nil {
		d.OnRowSelected(row)
	}

	return d
}

// Document is the document as last loaded or edited.
func (d *DocumentSession) Document() *reactive.Cell[*document.Document] {
	return d.document
}

func (d *DocumentSession) Builder() collab.Builder {
	return d.builder
}

func (d *DocumentSession) Renderer() collab.Renderer {
	return d.renderer
}

// OnRowSelected loads row's form into the builder and the renderer. A nil
// row or a malformed form loads an empty document. A new version of the
// loaded row is ignored while edits to it are still being written: the
// in-memory document is newer than anything the host can send back.
func (d *DocumentSession) OnRowSelected(row *host.Row) {
	var id host.RowID
	if row != nil {
		id = row.ID
	}
	if id != 0 && id == d.rowID && d.s.Writer.PendingFor(id) > 0 {
		glog.V(2).Infof("[editor]row %d refreshed with writes in flight, keeping the edited form", id)
		return
	}
	d.rowID = id

	doc := document.Parse(row.FormJSON())

	d.builder.SetDocument(doc)
	d.renderer.SetDocument(doc)
	d.document.Set(doc)
}

// OnBuilderChanged records an edit and queues its write to the selected
// row. The row is captured now, so a selection change before the write is
// sent does not redirect it.
func (d *DocumentSession) OnBuilderChanged(doc *document.Document) {
	d.document.Set(doc)

	row := d.s.CurrentRow.Get()
	if row == nil {
		glog.V(1).Infof("[editor]edit without a selected row is not saved")
		return
	}

	formJSON, err := document.Serialize(doc)
	if err != nil {
		glog.Warningf("[editor]row %d: %v", row.ID, err)
		return
	}

	var value any
	if formJSON != nil {
		value = *formJSON
	}

	if _, err := d.s.Writer.Enqueue(row.ID, host.Fields{"FormJson": value}); err != nil {
		glog.Warningf("[editor]row %d: %v", row.ID, err)
	}
}

// SyncPreview pushes the builder's current document into the renderer.
func (d *DocumentSession) SyncPreview() {
	d.renderer.SetDocument(d.builder.CurrentDocument())
}
