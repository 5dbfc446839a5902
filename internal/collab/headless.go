package collab

import (
	"context"
	"slices"

	"github.com/AnatoleLucet/forms/internal/document"
)

// HeadlessBuilder is a Builder without a UI. Its edit methods stand in for
// the user's drag and drop.
type HeadlessBuilder struct {
	doc       *document.Document
	listeners []*changeListener
}

type changeListener struct {
	fn     func(*document.Document)
	active bool
}

func NewHeadlessBuilder() *HeadlessBuilder {
	return &HeadlessBuilder{doc: document.Empty()}
}

// HeadlessBuilders returns a factory handing out new headless builders.
func HeadlessBuilders() BuilderFactory {
	return func(context.Context) (Builder, error) {
		return NewHeadlessBuilder(), nil
	}
}

func (b *HeadlessBuilder) SetDocument(doc *document.Document) {
	if doc == nil {
		doc = document.Empty()
	}
	b.doc = doc.Clone()
}

func (b *HeadlessBuilder) CurrentDocument() *document.Document {
	return b.doc
}

func (b *HeadlessBuilder) OnChange(fn func(*document.Document)) (remove func()) {
	l := &changeListener{fn: fn, active: true}
	b.listeners = append(b.listeners, l)

	return func() {
		l.active = false
		if i := slices.Index(b.listeners, l); i >= 0 {
			b.listeners = slices.Delete(b.listeners, i, i+1)
		}
	}
}

// AddComponent appends c to the form.
func (b *HeadlessBuilder) AddComponent(c document.Component) {
	next := b.doc.Clone()
	next.Components = append(next.Components, c)
	b.commit(next)
}

// RemoveComponent removes the component with key. It reports whether one
// was found.
func (b *HeadlessBuilder) RemoveComponent(key string) bool {
	i := b.index(key)
	if i < 0 {
		return false
	}

	next := b.doc.Clone()
	next.Components = slices.Delete(next.Components, i, i+1)
	b.commit(next)
	return true
}

// UpdateComponent replaces the component with key. It reports whether one
// was found.
func (b *HeadlessBuilder) UpdateComponent(key string, c document.Component) bool {
	i := b.index(key)
	if i < 0 {
		return false
	}

	next := b.doc.Clone()
	next.Components[i] = c
	b.commit(next)
	return true
}

// Replace swaps the whole document as a single user edit.
func (b *HeadlessBuilder) Replace(doc *document.Document) {
	if doc == nil {
		doc = document.Empty()
	}
	b.commit(doc.Clone())
}

func (b *HeadlessBuilder) index(key string) int {
	return slices.IndexFunc(b.doc.Components, func(c document.Component) bool {
		return c.Key() == key
	})
}

// commit installs a new document value and notifies listeners with it. Every
// edit produces a fresh document so identity comparisons see the change.
func (b *HeadlessBuilder) commit(next *document.Document) {
	b.doc = next

	for _, l := range slices.Clone(b.listeners) {
		if l.active {
			l.fn(next)
		}
	}
}

// HeadlessRenderer is a Renderer that remembers what it was asked to show.
type HeadlessRenderer struct {
	doc     *document.Document
	renders int
}

func NewHeadlessRenderer() *HeadlessRenderer {
	return &HeadlessRenderer{doc: document.Empty()}
}

// HeadlessRenderers returns a factory handing out new headless renderers.
func HeadlessRenderers() RendererFactory {
	return func(context.Context) (Renderer, error) {
		return NewHeadlessRenderer(), nil
	}
}

func (r *HeadlessRenderer) SetDocument(doc *document.Document) {
	if doc == nil {
		doc = document.Empty()
	}
	r.doc = doc.Clone()
	r.renders++
}

func (r *HeadlessRenderer) CurrentDocument() *document.Document {
	return r.doc
}

// Renders returns how many times a document was set.
func (r *HeadlessRenderer) Renders() int {
	return r.renders
}
