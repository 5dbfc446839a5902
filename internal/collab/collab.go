// Package collab defines the narrow interfaces through which the session
// drives the form builder and the form renderer, plus headless
// implementations of both.
package collab

import (
	"context"

	"github.com/AnatoleLucet/forms/internal/document"
)

// Builder edits a form document.
type Builder interface {
	// SetDocument replaces the edited document. It does not fire OnChange.
	SetDocument(doc *document.Document)
	// CurrentDocument returns the document as currently edited.
	CurrentDocument() *document.Document
	// OnChange registers fn for every structural edit made by the user.
	OnChange(fn func(*document.Document)) (remove func())
}

// Renderer shows a form document.
type Renderer interface {
	SetDocument(doc *document.Document)
	CurrentDocument() *document.Document
}

// BuilderFactory initializes a builder. It fails when the builder library
// cannot be loaded.
type BuilderFactory func(ctx context.Context) (Builder, error)

// RendererFactory initializes a renderer.
type RendererFactory func(ctx context.Context) (Renderer, error)
