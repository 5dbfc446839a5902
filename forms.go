// Package forms is a headless form widget: it follows the pushes of the
// application hosting it, lets the user build a form against the selected
// row, and saves it back.
package forms

import (
	"github.com/AnatoleLucet/forms/internal/config"
	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/reactive"
	"github.com/AnatoleLucet/forms/internal/widget"
)

type (
	Runtime = reactive.Runtime
	Owner   = reactive.Owner
	Reader  = reactive.Reader

	Cell[T any]     = reactive.Cell[T]
	Derived[T any]  = reactive.Derived[T]
	Readable[T any] = reactive.Readable[T]
)

// ErrCycle is raised when a recomputation keeps writing its own inputs.
var ErrCycle = reactive.ErrCycle

// NewRuntime creates an independent reactive graph.
func NewRuntime(opts ...reactive.Option) *Runtime {
	return reactive.NewRuntime(opts...)
}

// NewCell creates a writable cell.
func NewCell[T any](rt *Runtime, initial T) *Cell[T] {
	return reactive.NewCell(rt, initial)
}

// NewDerived creates a cell computed from the cells compute reads.
func NewDerived[T any](rt *Runtime, compute func(*Reader) T) *Derived[T] {
	return reactive.NewDerived(rt, compute)
}

// Read returns the value of s, recording it as a dependency of r.
func Read[T any](r *Reader, s Readable[T]) T {
	return reactive.Read(r, s)
}

type (
	Widget = widget.Widget
	Option = widget.Option
	Config = config.Config
	Host   = host.Host
)

// New creates a widget for h. Call Run to start it.
func New(h Host, cfg Config, opts ...Option) (*Widget, error) {
	return widget.New(h, cfg, opts...)
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	return config.Load()
}
