// Package memhost is an in-process host. It keeps its table in memory and
// delivers pushes synchronously to a snapshot of the registered handlers,
// the way a browser host dispatches its listeners.
package memhost

import (
	"context"
	"fmt"
	"sync"

	"github.com/AnatoleLucet/forms/internal/host"
)

type Host struct {
	host.Hub

	mu     sync.Mutex
	cursor host.RowID

	table *Table

	// re-push Records (and Record for the cursor row) after every write
	autoPush bool
}

type Option func(*Host)

// WithAutoPush makes every successful table write push the new records, as
// a live host does.
func WithAutoPush() Option {
	return func(h *Host) { h.autoPush = true }
}

func New(opts ...Option) *Host {
	h := &Host{}
	h.table = &Table{host: h, rows: make(map[host.RowID]*host.Row)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// PushTable emits the whole table as Records and the cursor row as Record.
func (h *Host) PushTable() {
	rows := h.table.Rows()
	h.EmitRecords(rows)

	h.mu.Lock()
	cursor := h.cursor
	h.mu.Unlock()

	for _, row := range rows {
		if row.ID == cursor {
			h.EmitRecord(row, nil)
		}
	}
}

func (h *Host) Table() host.Table {
	return h.table
}

// MemTable returns the table with its test helpers.
func (h *Host) MemTable() *Table {
	return h.table
}

func (h *Host) SetCursor(ctx context.Context, id host.RowID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row, ok := h.table.Row(id)
	if !ok {
		return fmt.Errorf("set cursor %d: %w", id, host.ErrNotFound)
	}

	h.mu.Lock()
	h.cursor = id
	h.mu.Unlock()

	h.EmitRecord(row, nil)
	return nil
}

// Cursor returns the selected row id.
func (h *Host) Cursor() host.RowID {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.cursor
}

func (h *Host) written() {
	if h.autoPush {
		h.PushTable()
	}
}
