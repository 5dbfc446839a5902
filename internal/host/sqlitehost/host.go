package sqlitehost

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/AnatoleLucet/forms/internal/host"
)

// Host serves a Table to a widget in the same process. Every successful
// write pushes the table again, the cursor row included.
type Host struct {
	host.Hub

	table *Table

	mu     sync.Mutex
	cursor host.RowID
}

func NewHost(table *Table) *Host {
	return &Host{table: table}
}

func (h *Host) Table() host.Table {
	return &pushingTable{Table: h.table, host: h}
}

// SQLTable returns the underlying table.
func (h *Host) SQLTable() *Table {
	return h.table
}

func (h *Host) SetCursor(ctx context.Context, id host.RowID) error {
	row, err := h.table.Record(ctx, id)
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}

	h.mu.Lock()
	h.cursor = id
	h.mu.Unlock()

	h.EmitRecord(row, nil)
	return nil
}

func (h *Host) Cursor() host.RowID {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.cursor
}

// Push emits every row as Records and the cursor row as Record.
func (h *Host) Push(ctx context.Context) error {
	rows, err := h.table.Records(ctx)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	h.EmitRecords(rows)

	cursor := h.Cursor()
	for _, row := range rows {
		if row.ID == cursor {
			h.EmitRecord(row, nil)
		}
	}
	return nil
}

type pushingTable struct {
	*Table
	host *Host
}

func (t *pushingTable) Create(ctx context.Context, fields host.Fields) (host.RowID, error) {
	id, err := t.Table.Create(ctx, fields)
	if err != nil {
		return 0, err
	}
	t.push(ctx)
	return id, nil
}

func (t *pushingTable) Update(ctx context.Context, id host.RowID, fields host.Fields) error {
	if err := t.Table.Update(ctx, id, fields); err != nil {
		return err
	}
	t.push(ctx)
	return nil
}

func (t *pushingTable) push(ctx context.Context) {
	if err := t.host.Push(ctx); err != nil {
		glog.Warningf("[sqlitehost]%v", err)
	}
}
