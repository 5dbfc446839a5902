package memhost

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/AnatoleLucet/forms/internal/host"
)

// Update is one applied Table.Update call.
type Update struct {
	ID     host.RowID
	Fields host.Fields
}

type Table struct {
	host *Host

	mu    sync.Mutex
	rows  map[host.RowID]*host.Row
	order []host.RowID
	next  host.RowID

	updates []Update

	// when set, Update waits for it to be closed
	gate chan struct{}
	// when set, Update fails with it
	fail error
}

// Insert adds rows directly, bypassing the write API. Rows with a zero id
// get the next one.
func (t *Table) Insert(rows ...*host.Row) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, row := range rows {
		r := *row
		if r.ID == 0 {
			t.next++
			r.ID = t.next
		} else if r.ID > t.next {
			t.next = r.ID
		}
		if _, ok := t.rows[r.ID]; !ok {
			t.order = append(t.order, r.ID)
		}
		t.rows[r.ID] = &r
	}
}

// Rows returns copies of every row in insertion order.
func (t *Table) Rows() []*host.Row {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := make([]*host.Row, 0, len(t.order))
	for _, id := range t.order {
		r := *t.rows[id]
		rows = append(rows, &r)
	}
	return rows
}

// Records returns the rows, like Rows.
func (t *Table) Records(ctx context.Context) ([]*host.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.Rows(), nil
}

// Row returns a copy of the row with id.
func (t *Table) Row(id host.RowID) (*host.Row, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	c := *r
	return &c, true
}

// Updates returns the applied updates in order.
func (t *Table) Updates() []Update {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slices.Clone(t.updates)
}

// Hold makes updates wait until release is called.
func (t *Table) Hold() (release func()) {
	gate := make(chan struct{})

	t.mu.Lock()
	t.gate = gate
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			if t.gate == gate {
				t.gate = nil
			}
			t.mu.Unlock()
			close(gate)
		})
	}
}

// Fail makes every following update fail with err; nil restores success.
func (t *Table) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fail = err
}

func (t *Table) Create(ctx context.Context, fields host.Fields) (host.RowID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	row := &host.Row{}
	if err := apply(row, fields); err != nil {
		return 0, err
	}
	t.Insert(row)

	t.mu.Lock()
	id := t.next
	t.mu.Unlock()

	t.host.written()
	return id, nil
}

func (t *Table) Update(ctx context.Context, id host.RowID, fields host.Fields) error {
	t.mu.Lock()
	gate := t.gate
	t.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.mu.Lock()
	if t.fail != nil {
		err := t.fail
		t.mu.Unlock()
		return fmt.Errorf("update row %d: %w", id, err)
	}
	row, ok := t.rows[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("update row %d: %w", id, host.ErrNotFound)
	}
	if err := apply(row, fields); err != nil {
		t.mu.Unlock()
		return err
	}
	t.updates = append(t.updates, Update{ID: id, Fields: fields})
	t.mu.Unlock()

	t.host.written()
	return nil
}

func (t *Table) Columns(ctx context.Context) ([]host.Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return []host.Column{
		{ID: 1, ColID: "Name", Label: "Name", Type: "Text"},
		{ID: 2, ColID: "FormJson", Label: "FormJson", Type: "Text"},
		{ID: 3, ColID: "Link", Label: "Link", Type: "Text"},
		{ID: 4, ColID: "Form", Label: "Form", Type: "Text"},
	}, nil
}

func apply(row *host.Row, fields host.Fields) error {
	for name, value := range fields {
		switch name {
		case "Name":
			row.Name, _ = value.(string)
		case "Link":
			row.Link, _ = value.(string)
		case "Form":
			row.Form, _ = value.(string)
		case "FormJson":
			switch v := value.(type) {
			case nil:
				row.FormJson = nil
			case string:
				row.FormJson = &v
			case *string:
				row.FormJson = v
			default:
				return fmt.Errorf("FormJson: unsupported value %T", value)
			}
		default:
			return fmt.Errorf("unknown column %q", name)
		}
	}
	return nil
}
