// Package host describes the boundary between the widget and the
// application embedding it: the push channels it listens to, the ready
// handshake, and the table it reads and writes.
package host

import (
	"context"
	"errors"
)

// EventName names a host push channel.
type EventName string

const (
	EventOptions EventName = "Options"
	EventRecords EventName = "Records"
	EventRecord  EventName = "Record"
)

// Events lists every push channel.
var Events = []EventName{EventOptions, EventRecords, EventRecord}

// Access levels a widget can request or be granted.
const (
	AccessNone      = "none"
	AccessReadTable = "read table"
	AccessFull      = "full"
)

// Declared widget styles.
const (
	StyleFull   = "full"
	StyleCustom = "custom"
)

var (
	ErrNotFound = errors.New("host: row not found")
	ErrNoAccess = errors.New("host: access not granted")
)

// RowID identifies a row of the host table.
type RowID int64

// Row is one record of the forms table. FormJson is nil when the cell is
// empty.
type Row struct {
	ID       RowID   `json:"id" yaml:"id"`
	Name     string  `json:"Name" yaml:"name"`
	FormJson *string `json:"FormJson" yaml:"form_json"`
	Link     string  `json:"Link" yaml:"link"`
	Form     string  `json:"Form" yaml:"form"`
}

// FormJSON returns the raw document, "" when unset.
func (r *Row) FormJSON() string {
	if r == nil || r.FormJson == nil {
		return ""
	}
	return *r.FormJson
}

// Settings is the interaction half of an Options push.
type Settings struct {
	AccessLevel string `json:"accessLevel" yaml:"access_level"`
	Style       string `json:"style" yaml:"style"`
	CurrentURL  string `json:"currentUrl" yaml:"current_url"`
}

// Mapping maps widget column names to table column ids.
type Mapping map[string]string

// Message is one push notification. Only the fields matching Event are set.
type Message struct {
	Event EventName `json:"event"`

	// Options
	Options  map[string]any `json:"options,omitempty"`
	Settings *Settings      `json:"settings,omitempty"`

	// Records
	Rows []*Row `json:"rows,omitempty"`

	// Record
	Row     *Row    `json:"row,omitempty"`
	Mapping Mapping `json:"mapping,omitempty"`
}

// Handler receives push notifications.
type Handler func(Message)

// ReadyOptions is sent to the host once at startup.
type ReadyOptions struct {
	RequiredAccess string
	// called when the user asks the host to configure the widget
	OnEditOptions func()
}

// Fields are column values for a row write.
type Fields map[string]any

// Column describes one column of the selected table.
type Column struct {
	ID    int64  `json:"id"`
	ColID string `json:"colId"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Table is the read/write API of the selected table. Every call may fail;
// callers do not retry.
type Table interface {
	Create(ctx context.Context, fields Fields) (RowID, error)
	Update(ctx context.Context, id RowID, fields Fields) error
	Columns(ctx context.Context) ([]Column, error)
}

// Host is the embedding application.
type Host interface {
	// Ready declares the required access level and the edit options
	// callback. The host may never grant access, in which case no push
	// arrives.
	Ready(opts ReadyOptions) error
	// On registers h for every future push on event. There is no removal;
	// the host keeps calling h for its whole lifetime.
	On(event EventName, h Handler)
	// Table returns the selected table.
	Table() Table
	// SetCursor moves the host selection; the host answers with a Record
	// push.
	SetCursor(ctx context.Context, id RowID) error
}

// Runner is implemented by hosts that need a goroutine of their own, such as
// network transports.
type Runner interface {
	Run(ctx context.Context) error
}
