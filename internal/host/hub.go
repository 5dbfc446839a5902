package host

import (
	"slices"
	"sync"
)

// Hub is the push side of a host: it keeps the handlers registered with On
// and the ready handshake, and delivers messages to a snapshot of the
// handlers. The zero value is ready to use.
type Hub struct {
	mu       sync.Mutex
	handlers map[EventName][]Handler
	ready    *ReadyOptions
}

func (h *Hub) Ready(opts ReadyOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ready = &opts
	return nil
}

// ReadyOptions returns what the widget declared, nil before Ready.
func (h *Hub) ReadyOptions() *ReadyOptions {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.ready
}

// EditOptions calls the widget's edit options callback, as when the user
// asks to configure the widget.
func (h *Hub) EditOptions() {
	ready := h.ReadyOptions()
	if ready != nil && ready.OnEditOptions != nil {
		ready.OnEditOptions()
	}
}

func (h *Hub) On(event EventName, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.handlers == nil {
		h.handlers = make(map[EventName][]Handler)
	}
	h.handlers[event] = append(h.handlers[event], fn)
}

// Handlers returns how many handlers were ever registered for event.
func (h *Hub) Handlers(event EventName) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.handlers[event])
}

// Emit delivers m to the handlers registered when the dispatch starts.
func (h *Hub) Emit(m Message) {
	h.mu.Lock()
	handlers := slices.Clone(h.handlers[m.Event])
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(m)
	}
}

func (h *Hub) EmitOptions(options map[string]any, settings Settings) {
	h.Emit(Message{Event: EventOptions, Options: options, Settings: &settings})
}

func (h *Hub) EmitRecords(rows []*Row) {
	h.Emit(Message{Event: EventRecords, Rows: rows})
}

func (h *Hub) EmitRecord(row *Row, mapping Mapping) {
	h.Emit(Message{Event: EventRecord, Row: row, Mapping: mapping})
}
