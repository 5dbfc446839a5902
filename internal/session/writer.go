package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"

	"github.com/AnatoleLucet/forms/internal/host"
)

var ErrWriterClosed = errors.New("session: writer closed")

// Write is one row update handed to the host. Row is bound when the write
// is enqueued.
type Write struct {
	ID     ulid.ULID
	Row    host.RowID
	Fields host.Fields
}

// SaveError reports a write the host refused. It is not retried.
type SaveError struct {
	Write Write
	Err   error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save %s to row %d: %v", e.Write.ID, e.Write.Row, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

type WriterConfig struct {
	// per write deadline, none when zero
	Timeout time.Duration
	// called on the writer goroutine once a write finished, failed ones
	// included, before Flush sees it done
	OnSent func(Write)
}

// Writer sends row updates to the host one at a time, in the order they
// were enqueued. Overlapping writes to the same row are neither merged nor
// cancelled.
type Writer struct {
	table  host.Table
	cfg    WriterConfig
	onFail func(*SaveError)

	mu      sync.Mutex
	queue   []Write
	pending int
	closed  bool
	waiters []chan struct{}
	started bool

	// queued or in flight writes by row
	inflight map[host.RowID]int

	wake chan struct{}
	done chan struct{}
}

func NewWriter(table host.Table, cfg WriterConfig, onFail func(*SaveError)) *Writer {
	return &Writer{
		table:  table,
		cfg:    cfg,
		onFail: onFail,

		inflight: make(map[host.RowID]int),

		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Enqueue queues an update of row and returns it. It never blocks.
func (w *Writer) Enqueue(row host.RowID, fields host.Fields) (Write, error) {
	write := Write{ID: ulid.Make(), Row: row, Fields: fields}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return write, ErrWriterClosed
	}
	w.queue = append(w.queue, write)
	w.pending++
	w.inflight[row]++
	w.mu.Unlock()

	glog.V(2).Infof("[writer]queued %s for row %d", write.ID, row)

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return write, nil
}

func (w *Writer) next() (Write, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.queue) == 0 {
		return Write{}, false
	}
	write := w.queue[0]
	w.queue = w.queue[1:]
	return write, true
}

// Run sends queued writes until ctx is done, or until Close was called and
// the queue is empty.
func (w *Writer) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("session: writer already running")
	}
	w.started = true
	w.mu.Unlock()

	for {
		for {
			write, ok := w.next()
			if !ok {
				break
			}
			w.send(ctx, write)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			if w.Pending() == 0 {
				return nil
			}
		case <-w.wake:
		}
	}
}

func (w *Writer) send(ctx context.Context, write Write) {
	defer w.finish(write)

	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	if err := w.table.Update(ctx, write.Row, write.Fields); err != nil {
		if w.onFail != nil {
			w.onFail(&SaveError{Write: write, Err: err})
		}
		return
	}

	glog.V(2).Infof("[writer]sent %s to row %d", write.ID, write.Row)
}

func (w *Writer) finish(write Write) {
	if w.cfg.OnSent != nil {
		w.cfg.OnSent(write)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending--
	if w.inflight[write.Row]--; w.inflight[write.Row] <= 0 {
		delete(w.inflight, write.Row)
	}
	if w.pending == 0 {
		for _, ch := range w.waiters {
			close(ch)
		}
		w.waiters = nil
	}
}

// Pending returns the number of writes queued or in flight.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.pending
}

// PendingFor returns the number of writes to row queued or in flight.
func (w *Writer) PendingFor(row host.RowID) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.inflight[row]
}

// Flush waits until every queued write finished.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	if w.pending == 0 {
		w.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	w.waiters = append(w.waiters, ch)
	w.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting writes. Run returns once the queue is empty.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
}
