// Package session holds the state shared by the widget's subtrees: the
// reactive runtime, the loop, the host cells and the write queue. It is
// created once per widget and passed to every component.
package session

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/AnatoleLucet/forms/internal/bridge"
	"github.com/AnatoleLucet/forms/internal/collab"
	"github.com/AnatoleLucet/forms/internal/config"
	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/loop"
	"github.com/AnatoleLucet/forms/internal/reactive"
)

type Session struct {
	Runtime *reactive.Runtime
	Loop    *loop.Loop
	Bridge  *bridge.Bridge
	Host    host.Host
	Access  config.Access

	Builders  collab.BuilderFactory
	Renderers collab.RendererFactory

	// declared widget style, "" until the host sends options
	Style *reactive.Cell[string]
	// settings of the last Options push
	Settings *reactive.Cell[*host.Settings]
	// visible rows, nil until the first Records push
	Rows *reactive.Cell[[]*host.Row]
	// row under the host cursor, nil when nothing is selected
	CurrentRow *reactive.Cell[*host.Row]
	Mapping    *reactive.Cell[host.Mapping]
	// last failed write
	SaveError *reactive.Cell[*SaveError]

	Writer *Writer

	ctx    context.Context
	cancel context.CancelFunc

	// background work whose result comes back as a loop turn
	bgMu sync.Mutex
	busy int
	// closed when busy drops to zero
	idle chan struct{}
}

type Config struct {
	Host      host.Host
	Access    config.Access
	Builders  collab.BuilderFactory
	Renderers collab.RendererFactory
	Writer    WriterConfig
	MaxDepth  int
}

func New(cfg Config) *Session {
	rt := reactive.NewRuntime(reactive.WithMaxDepth(cfg.MaxDepth))
	l := loop.New()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		Runtime:   rt,
		Loop:      l,
		Bridge:    bridge.New(cfg.Host, bridge.WithDispatch(l.Do)),
		Host:      cfg.Host,
		Access:    cfg.Access,
		Builders:  cfg.Builders,
		Renderers: cfg.Renderers,

		Style:      reactive.NewCell(rt, ""),
		Settings:   reactive.NewCell[*host.Settings](rt, nil),
		Rows:       reactive.NewCell[[]*host.Row](rt, nil),
		CurrentRow: reactive.NewCell[*host.Row](rt, nil),
		Mapping:    reactive.NewCell[host.Mapping](rt, nil),
		SaveError:  reactive.NewCell[*SaveError](rt, nil),

		ctx:    ctx,
		cancel: cancel,
	}
	if s.Builders == nil {
		s.Builders = collab.HeadlessBuilders()
	}
	if s.Renderers == nil {
		s.Renderers = collab.HeadlessRenderers()
	}

	s.Writer = NewWriter(cfg.Host.Table(), cfg.Writer, s.writeFailed)
	return s
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) writeFailed(err *SaveError) {
	s.Loop.Do(func() {
		glog.Warningf("[session]%v", err)
		s.SaveError.Set(err)
	})
}

// Await runs work off the loop and hands its result to then as a loop turn.
// then is skipped when owner was disposed in the meantime.
func Await[T any](s *Session, owner *reactive.Owner, work func(context.Context) (T, error), then func(T, error)) {
	s.begin()
	go func() {
		defer s.end()

		v, err := work(s.ctx)
		s.Loop.Do(func() {
			if owner.Disposed() {
				glog.V(2).Infof("[session]dropping result for a disposed subtree")
				return
			}
			then(v, err)
		})
	}()
}

func (s *Session) begin() {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()

	if s.busy == 0 {
		s.idle = make(chan struct{})
	}
	s.busy++
}

func (s *Session) end() {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()

	if s.busy--; s.busy == 0 {
		close(s.idle)
	}
}

// Busy returns the number of background calls whose result has not been
// posted yet.
func (s *Session) Busy() int {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()

	return s.busy
}

// waitIdle waits until no background work is running.
func (s *Session) waitIdle(ctx context.Context) error {
	s.bgMu.Lock()
	if s.busy == 0 {
		s.bgMu.Unlock()
		return nil
	}
	idle := s.idle
	s.bgMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settle runs loop turns until no background work or write is pending and
// the queue is empty. It must be called on the loop goroutine.
func (s *Session) Settle(ctx context.Context) error {
	for {
		s.Loop.Drain()

		if err := s.waitIdle(ctx); err != nil {
			return err
		}

		if err := s.Writer.Flush(ctx); err != nil {
			return err
		}

		if s.Loop.Drain() == 0 {
			return nil
		}
	}
}

// Close cancels background work and disposes the reactive graph. Queued
// writes are still sent by a running writer.
func (s *Session) Close() {
	s.Bridge.Close()
	s.Runtime.Dispose()
	s.Writer.Close()
	s.cancel()
	s.Loop.Close()
}
