// Package bridge turns the host's push channels, which only ever add
// handlers, into revocable subscriptions.
package bridge

import (
	"slices"

	"github.com/golang/glog"

	"github.com/AnatoleLucet/forms/internal/host"
)

// Registrar is the part of a host the bridge needs.
type Registrar interface {
	On(event host.EventName, h host.Handler)
}

// Subscription is one handler registered through the bridge. After its
// unsubscribe returns, active is false and the handler is never called
// again, even when the current dispatch already captured it.
type Subscription struct {
	event   host.EventName
	handler host.Handler
	active  bool
}

// Active reports whether the subscription still receives notifications.
func (s *Subscription) Active() bool {
	return s.active
}

type Bridge struct {
	host     Registrar
	dispatch func(func())

	// host handlers already installed, by event
	installed map[host.EventName]bool
	subs      map[host.EventName][]*Subscription

	closed bool
}

type Option func(*Bridge)

// WithDispatch runs every delivery through dispatch, typically to move it
// onto the loop goroutine.
func WithDispatch(dispatch func(func())) Option {
	return func(b *Bridge) { b.dispatch = dispatch }
}

func New(r Registrar, opts ...Option) *Bridge {
	b := &Bridge{
		host:      r,
		dispatch:  func(fn func()) { fn() },
		installed: make(map[host.EventName]bool),
		subs:      make(map[host.EventName][]*Subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe calls handler for every push on event until the returned
// function is called. Unsubscribing is idempotent and safe from inside a
// handler.
func (b *Bridge) Subscribe(event host.EventName, handler host.Handler) (unsubscribe func()) {
	s := &Subscription{event: event, handler: handler, active: !b.closed}
	if !s.active {
		return func() {}
	}

	b.subs[event] = append(b.subs[event], s)
	b.install(event)

	return func() { b.remove(s) }
}

// SubscribeOnce calls handler for the first push on event only. The
// subscription is cancelled before handler runs, so a push re-entering
// during handler is not delivered.
func (b *Bridge) SubscribeOnce(event host.EventName, handler host.Handler) (unsubscribe func()) {
	var remove func()
	remove = b.Subscribe(event, func(m host.Message) {
		remove()
		handler(m)
	})
	return remove
}

// Close cancels every subscription made through the bridge.
func (b *Bridge) Close() {
	if b.closed {
		return
	}
	b.closed = true

	for event, subs := range b.subs {
		for _, s := range subs {
			s.active = false
		}
		delete(b.subs, event)
	}
}

// Len returns the number of active subscriptions on event.
func (b *Bridge) Len(event host.EventName) int {
	return len(b.subs[event])
}

func (b *Bridge) remove(s *Subscription) {
	if !s.active {
		return
	}
	s.active = false

	subs := b.subs[s.event]
	if i := slices.Index(subs, s); i >= 0 {
		b.subs[s.event] = slices.Delete(subs, i, i+1)
	}
}

func (b *Bridge) install(event host.EventName) {
	if b.installed[event] {
		return
	}
	b.installed[event] = true

	b.host.On(event, func(m host.Message) {
		b.dispatch(func() { b.deliver(event, m) })
	})
}

func (b *Bridge) deliver(event host.EventName, m host.Message) {
	if b.closed {
		return
	}

	// clonning to avoid mutation during iteration
	subs := slices.Clone(b.subs[event])
	glog.V(2).Infof("[bridge]%s -> %d handlers", event, len(subs))

	for _, s := range subs {
		if s.active {
			s.handler(m)
		}
	}
}
