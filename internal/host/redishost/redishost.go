// Package redishost connects a widget to a host living in another process.
// Pushes arrive as JSON messages on Redis pub/sub channels named
// "<prefix>:<event>"; the widget's requests go out the same way. Reads and
// writes of the table go to a Table given at construction.
package redishost

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"

	"github.com/AnatoleLucet/forms/internal/host"
)

// Channels the widget publishes on, besides the push channels it listens
// to.
const (
	ChannelReady       = "Ready"
	ChannelEditOptions = "EditOptions"
	ChannelSetCursor   = "SetCursor"
)

// ReadyMessage is published once the widget is ready.
type ReadyMessage struct {
	RequiredAccess string `json:"requiredAccess"`
}

// CursorMessage asks the host to select a row.
type CursorMessage struct {
	ID host.RowID `json:"id"`
}

type Host struct {
	host.Hub

	client *redis.Client
	prefix string
	table  host.Table
}

// Dial connects to the Redis server at redisURL.
func Dial(redisURL, prefix string, table host.Table) (*Host, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return New(client, prefix, table), nil
}

// New creates a host from an existing client.
func New(client *redis.Client, prefix string, table host.Table) *Host {
	return &Host{
		client: client,
		prefix: prefix,
		table:  table,
	}
}

// Channel returns the Redis channel of name.
func (h *Host) Channel(name string) string {
	return h.prefix + ":" + name
}

func (h *Host) Table() host.Table {
	return h.table
}

// Ready records the handshake and announces it to the host.
func (h *Host) Ready(opts host.ReadyOptions) error {
	if err := h.Hub.Ready(opts); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.publish(ctx, ChannelReady, ReadyMessage{RequiredAccess: opts.RequiredAccess})
}

// SetCursor asks the host to select id. The host answers with a Record
// push.
func (h *Host) SetCursor(ctx context.Context, id host.RowID) error {
	return h.publish(ctx, ChannelSetCursor, CursorMessage{ID: id})
}

// Publish sends m on the channel of its event, as the host does.
func (h *Host) Publish(ctx context.Context, m host.Message) error {
	return h.publish(ctx, string(m.Event), m)
}

func (h *Host) publish(ctx context.Context, name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := h.client.Publish(ctx, h.Channel(name), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}

// Run listens to the push channels until ctx is done.
func (h *Host) Run(ctx context.Context) error {
	channels := []string{h.Channel(ChannelEditOptions)}
	for _, event := range host.Events {
		channels = append(channels, h.Channel(string(event)))
	}

	ps := h.client.Subscribe(ctx, channels...)
	defer ps.Close()

	// wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	glog.V(1).Infof("[redishost]listening on %s", strings.Join(channels, ", "))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription closed")
			}
			h.receive(msg)
		}
	}
}

func (h *Host) receive(msg *redis.Message) {
	name := strings.TrimPrefix(msg.Channel, h.prefix+":")

	if name == ChannelEditOptions {
		h.EditOptions()
		return
	}

	var m host.Message
	if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
		glog.Warningf("[redishost]dropping malformed %s push: %v", name, err)
		return
	}
	m.Event = host.EventName(name)

	glog.V(2).Infof("[redishost]%s push", name)
	h.Emit(m)
}

// Close closes the Redis client.
func (h *Host) Close() error {
	return h.client.Close()
}
