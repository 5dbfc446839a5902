package redishost

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/forms/internal/host"
	"github.com/AnatoleLucet/forms/internal/host/memhost"
)

func setupTestRedis(t *testing.T) (*Host, *redis.Client, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	h, err := Dial("redis://"+s.Addr()+"?protocol=2", "forms", memhost.New().Table())
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	client := redis.NewClient(&redis.Options{Addr: s.Addr(), Protocol: 2})
	t.Cleanup(func() { _ = client.Close() })
	return h, client, s
}

// run starts h and waits until it listens to every channel.
func run(t *testing.T, h *Host, s *miniredis.Miniredis) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Error("run did not return")
		}
	})

	require.Eventually(t, func() bool {
		return s.PubSubNumSub(h.Channel(string(host.EventRecord)))[h.Channel(string(host.EventRecord))] == 1
	}, 5*time.Second, 5*time.Millisecond)
}

func TestDial(t *testing.T) {
	_, err := Dial("http://nope", "forms", nil)
	assert.ErrorContains(t, err, "parse redis url")

	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, err = Dial("redis://"+addr, "forms", nil)
	assert.ErrorContains(t, err, "connect to redis")
}

func TestPushes(t *testing.T) {
	h, client, s := setupTestRedis(t)

	got := make(chan host.Message, 4)
	for _, event := range host.Events {
		h.On(event, func(m host.Message) { got <- m })
	}
	run(t, h, s)

	ctx := context.Background()
	formJSON := `{"components":[{"key":"email"}]}`

	require.NoError(t, h.Publish(ctx, host.Message{
		Event:    host.EventOptions,
		Settings: &host.Settings{Style: host.StyleCustom, CurrentURL: "https://docs.example.com/d/1?Form_=1"},
	}))
	require.NoError(t, client.Publish(ctx, "forms:Records", "not json").Err())
	require.NoError(t, h.Publish(ctx, host.Message{
		Event: host.EventRecords,
		Rows:  []*host.Row{{ID: 1, Name: "Signup", FormJson: &formJSON, Form: "1"}},
	}))

	select {
	case m := <-got:
		assert.Equal(t, host.EventOptions, m.Event)
		require.NotNil(t, m.Settings)
		assert.Equal(t, host.StyleCustom, m.Settings.Style)
	case <-time.After(5 * time.Second):
		t.Fatal("no Options push")
	}

	select {
	case m := <-got:
		assert.Equal(t, host.EventRecords, m.Event)
		require.Len(t, m.Rows, 1)
		assert.Equal(t, formJSON, m.Rows[0].FormJSON())
	case <-time.After(5 * time.Second):
		t.Fatal("no Records push")
	}
}

func TestRequests(t *testing.T) {
	h, client, s := setupTestRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, h.Channel(ChannelReady), h.Channel(ChannelSetCursor))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	edits := make(chan struct{}, 1)
	require.NoError(t, h.Ready(host.ReadyOptions{
		RequiredAccess: host.AccessFull,
		OnEditOptions:  func() { edits <- struct{}{} },
	}))
	require.NoError(t, h.SetCursor(ctx, 3))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "forms:Ready", msg.Channel)
	var ready ReadyMessage
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ready))
	assert.Equal(t, host.AccessFull, ready.RequiredAccess)

	msg, err = sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "forms:SetCursor", msg.Channel)
	assert.JSONEq(t, `{"id":3}`, msg.Payload)

	run(t, h, s)
	require.NoError(t, client.Publish(ctx, h.Channel(ChannelEditOptions), "").Err())

	select {
	case <-edits:
	case <-time.After(5 * time.Second):
		t.Fatal("edit options not delivered")
	}
}
