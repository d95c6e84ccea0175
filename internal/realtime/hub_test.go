package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

func drain(c *Client) []WSMessage {
	var out []WSMessage
	for {
		select {
		case m := <-c.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestPublishBotStatusLocal(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	wisdom := NewClient(hub, "Wisdom", nil, nil)
	pablo := NewClient(hub, "Pablo", nil, nil)
	all := NewClient(hub, AllHosts, nil, nil)
	for _, c := range []*Client{wisdom, pablo, all} {
		hub.Register(c)
	}

	if err := hub.PublishBotStatus(context.Background(), "Wisdom", "b1", "in_call_recording"); err != nil {
		t.Fatalf("PublishBotStatus: %v", err)
	}

	got := drain(wisdom)
	if len(got) != 1 || got[0].Event != EventBotStatus {
		t.Fatalf("wisdom got %+v", got)
	}
	var ev BotStatusEvent
	if err := json.Unmarshal(got[0].Data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev != (BotStatusEvent{RecallBotID: "b1", Host: "Wisdom", Status: "in_call_recording"}) {
		t.Fatalf("event = %+v", ev)
	}
	if n := len(drain(all)); n != 1 {
		t.Fatalf("all-hosts room got %d messages", n)
	}
	if n := len(drain(pablo)); n != 0 {
		t.Fatalf("other host got %d messages", n)
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	c := NewClient(hub, "Inbest", nil, nil)
	hub.Register(c)
	if hub.ClientCount("Inbest") != 1 {
		t.Fatal("client not registered")
	}
	hub.Unregister(c)
	if hub.ClientCount("Inbest") != 0 {
		t.Fatal("client not removed")
	}
	if _, ok := <-c.send; ok {
		t.Fatal("send channel still open")
	}
	// Publishing to an empty room is a no-op.
	if err := hub.PublishBotStatus(context.Background(), "Inbest", "b1", "done"); err != nil {
		t.Fatalf("PublishBotStatus: %v", err)
	}
}

// memBus is an in-process stand-in for Redis pub/sub.
type memBus struct {
	mu       sync.Mutex
	handlers map[string][]func(string, []byte)
	unsubbed int
}

func (b *memBus) PublishHostEvent(_ context.Context, host, event string, payload []byte) error {
	b.mu.Lock()
	hs := append([]func(string, []byte){}, b.handlers[host]...)
	hs = append(hs, b.handlers[AllHosts]...)
	b.mu.Unlock()
	for _, h := range hs {
		h(event, payload)
	}
	return nil
}

func (b *memBus) SubscribeHost(host string, handler func(string, []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[string][]func(string, []byte))
	}
	b.handlers[host] = append(b.handlers[host], handler)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, host)
		b.unsubbed++
	}, nil
}

func TestPublishBotStatusThroughRedis(t *testing.T) {
	bus := &memBus{}
	hub := NewHub(nil, bus, bus)
	c := NewClient(hub, "Andres", nil, nil)
	all := NewClient(hub, AllHosts, nil, nil)
	hub.Register(c)
	hub.Register(all)

	if err := hub.PublishBotStatus(context.Background(), "Andres", "b9", "done"); err != nil {
		t.Fatalf("PublishBotStatus: %v", err)
	}
	if n := len(drain(c)); n != 1 {
		t.Fatalf("host room got %d messages, want exactly 1", n)
	}
	if n := len(drain(all)); n != 1 {
		t.Fatalf("all-hosts room got %d messages, want exactly 1", n)
	}

	hub.Unregister(c)
	hub.Unregister(all)
	if bus.unsubbed != 2 {
		t.Fatalf("unsubscribed %d rooms, want 2", bus.unsubbed)
	}
}
