package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rangefinder-go/bus"
)

type sent struct {
	topic    string
	payload  string
	retained bool
}

type fakeLink struct {
	mu     sync.Mutex
	fail   bool
	out    chan sent
	closed bool
}

func (l *fakeLink) Publish(topic string, payload []byte, retained bool) error {
	l.mu.Lock()
	fail := l.fail
	l.mu.Unlock()
	if fail {
		return errors.New("broker gone")
	}
	l.out <- sent{topic, string(payload), retained}
	return nil
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func withDial(t *testing.T, fn func(context.Context, Config) (Link, error)) {
	prev := Dial
	Dial = fn
	t.Cleanup(func() { Dial = prev })
}

func startBridge(t *testing.T) (*bus.Connection, *bus.Subscription) {
	t.Helper()
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge_test")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go Start(ctx, conn)

	stateSub := conn.Subscribe(topicState)
	t.Cleanup(func() { conn.Unsubscribe(stateSub) })
	first := nextStatePayload(t, stateSub, 500*time.Millisecond)
	assertLevelStatus(t, first, "idle", "awaiting_config")
	return conn, stateSub
}

func TestBridge_ForwardsTelemetryAndRedials(t *testing.T) {
	var (
		mu    sync.Mutex
		links []*fakeLink
	)
	withDial(t, func(ctx context.Context, cfg Config) (Link, error) {
		if cfg.Broker != "tcp://broker:1883" {
			t.Errorf("broker=%q", cfg.Broker)
		}
		l := &fakeLink{out: make(chan sent, 8)}
		mu.Lock()
		links = append(links, l)
		mu.Unlock()
		return l, nil
	})
	conn, stateSub := startBridge(t)

	cfg := `{"enabled":true,"broker":"tcp://broker:1883","prefix":"devices/abc/"}`
	conn.Publish(conn.NewMessage(topicConfig, cfg, false))
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "up", "link_established")

	conn.Publish(conn.NewMessage(bus.T("rangefinder", "range"), map[string]any{"mm": 800}, true))
	conn.Publish(conn.NewMessage(bus.T("other", "topic"), "ignored", false))

	mu.Lock()
	first := links[0]
	mu.Unlock()
	select {
	case got := <-first.out:
		if got.topic != "devices/abc/rangefinder/range" || got.payload != `{"mm":800}` || !got.retained {
			t.Fatalf("forwarded %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("nothing forwarded")
	}

	// Break the link: the next publish fails and the bridge redials.
	first.mu.Lock()
	first.fail = true
	first.mu.Unlock()
	conn.Publish(conn.NewMessage(bus.T("rangefinder", "accel"), map[string]any{"centi_g": 98}, false))
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "degraded", "link_lost_retrying")
	assertLevelStatus(t, nextStatePayload(t, stateSub, 2*time.Second), "up", "link_established")

	first.mu.Lock()
	closed := first.closed
	first.mu.Unlock()
	if !closed {
		t.Fatal("failed link not closed")
	}

	// The retained range reading is replayed onto the new link.
	mu.Lock()
	second := links[1]
	mu.Unlock()
	select {
	case got := <-second.out:
		if got.topic != "devices/abc/rangefinder/range" {
			t.Fatalf("replayed %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("retained reading not replayed")
	}
}

func TestBridge_DialFailureDegrades(t *testing.T) {
	withDial(t, func(context.Context, Config) (Link, error) {
		return nil, errors.New("connection refused")
	})
	conn, stateSub := startBridge(t)

	conn.Publish(conn.NewMessage(topicConfig, `{"enabled":true,"broker":"tcp://nowhere:1883"}`, false))
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "degraded", "dial_failed_retrying")
}

func TestBridge_DisabledAndBadConfig(t *testing.T) {
	conn, stateSub := startBridge(t)

	conn.Publish(conn.NewMessage(topicConfig, map[string]any{"enabled": false}, false))
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "idle", "disabled")

	conn.Publish(conn.NewMessage(topicConfig, 42, false))
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "error", "config_decode_failed")
}

func TestConfig_Mapping(t *testing.T) {
	c := Config{}
	if p := c.pattern(); len(p) != 2 || p[0] != "rangefinder" || p[1] != "#" {
		t.Fatalf("default pattern=%v", p)
	}
	if got := c.RemoteTopic(bus.T("rangefinder", "state", "hc05")); got != "rangefinder/state/hc05" {
		t.Fatalf("RemoteTopic=%q", got)
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func nextStatePayload(t *testing.T, sub *bus.Subscription, d time.Duration) map[string]any {
	t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m := <-sub.Channel():
		p, ok := m.Payload.(map[string]any)
		if !ok {
			t.Fatalf("state payload type: got %T, want map[string]any", m.Payload)
		}
		return p
	case <-timer.C:
		t.Fatalf("timeout waiting for bridge/state")
		return nil
	}
}

func assertLevelStatus(t *testing.T, payload map[string]any, wantLevel, wantStatus string) {
	t.Helper()
	gotLevel, _ := payload["level"].(string)
	gotStatus, _ := payload["status"].(string)
	if gotLevel != wantLevel || gotStatus != wantStatus {
		t.Fatalf("unexpected state: level=%q status=%q, want level=%q status=%q (payload=%v)",
			gotLevel, gotStatus, wantLevel, wantStatus, payload)
	}
}
