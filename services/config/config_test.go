package config

import (
	"context"
	"testing"
	"time"

	"rangefinder-go/bus"
)

func TestLoad_EmbeddedBoards(t *testing.T) {
	for _, board := range []string{"bluepill", "host"} {
		c, err := Load(board)
		if err != nil {
			t.Fatalf("%s: %v", board, err)
		}
		if c.Serial.TxSize != 20 || c.Serial.RxSize != 10 || c.Serial.TxRetries != 10 {
			t.Fatalf("%s: serial=%+v", board, c.Serial)
		}
		if c.Serial.Terminator != "OK\r\n" {
			t.Fatalf("%s: terminator=%q", board, c.Serial.Terminator)
		}
		if c.I2CRetry() != 1000 || c.SPIRetry() != 1000 {
			t.Fatalf("%s: budgets %d/%d", board, c.I2CRetry(), c.SPIRetry())
		}
	}
	c, _ := Load("bluepill")
	if c.TickPeriod() != 100*time.Millisecond {
		t.Fatalf("bluepill tick=%v", c.TickPeriod())
	}
	if c.SerialConfig().RxFraming {
		t.Fatal("bluepill should not frame rx")
	}
	if c.RangeConfig().DataTimeout != 200*time.Millisecond {
		t.Fatalf("range data timeout=%v", c.RangeConfig().DataTimeout)
	}
}

func TestLoad_NormalizeClamps(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		return []byte(`{
			"tick_hz": 0,
			"idle_ms": 5000,
			"serial": {"tx_size": -3, "rx_size": 2, "terminator": "ABCD"},
			"range": {"data_timeout_ms": 1}
		}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	c, err := Load("odd")
	if err != nil {
		t.Fatal(err)
	}
	switch {
	case c.TickHz != 1:
		t.Fatalf("tick_hz=%d", c.TickHz)
	case c.IdleMs != 100:
		t.Fatalf("idle_ms=%d", c.IdleMs)
	case c.Serial.TxSize != 1:
		t.Fatalf("tx_size=%d", c.Serial.TxSize)
	case c.Serial.Terminator != "CD":
		t.Fatalf("terminator=%q", c.Serial.Terminator)
	case c.Range.DataTimeoutMs != 10:
		t.Fatalf("data_timeout_ms=%d", c.Range.DataTimeoutMs)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load("unknown-board"); err == nil {
		t.Fatal("expected error for unknown board")
	}
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(string) ([]byte, bool) { return []byte(`[1,2]`), true }
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })
	if _, err := Load("bad"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestConfig_PublishEmbedded_RetainedPerKey(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewConfigService()

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "host")
	svc.Start(ctx, conn)

	// Wait for the publisher before subscribing so the retained replay is
	// what delivers the messages.
	deadline := time.Now().Add(600 * time.Millisecond)
	var got map[string]any
	for time.Now().Before(deadline) {
		sub := conn.Subscribe(bus.T(configPrefix, "#"))
		got = map[string]any{}
	drain:
		for {
			select {
			case m := <-sub.Channel():
				if len(m.Topic) != 2 || m.Topic[0] != configPrefix {
					t.Fatalf("unexpected topic: %v", m.Topic)
				}
				key, ok := m.Topic[1].(string)
				if !ok {
					t.Fatalf("topic[1] type %T, want string", m.Topic[1])
				}
				got[key] = m.Payload
			default:
				break drain
			}
		}
		conn.Unsubscribe(sub)
		if len(got) == 9 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(got) != 9 {
		t.Fatalf("expected 9 retained keys, got %d (%v)", len(got), got)
	}
	if v, ok := got["tick_hz"].(float64); !ok || v != 50 {
		t.Fatalf("tick_hz payload = %#v", got["tick_hz"])
	}
	serial, ok := got["serial"].(map[string]any)
	if !ok {
		t.Fatalf("serial payload type = %T", got["serial"])
	}
	if serial["rx_framing"] != true {
		t.Fatalf("serial.rx_framing = %#v", serial["rx_framing"])
	}
}

func TestConfig_PublishConfig_MissingDevice(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test-missing-device")
	svc := NewConfigService()

	if err := svc.publishConfig(context.Background(), conn); err == nil {
		t.Fatal("expected error for missing device ID, got nil")
	}
}

func TestConfig_PublishConfig_NoConfigFound(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) { return nil, false }
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(4)
	conn := b.NewConnection("test-no-config")
	svc := NewConfigService()

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "unknown-device")
	if err := svc.publishConfig(ctx, conn); err == nil {
		t.Fatal("expected error for missing embedded config, got nil")
	}
}
