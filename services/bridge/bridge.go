// Package bridge mirrors local bus traffic to a remote broker. It waits for
// JSON config on {"config","bridge"}, dials a Link, and forwards every
// message matching the configured pattern as JSON until the link fails, then
// redials with backoff.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"rangefinder-go/bus"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

var (
	topicConfig = bus.T("config", "bridge")
	topicState  = bus.T("bridge", "state")
)

// Start starts the bridge service. It blocks until ctx is cancelled.
func Start(ctx context.Context, conn *bus.Connection) {
	s := &Service{conn: conn, dial: Dial}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config is the JSON-encoded configuration expected on "config/bridge".
type Config struct {
	Enabled bool   `json:"enabled"`
	Broker  string `json:"broker"`
	// Prefix is prepended to every remote topic, e.g. "devices/<id>".
	Prefix string `json:"prefix,omitempty"`
	// Match selects local topics, "/"-separated with MQTT wildcards.
	// Defaults to "rangefinder/#".
	Match string `json:"match,omitempty"`
}

func (c Config) pattern() bus.Topic {
	m := c.Match
	if m == "" {
		m = "rangefinder/#"
	}
	parts := strings.Split(m, "/")
	t := make(bus.Topic, len(parts))
	for i, p := range parts {
		t[i] = p
	}
	return t
}

// RemoteTopic maps a local topic onto the remote namespace.
func (c Config) RemoteTopic(t bus.Topic) string {
	if c.Prefix == "" {
		return t.String()
	}
	return strings.TrimSuffix(c.Prefix, "/") + "/" + t.String()
}

// -----------------------------------------------------------------------------
// Link
// -----------------------------------------------------------------------------

// Link is an open connection to the remote broker.
type Link interface {
	Publish(topic string, payload []byte, retained bool) error
	Close() error
}

// Dial opens a Link. Hosts with a broker client replace it.
var Dial = func(ctx context.Context, cfg Config) (Link, error) { return nil, errNoDial }

var errNoDial = errors.New("bridge: no dialler installed")

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn *bus.Connection
	dial func(context.Context, Config) (Link, error)

	mu     sync.Mutex
	curRun context.CancelFunc
}

// run waits for config and supervises a single link.
func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig)
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.stopCurrent()
	if !cfg.Enabled {
		s.publishState("idle", "disabled", nil)
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.curRun = cancel
	s.mu.Unlock()
	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision and forwarding
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg Config) {
	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		link, err := s.dial(ctx, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		sub := s.conn.Subscribe(cfg.pattern())
		s.publishState("up", "link_established", nil)
		err = forward(ctx, sub, cfg, link)
		s.conn.Unsubscribe(sub)
		_ = link.Close()
		if err == nil {
			return
		}
		delay := backoff()
		s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
		if !sleep(ctx, delay) {
			return
		}
	}
}

// forward copies messages from sub to link until ctx ends (nil) or a
// publish fails (the error).
func forward(ctx context.Context, sub *bus.Subscription, cfg Config, link Link) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			payload, err := json.Marshal(m.Payload)
			if err != nil {
				continue
			}
			if err := link.Publish(cfg.RemoteTopic(m.Topic), payload, m.Retained); err != nil {
				return err
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (Config, error) {
	var cfg Config
	switch v := p.(type) {
	case []byte:
		return cfg, json.Unmarshal(v, &cfg)
	case string:
		return cfg, json.Unmarshal([]byte(v), &cfg)
	case map[string]any:
		// Already decoded by the config service; re-marshal for simplicity.
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, err
		}
		return cfg, json.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,  // "up", "degraded", "error", "idle"
		"status": status, // short machine string
		"ts_ms":  time.Now().UnixMilli(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicState, payload, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
