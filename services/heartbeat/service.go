package heartbeat

import (
	"context"
	"time"

	"rangefinder-go/bus"
	"rangefinder-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	TopicHeartbeat       = bus.T("rangefinder", "heartbeat")
)

// Beat is published on every tick.
type Beat struct {
	Seq      uint32 `json:"seq"`
	UptimeMs int64  `json:"uptime_ms"`
	Status   any    `json:"status,omitempty"`
}

type Service struct {
	// Status, if set, is sampled into every beat.
	Status func() any
	// Interval between beats until config says otherwise. Default 1 s.
	Interval time.Duration
	// Quiet suppresses the console line.
	Quiet bool
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	start := time.Now()
	var seq uint32
	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case <-tick.C:
			seq++
			b := Beat{Seq: seq, UptimeMs: timex.Since(start)}
			if s.Status != nil {
				b.Status = s.Status()
			}
			if !s.Quiet {
				println("[heartbeat]", b.Seq, b.UptimeMs, "ms")
			}
			conn.Publish(conn.NewMessage(TopicHeartbeat, b, false))
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval"].(float64); ok && iv > 0 {
					tick.Reset(time.Duration(iv * float64(time.Second)))
					if !s.Quiet {
						println("[heartbeat] interval set to", iv, "s")
					}
				}
			}
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
