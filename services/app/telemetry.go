package app

import (
	"context"

	"rangefinder-go/bus"
	"rangefinder-go/types"
)

const topicRoot = "rangefinder"

// Topics published or served on the bus.
var (
	TopicRange     = bus.T(topicRoot, "range")
	TopicAccel     = bus.T(topicRoot, "accel")
	TopicSerialTx  = bus.T(topicRoot, "serial", "tx")
	TopicState     = bus.T(topicRoot, "state", "+")
	TopicStatusGet = bus.T(topicRoot, "status", "get")
	TopicAll       = bus.T(topicRoot, "#")
)

func (a *App) publish(topic bus.Topic, payload any, retained bool) {
	a.conn.Publish(a.conn.NewMessage(topic, payload, retained))
}

// state publishes a retained bring-up result for one component.
func (a *App) state(name string, err error) {
	if a.conn == nil {
		return
	}
	st := types.ComponentState{Level: types.LevelReady, TS: a.ts()}
	if err != nil {
		st.Level = types.LevelFail
		st.Error = err.Error()
	}
	a.publish(bus.T(topicRoot, "state", name), st, true)
}

// Status snapshots the scheduler flags and transport counters.
func (a *App) Status() types.Status {
	return types.Status{
		Flags:      a.flags.Word(),
		SerialIdle: a.serial.IsIdle(),
		Dropped:    a.serial.Dropped(),
		Frames:     a.serial.Frames(),
	}
}

// Serve answers status requests on TopicStatusGet until ctx is done.
func (a *App) Serve(ctx context.Context) {
	sub := a.conn.Subscribe(TopicStatusGet)
	defer a.conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			a.conn.Reply(m, a.Status(), false)
		}
	}
}
