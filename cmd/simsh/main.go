// Command simsh runs the rangefinder firmware against the host simulator and
// drives it from an interactive shell.
//
//	simsh                      interactive
//	simsh -e click             run one command and exit
//	simsh -mqtt tcp://localhost:1883
package main

import (
	"bytes"
	"context"
	"flag"
	"time"

	"github.com/golang/glog"

	"rangefinder-go/bus"
	"rangefinder-go/platform"
	"rangefinder-go/services/app"
	"rangefinder-go/services/bridge"
	"rangefinder-go/services/config"
	"rangefinder-go/services/heartbeat"
)

const board = "host"

var (
	evalOnly   bool
	mqttURL    string
	heartbeats bool
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "Mirror telemetry to this MQTT broker.")
	flag.BoolVar(&heartbeats, "heartbeat", heartbeats, "Print heartbeat lines.")
}

// Sim is the running simulator shared by the shell commands.
type Sim struct {
	Ctx  context.Context
	Cfg  config.Config
	App  *app.App
	HW   *platform.Sim
	Peer *bytes.Buffer
	Conn *bus.Connection

	stopAuto context.CancelFunc
}

func main() {
	flag.Parse()
	defer glog.Flush()

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), config.CtxDeviceKey, board))
	defer cancel()

	cfg, err := config.Load(board)
	if err != nil {
		glog.Exitf("config: %v", err)
	}

	b := bus.NewBus(64)
	sys := b.NewConnection("sys")
	config.NewConfigService().Start(ctx, sys)

	if mqttURL != "" {
		if err := startBridge(ctx, b, sys); err != nil {
			glog.Exitf("bridge: %v", err)
		}
	}

	hw, s := platform.NewHost(cfg)
	a, _ := hw.NewApp(cfg, b.NewConnection("app"))
	go s.ServeSerial(ctx, a.HandleSerialInterrupt)
	go a.Serve(ctx)
	go monitor(ctx, b.NewConnection("monitor"))

	hb := &heartbeat.Service{Status: func() any { return a.Status() }, Quiet: !heartbeats}
	_ = hb.Start(ctx, sys)

	if err := a.Init(ctx); err != nil {
		glog.Exitf("init: %v", err)
	}

	sim := &Sim{Ctx: ctx, Cfg: cfg, App: a, HW: s, Peer: new(bytes.Buffer), Conn: b.NewConnection("shell")}
	newShell(sim).Run(flag.Args()...)
}

// startBridge enables the MQTT mirror once the embedded bridge config has
// been published, so the override is the retained value.
func startBridge(ctx context.Context, b *bus.Bus, sys *bus.Connection) error {
	id, err := deviceID()
	if err != nil {
		return err
	}
	bridge.Dial = dialMQTT(id)
	go bridge.Start(ctx, b.NewConnection("bridge"))

	sub := sys.Subscribe(bus.T("config", "bridge"))
	select {
	case <-sub.Channel():
	case <-time.After(time.Second):
	}
	sys.Unsubscribe(sub)

	sys.Publish(sys.NewMessage(bus.T("config", "bridge"), map[string]any{
		"enabled": true,
		"broker":  mqttURL,
		"prefix":  "rangefinder-sim/" + id,
	}, true))
	glog.Infof("mirroring telemetry to %s as %s", mqttURL, id)
	return nil
}

// monitor logs every telemetry message.
func monitor(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(bus.T("#"))
	defer conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-sub.Channel():
			if glog.V(1) {
				glog.Infof("bus %s: %v", m.Topic, m.Payload)
			}
		}
	}
}
