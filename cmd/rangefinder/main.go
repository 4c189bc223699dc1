//go:build stm32f103

package main

import (
	"context"
	"runtime"

	"rangefinder-go/bus"
	"rangefinder-go/platform"
	"rangefinder-go/services/app"
	"rangefinder-go/services/config"
	"rangefinder-go/services/heartbeat"
)

const board = "bluepill"

func main() {
	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, board)

	cfg, err := config.Load(board)
	if err != nil {
		println("[main] config:", err.Error())
		return
	}

	println("[main] bootstrapping bus …")
	b := bus.NewBus(4)
	appConn := b.NewConnection("app")
	sysConn := b.NewConnection("sys")

	config.NewConfigService().Start(ctx, sysConn)

	println("[main] configuring board …")
	hw := platform.NewBluepill(cfg)
	a, _ := hw.NewApp(cfg, appConn)
	platform.InstallSerialIRQ(a.HandleSerialInterrupt)

	if err := a.Init(ctx); err != nil {
		println("[main] init:", err.Error())
		return
	}
	printMem()

	hb := &heartbeat.Service{Status: func() any { return a.Status() }, Interval: cfg.TickPeriod() * 50}
	_ = hb.Start(ctx, sysConn)

	mon := sysConn.Subscribe(app.TopicState)
	go func() {
		for m := range mon.Channel() {
			println("[monitor] <-", m.Topic.String())
		}
	}()

	println("[main] running …")
	if err := a.Run(ctx, cfg.TickPeriod(), cfg.Idle()); err != nil {
		println("[main] run:", err.Error())
	}
}

// printMem prints a compact snapshot of TinyGo runtime memory stats.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	println(
		"[mem]",
		"alloc:", uint32(ms.Alloc),
		"heapInuse:", uint32(ms.HeapInuse),
		"heapSys:", uint32(ms.HeapSys),
		"mallocs:", uint32(ms.Mallocs),
		"frees:", uint32(ms.Frees),
	)
}
