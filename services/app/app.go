// Package app holds the rangefinder application: peripheral bring-up, the
// range and inertial tasks, and the print path that shares the serial
// transport between them through the scheduler flags.
package app

import (
	"context"
	"sync/atomic"
	"time"

	"rangefinder-go/bus"
	"rangefinder-go/drivers/vl53l1x"
	"rangefinder-go/services/scheduler"
	"rangefinder-go/types"
	"rangefinder-go/x/conv"
)

// Transport is the interrupt-driven serial link. *hc05.Transport satisfies it.
type Transport interface {
	Send(msg []byte) error
	OnIdle(fn func())
	HandleInterrupt()
	IsIdle() bool
	Dropped() uint32
	Frames() uint32
}

// Ranger is the time-of-flight sensor. *vl53l1x.Device satisfies it.
type Ranger interface {
	Configure(cfgs ...vl53l1x.Config) error
	Read() (uint16, error)
}

// Accelerometer is the inertial sensor. *lsm6ds3.Device satisfies it.
type Accelerometer interface {
	Configure() error
	AccelZ() (int16, error)
}

// LED is the activity indicator toggled on every dispatched gesture.
type LED interface {
	Set(high bool)
}

type Options struct {
	Flags  *scheduler.Flags
	Button scheduler.Button
	Serial Transport

	// Optional peripherals. A nil or failed sensor leaves its task out.
	Ranger      Ranger
	RangeConfig vl53l1x.Config
	Accel       Accelerometer
	LED         LED

	// Conn, if set, receives telemetry and answers status requests.
	Conn *bus.Connection
	Now  func() time.Time
}

type App struct {
	flags  *scheduler.Flags
	sched  *scheduler.Scheduler
	serial Transport
	ranger Ranger
	rcfg   vl53l1x.Config
	accel  Accelerometer
	led    LED
	ledOn  bool
	conn   *bus.Connection
	now    func() time.Time

	lastCM atomic.Uint32
	line   [32]byte
}

// New wires the transport idle callback to the serial busy bit. Call Init
// before Run.
func New(o Options) *App {
	if o.Flags == nil {
		o.Flags = scheduler.NewFlags()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	a := &App{
		flags:  o.Flags,
		sched:  scheduler.New(o.Flags, o.Button),
		serial: o.Serial,
		ranger: o.Ranger,
		rcfg:   o.RangeConfig,
		accel:  o.Accel,
		led:    o.LED,
		conn:   o.Conn,
		now:    o.Now,
	}
	flags := o.Flags
	a.serial.OnIdle(func() { flags.ClearBusy(scheduler.Serial) })
	a.sched.OnGesture = a.toggleLED
	a.sched.OnError = func(t scheduler.Task, err error) {
		println("[app] " + t.String() + ": " + err.Error())
	}
	return a
}

func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }
func (a *App) Flags() *scheduler.Flags         { return a.flags }

// Digits returns the display model: the last range in centimetres, least
// significant digit first.
func (a *App) Digits() [3]uint8 {
	var d [3]uint8
	conv.Digits(d[:], a.lastCM.Load())
	return d
}

// HandleSerialInterrupt is the USART interrupt entry point.
func (a *App) HandleSerialInterrupt() { a.serial.HandleInterrupt() }

// Print waits for the serial line, claims it and hands msg to the
// transport. The idle callback releases the line once the last byte is out.
func (a *App) Print(ctx context.Context, msg []byte) error {
	if err := a.flags.AcquireWait(ctx, scheduler.Serial); err != nil {
		return err
	}
	err := a.serial.Send(msg)
	if err != nil || len(msg) == 0 {
		a.flags.ClearBusy(scheduler.Serial)
	}
	if a.conn != nil {
		a.publish(TopicSerialTx, types.SerialLine{
			Text: string(msg), OK: err == nil, TS: a.ts(),
		}, false)
	}
	return err
}

func (a *App) printString(ctx context.Context, s string) error {
	return a.Print(ctx, append(a.line[:0], s...))
}

// Init brings up each peripheral in turn, reporting progress over serial,
// then schedules the tasks whose sensors came up. Init itself only fails
// when the serial line does.
func (a *App) Init(ctx context.Context) error {
	if err := a.printString(ctx, "hc05 init done.\r\n"); err != nil {
		return err
	}
	a.state("hc05", nil)

	var accelOK, rangeOK bool
	if a.accel != nil {
		err := a.accel.Configure()
		accelOK = err == nil
		if err := a.report(ctx, "lsm6ds3", err); err != nil {
			return err
		}
	}
	if a.ranger != nil {
		err := a.ranger.Configure(a.rcfg)
		rangeOK = err == nil
		if err := a.report(ctx, "vl53l1x", err); err != nil {
			return err
		}
	}
	if err := a.report(ctx, "button", nil); err != nil {
		return err
	}
	a.setLED(true)
	if err := a.report(ctx, "display", nil); err != nil {
		return err
	}

	if rangeOK {
		a.sched.Register(scheduler.Range, a.rangeTask)
	}
	if accelOK {
		a.sched.Register(scheduler.Inertial, a.inertialTask)
	}
	return nil
}

func (a *App) report(ctx context.Context, name string, err error) error {
	a.state(name, err)
	if err != nil {
		println("[app] " + name + ": " + err.Error())
		return a.printString(ctx, name+" init fail.\r\n")
	}
	return a.printString(ctx, name+" init done.\r\n")
}

func (a *App) setLED(on bool) {
	a.ledOn = on
	if a.led != nil {
		a.led.Set(on)
	}
}

func (a *App) toggleLED() { a.setLED(!a.ledOn) }

func (a *App) ts() int64 { return a.now().UnixMilli() }

// Run starts the scheduler tick and main loop.
func (a *App) Run(ctx context.Context, period, idle time.Duration) error {
	if a.conn != nil {
		go a.Serve(ctx)
	}
	return a.sched.Run(ctx, period, idle)
}
