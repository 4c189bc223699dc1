// Package hc05 is an interrupt-driven serial transport for an HC-05 style
// Bluetooth UART module.
//
//	t := hc05.New(port, hc05.Config{})
//	err := t.Send(msg)       // fills the tx ring and arms TXE
//	t.HandleInterrupt()      // call from the USART IRQ; one byte per call
//
// The tx and rx rings belong to the interrupt handler while a transmission is
// in progress. Callers must not Send again until IsIdle reports true; Send
// refuses with errcode.Busy rather than corrupting the ring. The rx ring is
// handed back by disarming RXNE and waiting out any handler still inside the
// receive path, so Send is safe against a handler on another goroutine.
package hc05

import (
	"context"
	"sync/atomic"
	"time"

	"rangefinder-go/errcode"
	"rangefinder-go/periph/poll"
	"rangefinder-go/x/ring"
)

// Port is what the transport needs from a UART engine.
type Port interface {
	TxByte(b byte) error
	RxByte() (byte, error)
	TxEmpty() bool
	RxReady() bool
	ArmTx()
	DisarmTx()
	TxArmed() bool
	ArmRx()
	DisarmRx()
	RxArmed() bool
	Discard()
}

// Config controls buffer sizing and interrupt behaviour. All fields are optional.
type Config struct {
	// TxSize is the longest message Send accepts. Default 20.
	TxSize int
	// RxSize is the receive ring capacity. Default 10.
	RxSize int
	// TxRetries bounds the TXE poll for each byte inside the handler. Default 10.
	TxRetries int
	// RxFraming enables the RXNE path: received bytes go to the rx ring and
	// a match on Terminator fires the frame callback. Off by default.
	RxFraming bool
	// Terminator ends a received frame. Default "OK\r\n".
	Terminator string
	// IdlePoll is the fallback re-check period for WaitIdle. Default 1 ms.
	IdlePoll time.Duration
}

func (c *Config) defaults() {
	if c.TxSize <= 0 {
		c.TxSize = 20
	}
	if c.RxSize <= 0 {
		c.RxSize = 10
	}
	if c.TxRetries <= 0 {
		c.TxRetries = 10
	}
	if c.Terminator == "" {
		c.Terminator = "OK\r\n"
	}
	if c.IdlePoll <= 0 {
		c.IdlePoll = time.Millisecond
	}
}

type Transport struct {
	port Port
	cfg  Config
	term []byte

	tx *ring.Buffer
	rx *ring.Buffer

	transmitting atomic.Bool
	inRx         atomic.Bool // handler is between the RXNE arm check and the ring update
	dropped      atomic.Uint32
	frames       atomic.Uint32

	idle    chan struct{} // coalesced Transmitting->Idle edge
	onIdle  func()
	onFrame func()
}

// New binds a transport to port. The UART must already be configured.
func New(port Port, cfg Config) *Transport {
	cfg.defaults()
	return &Transport{
		port: port,
		cfg:  cfg,
		term: []byte(cfg.Terminator),
		tx:   ring.New(cfg.TxSize),
		rx:   ring.New(cfg.RxSize),
		idle: make(chan struct{}, 1),
	}
}

// OnIdle registers fn to run from the interrupt handler when the last byte
// of a message has been taken. Set it before the first Send.
func (t *Transport) OnIdle(fn func()) { t.onIdle = fn }

// OnFrame registers fn to run from the interrupt handler when the rx ring
// ends with the terminator. Only used with RxFraming.
func (t *Transport) OnFrame(fn func()) { t.onFrame = fn }

// Send queues msg for interrupt-driven transmission. An empty msg is a no-op.
func (t *Transport) Send(msg []byte) error {
	if len(msg) == 0 {
		return nil
	}
	if t.transmitting.Load() {
		return errcode.Busy
	}
	if len(msg) > t.tx.Cap() {
		return &errcode.E{C: errcode.BufferFull, Op: "hc05.send", Msg: "message longer than tx ring"}
	}
	if t.cfg.RxFraming {
		t.port.DisarmRx()
		for t.inRx.Load() {
			poll.Yield()
		}
	}
	t.tx.Flush()
	t.rx.Flush()
	if _, err := t.tx.Write(msg); err != nil {
		return err
	}
	t.port.Discard()
	t.transmitting.Store(true)
	if t.cfg.RxFraming {
		t.port.ArmRx()
	}
	t.port.ArmTx()
	return nil
}

// HandleInterrupt services the USART interrupt. Each call moves at most one
// byte in each direction.
func (t *Transport) HandleInterrupt() {
	if t.cfg.RxFraming {
		// Mark before checking the arm bit; Send disarms before checking the mark.
		t.inRx.Store(true)
		if t.port.RxArmed() && t.port.RxReady() {
			t.receive()
		}
		t.inRx.Store(false)
	}
	if !t.port.TxArmed() || !t.port.TxEmpty() {
		return
	}
	b, err := t.tx.Take()
	if err != nil {
		t.finish()
		return
	}
	if t.tx.Len() == 0 {
		// Last byte: hand the transport back before it goes out.
		t.finish()
	}
	if err := poll.Until(poll.Times(t.cfg.TxRetries), func() error { return t.port.TxByte(b) }); err != nil {
		t.dropped.Add(1)
	}
}

func (t *Transport) receive() {
	b, err := t.port.RxByte()
	if err != nil {
		return
	}
	if t.rx.Push(b) != nil {
		_, _ = t.rx.Take()
		_ = t.rx.Push(b)
	}
	if t.rx.EndsWith(t.term) {
		t.port.DisarmRx()
		t.frames.Add(1)
		if t.onFrame != nil {
			t.onFrame()
		}
	}
}

func (t *Transport) finish() {
	t.port.DisarmTx()
	t.transmitting.Store(false)
	select {
	case t.idle <- struct{}{}:
	default:
	}
	if t.onIdle != nil {
		t.onIdle()
	}
}

// IsIdle reports whether no transmission is in progress.
func (t *Transport) IsIdle() bool { return !t.transmitting.Load() }

// WaitIdle blocks until the transport is idle or ctx is done.
func (t *Transport) WaitIdle(ctx context.Context) error {
	if t.IsIdle() {
		return nil
	}
	tick := time.NewTicker(t.cfg.IdlePoll)
	defer tick.Stop()
	for !t.IsIdle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.idle:
		case <-tick.C:
		}
	}
	return nil
}

// Dropped counts bytes abandoned because TXE did not rise within TxRetries.
func (t *Transport) Dropped() uint32 { return t.dropped.Load() }

// Frames counts terminator matches seen with RxFraming.
func (t *Transport) Frames() uint32 { return t.frames.Load() }

// TxBuffer and RxBuffer expose the rings. They are owned by the interrupt
// handler while a transmission is in progress.
func (t *Transport) TxBuffer() *ring.Buffer { return t.tx }
func (t *Transport) RxBuffer() *ring.Buffer { return t.rx }
