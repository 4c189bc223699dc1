//go:build !stm32f103

package sim

import (
	"context"
	"io"
	"sync"

	"rangefinder-go/periph/regs"
	"rangefinder-go/periph/uart"
)

// USART is a simulated USART. Transmitted bytes are captured and can be
// forwarded to a peer writer; received bytes are injected by the test.
// Interrupt delivery is explicit: Service runs the handler once, Run pumps
// it from a goroutine while an armed condition holds.
type USART struct {
	SR, DR, CR1 regs.Reg

	mu      sync.Mutex
	sent    []byte
	pending []byte // not yet forwarded
	rxq     []byte
	kick    chan struct{}
}

func NewUSART() *USART {
	u := &USART{kick: make(chan struct{}, 1)}
	u.SR.Store(uart.SR_TXE | uart.SR_TC)
	u.DR.OnWrite = func(_, v uint32) { u.onTx(byte(v)) }
	u.DR.OnRead = func(uint32) { u.onRx() }
	u.CR1.OnWrite = func(uint32, uint32) { u.signal() }
	return u
}

func (u *USART) Regs() uart.Regs { return uart.Regs{SR: &u.SR, DR: &u.DR, CR1: &u.CR1} }

func (u *USART) signal() {
	select {
	case u.kick <- struct{}{}:
	default:
	}
}

func (u *USART) onTx(b byte) {
	u.mu.Lock()
	u.sent = append(u.sent, b)
	u.pending = append(u.pending, b)
	u.mu.Unlock()
}

func (u *USART) onRx() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.rxq) > 0 {
		u.DR.Store(uint32(u.rxq[0]))
		u.rxq = u.rxq[1:]
		return
	}
	u.SR.Update(0, uart.SR_RXNE)
}

// Inject queues bytes as if they arrived on the RX line.
func (u *USART) Inject(p ...byte) {
	u.mu.Lock()
	for _, b := range p {
		if !u.SR.Bit(uart.SR_RXNE) {
			u.DR.Store(uint32(b))
			u.SR.Update(uart.SR_RXNE, 0)
			continue
		}
		u.rxq = append(u.rxq, b)
	}
	u.mu.Unlock()
	u.signal()
}

// Sent returns a copy of everything transmitted so far.
func (u *USART) Sent() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]byte(nil), u.sent...)
}

func (u *USART) ResetSent() {
	u.mu.Lock()
	u.sent = u.sent[:0]
	u.mu.Unlock()
}

// Forward writes bytes transmitted since the last call to peer and returns
// how many were delivered.
func (u *USART) Forward(peer io.Writer) int {
	u.mu.Lock()
	out := u.pending
	u.pending = nil
	u.mu.Unlock()
	n, _ := peer.Write(out)
	return n
}

// Pending reports whether an enabled interrupt condition is raised.
func (u *USART) Pending() bool {
	cr1, sr := u.CR1.Load(), u.SR.Load()
	return (cr1&uart.CR1_TXEIE != 0 && sr&uart.SR_TXE != 0) ||
		(cr1&uart.CR1_RXNEIE != 0 && sr&uart.SR_RXNE != 0)
}

// Service invokes handler once if an interrupt is pending.
func (u *USART) Service(handler func()) bool {
	if !u.Pending() {
		return false
	}
	handler()
	return true
}

// Run delivers interrupts to handler until ctx is done.
func (u *USART) Run(ctx context.Context, handler func()) {
	for {
		if u.Pending() {
			handler()
			select {
			case <-ctx.Done():
				return
			default:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-u.kick:
		}
	}
}
