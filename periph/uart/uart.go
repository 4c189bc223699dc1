// Package uart is a register-level USART engine: single-byte transmit and
// receive primitives plus interrupt arming for interrupt-driven users.
package uart

import (
	"rangefinder-go/errcode"
	"rangefinder-go/periph/poll"
	"rangefinder-go/periph/regs"
)

// SR bits.
const (
	SR_RXNE = 1 << 5
	SR_TC   = 1 << 6
	SR_TXE  = 1 << 7
)

// CR1 bits.
const (
	CR1_RE     = 1 << 2
	CR1_TE     = 1 << 3
	CR1_RXNEIE = 1 << 5
	CR1_TXEIE  = 1 << 7
	CR1_UE     = 1 << 13
)

type Regs struct {
	SR, DR, CR1 regs.Register
}

type Port struct {
	r Regs
}

func New(r Regs) *Port { return &Port{r: r} }

func (p *Port) TxByte(v byte) error {
	if !p.r.SR.HasBits(SR_TXE) {
		return errcode.NotReady
	}
	p.r.DR.Set(uint32(v))
	return nil
}

func (p *Port) RxByte() (byte, error) {
	if !p.r.SR.HasBits(SR_RXNE) {
		return 0, errcode.NotReady
	}
	return byte(p.r.DR.Get()), nil
}

// WriteSeries sends p, giving every byte the retry budget b.
// It returns how many bytes went out.
func (p *Port) WriteSeries(data []byte, b poll.Budget) (int, error) {
	for i, v := range data {
		if err := poll.Named("uart.tx", b, func() error { return p.TxByte(v) }); err != nil {
			return i, err
		}
	}
	return len(data), nil
}

// ReadSeries fills dst, giving every byte the retry budget b.
func (p *Port) ReadSeries(dst []byte, b poll.Budget) (int, error) {
	for i := range dst {
		err := poll.Named("uart.rx", b, func() error {
			v, err := p.RxByte()
			if err == nil {
				dst[i] = v
			}
			return err
		})
		if err != nil {
			return i, err
		}
	}
	return len(dst), nil
}

// Write implements io.Writer with unbounded polling.
func (p *Port) Write(data []byte) (int, error) { return p.WriteSeries(data, poll.Forever) }

func (p *Port) TxEmpty() bool { return p.r.SR.HasBits(SR_TXE) }
func (p *Port) RxReady() bool { return p.r.SR.HasBits(SR_RXNE) }

func (p *Port) ArmTx()        { p.r.CR1.SetBits(CR1_TXEIE) }
func (p *Port) DisarmTx()     { p.r.CR1.ClearBits(CR1_TXEIE) }
func (p *Port) TxArmed() bool { return p.r.CR1.HasBits(CR1_TXEIE) }

func (p *Port) ArmRx()        { p.r.CR1.SetBits(CR1_RXNEIE) }
func (p *Port) DisarmRx()     { p.r.CR1.ClearBits(CR1_RXNEIE) }
func (p *Port) RxArmed() bool { return p.r.CR1.HasBits(CR1_RXNEIE) }

// Discard reads the data register once, dropping any stale received byte.
func (p *Port) Discard() { _ = p.r.DR.Get() }
