// Package spi is a register-level, single-byte SPI master engine.
package spi

import (
	"rangefinder-go/errcode"
	"rangefinder-go/periph/poll"
	"rangefinder-go/periph/regs"
)

// SR bits.
const (
	SR_RXNE = 1 << 0
	SR_TXE  = 1 << 1
	SR_BSY  = 1 << 7
)

type Regs struct {
	SR, DR regs.Register
}

// DefaultBudget bounds Transfer and Tx. ShiftByte ignores it.
const DefaultBudget = poll.Budget(1000)

type Bus struct {
	r      Regs
	budget poll.Budget
}

func New(r Regs, budget poll.Budget) *Bus {
	if budget == 0 {
		budget = DefaultBudget
	}
	return &Bus{r: r, budget: budget}
}

func (b *Bus) TxByte(v byte) error {
	if !b.r.SR.HasBits(SR_TXE) {
		return errcode.NotReady
	}
	b.r.DR.Set(uint32(v))
	return nil
}

func (b *Bus) RxByte() (byte, error) {
	if !b.r.SR.HasBits(SR_RXNE) {
		return 0, errcode.NotReady
	}
	return byte(b.r.DR.Get()), nil
}

// ShiftByte exchanges one byte, polling without bound. A dead peripheral
// hangs here.
func (b *Bus) ShiftByte(v byte) byte {
	rx, _ := b.exchange(poll.Forever, v)
	return rx
}

// Transfer implements tinygo.org/x/drivers.SPI with the bus budget.
func (b *Bus) Transfer(v byte) (byte, error) {
	return b.exchange(b.budget, v)
}

// Tx implements tinygo.org/x/drivers.SPI. Either slice may be nil; when both
// are set they must have the same length.
func (b *Bus) Tx(w, r []byte) error {
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	if len(w) > 0 && len(r) > 0 && len(w) != len(r) {
		return &errcode.E{C: errcode.InvalidParams, Op: "spi.tx", Msg: "length mismatch"}
	}
	for i := 0; i < n; i++ {
		var out byte
		if i < len(w) {
			out = w[i]
		}
		in, err := b.exchange(b.budget, out)
		if err != nil {
			return err
		}
		if i < len(r) {
			r[i] = in
		}
	}
	return nil
}

func (b *Bus) exchange(budget poll.Budget, v byte) (byte, error) {
	if err := poll.Named("spi.tx", budget, func() error { return b.TxByte(v) }); err != nil {
		return 0, err
	}
	var rx byte
	err := poll.Named("spi.rx", budget, func() error {
		var err error
		rx, err = b.RxByte()
		return err
	})
	return rx, err
}
