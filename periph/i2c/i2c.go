// Package i2c is a register-level I2C master engine for the STM32F1 I2C unit.
//
// The primitives never block: each performs at most one status poll and
// returns errcode.NotReady when the hardware is not there yet. Block
// operations compose them with the bus retry budget (see package poll).
//
// Receive sequencing follows the F1 reference manual: ACK is cleared while
// the second-to-last byte is being read, and STOP is requested strictly
// before the last data register read. Any other order clocks an extra byte
// out of the target.
package i2c

import (
	"rangefinder-go/errcode"
	"rangefinder-go/periph/poll"
	"rangefinder-go/periph/regs"
)

// CR1 bits.
const (
	CR1_PE    = 1 << 0
	CR1_START = 1 << 8
	CR1_STOP  = 1 << 9
	CR1_ACK   = 1 << 10
)

// SR1 bits.
const (
	SR1_SB   = 1 << 0
	SR1_ADDR = 1 << 1
	SR1_BTF  = 1 << 2
	SR1_RXNE = 1 << 6
	SR1_TXE  = 1 << 7
	SR1_AF   = 1 << 10
)

// SR2 bits.
const (
	SR2_MSL  = 1 << 0
	SR2_BUSY = 1 << 1
)

// Regs names the registers of one I2C controller.
type Regs struct {
	CR1, SR1, SR2, DR regs.Register
}

// Direction is the R/W bit appended to the 7-bit address.
type Direction uint8

const (
	Write Direction = 0
	Read  Direction = 1
)

// DefaultBudget matches the retry counter used around every phase.
const DefaultBudget = poll.Budget(1000)

// Bus is a handle on one I2C controller plus the state that has to survive
// between the phases of a transaction.
type Bus struct {
	r      Regs
	budget poll.Budget

	starting bool // START requested, SB not yet seen
	lastTx   bool // last data phase was a transmit
}

// New binds a Bus to r. A zero budget selects DefaultBudget.
func New(r Regs, budget poll.Budget) *Bus {
	if budget == 0 {
		budget = DefaultBudget
	}
	return &Bus{r: r, budget: budget}
}

// Budget reports the retry budget applied by the block operations.
func (b *Bus) Budget() poll.Budget { return b.budget }

// -----------------------------------------------------------------------------
// Primitives
// -----------------------------------------------------------------------------

// Start requests a start condition (once) and succeeds when SB is observed.
// A bus still held by a previous transaction reports NotReady.
func (b *Bus) Start() error {
	if !b.starting {
		if b.r.SR2.HasBits(SR2_BUSY) {
			return errcode.NotReady
		}
		b.r.CR1.SetBits(CR1_START)
		b.starting = true
	}
	if !b.r.SR1.HasBits(SR1_SB) {
		return errcode.NotReady
	}
	b.starting = false
	return nil
}

// AddressDevice sends the 7-bit address with the direction bit.
func (b *Bus) AddressDevice(addr uint8, dir Direction) error {
	if !b.r.SR1.HasBits(SR1_SB) {
		return errcode.NotReady
	}
	b.r.DR.Set(uint32(addr)<<1 | uint32(dir))
	b.lastTx = false
	return nil
}

// PreloadAckPolicy waits for the address phase to complete, programs whether
// the next received byte is acknowledged, then clears ADDR (SR1 then SR2).
func (b *Bus) PreloadAckPolicy(ackNext bool) error {
	if !b.r.SR1.HasBits(SR1_ADDR) {
		return errcode.NotReady
	}
	b.setAck(ackNext)
	_ = b.r.SR1.Get()
	_ = b.r.SR2.Get()
	return nil
}

func (b *Bus) TxByte(v byte) error {
	if !b.r.SR1.HasBits(SR1_TXE) {
		return errcode.NotReady
	}
	b.r.DR.Set(uint32(v))
	b.lastTx = true
	return nil
}

// RxByte reads one byte and then programs the ACK policy for the byte after it.
func (b *Bus) RxByte(ackNext bool) (byte, error) {
	if !b.r.SR1.HasBits(SR1_RXNE) {
		return 0, errcode.NotReady
	}
	v := byte(b.r.DR.Get())
	b.setAck(ackNext)
	b.lastTx = false
	return v, nil
}

// Stop requests a stop condition. After a transmit it first waits for BTF so
// the final byte is not truncated.
func (b *Bus) Stop(afterTransmit bool) error {
	if afterTransmit && !b.r.SR1.HasBits(SR1_BTF) {
		return errcode.NotReady
	}
	b.r.CR1.SetBits(CR1_STOP)
	return nil
}

// LastWasTransmit reports whether the most recent data phase sent a byte.
func (b *Bus) LastWasTransmit() bool { return b.lastTx }

func (b *Bus) setAck(on bool) {
	if on {
		b.r.CR1.SetBits(CR1_ACK)
	} else {
		b.r.CR1.ClearBits(CR1_ACK)
	}
}

// -----------------------------------------------------------------------------
// Block operations
// -----------------------------------------------------------------------------

// WriteBlock writes data to the 16-bit register index reg of device addr.
func (b *Bus) WriteBlock(addr uint8, reg uint16, data []byte) error {
	hdr := [2]byte{byte(reg >> 8), byte(reg)}
	return b.write(addr, hdr[:], data)
}

// ReadBlock fills dst from the 16-bit register index reg of device addr.
// A zero-length dst does nothing.
func (b *Bus) ReadBlock(addr uint8, reg uint16, dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	if err := b.WriteBlock(addr, reg, nil); err != nil {
		return err
	}
	return b.read(addr, dst)
}

// Tx implements tinygo.org/x/drivers.I2C: w is written (if any) and
// terminated with a stop, then r is read in a fresh transaction. Only 7-bit
// addresses are supported.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return &errcode.E{C: errcode.InvalidParams, Op: "i2c.tx", Msg: "address is not 7-bit"}
	}
	if len(w) > 0 || len(r) == 0 {
		if err := b.write(uint8(addr), w, nil); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		return b.read(uint8(addr), r)
	}
	return nil
}

func (b *Bus) write(addr uint8, hdr, data []byte) error {
	if err := b.step("i2c.start", b.Start); err != nil {
		return err
	}
	if err := b.step("i2c.address", func() error { return b.AddressDevice(addr, Write) }); err != nil {
		return err
	}
	if err := b.step("i2c.preload", func() error { return b.PreloadAckPolicy(false) }); err != nil {
		return err
	}
	for _, part := range [2][]byte{hdr, data} {
		for _, v := range part {
			if err := b.step("i2c.tx", func() error { return b.TxByte(v) }); err != nil {
				return err
			}
		}
	}
	after := b.lastTx
	return b.step("i2c.stop", func() error { return b.Stop(after) })
}

func (b *Bus) read(addr uint8, dst []byte) error {
	n := len(dst)
	if err := b.step("i2c.start", b.Start); err != nil {
		return err
	}
	if err := b.step("i2c.address", func() error { return b.AddressDevice(addr, Read) }); err != nil {
		return err
	}
	ack := n > 1
	if err := b.step("i2c.preload", func() error { return b.PreloadAckPolicy(ack) }); err != nil {
		return err
	}

	i := 0
	for ; ack; i++ {
		if i+2 >= n {
			ack = false
		}
		if err := b.rx(&dst[i], ack); err != nil {
			return err
		}
	}
	if err := b.step("i2c.stop", func() error { return b.Stop(false) }); err != nil {
		return err
	}
	return b.rx(&dst[i], false)
}

func (b *Bus) rx(dst *byte, ackNext bool) error {
	return b.step("i2c.rx", func() error {
		v, err := b.RxByte(ackNext)
		if err == nil {
			*dst = v
		}
		return err
	})
}

// step runs one phase under the bus budget. On exhaustion the transaction is
// abandoned with a stop request so the next one can start.
func (b *Bus) step(name string, op func() error) error {
	err := poll.Named(name, b.budget, op)
	if err != nil {
		b.starting = false
		b.r.CR1.SetBits(CR1_STOP)
	}
	return err
}

// -----------------------------------------------------------------------------
// Device handle
// -----------------------------------------------------------------------------

// Device binds a Bus to one 7-bit target address.
type Device struct {
	bus  *Bus
	addr uint8
}

func (b *Bus) Device(addr uint8) Device { return Device{bus: b, addr: addr} }

func (d Device) Address() uint8 { return d.addr }

func (d Device) WriteBlock(reg uint16, data []byte) error {
	return d.bus.WriteBlock(d.addr, reg, data)
}

func (d Device) ReadBlock(reg uint16, dst []byte) error {
	return d.bus.ReadBlock(d.addr, reg, dst)
}
