//go:build !stm32f103

package sim

import (
	"sync"

	"rangefinder-go/periph/regs"
	"rangefinder-go/periph/spi"
)

// SPIDevice is a slave behind a chip-select line.
type SPIDevice interface {
	Select()
	Exchange(out byte) (in byte)
}

// SPI is a simulated SPI controller with a single slave on cs (active low).
type SPI struct {
	SR, DR regs.Reg

	mu       sync.Mutex
	cs       *Pin
	dev      SPIDevice
	selected bool
	shifted  int
}

func NewSPI(cs *Pin, dev SPIDevice) *SPI {
	s := &SPI{cs: cs, dev: dev}
	s.SR.Store(spi.SR_TXE)
	s.DR.OnWrite = func(_, v uint32) { s.onDRWrite(byte(v)) }
	s.DR.OnRead = func(uint32) { s.SR.Update(0, spi.SR_RXNE) }
	cs.SetIRQ(EdgeRising, func(bool) {
		s.mu.Lock()
		s.selected = false
		s.mu.Unlock()
	})
	return s
}

func (s *SPI) Regs() spi.Regs { return spi.Regs{SR: &s.SR, DR: &s.DR} }

// Shifted counts bytes clocked while the slave was selected.
func (s *SPI) Shifted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shifted
}

func (s *SPI) onDRWrite(out byte) {
	s.mu.Lock()
	in := byte(0xFF)
	if !s.cs.Get() {
		if !s.selected {
			s.selected = true
			s.dev.Select()
		}
		in = s.dev.Exchange(out)
		s.shifted++
	}
	s.mu.Unlock()
	s.DR.Store(uint32(in))
	s.SR.Update(spi.SR_RXNE|spi.SR_TXE, 0)
}

// -----------------------------------------------------------------------------
// LSM6DS3 register file
// -----------------------------------------------------------------------------

// LSM6DS3 answers the inertial sensor's SPI framing: the first byte after
// select is the register address with bit 7 set for reads, and the address
// auto-increments for every further byte.
type LSM6DS3 struct {
	mu    sync.Mutex
	regs  [128]byte
	ro    [128]bool
	addr  byte
	read  bool
	first bool
}

// NewLSM6DS3 returns a device reporting the part's WHO_AM_I value.
func NewLSM6DS3() *LSM6DS3 {
	d := &LSM6DS3{}
	d.regs[0x0F] = 0x69
	return d
}

func (d *LSM6DS3) Select() {
	d.mu.Lock()
	d.first = true
	d.mu.Unlock()
}

func (d *LSM6DS3) Exchange(out byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.first {
		d.first = false
		d.read = out&0x80 != 0
		d.addr = out & 0x7F
		return 0
	}
	a := d.addr
	d.addr = (d.addr + 1) & 0x7F
	if d.read {
		if a == 0x2D {
			d.regs[0x1E] &^= 0x01 // sample consumed
		}
		return d.regs[a]
	}
	if !d.ro[a] {
		d.regs[a] = out
	}
	return 0
}

// ReadOnly makes SPI writes to reg ignored, like a part stuck in reset.
func (d *LSM6DS3) ReadOnly(reg byte) {
	d.mu.Lock()
	d.ro[reg&0x7F] = true
	d.mu.Unlock()
}

// Poke sets register values directly.
func (d *LSM6DS3) Poke(reg byte, v ...byte) {
	d.mu.Lock()
	for i, b := range v {
		d.regs[(int(reg)+i)&0x7F] = b
	}
	d.mu.Unlock()
}

func (d *LSM6DS3) Peek(reg byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[reg&0x7F]
}

// SetAccelZ loads a Z-axis sample and raises the accelerometer data-ready bit.
func (d *LSM6DS3) SetAccelZ(raw int16) {
	d.mu.Lock()
	d.regs[0x2C] = byte(uint16(raw))
	d.regs[0x2D] = byte(uint16(raw) >> 8)
	d.regs[0x1E] |= 0x01
	d.mu.Unlock()
}
