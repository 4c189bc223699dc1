//go:build !stm32f103

// Package sim models the STM32F1 I2C, SPI and USART units closely enough to
// run the bus engines, the serial transport and the sensor drivers on a host.
package sim

import (
	"sync"

	"rangefinder-go/periph/i2c"
	"rangefinder-go/periph/regs"
)

// Target is an I2C slave attached to the simulated bus.
type Target interface {
	Start(read bool)
	WriteByte(b byte)
	ReadByte() byte
	Stop()
}

type EventKind uint8

const (
	EvStart EventKind = iota
	EvAddress
	EvNack
	EvAck // ACK policy changed; Event.Ack holds the new value
	EvTx
	EvRx // data register read; Event.Ack is the policy in force at the read
	EvStop
)

func (k EventKind) String() string {
	switch k {
	case EvStart:
		return "start"
	case EvAddress:
		return "address"
	case EvNack:
		return "nack"
	case EvAck:
		return "ack"
	case EvTx:
		return "tx"
	case EvRx:
		return "rx"
	case EvStop:
		return "stop"
	}
	return "?"
}

// Event is one entry of the bus trace.
type Event struct {
	Kind EventKind
	Addr uint8
	Read bool
	Byte byte
	Ack  bool
}

// I2C is a simulated I2C controller.
type I2C struct {
	CR1, SR1, SR2, DR regs.Reg

	// StartDelay is the number of SR1 polls before SB appears after START.
	StartDelay int

	mu       sync.Mutex
	targets  map[uint8]Target
	cur      Target
	reading  bool
	stopReq  bool
	sbPend   int
	startReq bool
	events   []Event
}

func NewI2C() *I2C {
	s := &I2C{targets: make(map[uint8]Target)}
	s.CR1.OnWrite = s.onCR1
	s.SR1.OnRead = s.onSR1Read
	s.SR2.OnRead = s.onSR2Read
	s.DR.OnWrite = func(_, v uint32) { s.onDRWrite(byte(v)) }
	s.DR.OnRead = func(v uint32) { s.onDRRead(byte(v)) }
	return s
}

// Regs exposes the controller to the engine.
func (s *I2C) Regs() i2c.Regs {
	return i2c.Regs{CR1: &s.CR1, SR1: &s.SR1, SR2: &s.SR2, DR: &s.DR}
}

// Attach places t at 7-bit address addr.
func (s *I2C) Attach(addr uint8, t Target) {
	s.mu.Lock()
	s.targets[addr] = t
	s.mu.Unlock()
}

// Detach removes whatever answers at addr.
func (s *I2C) Detach(addr uint8) {
	s.mu.Lock()
	delete(s.targets, addr)
	s.mu.Unlock()
}

// Events returns a copy of the trace.
func (s *I2C) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *I2C) ResetEvents() {
	s.mu.Lock()
	s.events = s.events[:0]
	s.mu.Unlock()
}

func (s *I2C) emit(e Event) { s.events = append(s.events, e) }

func (s *I2C) onCR1(old, new uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if (old^new)&i2c.CR1_ACK != 0 {
		s.emit(Event{Kind: EvAck, Ack: new&i2c.CR1_ACK != 0})
	}
	if new&i2c.CR1_START != 0 && !s.startReq {
		s.startReq = true
		s.CR1.Update(0, i2c.CR1_START)
		if s.cur != nil {
			s.cur.Stop()
			s.cur = nil
		}
		s.SR2.Update(i2c.SR2_BUSY|i2c.SR2_MSL, 0)
		s.emit(Event{Kind: EvStart})
		if s.StartDelay > 0 {
			s.sbPend = s.StartDelay
		} else {
			s.SR1.Update(i2c.SR1_SB, 0)
			s.startReq = false
		}
	}
	if new&i2c.CR1_STOP != 0 {
		s.CR1.Update(0, i2c.CR1_STOP)
		s.emit(Event{Kind: EvStop})
		if s.reading && s.SR1.Bit(i2c.SR1_RXNE) {
			s.stopReq = true
			return
		}
		s.release()
	}
}

func (s *I2C) onSR1Read(uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sbPend > 0 {
		s.sbPend--
		if s.sbPend == 0 {
			s.SR1.Update(i2c.SR1_SB, 0)
			s.startReq = false
		}
	}
}

func (s *I2C) onSR2Read(uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.SR1.Bit(i2c.SR1_ADDR) || s.cur == nil {
		return
	}
	s.SR1.Update(0, i2c.SR1_ADDR)
	if s.reading {
		s.DR.Store(uint32(s.cur.ReadByte()))
		s.SR1.Update(i2c.SR1_RXNE, 0)
	} else {
		s.SR1.Update(i2c.SR1_TXE, 0)
	}
}

func (s *I2C) onDRWrite(v byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SR1.Bit(i2c.SR1_SB) {
		s.SR1.Update(0, i2c.SR1_SB)
		addr, read := v>>1, v&1 == 1
		s.emit(Event{Kind: EvAddress, Addr: addr, Read: read})
		t, ok := s.targets[addr]
		if !ok {
			s.SR1.Update(i2c.SR1_AF, 0)
			s.emit(Event{Kind: EvNack, Addr: addr})
			return
		}
		s.cur, s.reading, s.stopReq = t, read, false
		t.Start(read)
		s.SR1.Update(i2c.SR1_ADDR, 0)
		return
	}
	if s.cur != nil && !s.reading && s.SR1.Bit(i2c.SR1_TXE) {
		s.cur.WriteByte(v)
		s.emit(Event{Kind: EvTx, Byte: v})
		s.SR1.Update(i2c.SR1_TXE|i2c.SR1_BTF, 0)
	}
}

func (s *I2C) onDRRead(v byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil || !s.reading || !s.SR1.Bit(i2c.SR1_RXNE) {
		return
	}
	s.emit(Event{Kind: EvRx, Byte: v, Ack: s.CR1.Bit(i2c.CR1_ACK)})
	if s.stopReq {
		s.release()
		return
	}
	s.DR.Store(uint32(s.cur.ReadByte()))
}

// release ends the transaction and frees the bus. Caller holds mu.
func (s *I2C) release() {
	if s.cur != nil {
		s.cur.Stop()
	}
	s.cur, s.reading, s.stopReq = nil, false, false
	s.sbPend, s.startReq = 0, false
	s.SR1.Update(0, i2c.SR1_SB|i2c.SR1_ADDR|i2c.SR1_BTF|i2c.SR1_TXE|i2c.SR1_RXNE|i2c.SR1_AF)
	s.SR2.Update(0, i2c.SR2_BUSY|i2c.SR2_MSL)
}

// -----------------------------------------------------------------------------
// Memory16: a register file indexed by a 16-bit big-endian pointer
// -----------------------------------------------------------------------------

// Memory16 answers like most 16-bit indexed sensors: the first two bytes of
// a write set the pointer, further bytes store and auto-increment, and reads
// return bytes from the pointer onwards.
type Memory16 struct {
	mu     sync.Mutex
	mem    map[uint16]byte
	ptr    uint16
	nWrite int

	// OnWrite, if set, observes each stored byte (called with mu released).
	OnWrite func(reg uint16, v byte)
}

func NewMemory16() *Memory16 { return &Memory16{mem: make(map[uint16]byte)} }

func (m *Memory16) Start(read bool) {
	m.mu.Lock()
	if !read {
		m.nWrite = 0
	}
	m.mu.Unlock()
}

func (m *Memory16) WriteByte(b byte) {
	m.mu.Lock()
	var (
		hook func(uint16, byte)
		reg  uint16
	)
	switch m.nWrite {
	case 0:
		m.ptr = uint16(b) << 8
	case 1:
		m.ptr |= uint16(b)
	default:
		reg = m.ptr
		m.mem[reg] = b
		m.ptr++
		hook = m.OnWrite
	}
	m.nWrite++
	m.mu.Unlock()
	if hook != nil {
		hook(reg, b)
	}
}

func (m *Memory16) ReadByte() byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.mem[m.ptr]
	m.ptr++
	return b
}

func (m *Memory16) Stop() {}

// Poke stores bytes starting at reg without bus traffic.
func (m *Memory16) Poke(reg uint16, b ...byte) {
	m.mu.Lock()
	for i, v := range b {
		m.mem[reg+uint16(i)] = v
	}
	m.mu.Unlock()
}

// Peek returns n bytes starting at reg.
func (m *Memory16) Peek(reg uint16, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = m.mem[reg+uint16(i)]
	}
	return out
}
