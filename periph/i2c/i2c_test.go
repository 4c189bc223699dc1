package i2c_test

import (
	"bytes"
	"errors"
	"testing"

	"rangefinder-go/errcode"
	"rangefinder-go/periph/i2c"
	"rangefinder-go/periph/sim"
)

const addr = 0x29

func newBus(t *testing.T) (*sim.I2C, *sim.Memory16, *i2c.Bus) {
	t.Helper()
	hw := sim.NewI2C()
	mem := sim.NewMemory16()
	hw.Attach(addr, mem)
	return hw, mem, i2c.New(hw.Regs(), 0)
}

func kinds(ev []sim.Event) []sim.EventKind {
	out := make([]sim.EventKind, len(ev))
	for i, e := range ev {
		out[i] = e.Kind
	}
	return out
}

func TestWriteBlock_Sequence(t *testing.T) {
	hw, mem, bus := newBus(t)

	if err := bus.WriteBlock(addr, 0x0087, []byte{0x40, 0x41}); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if got := mem.Peek(0x0087, 2); !bytes.Equal(got, []byte{0x40, 0x41}) {
		t.Fatalf("memory=%x", got)
	}

	want := []sim.EventKind{sim.EvStart, sim.EvAddress, sim.EvTx, sim.EvTx, sim.EvTx, sim.EvTx, sim.EvStop}
	ev := hw.Events()
	if k := kinds(ev); len(k) != len(want) {
		t.Fatalf("events=%v", k)
	}
	for i, w := range want {
		if ev[i].Kind != w {
			t.Fatalf("event %d=%v want %v (all %v)", i, ev[i].Kind, w, kinds(ev))
		}
	}
	if ev[1].Read || ev[1].Addr != addr {
		t.Fatalf("address phase=%+v", ev[1])
	}
	// Register index goes out big-endian ahead of the payload.
	if ev[2].Byte != 0x00 || ev[3].Byte != 0x87 {
		t.Fatalf("register index bytes=%#x %#x", ev[2].Byte, ev[3].Byte)
	}
	if !bus.LastWasTransmit() {
		t.Fatal("LastWasTransmit should be true after a write")
	}
}

// Checks the receive ordering: ACK for bytes 0..N-3, ACK cleared while
// reading byte N-2, STOP before the final data register read.
func TestReadBlock_AckAndStopOrdering(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 91} {
		hw, mem, bus := newBus(t)
		src := make([]byte, n)
		for i := range src {
			src[i] = byte(0xA0 + i)
		}
		mem.Poke(0x0100, src...)

		dst := make([]byte, n)
		if err := bus.ReadBlock(addr, 0x0100, dst); err != nil {
			t.Fatalf("n=%d: ReadBlock: %v", n, err)
		}
		if !bytes.Equal(dst, src) {
			t.Fatalf("n=%d: got %x want %x", n, dst, src)
		}

		// Skip the register-select write; inspect the read transaction.
		ev := hw.Events()
		start := -1
		for i, e := range ev {
			if e.Kind == sim.EvAddress && e.Read {
				start = i
			}
		}
		if start < 0 {
			t.Fatalf("n=%d: no read address phase in %v", n, kinds(ev))
		}
		ev = ev[start:]

		var rx []sim.Event
		rxIdx := []int{}
		stopIdx, nackIdx := -1, -1
		for i, e := range ev {
			switch e.Kind {
			case sim.EvRx:
				rx = append(rx, e)
				rxIdx = append(rxIdx, i)
			case sim.EvStop:
				stopIdx = i
			case sim.EvAck:
				if !e.Ack {
					nackIdx = i
				}
			}
		}
		if len(rx) != n {
			t.Fatalf("n=%d: %d data reads", n, len(rx))
		}
		last := rxIdx[n-1]
		if stopIdx < 0 || stopIdx > last {
			t.Fatalf("n=%d: stop at %d, last read at %d", n, stopIdx, last)
		}
		if n > 1 && stopIdx < rxIdx[n-2] {
			t.Fatalf("n=%d: stop issued before byte N-2 was read", n)
		}
		for i := 0; i < n-1; i++ {
			if !rx[i].Ack {
				t.Fatalf("n=%d: byte %d read with ACK off", n, i)
			}
		}
		if rx[n-1].Ack {
			t.Fatalf("n=%d: last byte read with ACK on", n)
		}
		if n > 1 {
			// ACK is dropped right after byte N-2 is taken.
			if nackIdx != rxIdx[n-2]+1 {
				t.Fatalf("n=%d: ACK cleared at %d, byte N-2 read at %d", n, nackIdx, rxIdx[n-2])
			}
		}
	}
}

func TestReadBlock_ZeroLengthNoTraffic(t *testing.T) {
	hw, _, bus := newBus(t)
	if err := bus.ReadBlock(addr, 0x10, nil); err != nil {
		t.Fatal(err)
	}
	if len(hw.Events()) != 0 {
		t.Fatalf("unexpected traffic: %v", kinds(hw.Events()))
	}
}

func TestAbsentDevice_RetryExhausted(t *testing.T) {
	hw := sim.NewI2C()
	bus := i2c.New(hw.Regs(), 5)

	err := bus.WriteBlock(0x50, 0x0000, []byte{1})
	if !errors.Is(err, errcode.RetryExhausted) {
		t.Fatalf("want RetryExhausted, got %v", err)
	}
	ev := hw.Events()
	if ev[len(ev)-1].Kind != sim.EvStop {
		t.Fatalf("abandoned transaction not stopped: %v", kinds(ev))
	}

	// The bus is usable again once something answers.
	mem := sim.NewMemory16()
	hw.Attach(0x50, mem)
	if err := bus.WriteBlock(0x50, 0x0000, []byte{7}); err != nil {
		t.Fatalf("after attach: %v", err)
	}
	if mem.Peek(0, 1)[0] != 7 {
		t.Fatal("write lost")
	}
}

func TestStart_RetriesUntilSB(t *testing.T) {
	hw, mem, bus := newBus(t)
	hw.StartDelay = 4
	if err := bus.WriteBlock(addr, 0x0001, []byte{9}); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if mem.Peek(1, 1)[0] != 9 {
		t.Fatal("write lost")
	}

	// With a budget smaller than the delay the start phase gives up.
	hw2 := sim.NewI2C()
	hw2.Attach(addr, sim.NewMemory16())
	hw2.StartDelay = 10
	short := i2c.New(hw2.Regs(), 2)
	err := short.WriteBlock(addr, 0, nil)
	var e *errcode.E
	if !errors.As(err, &e) || e.C != errcode.RetryExhausted || e.Op != "i2c.start" {
		t.Fatalf("err=%v", err)
	}
}

func TestPrimitives_NotReady(t *testing.T) {
	hw := sim.NewI2C()
	bus := i2c.New(hw.Regs(), 0)

	if err := bus.AddressDevice(addr, i2c.Write); err != errcode.NotReady {
		t.Fatalf("AddressDevice without start: %v", err)
	}
	if err := bus.PreloadAckPolicy(true); err != errcode.NotReady {
		t.Fatalf("Preload without address: %v", err)
	}
	if err := bus.TxByte(1); err != errcode.NotReady {
		t.Fatalf("TxByte: %v", err)
	}
	if _, err := bus.RxByte(false); err != errcode.NotReady {
		t.Fatalf("RxByte: %v", err)
	}
	if err := bus.Stop(true); err != errcode.NotReady {
		t.Fatalf("Stop after tx without BTF: %v", err)
	}
	if err := bus.Stop(false); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestTx_DriversInterface(t *testing.T) {
	_, mem, bus := newBus(t)
	mem.Poke(0x00E5, 0x03)

	if err := bus.Tx(addr, []byte{0x00, 0x87, 0x40}, nil); err != nil {
		t.Fatal(err)
	}
	if mem.Peek(0x0087, 1)[0] != 0x40 {
		t.Fatal("write via Tx lost")
	}

	r := make([]byte, 1)
	if err := bus.Tx(addr, []byte{0x00, 0xE5}, r); err != nil {
		t.Fatal(err)
	}
	if r[0] != 0x03 {
		t.Fatalf("read via Tx=%#x", r[0])
	}
}

func TestTx_RejectsWideAddress(t *testing.T) {
	hw, _, bus := newBus(t)
	// 0x129 would truncate to the attached 0x29.
	for _, a := range []uint16{0x80, 0x129, 0x3FF} {
		err := bus.Tx(a, []byte{0x00, 0xE5}, make([]byte, 1))
		if !errors.Is(err, errcode.InvalidParams) {
			t.Fatalf("Tx(%#x) err=%v", a, err)
		}
		var e *errcode.E
		if !errors.As(err, &e) || e.Op != "i2c.tx" {
			t.Fatalf("Tx(%#x) err=%#v", a, err)
		}
	}
	if ev := hw.Events(); len(ev) != 0 {
		t.Fatalf("bus traffic on rejected address: %v", kinds(ev))
	}
	if err := bus.Tx(0x7F, nil, nil); errcode.Of(err) == errcode.InvalidParams {
		t.Fatalf("0x7F rejected: %v", err)
	}
}

func TestDeviceHandle(t *testing.T) {
	_, mem, bus := newBus(t)
	dev := bus.Device(addr)
	if dev.Address() != addr {
		t.Fatal("address")
	}
	if err := dev.WriteBlock(0x0200, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 3)
	if err := dev.ReadBlock(0x0200, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) || !bytes.Equal(mem.Peek(0x0200, 3), got) {
		t.Fatalf("got %x", got)
	}
}
