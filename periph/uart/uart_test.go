package uart_test

import (
	"bytes"
	"errors"
	"testing"

	"rangefinder-go/errcode"
	"rangefinder-go/periph/poll"
	"rangefinder-go/periph/regs"
	"rangefinder-go/periph/sim"
	"rangefinder-go/periph/uart"
)

func TestWriteSeries_ReachesPeer(t *testing.T) {
	hw := sim.NewUSART()
	p := uart.New(hw.Regs())

	n, err := p.WriteSeries([]byte("AT\r\n"), poll.Times(10))
	if err != nil || n != 4 {
		t.Fatalf("WriteSeries=%d,%v", n, err)
	}

	var peer bytes.Buffer
	if got := hw.Forward(&peer); got != 4 {
		t.Fatalf("forwarded %d", got)
	}
	if peer.String() != "AT\r\n" {
		t.Fatalf("peer got %q", peer.String())
	}
	if got := hw.Forward(&peer); got != 0 {
		t.Fatalf("second forward delivered %d", got)
	}
}

func TestReadSeries(t *testing.T) {
	hw := sim.NewUSART()
	p := uart.New(hw.Regs())

	if _, err := p.RxByte(); err != errcode.NotReady {
		t.Fatalf("RxByte on idle line=%v", err)
	}
	hw.Inject('O', 'K')
	got := make([]byte, 3)
	n, err := p.ReadSeries(got, poll.Times(5))
	if n != 2 || !errors.Is(err, errcode.RetryExhausted) {
		t.Fatalf("ReadSeries=%d,%v", n, err)
	}
	if !bytes.Equal(got[:2], []byte("OK")) {
		t.Fatalf("got %q", got[:2])
	}
}

func TestArmDisarm(t *testing.T) {
	hw := sim.NewUSART()
	p := uart.New(hw.Regs())

	if hw.Pending() {
		t.Fatal("pending before arming")
	}
	p.ArmTx()
	if !p.TxArmed() || !hw.Pending() {
		t.Fatal("TXE interrupt should be pending once armed")
	}
	p.DisarmTx()
	p.ArmRx()
	if hw.Pending() {
		t.Fatal("RXNE pending with nothing received")
	}
	hw.Inject(0x55)
	if !p.RxArmed() || !p.RxReady() || !hw.Pending() {
		t.Fatal("RXNE should be pending")
	}
	p.Discard()
	if p.RxReady() {
		t.Fatal("Discard should drop the received byte")
	}
	p.DisarmRx()
}

func TestTxByte_NotReady(t *testing.T) {
	var sr, dr, cr1 regs.Reg
	p := uart.New(uart.Regs{SR: &sr, DR: &dr, CR1: &cr1})
	if err := p.TxByte('x'); err != errcode.NotReady {
		t.Fatalf("TxByte=%v", err)
	}
	sr.Store(uart.SR_TXE)
	if err := p.TxByte('x'); err != nil || dr.Load() != 'x' {
		t.Fatalf("TxByte=%v dr=%#x", err, dr.Load())
	}
}
