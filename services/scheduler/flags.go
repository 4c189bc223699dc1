package scheduler

import (
	"context"
	"sync/atomic"
	"time"
)

// Task identifies one producer sharing the serial line.
type Task uint8

const (
	Serial Task = iota
	Inertial
	Range
	numTasks
)

func (t Task) String() string {
	switch t {
	case Serial:
		return "serial"
	case Inertial:
		return "inertial"
	case Range:
		return "range"
	}
	return "task?"
}

// Flag word layout: wait bits in the low byte, busy bits in the next byte,
// and the gesture bit above them.
const (
	busyShift  = 8
	gestureBit = 1 << 16
)

func waitBit(t Task) uint32 { return 1 << t }
func busyBit(t Task) uint32 { return 1 << (busyShift + t) }

const anyBusy = ((1 << numTasks) - 1) << busyShift

// Flags is the shared scheduler state. Every method is a single atomic
// read-modify-write, so interrupt handlers and the main loop can use it
// without further locking.
type Flags struct {
	w       atomic.Uint32
	changed chan struct{}
}

func NewFlags() *Flags {
	return &Flags{changed: make(chan struct{}, 1)}
}

// update applies f until the CAS lands and reports the old and new words.
func (f *Flags) update(fn func(uint32) uint32) (old, nw uint32) {
	for {
		old = f.w.Load()
		nw = fn(old)
		if old == nw || f.w.CompareAndSwap(old, nw) {
			break
		}
	}
	if old != nw {
		select {
		case f.changed <- struct{}{}:
		default:
		}
	}
	return old, nw
}

func (f *Flags) set(bits uint32)   { f.update(func(w uint32) uint32 { return w | bits }) }
func (f *Flags) clear(bits uint32) { f.update(func(w uint32) uint32 { return w &^ bits }) }
func (f *Flags) has(bits uint32) bool {
	return f.w.Load()&bits != 0
}

// Word returns the raw flag word.
func (f *Flags) Word() uint32 { return f.w.Load() }

func (f *Flags) SetWait(t Task)       { f.set(waitBit(t)) }
func (f *Flags) ClearWait(t Task)     { f.clear(waitBit(t)) }
func (f *Flags) Waiting(t Task) bool  { return f.has(waitBit(t)) }
func (f *Flags) SetBusy(t Task)       { f.set(busyBit(t)) }
func (f *Flags) ClearBusy(t Task)     { f.clear(busyBit(t)) }
func (f *Flags) Busy(t Task) bool     { return f.has(busyBit(t)) }
func (f *Flags) AnyBusy() bool        { return f.has(anyBusy) }
func (f *Flags) SetGesture()          { f.set(gestureBit) }
func (f *Flags) GesturePending() bool { return f.has(gestureBit) }

// ConsumeGesture clears the gesture bit and reports whether it was set.
func (f *Flags) ConsumeGesture() bool {
	old, _ := f.update(func(w uint32) uint32 { return w &^ gestureBit })
	return old&gestureBit != 0
}

// MarkDue sets t's wait bit unless t is busy, in one step.
func (f *Flags) MarkDue(t Task) bool {
	_, w := f.update(func(w uint32) uint32 {
		if w&busyBit(t) != 0 {
			return w
		}
		return w | waitBit(t)
	})
	return w&waitBit(t) != 0 && w&busyBit(t) == 0
}

// Claim moves t from waiting to busy. It fails if t was not waiting.
func (f *Flags) Claim(t Task) bool {
	old, _ := f.update(func(w uint32) uint32 {
		if w&waitBit(t) == 0 {
			return w
		}
		return (w &^ waitBit(t)) | busyBit(t)
	})
	return old&waitBit(t) != 0
}

// Acquire sets t busy if it was not, reporting success.
func (f *Flags) Acquire(t Task) bool {
	old, _ := f.update(func(w uint32) uint32 { return w | busyBit(t) })
	return old&busyBit(t) == 0
}

// WaitNotBusy blocks until t is not busy or ctx is done.
func (f *Flags) WaitNotBusy(ctx context.Context, t Task) error {
	return f.acquireOrWait(ctx, t, false)
}

// AcquireWait blocks until t can be set busy by this caller.
func (f *Flags) AcquireWait(ctx context.Context, t Task) error {
	return f.acquireOrWait(ctx, t, true)
}

func (f *Flags) acquireOrWait(ctx context.Context, t Task, acquire bool) error {
	var tick *time.Ticker
	for {
		if acquire {
			if f.Acquire(t) {
				break
			}
		} else if !f.Busy(t) {
			break
		}
		if tick == nil {
			// Several waiters share one notify slot; the tick covers the rest.
			tick = time.NewTicker(time.Millisecond)
			defer tick.Stop()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.changed:
		case <-tick.C:
		}
	}
	return nil
}
