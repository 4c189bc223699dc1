// Package regs abstracts 32-bit memory-mapped peripheral registers so the
// bus engines run against TinyGo's volatile registers on the MCU and against
// simulated registers on the host.
package regs

import "sync"

// Register is the subset of runtime/volatile.Register32 the engines use.
type Register interface {
	Get() uint32
	Set(v uint32)
	SetBits(bits uint32)
	ClearBits(bits uint32)
	HasBits(bits uint32) bool
}

// Reg is a host-side register. Hooks observe engine traffic and run without
// the register lock held, so they may touch other registers (or this one via
// Load/Store, which bypass the hooks).
type Reg struct {
	mu sync.Mutex
	v  uint32

	// OnRead is called after Get/HasBits with the value the caller saw.
	OnRead func(v uint32)
	// OnWrite is called after Set/SetBits/ClearBits.
	OnWrite func(old, new uint32)
}

func (r *Reg) Get() uint32 {
	r.mu.Lock()
	v := r.v
	r.mu.Unlock()
	if r.OnRead != nil {
		r.OnRead(v)
	}
	return v
}

func (r *Reg) HasBits(bits uint32) bool { return r.Get()&bits != 0 }

func (r *Reg) Set(v uint32) { r.modify(func(uint32) uint32 { return v }) }

func (r *Reg) SetBits(bits uint32) { r.modify(func(o uint32) uint32 { return o | bits }) }

func (r *Reg) ClearBits(bits uint32) { r.modify(func(o uint32) uint32 { return o &^ bits }) }

func (r *Reg) modify(f func(uint32) uint32) {
	r.mu.Lock()
	old := r.v
	r.v = f(old)
	nv := r.v
	r.mu.Unlock()
	if r.OnWrite != nil {
		r.OnWrite(old, nv)
	}
}

// Load reads without invoking hooks.
func (r *Reg) Load() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.v
}

// Store writes without invoking hooks.
func (r *Reg) Store(v uint32) {
	r.mu.Lock()
	r.v = v
	r.mu.Unlock()
}

// Update applies a read-modify-write without invoking hooks.
func (r *Reg) Update(set, clear uint32) {
	r.mu.Lock()
	r.v = (r.v &^ clear) | set
	r.mu.Unlock()
}

// Bit reports whether any of bits is set, without invoking hooks.
func (r *Reg) Bit(bits uint32) bool { return r.Load()&bits != 0 }
