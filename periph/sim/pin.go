//go:build !stm32f103

package sim

import "sync"

// Edge selects which level transitions fire a pin callback.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// Pin is a host GPIO line. It doubles as a push button (drive it with
// Press/Release) and as a chip-select output.
type Pin struct {
	mu      sync.RWMutex
	level   bool
	irqEdge Edge
	irqFunc func(level bool)
}

// NewPin returns a pin at the given idle level.
func NewPin(level bool) *Pin { return &Pin{level: level} }

func (p *Pin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	want := irqWanted(p.irqEdge, edgeFrom(old, level))
	irq := p.irqFunc
	p.mu.Unlock()
	if want && irq != nil {
		irq(level)
	}
}

func (p *Pin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *Pin) High() { p.Set(true) }
func (p *Pin) Low()  { p.Set(false) }

// Press and Release model an active-low button with a pull-up.
func (p *Pin) Press()   { p.Set(false) }
func (p *Pin) Release() { p.Set(true) }

// SetIRQ installs an edge callback, replacing any previous one.
func (p *Pin) SetIRQ(edge Edge, handler func(level bool)) {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
}

func edgeFrom(old, new bool) Edge {
	switch {
	case !old && new:
		return EdgeRising
	case old && !new:
		return EdgeFalling
	default:
		return EdgeNone
	}
}

func irqWanted(cfg, seen Edge) bool {
	if seen == EdgeNone {
		return false
	}
	if cfg == EdgeBoth {
		return true
	}
	return cfg == seen
}
