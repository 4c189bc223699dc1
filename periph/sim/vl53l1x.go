//go:build !stm32f103

package sim

// VL53L1X is a register-level stand-in for the ranging sensor. It boots
// immediately, latches a result when ranging starts or SetDistance is called
// while ranging, and reports it on GPIO1 with active-high polarity. Clearing
// the interrupt drops the result until the next latch.
type VL53L1X struct {
	*Memory16
	distance uint16
}

const (
	vlTIOStatus  = 0x0031
	vlIntClear   = 0x0086
	vlModeStart  = 0x0087
	vlDistance   = 0x0096
	vlBootState  = 0x00E5
	vlGPIOMuxCtl = 0x0030
)

func NewVL53L1X() *VL53L1X {
	v := &VL53L1X{Memory16: NewMemory16()}
	v.Poke(vlBootState, 0x01)
	v.Poke(vlGPIOMuxCtl, 0x00) // bit 4 clear: active high
	v.OnWrite = v.onWrite
	return v
}

func (v *VL53L1X) onWrite(reg uint16, b byte) {
	switch reg {
	case vlModeStart:
		if b == 0x40 {
			v.latch()
		} else {
			v.Poke(vlTIOStatus, 0x00)
		}
	case vlIntClear:
		v.Poke(vlTIOStatus, 0x00)
	}
}

// SetDistance sets the next result and, if ranging, latches it.
func (v *VL53L1X) SetDistance(mm uint16) {
	v.mu.Lock()
	v.distance = mm
	v.mu.Unlock()
	if v.Peek(vlModeStart, 1)[0] == 0x40 {
		v.latch()
	}
}

func (v *VL53L1X) latch() {
	v.mu.Lock()
	mm := v.distance
	v.mu.Unlock()
	v.Poke(vlDistance, byte(mm>>8), byte(mm))
	v.Poke(vlTIOStatus, 0x01)
}

// Ready reports whether a result is latched and not yet cleared.
func (v *VL53L1X) Ready() bool { return v.Peek(vlTIOStatus, 1)[0]&1 == 1 }
