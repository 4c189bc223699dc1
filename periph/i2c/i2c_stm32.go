//go:build stm32f103

package i2c

import "device/stm32"

// I2C1 returns the register set of the first I2C controller. Clocks, pins
// and timing must already be configured by the board setup.
func I2C1() Regs {
	p := stm32.I2C1
	return Regs{CR1: &p.CR1, SR1: &p.SR1, SR2: &p.SR2, DR: &p.DR}
}
