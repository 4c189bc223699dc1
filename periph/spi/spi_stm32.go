//go:build stm32f103

package spi

import "device/stm32"

func SPI1() Regs {
	p := stm32.SPI1
	return Regs{SR: &p.SR, DR: &p.DR}
}
