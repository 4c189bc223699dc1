//go:build stm32f103

package uart

import "device/stm32"

func USART1() Regs {
	p := stm32.USART1
	return Regs{SR: &p.SR, DR: &p.DR, CR1: &p.CR1}
}
