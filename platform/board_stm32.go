//go:build stm32f103

package platform

import (
	"device/stm32"
	"machine"
	"runtime/interrupt"

	"rangefinder-go/periph/i2c"
	"rangefinder-go/periph/spi"
	"rangefinder-go/periph/uart"
	"rangefinder-go/services/config"
)

// Blue Pill wiring.
const (
	pinSCL    = machine.PB6
	pinSDA    = machine.PB7
	pinSCK    = machine.PA5
	pinMISO   = machine.PA6
	pinMOSI   = machine.PA7
	pinCS     = machine.PA4
	pinTX     = machine.PA9
	pinRX     = machine.PA10
	pinButton = machine.PB15
	pinLED    = machine.PC13
)

// RCC enable bits.
const (
	apb2AFIO   = 1 << 0
	apb2IOPA   = 1 << 2
	apb2IOPB   = 1 << 3
	apb2IOPC   = 1 << 4
	apb2SPI1   = 1 << 12
	apb2USART1 = 1 << 14
	apb1I2C1   = 1 << 21
)

// NewBluepill clocks and configures I2C1 (100 kHz), SPI1 (mode 3, PCLK/8)
// and USART1 (9600 8N1) and returns the board. Clock tree: 72 MHz SYSCLK,
// APB1 36 MHz, APB2 72 MHz.
func NewBluepill(c config.Config) *Board {
	stm32.RCC.APB2ENR.SetBits(apb2AFIO | apb2IOPA | apb2IOPB | apb2IOPC | apb2SPI1 | apb2USART1)
	stm32.RCC.APB1ENR.SetBits(apb1I2C1)

	altOD := machine.PinConfig{Mode: machine.PinOutput50MHz + machine.PinOutputModeAltOpenDrain}
	altPP := machine.PinConfig{Mode: machine.PinOutput50MHz + machine.PinOutputModeAltPushPull}
	pinSCL.Configure(altOD)
	pinSDA.Configure(altOD)
	pinSCK.Configure(altPP)
	pinMOSI.Configure(altPP)
	pinMISO.Configure(machine.PinConfig{Mode: machine.PinInputModeFloating})
	pinTX.Configure(altPP)
	pinRX.Configure(machine.PinConfig{Mode: machine.PinInputModeFloating})
	pinCS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinCS.High()
	pinLED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinButton.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	// I2C1: FREQ=36 MHz, standard mode CCR=180, TRISE=37.
	i2c1 := stm32.I2C1
	i2c1.CR1.Set(0)
	i2c1.CR2.Set(36)
	i2c1.CCR.Set(180)
	i2c1.TRISE.Set(37)
	i2c1.CR1.Set(i2c.CR1_PE)

	// SPI1: master, BR=PCLK/8, CPOL=1, CPHA=1, software NSS.
	const (
		cpha = 1 << 0
		cpol = 1 << 1
		mstr = 1 << 2
		br8  = 2 << 3
		spe  = 1 << 6
		ssi  = 1 << 8
		ssm  = 1 << 9
	)
	stm32.SPI1.CR1.Set(cpha | cpol | mstr | br8 | ssi | ssm)
	stm32.SPI1.CR1.SetBits(spe)

	// USART1: 72 MHz / 9600 = 7500.
	stm32.USART1.BRR.Set(7500)
	stm32.USART1.CR1.Set(uart.CR1_UE | uart.CR1_TE | uart.CR1_RE)

	return &Board{
		Name:    "bluepill",
		UART:    uart.New(uart.USART1()),
		I2C:     i2c.New(i2c.I2C1(), c.I2CRetry()),
		SPI:     spi.New(spi.SPI1(), c.SPIRetry()),
		AccelCS: pinCS,
		Button:  pinButton,
		LED:     pinLED,
	}
}

var serialHandler func()

// InstallSerialIRQ routes the USART1 interrupt to handler and enables it.
func InstallSerialIRQ(handler func()) {
	serialHandler = handler
	irq := interrupt.New(stm32.IRQ_USART1, func(interrupt.Interrupt) {
		if serialHandler != nil {
			serialHandler()
		}
	})
	irq.SetPriority(0xc0)
	irq.Enable()
}
