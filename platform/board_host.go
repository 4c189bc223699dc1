//go:build !stm32f103

package platform

import (
	"context"

	"rangefinder-go/drivers/vl53l1x"
	"rangefinder-go/periph/i2c"
	"rangefinder-go/periph/sim"
	"rangefinder-go/periph/spi"
	"rangefinder-go/periph/uart"
	"rangefinder-go/services/config"
)

// Sim is the simulated hardware behind a host Board.
type Sim struct {
	USART *sim.USART
	I2C   *sim.I2C
	SPI   *sim.SPI

	Ranger *sim.VL53L1X
	Accel  *sim.LSM6DS3

	Button  *sim.Pin
	AccelCS *sim.Pin
	LED     *sim.Pin
}

// NewHost builds a Board on the simulator with both sensors attached.
func NewHost(c config.Config) (*Board, *Sim) {
	s := &Sim{
		USART:   sim.NewUSART(),
		I2C:     sim.NewI2C(),
		Ranger:  sim.NewVL53L1X(),
		Accel:   sim.NewLSM6DS3(),
		Button:  sim.NewPin(true),
		AccelCS: sim.NewPin(true),
		LED:     sim.NewPin(false),
	}
	s.SPI = sim.NewSPI(s.AccelCS, s.Accel)
	s.I2C.Attach(vl53l1x.Address, s.Ranger)

	b := &Board{
		Name:    "host",
		UART:    uart.New(s.USART.Regs()),
		I2C:     i2c.New(s.I2C.Regs(), c.I2CRetry()),
		SPI:     spi.New(s.SPI.Regs(), c.SPIRetry()),
		AccelCS: s.AccelCS,
		Button:  s.Button,
		LED:     s.LED,
	}
	return b, s
}

// ServeSerial delivers USART interrupts to handler until ctx is done.
func (s *Sim) ServeSerial(ctx context.Context, handler func()) {
	s.USART.Run(ctx, handler)
}
