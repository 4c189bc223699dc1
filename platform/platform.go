// Package platform assembles a Board: the register engines, pins and drivers
// the application runs on. The stm32f103 build binds the Blue Pill's real
// peripherals; every other build binds the host simulator.
package platform

import (
	"rangefinder-go/bus"
	"rangefinder-go/drivers/hc05"
	"rangefinder-go/drivers/lsm6ds3"
	"rangefinder-go/drivers/vl53l1x"
	"rangefinder-go/periph/i2c"
	"rangefinder-go/periph/spi"
	"rangefinder-go/periph/uart"
	"rangefinder-go/services/app"
	"rangefinder-go/services/config"
	"rangefinder-go/services/scheduler"
)

// OutputPin drives a digital output. machine.Pin and *sim.Pin satisfy it.
type OutputPin interface {
	Set(high bool)
}

type Board struct {
	Name string

	UART *uart.Port
	I2C  *i2c.Bus
	SPI  *spi.Bus

	AccelCS OutputPin
	Button  scheduler.Button
	LED     OutputPin
}

// Devices are the drivers bound to a board.
type Devices struct {
	Serial *hc05.Transport
	Ranger *vl53l1x.Device
	Accel  *lsm6ds3.Device
}

func (b *Board) Devices(c config.Config) Devices {
	d := Devices{Serial: hc05.New(b.UART, c.SerialConfig())}
	if c.Range.Enabled {
		r := vl53l1x.New(b.I2C)
		d.Ranger = &r
	}
	if c.Inertial.Enabled {
		d.Accel = lsm6ds3.New(b.SPI, b.AccelCS)
	}
	return d
}

// NewApp binds the board's devices to a new application. conn may be nil.
func (b *Board) NewApp(c config.Config, conn *bus.Connection) (*app.App, Devices) {
	d := b.Devices(c)
	o := app.Options{
		Button:      b.Button,
		Serial:      d.Serial,
		RangeConfig: c.RangeConfig(),
		LED:         b.LED,
		Conn:        conn,
	}
	// Typed nils must not reach the interface fields.
	if d.Ranger != nil {
		o.Ranger = d.Ranger
	}
	if d.Accel != nil {
		o.Accel = d.Accel
	}
	return app.New(o), d
}
