// Package lsm6ds3 is a small SPI driver for the ST LSM6DS3 inertial module,
// limited to the accelerometer.
//
// Every register access is framed by chip select: CS low, address byte (bit 7
// set for reads), data byte, CS high.
package lsm6ds3

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Registers.
const (
	WHO_AM_I  = 0x0F
	CTRL1_XL  = 0x10
	CTRL2_G   = 0x11
	STATUS    = 0x1E
	OUTZ_L_XL = 0x2C
	OUTZ_H_XL = 0x2D
)

const (
	identity   = 0x69
	statusXLDA = 0x01
	readBit    = 0x80

	// 416 Hz, ±2 g, accelerometer only.
	defaultCtrl1XL = 0x60
)

var (
	ErrNotReady  = errors.New("lsm6ds3: no new accelerometer sample")
	ErrIdentity  = errors.New("lsm6ds3: unexpected WHO_AM_I")
	ErrConfigure = errors.New("lsm6ds3: configuration did not stick")
)

// Pin drives the active-low chip select. machine.Pin satisfies it.
type Pin interface {
	Set(high bool)
}

type Device struct {
	bus drivers.SPI
	cs  Pin
}

// New creates a Device and releases chip select. The SPI bus must already be
// configured (mode 3, MSB first).
func New(bus drivers.SPI, cs Pin) *Device {
	cs.Set(true)
	return &Device{bus: bus, cs: cs}
}

// Register reads one register.
func (d *Device) Register(reg uint8) (uint8, error) {
	d.cs.Set(false)
	defer d.cs.Set(true)
	if _, err := d.bus.Transfer(reg | readBit); err != nil {
		return 0, err
	}
	return d.bus.Transfer(0)
}

// SetRegister writes one register.
func (d *Device) SetRegister(reg, v uint8) error {
	d.cs.Set(false)
	defer d.cs.Set(true)
	if _, err := d.bus.Transfer(reg &^ readBit); err != nil {
		return err
	}
	_, err := d.bus.Transfer(v)
	return err
}

// Connected reports whether the part answers with its WHO_AM_I value.
func (d *Device) Connected() bool {
	v, err := d.Register(WHO_AM_I)
	return err == nil && v == identity
}

// Configure enables the accelerometer and verifies the setting by reading it
// back, retrying a few times for parts still coming out of reset.
func (d *Device) Configure() error {
	if !d.Connected() {
		return ErrIdentity
	}
	for i := 0; i < 10; i++ {
		if err := d.SetRegister(CTRL1_XL, defaultCtrl1XL); err != nil {
			return err
		}
		v, err := d.Register(CTRL1_XL)
		if err != nil {
			return err
		}
		if v == defaultCtrl1XL {
			return nil
		}
	}
	return ErrConfigure
}

// AccelReady reports whether a new accelerometer sample is available.
func (d *Device) AccelReady() (bool, error) {
	st, err := d.Register(STATUS)
	return st&statusXLDA != 0, err
}

// AccelZ returns the raw Z-axis sample. ErrNotReady means no new sample
// since the last read.
func (d *Device) AccelZ() (int16, error) {
	ok, err := d.AccelReady()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotReady
	}
	lo, err := d.Register(OUTZ_L_XL)
	if err != nil {
		return 0, err
	}
	hi, err := d.Register(OUTZ_H_XL)
	if err != nil {
		return 0, err
	}
	return int16(uint16(hi)<<8 | uint16(lo)), nil
}

// CentiG converts a raw ±2 g sample to hundredths of g.
func CentiG(raw int16) int32 { return int32(raw) / 163 }
