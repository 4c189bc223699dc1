// Package vl53l1x provides a minimal driver for the ST VL53L1X time-of-flight
// ranging sensor: bring-up from a default configuration table, start/stop of
// continuous ranging, data-ready polling and distance readout.
//
// Registers are addressed with a 16-bit big-endian index, so every access is
// a drivers.I2C Tx whose write part starts with the index.
package vl53l1x

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// I2C address.
const Address = 0x29

// Register indices.
const (
	regVHVLoopBound   = 0x0008
	regVHVStart       = 0x000B
	regConfigStart    = 0x002D
	regGPIOHVMuxCtrl  = 0x0030
	regGPIOTIOStatus  = 0x0031
	regInterruptClear = 0x0086
	regModeStart      = 0x0087
	regDistance       = 0x0096
	regBootState      = 0x00E5
)

const (
	modeStart = 0x40
	modeStop  = 0x00
)

var ErrTimeout = errors.New("vl53l1x: timeout")

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x29 if zero.
	Address uint16
	// Table is written from register 0x2D during Configure.
	// Defaults to DefaultTable.
	Table []byte
	// PollInterval between status reads. Default 1 ms.
	PollInterval time.Duration
	// BootTimeout bounds the wait for firmware boot. Default 1 s.
	BootTimeout time.Duration
	// DataTimeout bounds each wait for a ranging result. Default 200 ms.
	DataTimeout time.Duration
}

type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg Config
	w   [3]byte
	r   [2]byte
}

// New creates a Device. The I2C bus must already be configured; the sensor is
// not touched until Configure.
func New(bus drivers.I2C) Device {
	d := Device{bus: bus, Address: Address}
	d.setConfig(Config{})
	return d
}

func (d *Device) setConfig(c Config) {
	if c.Address != 0 {
		d.Address = c.Address
	}
	if c.Table == nil {
		c.Table = DefaultTable[:]
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Millisecond
	}
	if c.BootTimeout <= 0 {
		c.BootTimeout = time.Second
	}
	if c.DataTimeout <= 0 {
		c.DataTimeout = 200 * time.Millisecond
	}
	d.cfg = c
}

// Configure runs the sensor bring-up: wait for boot, load the configuration
// table, take one throwaway measurement, set up VHV and start ranging.
func (d *Device) Configure(cfgs ...Config) error {
	if len(cfgs) > 0 {
		d.setConfig(cfgs[0])
	}
	if err := d.waitFor(d.BootReady, d.cfg.BootTimeout); err != nil {
		return err
	}
	if err := d.writeBlock(regConfigStart, d.cfg.Table); err != nil {
		return err
	}
	if err := d.StartRanging(); err != nil {
		return err
	}
	if err := d.WaitDataReady(); err != nil {
		return err
	}
	if err := d.ClearInterrupt(); err != nil {
		return err
	}
	if err := d.StopRanging(); err != nil {
		return err
	}
	// Two VHV loop bounds; restart VHV from the previous temperature.
	if err := d.writeReg(regVHVLoopBound, 0x09); err != nil {
		return err
	}
	if err := d.writeReg(regVHVStart, 0x00); err != nil {
		return err
	}
	return d.StartRanging()
}

// BootReady reports whether the sensor firmware has booted.
func (d *Device) BootReady() (bool, error) {
	v, err := d.readReg(regBootState)
	return v != 0, err
}

func (d *Device) StartRanging() error { return d.writeReg(regModeStart, modeStart) }
func (d *Device) StopRanging() error  { return d.writeReg(regModeStart, modeStop) }

// ClearInterrupt acknowledges the current result so the next one can latch.
func (d *Device) ClearInterrupt() error { return d.writeReg(regInterruptClear, 0x01) }

// InterruptPolarity returns the level GPIO1 drives when a result is ready.
func (d *Device) InterruptPolarity() (uint8, error) {
	v, err := d.readReg(regGPIOHVMuxCtrl)
	if err != nil {
		return 0, err
	}
	if v&(1<<4) != 0 {
		return 0, nil
	}
	return 1, nil
}

// DataReady reports whether a ranging result is waiting.
func (d *Device) DataReady() (bool, error) {
	pol, err := d.InterruptPolarity()
	if err != nil {
		return false, err
	}
	st, err := d.readReg(regGPIOTIOStatus)
	if err != nil {
		return false, err
	}
	return st&0x01 == pol, nil
}

// WaitDataReady polls DataReady until it holds or DataTimeout passes.
func (d *Device) WaitDataReady() error { return d.waitFor(d.DataReady, d.cfg.DataTimeout) }

// Distance returns the last result in millimetres.
func (d *Device) Distance() (uint16, error) {
	if err := d.readBlock(regDistance, d.r[:2]); err != nil {
		return 0, err
	}
	return uint16(d.r[0])<<8 | uint16(d.r[1]), nil
}

// Read waits for a result, returns it and clears the interrupt.
func (d *Device) Read() (uint16, error) {
	if err := d.WaitDataReady(); err != nil {
		return 0, err
	}
	mm, err := d.Distance()
	if err != nil {
		return 0, err
	}
	return mm, d.ClearInterrupt()
}

func (d *Device) waitFor(cond func() (bool, error), timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(d.cfg.PollInterval)
	}
}

func (d *Device) writeReg(reg uint16, v byte) error {
	d.w[0], d.w[1], d.w[2] = byte(reg>>8), byte(reg), v
	return d.bus.Tx(d.Address, d.w[:3], nil)
}

func (d *Device) writeBlock(reg uint16, data []byte) error {
	w := make([]byte, 2+len(data))
	w[0], w[1] = byte(reg>>8), byte(reg)
	copy(w[2:], data)
	return d.bus.Tx(d.Address, w, nil)
}

func (d *Device) readReg(reg uint16) (byte, error) {
	err := d.readBlock(reg, d.r[:1])
	return d.r[0], err
}

func (d *Device) readBlock(reg uint16, dst []byte) error {
	d.w[0], d.w[1] = byte(reg>>8), byte(reg)
	return d.bus.Tx(d.Address, d.w[:2], dst)
}
