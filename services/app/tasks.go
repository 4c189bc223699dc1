package app

import (
	"context"
	"errors"

	"rangefinder-go/drivers/lsm6ds3"
	"rangefinder-go/types"
	"rangefinder-go/x/conv"
)

// rangeTask reads one distance, updates the display model and prints it in
// metres, e.g. "1.23m\r\n". A zero reading is not a measurement and is
// dropped.
func (a *App) rangeTask(ctx context.Context) error {
	mm, err := a.ranger.Read()
	if err != nil || mm == 0 {
		return err
	}
	cm := uint32(mm) / 10
	a.lastCM.Store(cm)

	var buf [24]byte
	line := append(conv.Fixed2(buf[:], int64(cm), false), "m\r\n"...)
	text := string(line)
	if err := a.Print(ctx, line); err != nil {
		return err
	}
	if a.conn != nil {
		a.publish(TopicRange, types.RangeReading{
			MM: mm, CM: uint16(cm), Digits: a.Digits(), Text: text, TS: a.ts(),
		}, true)
	}
	return nil
}

// inertialTask prints the Z-axis acceleration in g with two decimals,
// e.g. "+0.98g\r\n". Without a fresh sample it prints nothing.
func (a *App) inertialTask(ctx context.Context) error {
	raw, err := a.accel.AccelZ()
	if errors.Is(err, lsm6ds3.ErrNotReady) {
		return nil
	}
	if err != nil {
		return err
	}
	centi := lsm6ds3.CentiG(raw)

	var buf [24]byte
	line := append(conv.Fixed2(buf[:], int64(centi), true), "g\r\n"...)
	text := string(line)
	if err := a.Print(ctx, line); err != nil {
		return err
	}
	if a.conn != nil {
		a.publish(TopicAccel, types.AccelReading{
			Raw: raw, CentiG: centi, Text: text, TS: a.ts(),
		}, true)
	}
	return nil
}
