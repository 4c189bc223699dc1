package types

// ---- Telemetry published by the application tasks ----

// RangeReading is one VL53L1X sample.
type RangeReading struct {
	MM     uint16   `json:"mm"`
	CM     uint16   `json:"cm"`
	Digits [3]uint8 `json:"digits"` // display digits, least significant first
	Text   string   `json:"text"`
	TS     int64    `json:"ts_ms"`
}

// AccelReading is one LSM6DS3 Z-axis sample.
type AccelReading struct {
	Raw    int16  `json:"raw"`
	CentiG int32  `json:"centi_g"`
	Text   string `json:"text"`
	TS     int64  `json:"ts_ms"`
}

// SerialLine is a line handed to the serial transport.
type SerialLine struct {
	Text string `json:"text"`
	OK   bool   `json:"ok"`
	TS   int64  `json:"ts_ms"`
}

// ---- Retained state ----

// Level is a coarse component state.
type Level string

const (
	LevelInit  Level = "init"
	LevelReady Level = "ready"
	LevelFail  Level = "fail"
)

// ComponentState is published retained per peripheral during bring-up.
type ComponentState struct {
	Level Level  `json:"level"`
	Error string `json:"error,omitempty"`
	TS    int64  `json:"ts_ms"`
}

// Status is the scheduler and transport snapshot returned on request.
type Status struct {
	Flags      uint32 `json:"flags"`
	SerialIdle bool   `json:"serial_idle"`
	Dropped    uint32 `json:"rx_dropped"`
	Frames     uint32 `json:"rx_frames"`
}
