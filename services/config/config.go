package config

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"rangefinder-go/bus"
	"rangefinder-go/drivers/hc05"
	"rangefinder-go/drivers/vl53l1x"
	"rangefinder-go/periph/poll"
	"rangefinder-go/x/mathx"
	"rangefinder-go/x/timex"
)

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key used for the board name
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// -----------------------------------------------------------------------------
// Typed configuration
// -----------------------------------------------------------------------------

type Serial struct {
	TxSize     int    `json:"tx_size"`
	RxSize     int    `json:"rx_size"`
	TxRetries  int    `json:"tx_retries"`
	RxFraming  bool   `json:"rx_framing"`
	Terminator string `json:"terminator"`
}

type Range struct {
	Enabled       bool `json:"enabled"`
	BootTimeoutMs int  `json:"boot_timeout_ms"`
	DataTimeoutMs int  `json:"data_timeout_ms"`
}

type Inertial struct {
	Enabled bool `json:"enabled"`
}

type Config struct {
	TickHz    uint32   `json:"tick_hz"`
	IdleMs    int      `json:"idle_ms"`
	I2CBudget int      `json:"i2c_budget"`
	SPIBudget int      `json:"spi_budget"`
	Serial    Serial   `json:"serial"`
	Range     Range    `json:"range"`
	Inertial  Inertial `json:"inertial"`
}

// Load decodes the embedded config for device and normalises it.
func Load(device string) (Config, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return Config{}, errors.New("config: no embedded config for device: " + device)
	}
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return Config{}, errors.New("config: " + err.Error())
	}
	c.Normalize()
	return c, nil
}

// Normalize clamps every field into the range the firmware supports.
func (c *Config) Normalize() {
	c.TickHz = mathx.Clamp(c.TickHz, 1, 1000)
	c.IdleMs = mathx.Clamp(c.IdleMs, 1, 100)
	c.I2CBudget = mathx.Clamp(c.I2CBudget, 1, 100000)
	c.SPIBudget = mathx.Clamp(c.SPIBudget, 1, 100000)
	c.Serial.TxSize = mathx.Clamp(c.Serial.TxSize, 1, 256)
	c.Serial.RxSize = mathx.Clamp(c.Serial.RxSize, 1, 256)
	c.Serial.TxRetries = mathx.Clamp(c.Serial.TxRetries, 0, 10000)
	if c.Serial.Terminator == "" {
		c.Serial.Terminator = "OK\r\n"
	}
	if len(c.Serial.Terminator) > c.Serial.RxSize {
		c.Serial.Terminator = c.Serial.Terminator[len(c.Serial.Terminator)-c.Serial.RxSize:]
	}
	c.Range.BootTimeoutMs = mathx.Clamp(c.Range.BootTimeoutMs, 10, 10000)
	c.Range.DataTimeoutMs = mathx.Clamp(c.Range.DataTimeoutMs, 10, 10000)
}

// TickPeriod is the scheduler tick period.
func (c Config) TickPeriod() time.Duration { return timex.PeriodFromHz(c.TickHz) }

// Idle is the main-loop idle between scheduler steps.
func (c Config) Idle() time.Duration { return time.Duration(c.IdleMs) * time.Millisecond }

func (c Config) I2CRetry() poll.Budget { return poll.Budget(c.I2CBudget) }
func (c Config) SPIRetry() poll.Budget { return poll.Budget(c.SPIBudget) }

func (c Config) SerialConfig() hc05.Config {
	return hc05.Config{
		TxSize:     c.Serial.TxSize,
		RxSize:     c.Serial.RxSize,
		TxRetries:  c.Serial.TxRetries,
		RxFraming:  c.Serial.RxFraming,
		Terminator: c.Serial.Terminator,
	}
}

func (c Config) RangeConfig() vl53l1x.Config {
	return vl53l1x.Config{
		BootTimeout: time.Duration(c.Range.BootTimeoutMs) * time.Millisecond,
		DataTimeout: time.Duration(c.Range.DataTimeoutMs) * time.Millisecond,
	}
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig reads the board config from embedded data and publishes each
// top-level key as a retained message under config/<key>.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("config: missing device ID in context")
	}
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("config: no embedded config for device: " + device)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return errors.New("config: embedded config is not a JSON object")
	}
	for k, v := range m {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			println("[config] " + err.Error())
		}
	}()
}
