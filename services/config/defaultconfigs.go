package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: board name (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that board
// -----------------------------------------------------------------------------

const cfgBluepill = `{
  "tick_hz": 10,
  "idle_ms": 1,
  "i2c_budget": 1000,
  "spi_budget": 1000,
  "serial": {
    "tx_size": 20,
    "rx_size": 10,
    "tx_retries": 10,
    "rx_framing": false,
    "terminator": "OK\r\n"
  },
  "range": {
    "enabled": true,
    "boot_timeout_ms": 1000,
    "data_timeout_ms": 200
  },
  "inertial": {
    "enabled": true
  },
  "heartbeat": {
    "interval": 5
  },
  "bridge": {
    "enabled": false
  }
}`

// The host simulator runs the same firmware with a faster tick and a
// framed receive path so peer replies can be exercised.
const cfgHost = `{
  "tick_hz": 50,
  "idle_ms": 1,
  "i2c_budget": 1000,
  "spi_budget": 1000,
  "serial": {
    "tx_size": 20,
    "rx_size": 10,
    "tx_retries": 10,
    "rx_framing": true,
    "terminator": "OK\r\n"
  },
  "range": {
    "enabled": true,
    "boot_timeout_ms": 200,
    "data_timeout_ms": 100
  },
  "inertial": {
    "enabled": true
  },
  "heartbeat": {
    "interval": 2
  },
  "bridge": {
    "enabled": false,
    "match": "rangefinder/#"
  }
}`

var embeddedConfigs = map[string][]byte{
	"bluepill": []byte(cfgBluepill),
	"host":     []byte(cfgHost),
}
