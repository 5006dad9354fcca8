package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete tool configuration
type Config struct {
	Radio     RadioConfig     `yaml:"radio"`
	Link      LinkConfig      `yaml:"link"`
	Collector CollectorConfig `yaml:"collector"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RadioConfig contains LoRa modulation parameters
type RadioConfig struct {
	FreqMHz    float64 `yaml:"freq_mhz"`
	BWKhz      float64 `yaml:"bw_khz"`
	SF         int     `yaml:"sf"`
	CR         int     `yaml:"cr"` // denominator, 4/CR
	TxPowerDBm int     `yaml:"tx_power_dbm"`
}

// LinkConfig contains node addressing for transfers
type LinkConfig struct {
	SrcID uint8 `yaml:"src_id"`
	DstID uint8 `yaml:"dst_id"`
	ExpID uint8 `yaml:"exp_id"`
}

// CollectorConfig contains UDP observation collector configuration
type CollectorConfig struct {
	UDPPort        int    `yaml:"udp_port"`
	BindAddress    string `yaml:"bind_address"`
	BufferSize     int    `yaml:"buffer_size"`
	SessionTimeout int    `yaml:"session_timeout"` // seconds
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration matching the field deployment:
// US 915 MHz band, 125 kHz bandwidth, SF7 with 4/5 coding at 14 dBm.
func Default() *Config {
	return &Config{
		Radio: RadioConfig{
			FreqMHz:    915.0,
			BWKhz:      125.0,
			SF:         7,
			CR:         5,
			TxPowerDBm: 14,
		},
		Link: LinkConfig{
			SrcID: 0x01,
			DstID: 0x02,
			ExpID: 0x01,
		},
		Collector: CollectorConfig{
			UDPPort:        9999,
			BindAddress:    "0.0.0.0",
			BufferSize:     65536,
			SessionTimeout: 30,
		},
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "0.0.0.0",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Radio.Validate(); err != nil {
		return fmt.Errorf("radio config: %w", err)
	}

	if err := c.Link.Validate(); err != nil {
		return fmt.Errorf("link config: %w", err)
	}

	if err := c.Collector.Validate(); err != nil {
		return fmt.Errorf("collector config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates radio configuration
func (r *RadioConfig) Validate() error {
	if r.FreqMHz < 137.0 || r.FreqMHz > 1020.0 {
		return fmt.Errorf("freq_mhz must be between 137 and 1020, got %f", r.FreqMHz)
	}

	validBW := map[float64]bool{125.0: true, 250.0: true, 500.0: true}
	if !validBW[r.BWKhz] {
		return fmt.Errorf("bw_khz must be one of [125, 250, 500], got %f", r.BWKhz)
	}

	if r.SF < 7 || r.SF > 12 {
		return fmt.Errorf("sf must be between 7 and 12, got %d", r.SF)
	}

	if r.CR < 5 || r.CR > 8 {
		return fmt.Errorf("cr must be between 5 and 8 (4/5 to 4/8), got %d", r.CR)
	}

	if r.TxPowerDBm < 2 || r.TxPowerDBm > 22 {
		return fmt.Errorf("tx_power_dbm must be between 2 and 22, got %d", r.TxPowerDBm)
	}

	return nil
}

// Validate validates link addressing configuration
func (l *LinkConfig) Validate() error {
	if l.SrcID == l.DstID {
		return fmt.Errorf("src_id and dst_id cannot both be %d", l.SrcID)
	}

	return nil
}

// Validate validates collector configuration
func (c *CollectorConfig) Validate() error {
	if c.UDPPort < 1 || c.UDPPort > 65535 {
		return fmt.Errorf("udp_port must be between 1 and 65535, got %d", c.UDPPort)
	}

	if c.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if c.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", c.BufferSize)
	}

	if c.SessionTimeout < 1 {
		return fmt.Errorf("session_timeout must be at least 1 second, got %d", c.SessionTimeout)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetSessionTimeoutDuration returns the session timeout as a time.Duration
func (c *CollectorConfig) GetSessionTimeoutDuration() time.Duration {
	return time.Duration(c.SessionTimeout) * time.Second
}
