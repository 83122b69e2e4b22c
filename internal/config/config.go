package config

import "time"

// Config holds relay configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogJSON           bool          `mapstructure:"log_json" yaml:"log_json"`

	// DeadRoomCap bounds the dead-room blacklist. Oldest entries are
	// evicted first once the cap is reached.
	DeadRoomCap int `mapstructure:"dead_room_cap" yaml:"dead_room_cap"`

	// MsgRateLimit caps inbound messages per connection per minute.
	// Zero disables the limit.
	MsgRateLimit int `mapstructure:"msg_rate_limit" yaml:"msg_rate_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":9000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DeadRoomCap:       128,
		MsgRateLimit:      0,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DeadRoomCap != 0 {
		c.DeadRoomCap = other.DeadRoomCap
	}
	if other.MsgRateLimit != 0 {
		c.MsgRateLimit = other.MsgRateLimit
	}
}
