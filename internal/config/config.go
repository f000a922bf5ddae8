package config

import (
	"time"

	"github.com/vovakirdan/quadra-client/internal/proto"
)

// Config holds client configuration values.
type Config struct {
	GatewayURL     string        `mapstructure:"gateway_url" yaml:"gateway_url"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`

	// Resume controls automatic reconnection after an unexpected closure.
	ResumeEnabled  bool          `mapstructure:"resume_enabled" yaml:"resume_enabled"`
	ResumeMinDelay time.Duration `mapstructure:"resume_min_delay" yaml:"resume_min_delay"`
	ResumeMaxDelay time.Duration `mapstructure:"resume_max_delay" yaml:"resume_max_delay"`

	Handling proto.Handling `mapstructure:"handling" yaml:"handling"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		GatewayURL:     "wss://gateway.quadra.gg/ws",
		LogLevel:       "info",
		ConnectTimeout: 10 * time.Second,
		ResumeEnabled:  false,
		ResumeMinDelay: 500 * time.Millisecond,
		ResumeMaxDelay: 30 * time.Second,
		Handling:       proto.DefaultHandling(),
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.GatewayURL != "" {
		c.GatewayURL = other.GatewayURL
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ConnectTimeout != 0 {
		c.ConnectTimeout = other.ConnectTimeout
	}
	if other.ResumeMinDelay != 0 {
		c.ResumeMinDelay = other.ResumeMinDelay
	}
	if other.ResumeMaxDelay != 0 {
		c.ResumeMaxDelay = other.ResumeMaxDelay
	}
	if other.Handling != (proto.Handling{}) {
		c.Handling = other.Handling
	}
}
