package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type HookConfig struct {
	URL         string        `koanf:"url" mapstructure:"url"`
	Timeout     time.Duration `koanf:"timeout" mapstructure:"timeout"`
	MaxInFlight int           `koanf:"max_in_flight" mapstructure:"max_in_flight"`
}

type EscrowConfig struct {
	Timeout  time.Duration `koanf:"timeout" mapstructure:"timeout"`
	Interval time.Duration `koanf:"interval" mapstructure:"interval"`
}

type Config struct {
	ServiceName string       `koanf:"service_name" mapstructure:"service_name"`
	Authority   string       `koanf:"authority" mapstructure:"authority"`
	Schemas     []string     `koanf:"schemas" mapstructure:"schemas"`
	Hook        HookConfig   `koanf:"hook" mapstructure:"hook"`
	Escrow      EscrowConfig `koanf:"escrow" mapstructure:"escrow"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "verify",
		Schemas:     []string{SchemaIDCard},
		Hook: HookConfig{
			Timeout:     5 * time.Second,
			MaxInFlight: 8,
		},
		Escrow: EscrowConfig{
			Timeout:  10 * time.Minute,
			Interval: 3 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if trimmed := strings.TrimSpace(c.Hook.URL); trimmed != "" {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return fmt.Errorf("core: hook.url is not a valid URL: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("core: hook.url requires an http or https scheme, got %q", parsed.Scheme)
		}
	}
	if c.Hook.Timeout < 0 {
		return fmt.Errorf("core: hook.timeout must not be negative")
	}
	if c.Hook.MaxInFlight < 0 {
		return fmt.Errorf("core: hook.max_in_flight must not be negative")
	}
	if c.Escrow.Timeout < 0 {
		return fmt.Errorf("core: escrow.timeout must not be negative")
	}
	if c.Escrow.Interval < 0 {
		return fmt.Errorf("core: escrow.interval must not be negative")
	}
	return nil
}
