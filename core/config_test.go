package core

import (
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Escrow.Timeout != 10*time.Minute {
		t.Fatalf("expected 10m escrow timeout, got %v", cfg.Escrow.Timeout)
	}
	if cfg.Escrow.Interval != 3*time.Second {
		t.Fatalf("expected 3s escrow interval, got %v", cfg.Escrow.Interval)
	}
	if len(cfg.Schemas) != 1 || cfg.Schemas[0] != SchemaIDCard {
		t.Fatalf("expected identity card default schema, got %v", cfg.Schemas)
	}
}

func TestConfigValidate_RejectsBadHookURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hook.URL = "ftp://hook.example.com/"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected scheme error")
	}

	cfg.Hook.URL = "https://hook.example.com/notify"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected https hook to validate: %v", err)
	}
}

func TestConfigValidate_RejectsNegativeDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Escrow.Timeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative timeout error")
	}

	cfg = DefaultConfig()
	cfg.Hook.MaxInFlight = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative max_in_flight error")
	}
}

func TestConfigValidate_RequiresServiceName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected service_name error")
	}
}
