// internal/config/validate.go
package config

import (
	"fmt"
)

var validVariants = map[string]bool{
	"": true, "T16": true, "T32": true, "T64": true,
}

var validLogLevels = map[string]bool{
	"": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks profile correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	m := &cfg.Midiguard

	// ------------------------------------------------------------
	// STORAGE
	// ------------------------------------------------------------

	if !m.Storage.InMemory && m.Storage.DataDir == "" {
		return fmt.Errorf("storage: data_dir is required unless in_memory is set")
	}
	if m.Storage.InMemory && m.Storage.DataDir != "" {
		return fmt.Errorf("storage: data_dir and in_memory are mutually exclusive")
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	if !validVariants[m.Device.Variant] {
		return fmt.Errorf("device: unknown variant %q (want T16, T32 or T64)", m.Device.Variant)
	}

	// ------------------------------------------------------------
	// SNAPSHOT / UPDATE CHANNEL
	// ------------------------------------------------------------

	if m.Snapshot.IntervalMs < 0 {
		return fmt.Errorf("snapshot: interval_ms must not be negative")
	}
	if m.Update.PollMs < 0 {
		return fmt.Errorf("update: poll_ms must not be negative")
	}
	if m.Update.PollMs > 0 && m.Update.Path == "" {
		return fmt.Errorf("update: poll_ms is set but path is empty")
	}

	// ------------------------------------------------------------
	// LOGGING
	// ------------------------------------------------------------

	if !validLogLevels[m.LogLevel] {
		return fmt.Errorf("log_level %q not recognized (want debug, info, warn or error)", m.LogLevel)
	}

	return nil
}
