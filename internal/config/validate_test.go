// internal/config/validate_test.go
package config

import "testing"

// helper to build a minimal valid profile quickly
func profile(mutate func(*Config)) *Config {
	cfg := &Config{
		Midiguard: MidiguardConfig{
			Storage: StorageConfig{DataDir: "/var/lib/midiguard"},
		},
	}
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

// ---- tests ----

func TestValidate_MinimalProfile(t *testing.T) {
	if err := Validate(profile(nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InMemoryNeedsNoDataDir(t *testing.T) {
	cfg := profile(func(c *Config) {
		c.Midiguard.Storage.DataDir = ""
		c.Midiguard.Storage.InMemory = true
	})
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingDataDirRejected(t *testing.T) {
	cfg := profile(func(c *Config) {
		c.Midiguard.Storage.DataDir = ""
	})
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected data_dir error, got nil")
	}
}

func TestValidate_DataDirAndInMemoryExclusive(t *testing.T) {
	cfg := profile(func(c *Config) {
		c.Midiguard.Storage.InMemory = true
	})
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected exclusivity error, got nil")
	}
}

func TestValidate_UnknownVariantRejected(t *testing.T) {
	cfg := profile(func(c *Config) {
		c.Midiguard.Device.Variant = "T24"
	})
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected variant error, got nil")
	}
}

func TestValidate_UnknownLogLevelRejected(t *testing.T) {
	cfg := profile(func(c *Config) {
		c.Midiguard.LogLevel = "verbose"
	})
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected log_level error, got nil")
	}
}

func TestValidate_NegativeIntervalRejected(t *testing.T) {
	cfg := profile(func(c *Config) {
		c.Midiguard.Snapshot.IntervalMs = -1
	})
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected interval error, got nil")
	}
}

func TestValidate_UpdatePollWithoutPathRejected(t *testing.T) {
	cfg := profile(func(c *Config) {
		c.Midiguard.Update.PollMs = 500
	})
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected update path error, got nil")
	}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := profile(func(c *Config) {
		c.Midiguard.Update.Path = "/tmp/update.bin"
	})
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Normalize(cfg)

	m := cfg.Midiguard
	if m.Device.Variant != "T16" {
		t.Fatalf("variant default = %q, want T16", m.Device.Variant)
	}
	if m.LogLevel != "info" {
		t.Fatalf("log_level default = %q, want info", m.LogLevel)
	}
	if m.Storage.SyncWrites == nil || !*m.Storage.SyncWrites {
		t.Fatalf("sync_writes default should be true")
	}
	if m.Update.PollMs != 1000 {
		t.Fatalf("update poll_ms default = %d, want 1000", m.Update.PollMs)
	}
}
