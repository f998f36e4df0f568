// internal/config/normalize.go
package config

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	m := &cfg.Midiguard

	if m.Device.Variant == "" {
		m.Device.Variant = "T16"
	}
	if m.LogLevel == "" {
		m.LogLevel = "info"
	}
	if m.Storage.SyncWrites == nil {
		syncWrites := true
		m.Storage.SyncWrites = &syncWrites
	}
	if m.Update.Path != "" && m.Update.PollMs == 0 {
		m.Update.PollMs = 1000
	}
}
