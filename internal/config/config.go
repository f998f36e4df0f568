// internal/config/config.go
package config

type Config struct {
	Midiguard MidiguardConfig `yaml:"midiguard"`
}

type MidiguardConfig struct {
	Storage  StorageConfig  `yaml:"storage"`
	Device   DeviceConfig   `yaml:"device"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Update   UpdateConfig   `yaml:"update"`

	LogLevel string `yaml:"log_level"`
}

// ---- STORAGE ----

type StorageConfig struct {
	DataDir  string `yaml:"data_dir"`
	InMemory bool   `yaml:"in_memory"`

	// SyncWrites defaults to true; nil means "not set".
	SyncWrites *bool `yaml:"sync_writes"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Variant string `yaml:"variant"` // T16 | T32 | T64
	Serial  uint32 `yaml:"serial"`
}

// ---- SNAPSHOT ----

type SnapshotConfig struct {
	IntervalMs int `yaml:"interval_ms"` // 0 => default cadence
}

// ---- UPDATE CHANNEL ----

type UpdateConfig struct {
	// Path of the inbound envelope-wrapped settings file (optional).
	Path   string `yaml:"path"`
	PollMs int    `yaml:"poll_ms"`
}
