// cmd/midiguard/main.go
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tamzrod/midiguard/internal/boot"
	"github.com/tamzrod/midiguard/internal/clock"
	"github.com/tamzrod/midiguard/internal/config"
	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/protect"
	"github.com/tamzrod/midiguard/internal/recovery"
	"github.com/tamzrod/midiguard/internal/store"
	"github.com/tamzrod/midiguard/internal/updater"
	"github.com/tamzrod/midiguard/internal/validate"
)

func main() {
	if len(os.Args) < 2 {
		slog.Error("usage: midiguard <profile.yaml>")
		os.Exit(2)
	}

	// --------------------
	// Load + validate profile
	// --------------------

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		slog.Error("profile load failed", "error", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		slog.Error("profile validation failed", "error", err)
		os.Exit(1)
	}
	config.Normalize(cfg)

	logger := newLogger(cfg.Midiguard.LogLevel)
	slog.SetDefault(logger)

	// --------------------
	// Storage
	// --------------------

	storeCfg := store.DefaultConfig(cfg.Midiguard.Storage.DataDir)
	if cfg.Midiguard.Storage.InMemory {
		storeCfg = store.InMemoryConfig()
	}
	storeCfg.SyncWrites = *cfg.Midiguard.Storage.SyncWrites
	storeCfg.Logger = logger

	st, err := store.OpenBadger(storeCfg)
	if err != nil {
		logger.Error("storage open failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// --------------------
	// Integrity core
	// --------------------

	variant := parseVariant(cfg.Midiguard.Device.Variant)
	vctx := validate.DefaultContext(variant, device.FirmwareVersion)
	clk := clock.NewMonotonic()

	protector := protect.NewProtector(st, vctx, logger)
	if cfg.Midiguard.Device.Serial != 0 {
		protector.SetDeviceSerial(cfg.Midiguard.Device.Serial)
	}
	rec := recovery.NewManager(st, protector, clk, vctx,
		uint32(cfg.Midiguard.Snapshot.IntervalMs), logger)
	bootMgr := boot.NewManager(st, protector, rec, clk, vctx, logger)

	// --------------------
	// Boot sequence
	// --------------------

	result := bootMgr.Run()
	status := bootMgr.Status()
	logger.Info("boot finished",
		"result", result.String(),
		"state", status.State.String(),
		"boot_count", status.BootCount,
		"recovery_attempts", status.RecoveryAttempts,
		"boot_ms", status.BootTimeMs)

	switch result {
	case boot.ResultCriticalFailure:
		logger.Error("boot failed", "last_error", status.LastError)
		os.Exit(1)
	case boot.ResultSafeModeRequired:
		safe := bootMgr.SafeConfiguration()
		logger.Warn("running in safe mode",
			"last_error", status.LastError,
			"mode", safe.Mode, "brightness", safe.Brightness)
	}

	// --------------------
	// Main loop
	// --------------------

	// The update channel stays up in safe mode; it is the repair path
	// once every recovery tier has failed.
	var upd *updater.Updater
	updateTick := time.Duration(0)
	if cfg.Midiguard.Update.Path != "" {
		upd = updater.New(cfg.Midiguard.Update.Path, protector, rec, logger)
		updateTick = time.Duration(cfg.Midiguard.Update.PollMs) * time.Millisecond
	}

	run(clk, rec, upd, updateTick, logger)
}

// run is the cooperative main loop: periodic snapshots plus the
// optional update channel, until SIGINT/SIGTERM.
func run(clk clock.Clock, rec *recovery.Manager, upd *updater.Updater, updateTick time.Duration, logger *slog.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	snapTicker := time.NewTicker(time.Minute)
	defer snapTicker.Stop()

	var updateC <-chan time.Time
	if upd != nil {
		updTicker := time.NewTicker(updateTick)
		defer updTicker.Stop()
		updateC = updTicker.C
	}

	for {
		select {
		case s := <-sig:
			logger.Info("shutting down", "signal", s.String())
			return

		case <-snapTicker.C:
			if rec.CheckPeriodicSnapshot() {
				logger.Debug("periodic snapshot taken", "uptime_ms", clk.NowMillis())
			}

		case <-updateC:
			if err := upd.Poll(); err != nil {
				logger.Warn("update poll failed", "error", err)
			}
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func parseVariant(s string) device.Variant {
	switch s {
	case "T32":
		return device.VariantT32
	case "T64":
		return device.VariantT64
	default:
		return device.VariantT16
	}
}
