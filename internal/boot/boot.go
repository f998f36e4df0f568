// internal/boot/boot.go
package boot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tamzrod/midiguard/internal/clock"
	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/integrity"
	"github.com/tamzrod/midiguard/internal/protect"
	"github.com/tamzrod/midiguard/internal/recovery"
	"github.com/tamzrod/midiguard/internal/store"
	"github.com/tamzrod/midiguard/internal/validate"
)

// Escalation budgets.
const (
	// MaxRecoveryAttempts bounds recovery passes within one boot.
	MaxRecoveryAttempts = 3
	// MaxBootFailures is the consecutive-failure count that sends the
	// next boot straight to safe mode.
	MaxBootFailures = 5
)

// StatsFile holds the persistent boot counters.
const StatsFile = "boot_stats.dat"

const probeFile = "boot.probe"

// State is the boot state machine position.
type State uint8

const (
	StateInit State = iota
	StateCheckingIntegrity
	StateLoadingConfig
	StateValidatingConfig
	StateReady
	StateRecovering
	StateSafeMode
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateCheckingIntegrity:
		return "checking_integrity"
	case StateLoadingConfig:
		return "loading_config"
	case StateValidatingConfig:
		return "validating_config"
	case StateReady:
		return "ready"
	case StateRecovering:
		return "recovering"
	case StateSafeMode:
		return "safe_mode"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Result is the overall boot outcome.
type Result uint8

const (
	ResultSuccess Result = iota
	ResultRecovered
	ResultSafeModeRequired
	ResultCriticalFailure
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultRecovered:
		return "recovered"
	case ResultSafeModeRequired:
		return "safe_mode_required"
	case ResultCriticalFailure:
		return "critical_failure"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// Status is a copy of the boot manager's progress, safe to hand out.
type Status struct {
	State             State
	StorageMounted    bool
	IntegrityVerified bool
	ConfigLoaded      bool
	ConfigValid       bool
	CorruptionLevel   uint8
	RecoveryAttempts  int
	BootCount         uint32
	FailureCount      uint32
	BootTimeMs        uint32
	LastError         string
}

// bootStats is the persisted failure budget.
// Layout: version(1) | bootCount(4) | failureCount(4) | crc32(4).
type bootStats struct {
	BootCount    uint32
	FailureCount uint32
}

const statsVersion = 1
const statsBlobSize = 1 + 4 + 4 + 4

func (s *bootStats) encode() []byte {
	buf := make([]byte, 0, statsBlobSize)
	buf = append(buf, statsVersion)
	buf = binary.LittleEndian.AppendUint32(buf, s.BootCount)
	buf = binary.LittleEndian.AppendUint32(buf, s.FailureCount)
	return binary.LittleEndian.AppendUint32(buf, integrity.Checksum32(buf))
}

func decodeBootStats(data []byte) (bootStats, error) {
	var s bootStats
	if len(data) != statsBlobSize {
		return s, fmt.Errorf("boot: stats blob is %d bytes, want %d", len(data), statsBlobSize)
	}
	body := data[:len(data)-4]
	if integrity.Checksum32(body) != binary.LittleEndian.Uint32(data[len(data)-4:]) {
		return s, errors.New("boot: stats checksum mismatch")
	}
	if body[0] != statsVersion {
		return s, fmt.Errorf("boot: unknown stats layout version %d", body[0])
	}
	s.BootCount = binary.LittleEndian.Uint32(body[1:])
	s.FailureCount = binary.LittleEndian.Uint32(body[5:])
	return s, nil
}

// Manager drives the boot sequence: storage, integrity, load,
// validation, with bounded recovery between failed stages.
//
// Not safe for concurrent use.
type Manager struct {
	store     store.Store
	protector *protect.Protector
	recovery  *recovery.Manager
	clock     clock.Clock
	logger    *slog.Logger
	vctx      validate.Context

	state            State
	stats            bootStats
	recoveryAttempts int
	lastErr          string
	bootStartMs      uint32
	bootTimeMs       uint32

	storageMounted    bool
	integrityVerified bool
	configLoaded      bool
	configValid       bool
}

// NewManager wires the boot sequence.
func NewManager(st store.Store, p *protect.Protector, rec *recovery.Manager, clk clock.Clock, vctx validate.Context, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     st,
		protector: p,
		recovery:  rec,
		clock:     clk,
		logger:    logger.With("component", "boot"),
		vctx:      vctx,
		state:     StateInit,
	}
}

// Run executes the full boot sequence and returns the outcome.
func (m *Manager) Run() Result {
	m.bootStartMs = m.clock.NowMillis()
	m.logger.Info("boot sequence started")

	if !m.mountStorage() {
		return m.fail("storage mount failed")
	}

	m.loadStats()
	m.stats.BootCount++
	m.persistStats()

	if m.stats.FailureCount >= MaxBootFailures {
		m.logger.Error("boot failure budget exhausted, entering safe mode",
			"failures", m.stats.FailureCount)
		return m.enterSafeMode("too many consecutive boot failures")
	}

	stages := []struct {
		state State
		run   func() *integrity.Result
	}{
		{StateCheckingIntegrity, m.checkIntegrity},
		{StateLoadingConfig, m.loadConfiguration},
		{StateValidatingConfig, m.validateConfiguration},
	}

	for _, stage := range stages {
		if !m.runStage(stage.state, stage.run) {
			return m.enterSafeMode(fmt.Sprintf("%s failed after %d recovery attempts",
				stage.state.String(), m.recoveryAttempts))
		}
	}

	m.state = StateReady
	m.bootTimeMs = m.clock.NowMillis() - m.bootStartMs

	// Any completed boot resets the failure budget.
	m.stats.FailureCount = 0
	m.persistStats()

	if m.recoveryAttempts > 0 {
		m.logger.Info("boot completed after recovery",
			"attempts", m.recoveryAttempts, "boot_ms", m.bootTimeMs)
		return ResultRecovered
	}
	m.logger.Info("boot completed", "boot_ms", m.bootTimeMs)
	return ResultSuccess
}

// runStage runs one stage, escalating to recovery on failure and
// re-running the same stage afterwards, until success or an exhausted
// attempt budget.
func (m *Manager) runStage(state State, run func() *integrity.Result) bool {
	for {
		m.state = state
		res := run()
		if res == nil || res.Valid {
			return true
		}

		if m.recoveryAttempts >= MaxRecoveryAttempts {
			m.lastErr = fmt.Sprintf("%s: attempt budget exhausted", state.String())
			return false
		}

		m.state = StateRecovering
		m.recoveryAttempts++
		m.logger.Warn("boot stage failed, attempting recovery",
			"stage", state.String(), "attempt", m.recoveryAttempts,
			"errors", len(res.Errors))

		if _, err := m.recovery.AttemptAutoRecovery(res); err != nil {
			m.lastErr = fmt.Sprintf("%s: recovery failed: %v", state.String(), err)
			return false
		}
	}
}

// mountStorage probes the store with a write/read/delete cycle.
func (m *Manager) mountStorage() bool {
	probe := []byte{0xA5, 0x5A}
	if err := m.store.Write(probeFile, probe); err != nil {
		m.lastErr = fmt.Sprintf("storage probe write: %v", err)
		return false
	}
	got, err := m.store.Read(probeFile)
	if err != nil || !bytes.Equal(got, probe) {
		m.lastErr = "storage probe readback failed"
		return false
	}
	_ = m.store.Delete(probeFile)
	m.storageMounted = true
	return true
}

func (m *Manager) checkIntegrity() *integrity.Result {
	res := integrity.NewResult()

	if err := m.protector.Initialize(); err != nil {
		m.lastErr = fmt.Sprintf("protector initialize: %v", err)
		res.AddError(integrity.ErrorDetail{
			Kind:    integrity.ErrChecksumFailure,
			Message: m.lastErr,
		})
		return res
	}

	if !m.protector.VerifyIntegrity() {
		if !m.protector.RepairCorruption() {
			m.lastErr = "critical data integrity unrecoverable"
			res.AddError(integrity.ErrorDetail{
				Kind:    integrity.ErrChecksumFailure,
				Message: m.lastErr,
			})
			return res
		}
	}

	m.integrityVerified = true
	return res
}

func (m *Manager) loadConfiguration() *integrity.Result {
	res := integrity.NewResult()

	if err := m.recovery.Initialize(); err != nil {
		m.lastErr = fmt.Sprintf("recovery initialize: %v", err)
		res.AddError(integrity.ErrorDetail{
			Kind:    integrity.ErrChecksumFailure,
			Message: m.lastErr,
		})
		return res
	}

	m.configLoaded = true
	return res
}

func (m *Manager) validateConfiguration() *integrity.Result {
	cfg := m.protector.Configuration()
	res := validate.Configuration(&cfg, m.vctx)

	cal := m.protector.Calibration()
	res.Merge(validate.Calibration(&cal, m.vctx))

	for bank := uint8(0); bank < device.BankCount; bank++ {
		km, err := m.protector.KeyMode(bank)
		if err == nil {
			res.Merge(validate.KeyMode(&km, bank, m.vctx))
		}
		cc, err := m.protector.ControlChange(bank)
		if err == nil {
			res.Merge(validate.ControlChange(&cc, bank, m.vctx))
		}
	}

	if !res.Valid {
		m.lastErr = fmt.Sprintf("configuration invalid: %d errors", len(res.Errors))
		return res
	}

	m.configValid = true
	return res
}

func (m *Manager) loadStats() {
	raw, err := m.store.Read(StatsFile)
	if err != nil {
		return
	}
	s, err := decodeBootStats(raw)
	if err != nil {
		m.logger.Warn("boot stats corrupt, resetting", "error", err)
		return
	}
	m.stats = s
}

func (m *Manager) persistStats() {
	if err := m.store.Write(StatsFile, m.stats.encode()); err != nil {
		m.logger.Warn("boot stats write failed", "error", err)
	}
}

func (m *Manager) enterSafeMode(reason string) Result {
	m.state = StateSafeMode
	m.lastErr = reason
	m.bootTimeMs = m.clock.NowMillis() - m.bootStartMs
	m.stats.FailureCount++
	m.persistStats()
	m.logger.Error("entering safe mode", "reason", reason)
	return ResultSafeModeRequired
}

func (m *Manager) fail(reason string) Result {
	m.state = StateFailed
	m.lastErr = reason
	m.bootTimeMs = m.clock.NowMillis() - m.bootStartMs
	m.logger.Error("boot failed", "reason", reason)
	return ResultCriticalFailure
}

// Status returns a copy of the boot progress.
func (m *Manager) Status() Status {
	return Status{
		State:             m.state,
		StorageMounted:    m.storageMounted,
		IntegrityVerified: m.integrityVerified,
		ConfigLoaded:      m.configLoaded,
		ConfigValid:       m.configValid,
		CorruptionLevel:   m.protector.CorruptionLevel(),
		RecoveryAttempts:  m.recoveryAttempts,
		BootCount:         m.stats.BootCount,
		FailureCount:      m.stats.FailureCount,
		BootTimeMs:        m.bootTimeMs,
		LastError:         m.lastErr,
	}
}

// SafeConfiguration returns the hard-coded safe mode configuration.
func (m *Manager) SafeConfiguration() device.Configuration {
	return device.SafeModeConfiguration()
}

// EmergencyRecovery is the operator-triggered last resort: factory
// reset preserving calibration, then a full factory reset if even that
// fails.
func (m *Manager) EmergencyRecovery() error {
	m.logger.Warn("emergency recovery requested")
	err := m.recovery.RecoverToFactoryDefaults(true)
	if err != nil {
		err = m.protector.FactoryReset(false)
	}
	if err != nil {
		return err
	}
	// A successful emergency recovery is the way out of the boot
	// failure budget; without this the short-circuit is permanent.
	m.stats.FailureCount = 0
	m.persistStats()
	return nil
}
