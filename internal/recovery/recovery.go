// internal/recovery/recovery.go
package recovery

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tamzrod/midiguard/internal/clock"
	"github.com/tamzrod/midiguard/internal/integrity"
	"github.com/tamzrod/midiguard/internal/protect"
	"github.com/tamzrod/midiguard/internal/store"
	"github.com/tamzrod/midiguard/internal/validate"
)

// StatsFile holds the persistent recovery counters.
const StatsFile = "recovery_stats.dat"

// SnapshotFile names the blob for ring position i.
func SnapshotFile(i int) string {
	return fmt.Sprintf("snapshot_%d.dat", i)
}

// Stats counts recovery activity across the device's life.
type Stats struct {
	TotalAttempts    uint32
	Successful       uint32
	Failed           uint32
	ParameterResets  uint32
	SnapshotRestores uint32
	FactoryResets    uint32
	LastRecoveryMs   uint32
}

const statsVersion = 1
const statsBlobSize = 1 + 7*4 + 4

func (s *Stats) encode() []byte {
	buf := make([]byte, 0, statsBlobSize)
	buf = append(buf, statsVersion)
	for _, v := range [7]uint32{
		s.TotalAttempts, s.Successful, s.Failed,
		s.ParameterResets, s.SnapshotRestores, s.FactoryResets,
		s.LastRecoveryMs,
	} {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return binary.LittleEndian.AppendUint32(buf, integrity.Checksum32(buf))
}

func decodeStats(data []byte) (Stats, error) {
	var s Stats
	if len(data) != statsBlobSize {
		return s, fmt.Errorf("recovery: stats blob is %d bytes, want %d", len(data), statsBlobSize)
	}
	body := data[:len(data)-4]
	if integrity.Checksum32(body) != binary.LittleEndian.Uint32(data[len(data)-4:]) {
		return s, errors.New("recovery: stats checksum mismatch")
	}
	if body[0] != statsVersion {
		return s, fmt.Errorf("recovery: unknown stats layout version %d", body[0])
	}
	s.TotalAttempts = binary.LittleEndian.Uint32(body[1:])
	s.Successful = binary.LittleEndian.Uint32(body[5:])
	s.Failed = binary.LittleEndian.Uint32(body[9:])
	s.ParameterResets = binary.LittleEndian.Uint32(body[13:])
	s.SnapshotRestores = binary.LittleEndian.Uint32(body[17:])
	s.FactoryResets = binary.LittleEndian.Uint32(body[21:])
	s.LastRecoveryMs = binary.LittleEndian.Uint32(body[25:])
	return s, nil
}

// Manager keeps the snapshot ring and runs the three-tier automatic
// recovery escalation. It mutates device state only through the
// protector's transaction API.
//
// Not safe for concurrent use.
type Manager struct {
	store     store.Store
	protector *protect.Protector
	clock     clock.Clock
	logger    *slog.Logger
	vctx      validate.Context

	// Oldest first; index in the slice is the ring position on disk.
	snapshots []Snapshot

	stats          Stats
	lastSnapshotMs uint32
	intervalMs     uint32
}

// NewManager wires the recovery system. intervalMs 0 selects the
// default one-hour cadence.
func NewManager(st store.Store, p *protect.Protector, clk clock.Clock, vctx validate.Context, intervalMs uint32, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if intervalMs == 0 {
		intervalMs = SnapshotIntervalMillis
	}
	return &Manager{
		store:      st,
		protector:  p,
		clock:      clk,
		logger:     logger.With("component", "recovery"),
		vctx:       vctx,
		intervalMs: intervalMs,
	}
}

// Initialize loads persisted snapshots and stats, then records a fresh
// restore point for this power cycle.
func (m *Manager) Initialize() error {
	m.loadSnapshots()
	m.loadStats()

	if err := m.CreateSnapshot(ReasonUserRequest, "system initialization"); err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	m.logger.Info("recovery system ready",
		"snapshots", len(m.snapshots), "total_recoveries", m.stats.TotalAttempts)
	return nil
}

func (m *Manager) loadSnapshots() {
	m.snapshots = m.snapshots[:0]
	for i := 0; i < MaxSnapshots; i++ {
		raw, err := m.store.Read(SnapshotFile(i))
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				m.logger.Warn("snapshot unreadable", "slot", i, "error", err)
			}
			continue
		}
		s, err := decodeSnapshot(raw)
		if err != nil {
			m.logger.Warn("snapshot corrupt, dropping", "slot", i, "error", err)
			continue
		}
		m.snapshots = append(m.snapshots, s)
	}
}

func (m *Manager) loadStats() {
	raw, err := m.store.Read(StatsFile)
	if err != nil {
		return
	}
	s, err := decodeStats(raw)
	if err != nil {
		m.logger.Warn("recovery stats corrupt, resetting", "error", err)
		return
	}
	m.stats = s
}

func (m *Manager) persistStats() {
	if err := m.store.Write(StatsFile, m.stats.encode()); err != nil {
		m.logger.Warn("recovery stats write failed", "error", err)
	}
}

func (m *Manager) persistSnapshots() error {
	var firstErr error
	for i, s := range m.snapshots {
		if err := m.store.Write(SnapshotFile(i), s.encode()); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("snapshot slot %d: %w", i, err)
		}
	}
	for i := len(m.snapshots); i < MaxSnapshots; i++ {
		if m.store.Exists(SnapshotFile(i)) {
			_ = m.store.Delete(SnapshotFile(i))
		}
	}
	return firstErr
}

// CreateSnapshot captures the current configuration and calibration.
// The ring holds MaxSnapshots entries; the oldest is evicted.
func (m *Manager) CreateSnapshot(reason Reason, description string) error {
	s := Snapshot{
		Configuration:   m.protector.Configuration(),
		Calibration:     m.protector.Calibration(),
		Timestamp:       m.clock.NowMillis(),
		Reason:          reason,
		Description:     description,
		FirmwareVersion: m.protector.FirmwareVersion(),
	}
	s.Seal()

	if len(m.snapshots) >= MaxSnapshots {
		m.snapshots = m.snapshots[1:]
	}
	m.snapshots = append(m.snapshots, s)
	m.lastSnapshotMs = s.Timestamp

	m.logger.Info("snapshot created",
		"reason", reason.String(), "description", description,
		"count", len(m.snapshots))
	return m.persistSnapshots()
}

// CheckPeriodicSnapshot takes a periodic backup when the interval has
// elapsed. Called from the main loop; returns true when a snapshot was
// taken.
func (m *Manager) CheckPeriodicSnapshot() bool {
	now := m.clock.NowMillis()
	if now-m.lastSnapshotMs < m.intervalMs {
		return false
	}
	if err := m.CreateSnapshot(ReasonPeriodicBackup, "periodic backup"); err != nil {
		m.logger.Warn("periodic snapshot failed", "error", err)
		return false
	}
	return true
}

// SnapshotCount returns the number of live snapshots.
func (m *Manager) SnapshotCount() int {
	return len(m.snapshots)
}

// SnapshotAt returns a copy of the snapshot in ring position i
// (0 is the oldest).
func (m *Manager) SnapshotAt(i int) (Snapshot, error) {
	if i < 0 || i >= len(m.snapshots) {
		return Snapshot{}, fmt.Errorf("recovery: snapshot index %d out of range", i)
	}
	return m.snapshots[i], nil
}

// DeleteSnapshot removes one entry and compacts the ring.
func (m *Manager) DeleteSnapshot(i int) error {
	if i < 0 || i >= len(m.snapshots) {
		return fmt.Errorf("recovery: snapshot index %d out of range", i)
	}
	m.snapshots = append(m.snapshots[:i], m.snapshots[i+1:]...)
	return m.persistSnapshots()
}

// Stats returns a copy of the recovery counters.
func (m *Manager) Stats() Stats {
	return m.stats
}

// RecoverFromSnapshot restores one specific snapshot by ring position.
func (m *Manager) RecoverFromSnapshot(i int) error {
	s, err := m.SnapshotAt(i)
	if err != nil {
		return err
	}
	return m.applySnapshot(&s)
}

// applySnapshot verifies and re-validates a snapshot before applying
// it through a transaction. A snapshot that no longer validates under
// the lenient context is refused; stale data must not resurrect a bad
// configuration.
func (m *Manager) applySnapshot(s *Snapshot) error {
	if !s.Verify() {
		return errors.New("recovery: snapshot failed checksum verification")
	}

	lenient := m.vctx
	lenient.Level = validate.Standard
	lenient.Strict = false
	if res := validate.Configuration(&s.Configuration, lenient); !res.Valid {
		return fmt.Errorf("recovery: snapshot configuration no longer valid (%d errors)", len(res.Errors))
	}

	tx, err := m.protector.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.UpdateConfiguration(s.Configuration); err != nil {
		return err
	}
	if err := tx.UpdateCalibration(s.Calibration); err != nil {
		return err
	}
	return tx.Commit()
}

// RecoverToFactoryDefaults is the last resort.
func (m *Manager) RecoverToFactoryDefaults(preserveCalibration bool) error {
	m.logger.Warn("recovering to factory defaults",
		"preserve_calibration", preserveCalibration)
	return m.protector.FactoryReset(preserveCalibration)
}
