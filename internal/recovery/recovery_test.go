// internal/recovery/recovery_test.go
package recovery

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/midiguard/internal/clock"
	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/integrity"
	"github.com/tamzrod/midiguard/internal/protect"
	"github.com/tamzrod/midiguard/internal/store"
	"github.com/tamzrod/midiguard/internal/validate"
)

type fixture struct {
	store     *store.Memory
	protector *protect.Protector
	clock     *clock.Fake
	manager   *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	vctx := validate.DefaultContext(device.VariantT16, device.FirmwareVersion)
	p := protect.NewProtector(st, vctx, slog.Default())
	require.NoError(t, p.Initialize())

	clk := &clock.Fake{Millis: 1000}
	m := NewManager(st, p, clk, vctx, 0, slog.Default())
	return &fixture{store: st, protector: p, clock: clk, manager: m}
}

func (f *fixture) commitConfiguration(t *testing.T, mutate func(*device.Configuration)) {
	t.Helper()
	tx, err := f.protector.Begin()
	require.NoError(t, err)
	defer tx.Rollback()
	cfg := f.protector.Configuration()
	mutate(&cfg)
	require.NoError(t, tx.UpdateConfiguration(cfg))
	require.NoError(t, tx.Commit())
}

func TestInitializeTakesStartupSnapshot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Initialize())

	assert.Equal(t, 1, f.manager.SnapshotCount())
	s, err := f.manager.SnapshotAt(0)
	require.NoError(t, err)
	assert.Equal(t, ReasonUserRequest, s.Reason)
	assert.True(t, s.Verify())
	assert.True(t, f.store.Exists(SnapshotFile(0)))
}

func TestSnapshotRingEvictsOldest(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < MaxSnapshots+2; i++ {
		f.clock.Advance(10)
		require.NoError(t, f.manager.CreateSnapshot(ReasonUserRequest, "entry"))
	}

	assert.Equal(t, MaxSnapshots, f.manager.SnapshotCount())
	oldest, err := f.manager.SnapshotAt(0)
	require.NoError(t, err)
	newest, err := f.manager.SnapshotAt(MaxSnapshots - 1)
	require.NoError(t, err)
	assert.Less(t, oldest.Timestamp, newest.Timestamp)
}

func TestSnapshotsSurviveRestart(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.CreateSnapshot(ReasonCriticalChange, "before risky edit"))

	m2 := NewManager(f.store, f.protector, f.clock, f.manager.vctx, 0, slog.Default())
	m2.loadSnapshots()
	require.Equal(t, 1, m2.SnapshotCount())

	s, err := m2.SnapshotAt(0)
	require.NoError(t, err)
	assert.Equal(t, ReasonCriticalChange, s.Reason)
	assert.Equal(t, "before risky edit", s.Description)
	assert.True(t, s.Verify())
}

func TestCorruptSnapshotDroppedOnLoad(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.CreateSnapshot(ReasonUserRequest, "a"))
	f.clock.Advance(10)
	require.NoError(t, f.manager.CreateSnapshot(ReasonUserRequest, "b"))

	require.True(t, f.store.Corrupt(SnapshotFile(0), 4))

	m2 := NewManager(f.store, f.protector, f.clock, f.manager.vctx, 0, slog.Default())
	m2.loadSnapshots()
	assert.Equal(t, 1, m2.SnapshotCount())
}

func TestPeriodicSnapshot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Initialize())
	require.Equal(t, 1, f.manager.SnapshotCount())

	f.clock.Advance(SnapshotIntervalMillis - 1)
	assert.False(t, f.manager.CheckPeriodicSnapshot())

	f.clock.Advance(1)
	assert.True(t, f.manager.CheckPeriodicSnapshot())
	assert.Equal(t, 2, f.manager.SnapshotCount())

	s, err := f.manager.SnapshotAt(1)
	require.NoError(t, err)
	assert.Equal(t, ReasonPeriodicBackup, s.Reason)

	// Interval restarts from the new snapshot.
	assert.False(t, f.manager.CheckPeriodicSnapshot())
}

func TestParameterResetRecovery(t *testing.T) {
	f := newFixture(t)

	res := integrity.NewResult()
	res.AddError(integrity.ErrorDetail{
		Kind:        integrity.ErrOutOfRange,
		Location:    integrity.Location{Parameter: "brightness"},
		Value:       200,
		Min:         0,
		Max:         15,
		AutoFixable: true,
	})
	res.AddError(integrity.ErrorDetail{
		Kind:        integrity.ErrOutOfRange,
		Location:    integrity.Location{Bank: 2, Parameter: "channel"},
		Value:       99,
		Min:         1,
		Max:         16,
		AutoFixable: true,
	})

	method, err := f.manager.AttemptAutoRecovery(res)
	require.NoError(t, err)
	assert.Equal(t, MethodParameter, method)

	assert.Equal(t, uint8(6), f.protector.Configuration().Brightness)
	km, err := f.protector.KeyMode(2)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), km.Channel)

	stats := f.manager.Stats()
	assert.Equal(t, uint32(1), stats.TotalAttempts)
	assert.Equal(t, uint32(1), stats.Successful)
	assert.Equal(t, uint32(1), stats.ParameterResets)
}

func TestNonFixableErrorEscalatesToSnapshot(t *testing.T) {
	f := newFixture(t)

	// Known-good state with a distinctive brightness, snapshotted.
	f.commitConfiguration(t, func(c *device.Configuration) { c.Brightness = 12 })
	require.NoError(t, f.manager.CreateSnapshot(ReasonCriticalChange, "known good"))

	// Later edit that turns out bad.
	f.commitConfiguration(t, func(c *device.Configuration) { c.Brightness = 2 })

	// Inverted calibration pair: detected as a non-fixable error, so
	// the parameter tier is disqualified and the snapshot tier runs.
	cal := f.protector.Calibration()
	cal.Min[3] = 4000
	cal.Max[3] = 100
	res := validate.Calibration(&cal, f.manager.vctx)
	require.False(t, res.Valid)
	require.False(t, res.CanAutoFix())

	method, err := f.manager.AttemptAutoRecovery(res)
	require.NoError(t, err)
	assert.Equal(t, MethodSnapshot, method)
	assert.Equal(t, uint8(12), f.protector.Configuration().Brightness)

	stats := f.manager.Stats()
	assert.Equal(t, uint32(1), stats.SnapshotRestores)
}

func TestSnapshotTierSkipsInvalidSnapshot(t *testing.T) {
	f := newFixture(t)

	// Good snapshot first.
	f.commitConfiguration(t, func(c *device.Configuration) { c.Brightness = 9 })
	require.NoError(t, f.manager.CreateSnapshot(ReasonUserRequest, "good"))

	// Newer snapshot whose configuration no longer validates.
	bad := f.manager.snapshots[len(f.manager.snapshots)-1]
	bad.Configuration.Mode = 99
	bad.Seal()
	f.manager.snapshots = append(f.manager.snapshots, bad)

	res := integrity.NewResult()
	res.AddError(integrity.ErrorDetail{
		Kind: integrity.ErrChecksumFailure,
	})

	method, err := f.manager.AttemptAutoRecovery(res)
	require.NoError(t, err)
	assert.Equal(t, MethodSnapshot, method)
	assert.Equal(t, uint8(9), f.protector.Configuration().Brightness)
}

func TestFactoryTierPreservesCalibration(t *testing.T) {
	f := newFixture(t)

	// Distinctive calibration committed first.
	tx, err := f.protector.Begin()
	require.NoError(t, err)
	cal := f.protector.Calibration()
	cal.Min[5] = 300
	cal.Max[5] = 3700
	require.NoError(t, tx.UpdateCalibration(cal))
	require.NoError(t, tx.Commit())

	f.commitConfiguration(t, func(c *device.Configuration) { c.Brightness = 1 })

	// No snapshots exist; a non-fixable error skips straight past the
	// first two tiers.
	res := integrity.NewResult()
	res.AddError(integrity.ErrorDetail{Kind: integrity.ErrChecksumFailure})

	method, err := f.manager.AttemptAutoRecovery(res)
	require.NoError(t, err)
	assert.Equal(t, MethodFactory, method)

	assert.Equal(t, device.FactoryConfiguration().Brightness, f.protector.Configuration().Brightness)
	assert.Equal(t, uint16(300), f.protector.Calibration().Min[5])
	assert.Equal(t, uint32(1), f.manager.Stats().FactoryResets)
}

func TestRecoverFromSnapshotByIndex(t *testing.T) {
	f := newFixture(t)

	f.commitConfiguration(t, func(c *device.Configuration) { c.Mode = 1 })
	require.NoError(t, f.manager.CreateSnapshot(ReasonUserRequest, "mode 1"))
	f.commitConfiguration(t, func(c *device.Configuration) { c.Mode = 2 })
	require.NoError(t, f.manager.CreateSnapshot(ReasonUserRequest, "mode 2"))

	require.NoError(t, f.manager.RecoverFromSnapshot(0))
	assert.Equal(t, uint8(1), f.protector.Configuration().Mode)

	assert.Error(t, f.manager.RecoverFromSnapshot(7))
}

func TestDeleteSnapshotCompactsRing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.CreateSnapshot(ReasonUserRequest, "a"))
	f.clock.Advance(10)
	require.NoError(t, f.manager.CreateSnapshot(ReasonUserRequest, "b"))

	require.NoError(t, f.manager.DeleteSnapshot(0))
	assert.Equal(t, 1, f.manager.SnapshotCount())
	s, err := f.manager.SnapshotAt(0)
	require.NoError(t, err)
	assert.Equal(t, "b", s.Description)
	assert.False(t, f.store.Exists(SnapshotFile(1)))
}

func TestStatsSurviveRestart(t *testing.T) {
	f := newFixture(t)

	res := integrity.NewResult()
	res.AddError(integrity.ErrorDetail{
		Kind:        integrity.ErrOutOfRange,
		Location:    integrity.Location{Parameter: "mode"},
		AutoFixable: true,
	})
	_, err := f.manager.AttemptAutoRecovery(res)
	require.NoError(t, err)

	m2 := NewManager(f.store, f.protector, f.clock, f.manager.vctx, 0, slog.Default())
	m2.loadStats()
	assert.Equal(t, uint32(1), m2.Stats().TotalAttempts)
	assert.Equal(t, uint32(1), m2.Stats().ParameterResets)
}
