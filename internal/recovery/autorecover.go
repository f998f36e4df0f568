// internal/recovery/autorecover.go
package recovery

import (
	"errors"

	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/integrity"
)

// Method records which escalation tier resolved a recovery.
type Method uint8

const (
	MethodNone Method = iota
	MethodParameter
	MethodSnapshot
	MethodFactory
)

func (m Method) String() string {
	switch m {
	case MethodParameter:
		return "parameter_reset"
	case MethodSnapshot:
		return "snapshot_restore"
	case MethodFactory:
		return "factory_reset"
	default:
		return "none"
	}
}

// AttemptAutoRecovery runs the three-tier escalation against a failed
// validation: parameter reset, then snapshot restore (newest first),
// then factory defaults preserving calibration. The first tier that
// succeeds wins. Stats are updated and persisted for every attempt.
func (m *Manager) AttemptAutoRecovery(res *integrity.Result) (Method, error) {
	m.stats.TotalAttempts++
	m.stats.LastRecoveryMs = m.clock.NowMillis()

	m.logger.Warn("automatic recovery started",
		"errors", len(res.Errors), "warnings", len(res.Warnings))

	if m.tryParameterReset(res) {
		m.stats.Successful++
		m.stats.ParameterResets++
		m.persistStats()
		m.logger.Info("recovery succeeded", "method", MethodParameter.String())
		return MethodParameter, nil
	}

	if m.trySnapshotRestore() {
		m.stats.Successful++
		m.stats.SnapshotRestores++
		m.persistStats()
		m.logger.Info("recovery succeeded", "method", MethodSnapshot.String())
		return MethodSnapshot, nil
	}

	if err := m.RecoverToFactoryDefaults(true); err == nil {
		m.stats.Successful++
		m.stats.FactoryResets++
		m.persistStats()
		m.logger.Info("recovery succeeded", "method", MethodFactory.String())
		return MethodFactory, nil
	}

	m.stats.Failed++
	m.persistStats()
	m.logger.Error("all recovery tiers failed")
	return MethodNone, errors.New("recovery: all tiers exhausted")
}

// tryParameterReset resets each fixable error's named field to its
// factory default. Any non-fixable error disqualifies the whole tier:
// a half-repaired configuration is worse than escalating.
func (m *Manager) tryParameterReset(res *integrity.Result) bool {
	if len(res.Errors) == 0 {
		return false
	}
	for _, e := range res.Errors {
		if !e.AutoFixable {
			m.logger.Debug("parameter reset disqualified",
				"parameter", e.Location.Parameter, "kind", e.Kind.String())
			return false
		}
	}

	cfg := m.protector.Configuration()
	cal := m.protector.Calibration()
	factory := device.FactoryConfiguration()
	cfgTouched := false
	calTouched := false

	type bankEdit struct {
		km, cc bool
	}
	var bankEdits [device.BankCount]bankEdit
	var keyModes [device.BankCount]device.KeyMode
	var ccs [device.BankCount]device.ControlChange

	for _, e := range res.Errors {
		bank := e.Location.Bank
		idx := e.Location.Index

		switch e.Location.Parameter {
		case "mode":
			cfg.Mode = factory.Mode
			cfgTouched = true
		case "sensitivity":
			cfg.Sensitivity = factory.Sensitivity
			cfgTouched = true
		case "brightness":
			cfg.Brightness = factory.Brightness
			cfgTouched = true
		case "palette":
			cfg.Palette = factory.Palette
			cfgTouched = true
		case "midi_trs":
			cfg.MIDITRS = 0
			cfgTouched = true
		case "trs_type":
			cfg.TRSType = 0
			cfgTouched = true
		case "passthrough":
			cfg.Passthrough = 0
			cfgTouched = true
		case "midi_ble":
			cfg.MIDIBLE = 0
			cfgTouched = true
		case "custom_scale1":
			if int(idx) < len(cfg.CustomScale1) {
				cfg.CustomScale1[idx] = factory.CustomScale1[idx]
				cfgTouched = true
			}
		case "custom_scale2":
			if int(idx) < len(cfg.CustomScale2) {
				cfg.CustomScale2[idx] = factory.CustomScale2[idx]
				cfgTouched = true
			}

		case "channel", "scale", "base_octave", "base_note",
			"velocity_curve", "aftertouch_curve", "flip_x", "flip_y", "kb_palette":
			if bank >= device.BankCount {
				return false
			}
			if !bankEdits[bank].km {
				km, err := m.protector.KeyMode(bank)
				if err != nil {
					return false
				}
				keyModes[bank] = km
				bankEdits[bank].km = true
			}
			resetKeyModeField(&keyModes[bank], e.Location.Parameter, bank)

		case "calibration_max":
			if int(idx) >= device.KeyCount {
				return false
			}
			cal.Max[idx] = device.ADCMax
			calTouched = true

		case "cc_channel", "cc_id":
			if bank >= device.BankCount || int(idx) >= device.CCPerBank {
				return false
			}
			if !bankEdits[bank].cc {
				cc, err := m.protector.ControlChange(bank)
				if err != nil {
					return false
				}
				ccs[bank] = cc
				bankEdits[bank].cc = true
			}
			if e.Location.Parameter == "cc_channel" {
				ccs[bank].Channel[idx] = 1
			} else {
				ccs[bank].ID[idx] = uint8(13 + idx)
			}

		default:
			m.logger.Debug("no default known for parameter",
				"parameter", e.Location.Parameter)
			return false
		}
	}

	if cfgTouched || calTouched {
		tx, err := m.protector.Begin()
		if err != nil {
			return false
		}
		defer tx.Rollback()
		if cfgTouched {
			if err := tx.UpdateConfiguration(cfg); err != nil {
				return false
			}
		}
		if calTouched {
			if err := tx.UpdateCalibration(cal); err != nil {
				return false
			}
		}
		if err := tx.Commit(); err != nil {
			return false
		}
	}

	for bank := uint8(0); bank < device.BankCount; bank++ {
		if bankEdits[bank].km {
			if err := m.protector.SetKeyMode(bank, keyModes[bank]); err != nil {
				return false
			}
		}
		if bankEdits[bank].cc {
			if err := m.protector.SetControlChange(bank, ccs[bank]); err != nil {
				return false
			}
		}
	}

	return true
}

func resetKeyModeField(km *device.KeyMode, param string, bank uint8) {
	factory := device.FactoryKeyMode(bank)
	switch param {
	case "channel":
		km.Channel = factory.Channel
	case "scale":
		km.Scale = factory.Scale
	case "base_octave":
		km.BaseOctave = factory.BaseOctave
	case "base_note":
		km.BaseNote = factory.BaseNote
	case "velocity_curve":
		km.VelocityCurve = factory.VelocityCurve
	case "aftertouch_curve":
		km.AftertouchCurve = factory.AftertouchCurve
	case "flip_x":
		km.FlipX = factory.FlipX
	case "flip_y":
		km.FlipY = factory.FlipY
	case "kb_palette":
		km.Palette = factory.Palette
	}
}

// trySnapshotRestore walks the ring newest first, skipping snapshots
// that fail checksum verification or re-validation.
func (m *Manager) trySnapshotRestore() bool {
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		s := m.snapshots[i]
		if err := m.applySnapshot(&s); err != nil {
			m.logger.Warn("snapshot restore skipped",
				"slot", i, "reason", s.Reason.String(), "error", err)
			continue
		}
		m.logger.Info("restored from snapshot",
			"slot", i, "reason", s.Reason.String(),
			"description", s.Description, "age_ms", m.clock.NowMillis()-s.Timestamp)
		return true
	}
	return false
}
