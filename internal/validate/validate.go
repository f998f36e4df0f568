// internal/validate/validate.go
package validate

import (
	"fmt"

	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/integrity"
)

// Level selects how deep a validation pass goes.
type Level uint8

const (
	Basic         Level = iota // essential checks only
	Standard                   // full range validation
	Comprehensive              // adds cross-checks (duplicate CC scan)
	Paranoid                   // maximum validation
)

// Context carries the environment a configuration is validated against.
type Context struct {
	Variant         device.Variant
	FirmwareVersion uint8
	Strict          bool
	Level           Level
}

// DefaultContext is the comprehensive strict context used at boot.
func DefaultContext(variant device.Variant, firmware uint8) Context {
	return Context{
		Variant:         variant,
		FirmwareVersion: firmware,
		Strict:          true,
		Level:           Comprehensive,
	}
}

// Validation bounds. Protocol-locked.
const (
	MaxMode            = 4
	MaxSensitivity     = 4
	MaxBrightness      = 15
	MaxScaleIndex      = 15
	MaxOctave          = 7
	MaxCCID            = 127
	MaxCurve           = 3
	MaxScaleNoteOffset = 24
	MinCalibrationSpan = 100
)

func rangeError(param string, bank, index uint8, value int64, min, max int64, kind integrity.ErrorKind, fix string) integrity.ErrorDetail {
	return integrity.ErrorDetail{
		Kind:        kind,
		Location:    integrity.Location{Bank: bank, Parameter: param, Index: index},
		Value:       value,
		Min:         min,
		Max:         max,
		AutoFixable: true,
		Fix:         fix,
	}
}

// Configuration validates the global configuration.
// Validation only; never mutates. Basic level checks the firmware
// floor and nothing else.
func Configuration(cfg *device.Configuration, ctx Context) *integrity.Result {
	result := integrity.NewResult()

	if cfg.Version < device.MinFirmwareVersion {
		result.AddError(integrity.ErrorDetail{
			Kind:     integrity.ErrFirmwareTooOld,
			Location: integrity.Location{Parameter: "version"},
			Value:    int64(cfg.Version),
			Min:      device.MinFirmwareVersion,
			Max:      255,
			Message:  "configuration requires newer firmware",
		})
	}

	if ctx.Level == Basic {
		return result
	}

	if cfg.Mode > MaxMode {
		result.AddError(rangeError("mode", 0, 0, int64(cfg.Mode), 0, MaxMode,
			integrity.ErrOutOfRange, "reset to keyboard mode (0)"))
	}
	if cfg.Sensitivity > MaxSensitivity {
		result.AddError(rangeError("sensitivity", 0, 0, int64(cfg.Sensitivity), 0, MaxSensitivity,
			integrity.ErrOutOfRange, "reset to default sensitivity (1)"))
	}
	if cfg.Brightness > MaxBrightness {
		result.AddError(rangeError("brightness", 0, 0, int64(cfg.Brightness), 0, MaxBrightness,
			integrity.ErrOutOfRange, "clamp to maximum brightness (15)"))
	}
	if cfg.Palette >= device.BankCount {
		result.AddError(rangeError("palette", 0, 0, int64(cfg.Palette), 0, device.BankCount-1,
			integrity.ErrOutOfRange, "reset to bank 0"))
	}
	if cfg.MIDITRS > 1 {
		result.AddError(rangeError("midi_trs", 0, 0, int64(cfg.MIDITRS), 0, 1,
			integrity.ErrOutOfRange, "reset to disabled (0)"))
	}
	if cfg.TRSType > 1 {
		result.AddError(rangeError("trs_type", 0, 0, int64(cfg.TRSType), 0, 1,
			integrity.ErrOutOfRange, "reset to Type A (0)"))
	}
	if cfg.Passthrough > 1 {
		result.AddError(rangeError("passthrough", 0, 0, int64(cfg.Passthrough), 0, 1,
			integrity.ErrOutOfRange, "reset to disabled (0)"))
	}
	if cfg.MIDIBLE > 1 {
		result.AddError(rangeError("midi_ble", 0, 0, int64(cfg.MIDIBLE), 0, 1,
			integrity.ErrOutOfRange, "reset to disabled (0)"))
	}

	result.Merge(CustomScale(&cfg.CustomScale1, 1))
	result.Merge(CustomScale(&cfg.CustomScale2, 2))

	return result
}

// CustomScale validates one custom scale array. A 0xFF first entry
// means the scale is intentionally unset and skips validation.
func CustomScale(scale *[16]int8, which uint8) *integrity.Result {
	result := integrity.NewResult()

	if scale[0] == device.ScaleUnset {
		return result
	}

	param := fmt.Sprintf("custom_scale%d", which)
	for i, note := range scale {
		if note < -MaxScaleNoteOffset || note > MaxScaleNoteOffset {
			result.AddError(rangeError(param, 0, uint8(i), int64(note),
				-MaxScaleNoteOffset, MaxScaleNoteOffset,
				integrity.ErrInvalidScaleNote, "clamp to scale offset range [-24, +24]"))
		}
	}
	return result
}

// KeyMode validates one bank's keyboard behavior.
func KeyMode(km *device.KeyMode, bank uint8, ctx Context) *integrity.Result {
	result := integrity.NewResult()

	if km.Channel < 1 || km.Channel > 16 {
		result.AddError(rangeError("channel", bank, 0, int64(km.Channel), 1, 16,
			integrity.ErrInvalidMIDIChannel, "clamp to valid range [1-16]"))
	}
	if km.Scale > MaxScaleIndex {
		result.AddError(rangeError("scale", bank, 0, int64(km.Scale), 0, MaxScaleIndex,
			integrity.ErrInvalidScale, "reset to chromatic scale (0)"))
	}
	if km.BaseOctave > MaxOctave {
		result.AddError(rangeError("base_octave", bank, 0, int64(km.BaseOctave), 0, MaxOctave,
			integrity.ErrInvalidOctave, "clamp to octave range [0-7]"))
	}
	if km.BaseNote > 127 {
		result.AddError(rangeError("base_note", bank, 0, int64(km.BaseNote), 0, 127,
			integrity.ErrOutOfRange, "clamp to MIDI note range [0-127]"))
	}
	if km.VelocityCurve > MaxCurve {
		result.AddError(rangeError("velocity_curve", bank, 0, int64(km.VelocityCurve), 0, MaxCurve,
			integrity.ErrOutOfRange, "reset to default curve (1)"))
	}
	if km.AftertouchCurve > MaxCurve {
		result.AddError(rangeError("aftertouch_curve", bank, 0, int64(km.AftertouchCurve), 0, MaxCurve,
			integrity.ErrOutOfRange, "reset to default curve (1)"))
	}
	if km.FlipX > 1 {
		result.AddError(rangeError("flip_x", bank, 0, int64(km.FlipX), 0, 1,
			integrity.ErrOutOfRange, "reset to non-flipped (0)"))
	}
	if km.FlipY > 1 {
		result.AddError(rangeError("flip_y", bank, 0, int64(km.FlipY), 0, 1,
			integrity.ErrOutOfRange, "reset to non-flipped (0)"))
	}
	if km.Palette >= device.BankCount {
		result.AddError(rangeError("kb_palette", bank, 0, int64(km.Palette), 0, device.BankCount-1,
			integrity.ErrOutOfRange, "reset to bank palette"))
	}

	return result
}

// ControlChange validates one bank's CC mapping. Comprehensive level
// adds a duplicate-ID warning scan across the bank.
func ControlChange(cc *device.ControlChange, bank uint8, ctx Context) *integrity.Result {
	result := integrity.NewResult()
	used := make(map[uint8]bool, device.CCPerBank)

	for i := 0; i < device.CCPerBank; i++ {
		if cc.Channel[i] < 1 || cc.Channel[i] > 16 {
			result.AddError(rangeError("cc_channel", bank, uint8(i), int64(cc.Channel[i]), 1, 16,
				integrity.ErrInvalidMIDIChannel, "reset to channel 1"))
		}
		if cc.ID[i] > MaxCCID {
			result.AddError(rangeError("cc_id", bank, uint8(i), int64(cc.ID[i]), 0, MaxCCID,
				integrity.ErrInvalidCCID, "reset to default CC mapping"))
		}

		if ctx.Level >= Comprehensive {
			if used[cc.ID[i]] {
				result.AddWarning(integrity.WarningDetail{
					Kind:     integrity.WarnDuplicateCCID,
					Severity: integrity.SeverityHigh,
					Location: integrity.Location{Bank: bank, Parameter: "cc_id", Index: uint8(i)},
					Message:  "multiple CCs assigned to same ID",
				})
			} else {
				used[cc.ID[i]] = true
			}
		}
	}

	return result
}

// Calibration validates per-key sensor bounds.
// An inverted min>max pair is NOT auto-fixable: it is ambiguous which
// bound is wrong. An out-of-ADC-range max is fixable by clamping.
func Calibration(cal *device.Calibration, ctx Context) *integrity.Result {
	result := integrity.NewResult()

	keys := ctx.Variant.Keys()
	if keys > device.KeyCount {
		keys = device.KeyCount
	}

	for i := 0; i < keys; i++ {
		if cal.Min[i] > cal.Max[i] {
			result.AddError(integrity.ErrorDetail{
				Kind:     integrity.ErrOutOfRange,
				Location: integrity.Location{Parameter: "calibration", Index: uint8(i)},
				Value:    int64(cal.Min[i]),
				Min:      0,
				Max:      int64(cal.Max[i]),
				Message:  "calibration min value exceeds max value",
			})
		}

		if cal.Max[i] > device.ADCMax {
			result.AddError(rangeError("calibration_max", 0, uint8(i), int64(cal.Max[i]), 0, device.ADCMax,
				integrity.ErrOutOfRange, "clamp to ADC maximum (4095)"))
		}

		if cal.Max[i] > 0 && cal.Max[i] >= cal.Min[i] && cal.Max[i]-cal.Min[i] < MinCalibrationSpan {
			result.AddWarning(integrity.WarningDetail{
				Kind:     integrity.WarnUnknownParameter,
				Severity: integrity.SeverityModerate,
				Location: integrity.Location{Parameter: "calibration", Index: uint8(i)},
				Message:  "suspiciously narrow calibration range",
			})
		}
	}

	return result
}
