// internal/validate/autofix.go
package validate

import (
	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/integrity"
)

// Auto-fix walks a validation result and clamps each fixable field to
// its documented range. Fixers refuse to touch anything when the
// result contains even one non-fixable error: partial repair of a
// configuration that still cannot validate is worse than rejecting it.

func clamp8(v, min, max uint8) uint8 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampScaleNote(n int8) int8 {
	if n < -MaxScaleNoteOffset {
		return -MaxScaleNoteOffset
	}
	if n > MaxScaleNoteOffset {
		return MaxScaleNoteOffset
	}
	return n
}

// AutoFixConfiguration applies fixes for global configuration errors.
// Returns false without mutation when the result is not fully fixable.
func AutoFixConfiguration(cfg *device.Configuration, result *integrity.Result) bool {
	if !result.CanAutoFix() {
		return false
	}

	fixed := false
	for _, e := range result.Errors {
		if !e.AutoFixable {
			continue
		}
		switch e.Location.Parameter {
		case "mode":
			cfg.Mode = clamp8(cfg.Mode, 0, MaxMode)
			fixed = true
		case "sensitivity":
			cfg.Sensitivity = clamp8(cfg.Sensitivity, 0, MaxSensitivity)
			fixed = true
		case "brightness":
			cfg.Brightness = clamp8(cfg.Brightness, 0, MaxBrightness)
			fixed = true
		case "palette":
			cfg.Palette = clamp8(cfg.Palette, 0, device.BankCount-1)
			fixed = true
		case "midi_trs":
			cfg.MIDITRS = clamp8(cfg.MIDITRS, 0, 1)
			fixed = true
		case "trs_type":
			cfg.TRSType = clamp8(cfg.TRSType, 0, 1)
			fixed = true
		case "passthrough":
			cfg.Passthrough = clamp8(cfg.Passthrough, 0, 1)
			fixed = true
		case "midi_ble":
			cfg.MIDIBLE = clamp8(cfg.MIDIBLE, 0, 1)
			fixed = true
		case "custom_scale1":
			if int(e.Location.Index) < len(cfg.CustomScale1) {
				cfg.CustomScale1[e.Location.Index] = clampScaleNote(cfg.CustomScale1[e.Location.Index])
				fixed = true
			}
		case "custom_scale2":
			if int(e.Location.Index) < len(cfg.CustomScale2) {
				cfg.CustomScale2[e.Location.Index] = clampScaleNote(cfg.CustomScale2[e.Location.Index])
				fixed = true
			}
		}
	}

	if fixed {
		cfg.Dirty = true
	}
	return fixed
}

// AutoFixKeyMode applies fixes for one bank's keyboard errors.
func AutoFixKeyMode(km *device.KeyMode, result *integrity.Result) bool {
	if !result.CanAutoFix() {
		return false
	}

	fixed := false
	for _, e := range result.Errors {
		if !e.AutoFixable {
			continue
		}
		switch e.Location.Parameter {
		case "channel":
			km.Channel = clamp8(km.Channel, 1, 16)
			fixed = true
		case "scale":
			km.Scale = clamp8(km.Scale, 0, MaxScaleIndex)
			fixed = true
		case "base_octave":
			km.BaseOctave = clamp8(km.BaseOctave, 0, MaxOctave)
			fixed = true
		case "base_note":
			km.BaseNote = clamp8(km.BaseNote, 0, 127)
			fixed = true
		case "velocity_curve":
			km.VelocityCurve = clamp8(km.VelocityCurve, 0, MaxCurve)
			fixed = true
		case "aftertouch_curve":
			km.AftertouchCurve = clamp8(km.AftertouchCurve, 0, MaxCurve)
			fixed = true
		case "flip_x":
			km.FlipX = clamp8(km.FlipX, 0, 1)
			fixed = true
		case "flip_y":
			km.FlipY = clamp8(km.FlipY, 0, 1)
			fixed = true
		case "kb_palette":
			km.Palette = clamp8(km.Palette, 0, device.BankCount-1)
			fixed = true
		}
	}

	if fixed {
		km.Dirty = true
	}
	return fixed
}

// AutoFixControlChange applies fixes for one bank's CC mapping errors.
func AutoFixControlChange(cc *device.ControlChange, result *integrity.Result) bool {
	if !result.CanAutoFix() {
		return false
	}

	fixed := false
	for _, e := range result.Errors {
		if !e.AutoFixable {
			continue
		}
		idx := e.Location.Index
		if int(idx) >= device.CCPerBank {
			continue
		}
		switch e.Location.Parameter {
		case "cc_channel":
			cc.Channel[idx] = clamp8(cc.Channel[idx], 1, 16)
			fixed = true
		case "cc_id":
			cc.ID[idx] = clamp8(cc.ID[idx], 0, MaxCCID)
			fixed = true
		}
	}

	if fixed {
		cc.Dirty = true
	}
	return fixed
}

// AutoFixCalibration clamps out-of-ADC-range maxima. Inverted pairs
// are left alone: they are not auto-fixable and their presence makes
// CanAutoFix false, so this returns false without mutation.
func AutoFixCalibration(cal *device.Calibration, result *integrity.Result) bool {
	if !result.CanAutoFix() {
		return false
	}

	fixed := false
	for _, e := range result.Errors {
		if !e.AutoFixable || e.Location.Parameter != "calibration_max" {
			continue
		}
		idx := e.Location.Index
		if int(idx) >= device.KeyCount {
			continue
		}
		if cal.Max[idx] > device.ADCMax {
			cal.Max[idx] = device.ADCMax
			fixed = true
		}
	}

	return fixed
}
