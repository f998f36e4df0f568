// internal/realtime/params.go
package realtime

// Parameter ID layout. Protocol-locked.
// A composite ID packs base | bank<<8 | index<<16 into 32 bits.

type ParamID uint32

const (
	// Global settings
	ParamMode        ParamID = 0x01
	ParamSensitivity ParamID = 0x02
	ParamBrightness  ParamID = 0x03
	ParamPalette     ParamID = 0x04
	ParamMIDITRS     ParamID = 0x05
	ParamTRSType     ParamID = 0x06
	ParamPassthrough ParamID = 0x07
	ParamMIDIBLE     ParamID = 0x08

	// Keyboard settings (bank-decorated)
	ParamKBChannel         ParamID = 0x10
	ParamKBScale           ParamID = 0x11
	ParamKBOctave          ParamID = 0x12
	ParamKBBaseNote        ParamID = 0x13
	ParamKBVelocityCurve   ParamID = 0x14
	ParamKBAftertouchCurve ParamID = 0x15
	ParamKBFlipX           ParamID = 0x16
	ParamKBFlipY           ParamID = 0x17

	// CC settings (bank- and index-decorated)
	ParamCCChannel ParamID = 0x20
	ParamCCID      ParamID = 0x21

	// System parameters
	ParamPressureThreshold   ParamID = 0x30
	ParamAftertouchThreshold ParamID = 0x31
	ParamVelocitySensitivity ParamID = 0x32
	ParamDebounceTime        ParamID = 0x33

	// Calibration (key-index-decorated)
	ParamCalibrationMin ParamID = 0x40
	ParamCalibrationMax ParamID = 0x41
)

// MakeID builds a composite parameter ID.
func MakeID(base ParamID, bank, index uint8) ParamID {
	return base | ParamID(bank)<<8 | ParamID(index)<<16
}

// ParseID splits a composite parameter ID.
func ParseID(id ParamID) (base ParamID, bank, index uint8) {
	return id & 0xFF, uint8(id >> 8), uint8(id >> 16)
}

// String names the base parameter; decorations are ignored.
func (id ParamID) String() string {
	base, _, _ := ParseID(id)
	switch base {
	case ParamMode:
		return "mode"
	case ParamSensitivity:
		return "sensitivity"
	case ParamBrightness:
		return "brightness"
	case ParamPalette:
		return "palette"
	case ParamMIDITRS:
		return "midi_trs"
	case ParamTRSType:
		return "trs_type"
	case ParamPassthrough:
		return "passthrough"
	case ParamMIDIBLE:
		return "midi_ble"
	case ParamKBChannel:
		return "channel"
	case ParamKBScale:
		return "scale"
	case ParamKBOctave:
		return "base_octave"
	case ParamKBBaseNote:
		return "base_note"
	case ParamKBVelocityCurve:
		return "velocity_curve"
	case ParamKBAftertouchCurve:
		return "aftertouch_curve"
	case ParamKBFlipX:
		return "flip_x"
	case ParamKBFlipY:
		return "flip_y"
	case ParamCCChannel:
		return "cc_channel"
	case ParamCCID:
		return "cc_id"
	case ParamPressureThreshold:
		return "pressure_threshold"
	case ParamAftertouchThreshold:
		return "aftertouch_threshold"
	case ParamVelocitySensitivity:
		return "velocity_sensitivity"
	case ParamDebounceTime:
		return "debounce_time"
	case ParamCalibrationMin:
		return "calibration_min"
	case ParamCalibrationMax:
		return "calibration_max"
	default:
		return "unknown"
	}
}
