// internal/realtime/quick.go
package realtime

// Fixed-function fast path for hot per-sample loops.
// Integer range checks only; no table lookup, no allocation.

// QuickValidate performs a range check on the base parameter.
// Unknown parameters pass.
func QuickValidate(id ParamID, value uint32) bool {
	switch id & 0xFF {
	case ParamKBChannel, ParamCCChannel:
		return value >= 1 && value <= 16
	case ParamKBScale:
		return value <= 15
	case ParamKBOctave:
		return value <= 7
	case ParamKBBaseNote, ParamCCID:
		return value <= 127
	case ParamMode, ParamSensitivity:
		return value <= 4
	case ParamBrightness:
		return value <= 15
	default:
		return true
	}
}

// QuickSanitize clamps common parameters. Unknown parameters pass
// through unchanged.
func QuickSanitize(id ParamID, value uint32) uint32 {
	switch id & 0xFF {
	case ParamKBChannel, ParamCCChannel:
		if value < 1 {
			return 1
		}
		if value > 16 {
			return 16
		}
	case ParamKBScale:
		if value > 15 {
			return 15
		}
	case ParamKBOctave:
		if value > 7 {
			return 7
		}
	case ParamKBBaseNote, ParamCCID:
		if value > 127 {
			return 127
		}
	case ParamMode, ParamSensitivity:
		if value > 4 {
			return 4
		}
	case ParamBrightness:
		if value > 15 {
			return 15
		}
	}
	return value
}
