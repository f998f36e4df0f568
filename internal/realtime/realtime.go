// internal/realtime/realtime.go
package realtime

import (
	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/integrity"
)

// Threshold coupling constants. The pressure-detection threshold must
// always sit at least ThresholdGap below the aftertouch threshold.
const (
	DefaultPressureThreshold   = 0.18
	DefaultAftertouchThreshold = 0.25
	ThresholdGap               = 0.05
)

// Constraint bounds one parameter.
type Constraint struct {
	Min     float64
	Max     float64
	Default float64

	// Check is an optional parameter-specific predicate.
	Check func(float64) bool

	// Sanitize is an optional repair function applied before clamping.
	Sanitize func(float64) float64

	Description string
}

// Validator is the hot-path validator for single live parameter edits.
// Lookup is by exact composite ID with fallback to the undecorated
// base ID; unknown parameters warn but never block an edit.
//
// Not safe for concurrent use.
type Validator struct {
	constraints map[ParamID]Constraint

	// Live values backing the cross-parameter threshold coupling.
	pressureThreshold   float64
	aftertouchThreshold float64
}

func NewValidator() *Validator {
	v := &Validator{
		constraints:         make(map[ParamID]Constraint, 128),
		pressureThreshold:   DefaultPressureThreshold,
		aftertouchThreshold: DefaultAftertouchThreshold,
	}
	v.setupGlobal()
	v.setupKeyboard()
	v.setupControlChange()
	v.setupSystem()
	v.setupCalibration()
	return v
}

func isInteger(f float64) bool {
	return f == float64(int64(f))
}

func roundInt(f float64) float64 {
	if f < 0 {
		return float64(int64(f - 0.5))
	}
	return float64(int64(f + 0.5))
}

func clampF(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func intConstraint(min, max, def float64, desc string) Constraint {
	return Constraint{
		Min:         min,
		Max:         max,
		Default:     def,
		Check:       isInteger,
		Sanitize:    roundInt,
		Description: desc,
	}
}

func (v *Validator) setupGlobal() {
	v.constraints[ParamMode] = intConstraint(0, 4, 0, "device mode (0=Keyboard 1=XY 2=Strips 3=Strum 4=Settings)")
	v.constraints[ParamSensitivity] = intConstraint(0, 4, 1, "global sensitivity level")
	v.constraints[ParamBrightness] = intConstraint(0, 15, 6, "LED brightness level")
	v.constraints[ParamPalette] = intConstraint(0, device.BankCount-1, 0, "color palette selection")
	v.constraints[ParamMIDITRS] = intConstraint(0, 1, 0, "TRS MIDI enabled")
	v.constraints[ParamTRSType] = intConstraint(0, 1, 0, "TRS type (0=Type A, 1=Type B)")
	v.constraints[ParamPassthrough] = intConstraint(0, 1, 0, "MIDI passthrough enabled")
	v.constraints[ParamMIDIBLE] = intConstraint(0, 1, 0, "BLE MIDI enabled")
}

func (v *Validator) setupKeyboard() {
	channel := intConstraint(1, 16, 1, "MIDI channel")
	scale := intConstraint(0, 15, 0, "scale selection")
	octave := intConstraint(0, 7, 2, "base octave")
	note := intConstraint(0, 127, 0, "base note")
	curve := intConstraint(0, 3, 1, "velocity/aftertouch curve")
	flag := intConstraint(0, 1, 0, "boolean parameter")

	for bank := uint8(0); bank < device.BankCount; bank++ {
		v.constraints[MakeID(ParamKBChannel, bank, 0)] = channel
		v.constraints[MakeID(ParamKBScale, bank, 0)] = scale
		v.constraints[MakeID(ParamKBOctave, bank, 0)] = octave
		v.constraints[MakeID(ParamKBBaseNote, bank, 0)] = note
		v.constraints[MakeID(ParamKBVelocityCurve, bank, 0)] = curve
		v.constraints[MakeID(ParamKBAftertouchCurve, bank, 0)] = curve
		v.constraints[MakeID(ParamKBFlipX, bank, 0)] = flag
		v.constraints[MakeID(ParamKBFlipY, bank, 0)] = flag
	}
}

func (v *Validator) setupControlChange() {
	channel := intConstraint(1, 16, 1, "CC MIDI channel")
	id := intConstraint(0, 127, 1, "CC number")

	for bank := uint8(0); bank < device.BankCount; bank++ {
		for cc := uint8(0); cc < device.CCPerBank; cc++ {
			v.constraints[MakeID(ParamCCChannel, bank, cc)] = channel
			v.constraints[MakeID(ParamCCID, bank, cc)] = id
		}
	}
}

func (v *Validator) setupSystem() {
	v.constraints[ParamPressureThreshold] = Constraint{
		Min:     0.05,
		Max:     0.5,
		Default: DefaultPressureThreshold,
		Check: func(f float64) bool {
			return f < v.aftertouchThreshold
		},
		Sanitize: func(f float64) float64 {
			upper := v.aftertouchThreshold - ThresholdGap
			if upper > 0.5 {
				upper = 0.5
			}
			return clampF(f, 0.05, upper)
		},
		Description: "pressure detection threshold",
	}

	v.constraints[ParamAftertouchThreshold] = Constraint{
		Min:     0.1,
		Max:     0.7,
		Default: DefaultAftertouchThreshold,
		Check: func(f float64) bool {
			return f > v.pressureThreshold
		},
		Sanitize: func(f float64) float64 {
			lower := v.pressureThreshold + ThresholdGap
			if lower < 0.1 {
				lower = 0.1
			}
			return clampF(f, lower, 0.7)
		},
		Description: "aftertouch threshold",
	}

	v.constraints[ParamVelocitySensitivity] = Constraint{
		Min:     0.1,
		Max:     2.0,
		Default: 1.0,
		Check:   func(f float64) bool { return f > 0 },
		Sanitize: func(f float64) float64 {
			if f <= 0 {
				return 0.1
			}
			return f
		},
		Description: "velocity sensitivity multiplier",
	}

	v.constraints[ParamDebounceTime] = Constraint{
		Min:     0,
		Max:     50,
		Default: 10,
		Check:   func(f float64) bool { return f >= 0 },
		Sanitize: func(f float64) float64 {
			if f < 0 {
				return 0
			}
			return f
		},
		Description: "key debounce time in ms",
	}
}

func (v *Validator) setupCalibration() {
	min := intConstraint(0, device.ADCMax, 0, "calibration minimum value")
	max := intConstraint(0, device.ADCMax, device.ADCMax, "calibration maximum value")

	for key := uint8(0); key < device.KeyCount; key++ {
		v.constraints[MakeID(ParamCalibrationMin, 0, key)] = min
		v.constraints[MakeID(ParamCalibrationMax, 0, key)] = max
	}
}

// lookup finds the constraint for an ID, falling back to the
// undecorated base ID.
func (v *Validator) lookup(id ParamID) (Constraint, bool) {
	if c, ok := v.constraints[id]; ok {
		return c, true
	}
	base, _, _ := ParseID(id)
	c, ok := v.constraints[base]
	return c, ok
}

// Validate checks a single live parameter edit. Unknown parameters
// produce a low-severity warning, never an error: an unrecognized ID
// must not block a live edit.
func (v *Validator) Validate(id ParamID, value float64) *integrity.Result {
	result := integrity.NewResult()

	c, ok := v.lookup(id)
	if !ok {
		result.AddWarning(integrity.WarningDetail{
			Kind:     integrity.WarnUnknownParameter,
			Severity: integrity.SeverityLow,
			Message:  "parameter not recognized",
		})
		return result
	}

	base, bank, index := ParseID(id)
	loc := integrity.Location{Bank: bank, Parameter: base.String(), Index: index}

	if value < c.Min || value > c.Max {
		result.AddError(integrity.ErrorDetail{
			Kind:        integrity.ErrOutOfRange,
			Location:    loc,
			Value:       int64(value),
			Min:         int64(c.Min),
			Max:         int64(c.Max),
			AutoFixable: true,
			Fix:         "clamp to valid range",
		})
	}

	if c.Check != nil && !c.Check(value) {
		result.AddError(integrity.ErrorDetail{
			Kind:        integrity.ErrCustomValidationFailed,
			Location:    loc,
			Value:       int64(value),
			AutoFixable: c.Sanitize != nil,
			Fix:         "check parameter-specific requirements",
		})
	}

	return result
}

// Sanitize repairs a value: parameter-specific sanitizer first, then a
// clamp to the constraint range. Unknown parameters pass through.
func (v *Validator) Sanitize(id ParamID, value float64) float64 {
	c, ok := v.lookup(id)
	if !ok {
		return value
	}
	if c.Sanitize != nil {
		value = c.Sanitize(value)
	}
	return clampF(value, c.Min, c.Max)
}

// Critical reports whether a parameter needs snapshot-before-change
// handling.
func (v *Validator) Critical(id ParamID) bool {
	base, _, _ := ParseID(id)
	switch base {
	case ParamCalibrationMin, ParamCalibrationMax,
		ParamKBChannel,
		ParamPressureThreshold, ParamAftertouchThreshold:
		return true
	}
	return false
}

// Constraints returns the constraint for an ID, base-ID fallback
// included, or false when unknown.
func (v *Validator) Constraints(id ParamID) (Constraint, bool) {
	return v.lookup(id)
}

// UpdateDynamic records a committed threshold edit and re-bounds the
// coupled constraint, so the next validation of the partner parameter
// catches any violation the edit introduced.
func (v *Validator) UpdateDynamic(id ParamID, value float64) {
	base, _, _ := ParseID(id)

	switch base {
	case ParamPressureThreshold:
		v.pressureThreshold = value
		c := v.constraints[ParamAftertouchThreshold]
		c.Min = value + ThresholdGap
		v.constraints[ParamAftertouchThreshold] = c

	case ParamAftertouchThreshold:
		v.aftertouchThreshold = value
		c := v.constraints[ParamPressureThreshold]
		c.Max = value - ThresholdGap
		v.constraints[ParamPressureThreshold] = c
	}
}
