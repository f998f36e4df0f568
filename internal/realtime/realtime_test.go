// internal/realtime/realtime_test.go
package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/midiguard/internal/integrity"
)

func TestMakeParseIDRoundTrip(t *testing.T) {
	id := MakeID(ParamCCID, 3, 7)
	base, bank, index := ParseID(id)
	assert.Equal(t, ParamCCID, base)
	assert.Equal(t, uint8(3), bank)
	assert.Equal(t, uint8(7), index)

	// Undecorated IDs parse back unchanged.
	base, bank, index = ParseID(ParamMode)
	assert.Equal(t, ParamMode, base)
	assert.Equal(t, uint8(0), bank)
	assert.Equal(t, uint8(0), index)
}

func TestValidateInRange(t *testing.T) {
	v := NewValidator()
	assert.True(t, v.Validate(ParamBrightness, 10).Valid)
	assert.True(t, v.Validate(MakeID(ParamKBChannel, 2, 0), 16).Valid)
	assert.True(t, v.Validate(MakeID(ParamCCID, 1, 5), 127).Valid)
}

func TestValidateOutOfRangeIsFixable(t *testing.T) {
	v := NewValidator()

	res := v.Validate(ParamBrightness, 100)
	require.False(t, res.Valid)
	assert.Equal(t, integrity.ErrOutOfRange, res.Errors[0].Kind)
	assert.True(t, res.Errors[0].AutoFixable)

	assert.Equal(t, 15.0, v.Sanitize(ParamBrightness, 100))
}

func TestErrorsCarryLocation(t *testing.T) {
	v := NewValidator()

	res := v.Validate(MakeID(ParamCCID, 2, 5), 200)
	require.False(t, res.Valid)
	loc := res.Errors[0].Location
	assert.Equal(t, "cc_id", loc.Parameter)
	assert.Equal(t, uint8(2), loc.Bank)
	assert.Equal(t, uint8(5), loc.Index)

	res = v.Validate(ParamPressureThreshold, 0.9)
	require.False(t, res.Valid)
	assert.Equal(t, "pressure_threshold", res.Errors[0].Location.Parameter)
}

func TestNonIntegerRejectedAndRounded(t *testing.T) {
	v := NewValidator()

	res := v.Validate(ParamMode, 2.5)
	require.False(t, res.Valid)
	assert.Equal(t, integrity.ErrCustomValidationFailed, res.Errors[0].Kind)
	assert.True(t, res.Errors[0].AutoFixable)

	assert.Equal(t, 3.0, v.Sanitize(ParamMode, 2.5))
}

func TestUnknownParameterWarnsOnly(t *testing.T) {
	v := NewValidator()

	res := v.Validate(ParamID(0xEE), 12345)
	assert.True(t, res.Valid, "unknown IDs must not block a live edit")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, integrity.WarnUnknownParameter, res.Warnings[0].Kind)
	assert.Equal(t, integrity.SeverityLow, res.Warnings[0].Severity)

	assert.Equal(t, 12345.0, v.Sanitize(ParamID(0xEE), 12345))
}

func TestBaseIDFallback(t *testing.T) {
	v := NewValidator()

	// Calibration constraints are registered per key index; a bank
	// decoration it has never seen still resolves via the base ID.
	odd := MakeID(ParamCalibrationMin, 3, 99)
	res := v.Validate(odd, 2000)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)
}

func TestThresholdCoupling(t *testing.T) {
	v := NewValidator()

	// Defaults are consistent.
	assert.True(t, v.Validate(ParamPressureThreshold, DefaultPressureThreshold).Valid)
	assert.True(t, v.Validate(ParamAftertouchThreshold, DefaultAftertouchThreshold).Valid)

	// Pressure at or above the aftertouch threshold fails the
	// cross-parameter check.
	res := v.Validate(ParamPressureThreshold, 0.30)
	require.False(t, res.Valid)
	assert.Equal(t, integrity.ErrCustomValidationFailed, res.Errors[0].Kind)

	// The sanitizer pulls it under the partner, gap included.
	fixed := v.Sanitize(ParamPressureThreshold, 0.30)
	assert.InDelta(t, DefaultAftertouchThreshold-ThresholdGap, fixed, 1e-9)
	assert.True(t, v.Validate(ParamPressureThreshold, fixed).Valid)
}

func TestUpdateDynamicReboundsPartner(t *testing.T) {
	v := NewValidator()

	// Raise the aftertouch threshold; pressure gains headroom.
	v.UpdateDynamic(ParamAftertouchThreshold, 0.6)
	assert.True(t, v.Validate(ParamPressureThreshold, 0.45).Valid)

	// Lower it; the same pressure value now violates both the coupled
	// check and the re-bounded range.
	v.UpdateDynamic(ParamAftertouchThreshold, 0.3)
	res := v.Validate(ParamPressureThreshold, 0.45)
	assert.False(t, res.Valid)

	fixed := v.Sanitize(ParamPressureThreshold, 0.45)
	assert.Less(t, fixed, 0.3)
}

func TestVelocitySensitivityPositive(t *testing.T) {
	v := NewValidator()

	res := v.Validate(ParamVelocitySensitivity, -1)
	require.False(t, res.Valid)
	assert.Equal(t, 0.1, v.Sanitize(ParamVelocitySensitivity, -1))

	assert.True(t, v.Validate(ParamVelocitySensitivity, 1.5).Valid)
}

func TestCriticalParameters(t *testing.T) {
	v := NewValidator()

	assert.True(t, v.Critical(MakeID(ParamCalibrationMin, 0, 4)))
	assert.True(t, v.Critical(MakeID(ParamKBChannel, 1, 0)))
	assert.True(t, v.Critical(ParamPressureThreshold))
	assert.False(t, v.Critical(ParamBrightness))
	assert.False(t, v.Critical(MakeID(ParamCCID, 0, 0)))
}

func TestConstraintsLookup(t *testing.T) {
	v := NewValidator()

	c, ok := v.Constraints(ParamDebounceTime)
	require.True(t, ok)
	assert.Equal(t, 10.0, c.Default)
	assert.Equal(t, 50.0, c.Max)

	_, ok = v.Constraints(ParamID(0xEE))
	assert.False(t, ok)
}

func TestQuickPathAgreesWithTable(t *testing.T) {
	v := NewValidator()

	cases := []struct {
		id    ParamID
		value uint32
	}{
		{MakeID(ParamKBChannel, 0, 0), 0},
		{MakeID(ParamKBChannel, 0, 0), 1},
		{MakeID(ParamKBChannel, 0, 0), 16},
		{MakeID(ParamKBChannel, 0, 0), 17},
		{ParamMode, 4},
		{ParamMode, 5},
		{ParamBrightness, 15},
		{ParamBrightness, 16},
		{MakeID(ParamCCID, 2, 3), 127},
		{MakeID(ParamCCID, 2, 3), 128},
	}

	for _, tc := range cases {
		quick := QuickValidate(tc.id, tc.value)
		full := v.Validate(tc.id, float64(tc.value)).Valid
		assert.Equal(t, full, quick, "id=%#x value=%d", tc.id, tc.value)

		fixed := QuickSanitize(tc.id, tc.value)
		assert.True(t, QuickValidate(tc.id, fixed), "sanitized value must pass")
		assert.Equal(t, v.Sanitize(tc.id, float64(tc.value)), float64(fixed))
	}
}
