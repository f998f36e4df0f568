// internal/device/codec_test.go
package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationEncodingIsStable(t *testing.T) {
	cfg := FactoryConfiguration()

	a := cfg.AppendBinary(nil)
	b := cfg.AppendBinary(nil)
	assert.Equal(t, a, b, "two encodings of one value must be byte-identical")
	assert.Len(t, a, ConfigurationSize)

	got, err := DecodeConfiguration(a)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestNegativeScaleNotesSurviveEncoding(t *testing.T) {
	cfg := FactoryConfiguration()
	cfg.CustomScale1[0] = ScaleUnset
	cfg.CustomScale2[7] = -12

	got, err := DecodeConfiguration(cfg.AppendBinary(nil))
	require.NoError(t, err)
	assert.Equal(t, ScaleUnset, got.CustomScale1[0])
	assert.Equal(t, int8(-12), got.CustomScale2[7])
}

func TestCalibrationEncoding(t *testing.T) {
	cal := FactoryCalibration()
	cal.Min[3] = 123
	cal.Max[3] = 3456

	buf := cal.AppendBinary(nil)
	assert.Len(t, buf, CalibrationSize)

	got, err := DecodeCalibration(buf)
	require.NoError(t, err)
	assert.Equal(t, cal, got)
}

func TestKeyModeAndControlChangeEncoding(t *testing.T) {
	km := FactoryKeyMode(2)
	km.FlipX = 1
	got, err := DecodeKeyMode(km.AppendBinary(nil))
	require.NoError(t, err)
	assert.Equal(t, km, got)

	cc := FactoryControlChange()
	cc.ID[7] = 90
	gotCC, err := DecodeControlChange(cc.AppendBinary(nil))
	require.NoError(t, err)
	assert.Equal(t, cc, gotCC)
}

func TestDecodeRejectsWrongSize(t *testing.T) {
	cfg := FactoryConfiguration()
	buf := cfg.AppendBinary(nil)

	_, err := DecodeConfiguration(buf[:len(buf)-1])
	assert.Error(t, err)

	_, err = DecodeCalibration(buf)
	assert.Error(t, err)
}

func TestDecodeRejectsUnknownLayoutVersion(t *testing.T) {
	cfg := FactoryConfiguration()
	buf := cfg.AppendBinary(nil)
	buf[0] = 99

	_, err := DecodeConfiguration(buf)
	assert.Error(t, err)
}

func TestVariantKeys(t *testing.T) {
	assert.Equal(t, 16, VariantT16.Keys())
	assert.Equal(t, 32, VariantT32.Keys())
	assert.Equal(t, 64, VariantT64.Keys())
	assert.Equal(t, "T16", VariantT16.String())
}

func TestSafeModeConfiguration(t *testing.T) {
	cfg := SafeModeConfiguration()
	assert.Equal(t, uint8(4), cfg.Mode)
	assert.Equal(t, uint8(1), cfg.Sensitivity)
	assert.Equal(t, uint8(3), cfg.Brightness)
	assert.Equal(t, uint8(0), cfg.MIDITRS)
	assert.Equal(t, uint8(0), cfg.MIDIBLE)
}

func TestFactoryDefaults(t *testing.T) {
	cfg := FactoryConfiguration()
	assert.Equal(t, uint8(FirmwareVersion), cfg.Version)
	assert.Equal(t, uint8(0), cfg.Mode)
	assert.Equal(t, uint8(1), cfg.Sensitivity)
	assert.Equal(t, uint8(6), cfg.Brightness)
	// Chromatic default scales.
	for i := 0; i < 16; i++ {
		assert.Equal(t, int8(i), cfg.CustomScale1[i])
	}

	km := FactoryKeyMode(3)
	assert.Equal(t, uint8(3), km.Palette)
	assert.Equal(t, uint8(1), km.Channel)
	assert.Equal(t, uint8(2), km.BaseOctave)

	cc := FactoryControlChange()
	for i := 0; i < CCPerBank; i++ {
		assert.Equal(t, uint8(13+i), cc.ID[i])
		assert.Equal(t, uint8(1), cc.Channel[i])
	}

	cal := FactoryCalibration()
	assert.Equal(t, uint16(0), cal.Min[0])
	assert.Equal(t, uint16(ADCMax), cal.Max[15])
}
