// internal/device/device.go
package device

// Device geometry and firmware constants. Protocol-locked.

// BankCount is the number of independent configuration banks.
const BankCount = 4

// CCPerBank is the number of control-change slots per bank.
const CCPerBank = 8

// KeyCount is the number of physical keys with calibration entries.
const KeyCount = 16

// ADCMax is the highest raw reading of the 12-bit key ADC.
const ADCMax = 4095

// FirmwareVersion is the version stamped into fresh configurations.
const FirmwareVersion = 102

// MinFirmwareVersion is the oldest firmware a configuration may target.
const MinFirmwareVersion = 102

// ScaleUnset in the first entry of a custom scale means the scale is
// intentionally undefined and skips validation.
const ScaleUnset = int8(-1) // 0xFF

// Variant identifies the hardware the configuration runs on.
type Variant uint8

const (
	VariantT16 Variant = iota
	VariantT32
	VariantT64
)

// Keys returns the number of physical keys for a variant.
func (v Variant) Keys() int {
	switch v {
	case VariantT32:
		return 32
	case VariantT64:
		return 64
	default:
		return 16
	}
}

func (v Variant) String() string {
	switch v {
	case VariantT32:
		return "T32"
	case VariantT64:
		return "T64"
	default:
		return "T16"
	}
}

// Configuration is the global device configuration.
// One live instance, owned by the critical-data protector and mutated
// only through a transaction.
type Configuration struct {
	Version     uint8
	Mode        uint8 // 0=Keyboard 1=XY 2=Strips 3=Strum 4=Settings
	Sensitivity uint8
	Brightness  uint8
	Palette     uint8
	MIDITRS     uint8
	TRSType     uint8 // 0=Type A, 1=Type B
	Passthrough uint8
	MIDIBLE     uint8

	CustomScale1 [16]int8
	CustomScale2 [16]int8

	Dirty bool
}

// Calibration holds per-key min/max raw ADC readings.
type Calibration struct {
	Min [KeyCount]uint16
	Max [KeyCount]uint16
}

// KeyMode is the per-bank keyboard behavior.
type KeyMode struct {
	Palette         uint8
	Channel         uint8 // 1..16
	Scale           uint8
	BaseOctave      uint8
	BaseNote        uint8
	VelocityCurve   uint8
	AftertouchCurve uint8
	FlipX           uint8
	FlipY           uint8

	Dirty bool
}

// ControlChange is the per-bank CC mapping.
type ControlChange struct {
	Channel [CCPerBank]uint8
	ID      [CCPerBank]uint8

	Dirty bool
}

// FactoryConfiguration returns the shipped global configuration.
func FactoryConfiguration() Configuration {
	cfg := Configuration{
		Version:     FirmwareVersion,
		Mode:        0,
		Sensitivity: 1,
		Brightness:  6,
		Palette:     0,
	}
	for i := 0; i < 16; i++ {
		cfg.CustomScale1[i] = int8(i)
		cfg.CustomScale2[i] = int8(i)
	}
	return cfg
}

// FactoryCalibration returns the full-span default calibration.
func FactoryCalibration() Calibration {
	var cal Calibration
	for i := 0; i < KeyCount; i++ {
		cal.Min[i] = 0
		cal.Max[i] = ADCMax
	}
	return cal
}

// FactoryKeyMode returns the default keyboard behavior for a bank.
func FactoryKeyMode(bank uint8) KeyMode {
	return KeyMode{
		Palette:         bank,
		Channel:         1,
		Scale:           0,
		BaseOctave:      2,
		BaseNote:        0,
		VelocityCurve:   1,
		AftertouchCurve: 1,
	}
}

// FactoryControlChange returns the default CC mapping for a bank.
// CC IDs start at 13, one per slot.
func FactoryControlChange() ControlChange {
	var cc ControlChange
	for i := 0; i < CCPerBank; i++ {
		cc.Channel[i] = 1
		cc.ID[i] = uint8(13 + i)
	}
	return cc
}

// SafeModeConfiguration is the minimal hard-coded configuration used
// when recovery has exhausted all tiers: settings-only mode, dim LEDs,
// MIDI outputs disabled so the device stays connectable for repair.
func SafeModeConfiguration() Configuration {
	cfg := FactoryConfiguration()
	cfg.Mode = 4
	cfg.Sensitivity = 1
	cfg.Brightness = 3
	cfg.MIDITRS = 0
	cfg.MIDIBLE = 0
	return cfg
}
