// internal/device/codec.go
package device

import (
	"encoding/binary"
	"fmt"
)

// Stable binary layout for every persisted structure.
// Fixed field order, little-endian, one leading layout-version byte.
// Checksums are computed over this form, never over in-memory layout,
// so they are independent of padding and architecture.

const codecVersion = 1

// Encoded sizes, version byte included.
const (
	ConfigurationSize = 1 + 9 + 16 + 16 + 1
	CalibrationSize   = 1 + 2*KeyCount + 2*KeyCount
	KeyModeSize       = 1 + 9 + 1
	ControlChangeSize = 1 + CCPerBank + CCPerBank + 1
)

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// AppendBinary appends the stable encoding of c to buf.
func (c *Configuration) AppendBinary(buf []byte) []byte {
	buf = append(buf, codecVersion)
	buf = append(buf, c.Version, c.Mode, c.Sensitivity, c.Brightness,
		c.Palette, c.MIDITRS, c.TRSType, c.Passthrough, c.MIDIBLE)
	for _, n := range c.CustomScale1 {
		buf = append(buf, byte(n))
	}
	for _, n := range c.CustomScale2 {
		buf = append(buf, byte(n))
	}
	return append(buf, boolByte(c.Dirty))
}

// DecodeConfiguration parses the stable encoding.
func DecodeConfiguration(data []byte) (Configuration, error) {
	var c Configuration
	if len(data) != ConfigurationSize {
		return c, fmt.Errorf("device: configuration blob is %d bytes, want %d", len(data), ConfigurationSize)
	}
	if data[0] != codecVersion {
		return c, fmt.Errorf("device: unknown configuration layout version %d", data[0])
	}
	c.Version = data[1]
	c.Mode = data[2]
	c.Sensitivity = data[3]
	c.Brightness = data[4]
	c.Palette = data[5]
	c.MIDITRS = data[6]
	c.TRSType = data[7]
	c.Passthrough = data[8]
	c.MIDIBLE = data[9]
	for i := 0; i < 16; i++ {
		c.CustomScale1[i] = int8(data[10+i])
		c.CustomScale2[i] = int8(data[26+i])
	}
	c.Dirty = data[42] != 0
	return c, nil
}

// AppendBinary appends the stable encoding of cal to buf.
func (cal *Calibration) AppendBinary(buf []byte) []byte {
	buf = append(buf, codecVersion)
	for _, v := range cal.Min {
		buf = binary.LittleEndian.AppendUint16(buf, v)
	}
	for _, v := range cal.Max {
		buf = binary.LittleEndian.AppendUint16(buf, v)
	}
	return buf
}

// DecodeCalibration parses the stable encoding.
func DecodeCalibration(data []byte) (Calibration, error) {
	var cal Calibration
	if len(data) != CalibrationSize {
		return cal, fmt.Errorf("device: calibration blob is %d bytes, want %d", len(data), CalibrationSize)
	}
	if data[0] != codecVersion {
		return cal, fmt.Errorf("device: unknown calibration layout version %d", data[0])
	}
	off := 1
	for i := 0; i < KeyCount; i++ {
		cal.Min[i] = binary.LittleEndian.Uint16(data[off:])
		off += 2
	}
	for i := 0; i < KeyCount; i++ {
		cal.Max[i] = binary.LittleEndian.Uint16(data[off:])
		off += 2
	}
	return cal, nil
}

// AppendBinary appends the stable encoding of km to buf.
func (km *KeyMode) AppendBinary(buf []byte) []byte {
	buf = append(buf, codecVersion)
	buf = append(buf, km.Palette, km.Channel, km.Scale, km.BaseOctave,
		km.BaseNote, km.VelocityCurve, km.AftertouchCurve, km.FlipX, km.FlipY)
	return append(buf, boolByte(km.Dirty))
}

// DecodeKeyMode parses the stable encoding.
func DecodeKeyMode(data []byte) (KeyMode, error) {
	var km KeyMode
	if len(data) != KeyModeSize {
		return km, fmt.Errorf("device: key-mode blob is %d bytes, want %d", len(data), KeyModeSize)
	}
	if data[0] != codecVersion {
		return km, fmt.Errorf("device: unknown key-mode layout version %d", data[0])
	}
	km.Palette = data[1]
	km.Channel = data[2]
	km.Scale = data[3]
	km.BaseOctave = data[4]
	km.BaseNote = data[5]
	km.VelocityCurve = data[6]
	km.AftertouchCurve = data[7]
	km.FlipX = data[8]
	km.FlipY = data[9]
	km.Dirty = data[10] != 0
	return km, nil
}

// AppendBinary appends the stable encoding of cc to buf.
func (cc *ControlChange) AppendBinary(buf []byte) []byte {
	buf = append(buf, codecVersion)
	buf = append(buf, cc.Channel[:]...)
	buf = append(buf, cc.ID[:]...)
	return append(buf, boolByte(cc.Dirty))
}

// DecodeControlChange parses the stable encoding.
func DecodeControlChange(data []byte) (ControlChange, error) {
	var cc ControlChange
	if len(data) != ControlChangeSize {
		return cc, fmt.Errorf("device: control-change blob is %d bytes, want %d", len(data), ControlChangeSize)
	}
	if data[0] != codecVersion {
		return cc, fmt.Errorf("device: unknown control-change layout version %d", data[0])
	}
	copy(cc.Channel[:], data[1:1+CCPerBank])
	copy(cc.ID[:], data[1+CCPerBank:1+2*CCPerBank])
	cc.Dirty = data[1+2*CCPerBank] != 0
	return cc, nil
}
