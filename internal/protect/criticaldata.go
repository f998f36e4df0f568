// internal/protect/criticaldata.go
package protect

import (
	"encoding/binary"
	"fmt"

	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/integrity"
)

// CriticalDataMagic marks a valid critical-data blob ("T16C").
const CriticalDataMagic uint32 = 0x54313643

// On-disk critical-data layout:
//
//	magic(4) | serial(4) | fw(1) | configuration | calibration | crc32(4)
//
// All little-endian, sub-structures in their stable codec form.
// The checksum covers everything before it.
const criticalDataSize = 4 + 4 + 1 + device.ConfigurationSize + device.CalibrationSize + 4

// criticalImage is the flat form of the protected data used for
// persistence and for the byte-equality vote across the three files.
type criticalImage struct {
	Serial        uint32
	Firmware      uint8
	Configuration device.Configuration
	Calibration   device.Calibration
}

// appendBody encodes everything the checksum covers.
func (img *criticalImage) appendBody(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, CriticalDataMagic)
	buf = binary.LittleEndian.AppendUint32(buf, img.Serial)
	buf = append(buf, img.Firmware)
	buf = img.Configuration.AppendBinary(buf)
	buf = img.Calibration.AppendBinary(buf)
	return buf
}

// encode produces the full on-disk blob, checksum included.
func (img *criticalImage) encode() []byte {
	body := img.appendBody(make([]byte, 0, criticalDataSize))
	return binary.LittleEndian.AppendUint32(body, integrity.Checksum32(body))
}

// decodeCriticalImage parses and verifies an on-disk blob.
// Magic and structure checksum are both required.
func decodeCriticalImage(data []byte) (criticalImage, error) {
	var img criticalImage

	if len(data) != criticalDataSize {
		return img, fmt.Errorf("protect: critical blob is %d bytes, want %d", len(data), criticalDataSize)
	}

	body := data[:len(data)-4]
	stored := binary.LittleEndian.Uint32(data[len(data)-4:])
	if integrity.Checksum32(body) != stored {
		return img, fmt.Errorf("protect: critical blob checksum mismatch")
	}

	if magic := binary.LittleEndian.Uint32(body); magic != CriticalDataMagic {
		return img, fmt.Errorf("protect: bad critical blob magic 0x%08X", magic)
	}

	img.Serial = binary.LittleEndian.Uint32(body[4:])
	img.Firmware = body[8]

	off := 9
	cfg, err := device.DecodeConfiguration(body[off : off+device.ConfigurationSize])
	if err != nil {
		return img, err
	}
	img.Configuration = cfg
	off += device.ConfigurationSize

	cal, err := device.DecodeCalibration(body[off : off+device.CalibrationSize])
	if err != nil {
		return img, err
	}
	img.Calibration = cal

	return img, nil
}
