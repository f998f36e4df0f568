// internal/recovery/snapshot.go
package recovery

import (
	"encoding/binary"
	"fmt"

	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/integrity"
)

// MaxSnapshots is the depth of the snapshot ring.
const MaxSnapshots = 5

// SnapshotIntervalMillis is the periodic snapshot cadence (1 hour).
const SnapshotIntervalMillis = 60 * 60 * 1000

// Reason records why a snapshot was taken.
type Reason uint8

const (
	ReasonFirmwareUpdate Reason = iota
	ReasonCriticalChange
	ReasonPeriodicBackup
	ReasonUserRequest
	ReasonCorruptionDetected
	ReasonValidationFailure
)

func (r Reason) String() string {
	switch r {
	case ReasonFirmwareUpdate:
		return "before_firmware_update"
	case ReasonCriticalChange:
		return "before_critical_change"
	case ReasonPeriodicBackup:
		return "periodic_backup"
	case ReasonUserRequest:
		return "user_request"
	case ReasonCorruptionDetected:
		return "corruption_detected"
	case ReasonValidationFailure:
		return "validation_failure"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// Snapshot is one known-good restore point.
type Snapshot struct {
	Configuration   device.Configuration
	Calibration     device.Calibration
	Timestamp       uint32 // device uptime ms at capture
	Reason          Reason
	Description     string
	FirmwareVersion uint8
	Checksum        uint32 // over the encoded body
}

const snapshotVersion = 1

// appendBody encodes everything the checksum covers.
// Layout: version(1) | reason(1) | fw(1) | timestamp(4) | desclen(2) |
// desc | configuration | calibration.
func (s *Snapshot) appendBody(buf []byte) []byte {
	buf = append(buf, snapshotVersion, uint8(s.Reason), s.FirmwareVersion)
	buf = binary.LittleEndian.AppendUint32(buf, s.Timestamp)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s.Description)))
	buf = append(buf, s.Description...)
	buf = s.Configuration.AppendBinary(buf)
	buf = s.Calibration.AppendBinary(buf)
	return buf
}

// Seal recomputes the snapshot checksum from its contents.
func (s *Snapshot) Seal() {
	s.Checksum = integrity.Checksum32(s.appendBody(nil))
}

// Verify reports whether the stored checksum matches the contents.
func (s *Snapshot) Verify() bool {
	return s.Checksum == integrity.Checksum32(s.appendBody(nil))
}

func (s *Snapshot) encode() []byte {
	body := s.appendBody(nil)
	return binary.LittleEndian.AppendUint32(body, integrity.Checksum32(body))
}

func decodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot

	// version + reason + fw + timestamp + desclen
	const fixedHead = 1 + 1 + 1 + 4 + 2
	if len(data) < fixedHead+device.ConfigurationSize+device.CalibrationSize+4 {
		return s, fmt.Errorf("recovery: snapshot blob too short (%d bytes)", len(data))
	}

	body := data[:len(data)-4]
	stored := binary.LittleEndian.Uint32(data[len(data)-4:])
	if integrity.Checksum32(body) != stored {
		return s, fmt.Errorf("recovery: snapshot checksum mismatch")
	}

	if body[0] != snapshotVersion {
		return s, fmt.Errorf("recovery: unknown snapshot layout version %d", body[0])
	}
	s.Reason = Reason(body[1])
	s.FirmwareVersion = body[2]
	s.Timestamp = binary.LittleEndian.Uint32(body[3:])
	descLen := int(binary.LittleEndian.Uint16(body[7:]))

	off := fixedHead
	if len(body) != off+descLen+device.ConfigurationSize+device.CalibrationSize {
		return s, fmt.Errorf("recovery: snapshot blob size inconsistent")
	}
	s.Description = string(body[off : off+descLen])
	off += descLen

	cfg, err := device.DecodeConfiguration(body[off : off+device.ConfigurationSize])
	if err != nil {
		return s, err
	}
	s.Configuration = cfg
	off += device.ConfigurationSize

	cal, err := device.DecodeCalibration(body[off : off+device.CalibrationSize])
	if err != nil {
		return s, err
	}
	s.Calibration = cal
	s.Checksum = stored

	return s, nil
}
