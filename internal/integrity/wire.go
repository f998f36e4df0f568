// internal/integrity/wire.go
package integrity

import (
	"encoding/binary"
	"fmt"
)

// Envelope wire layout, little-endian:
//
//	magic(4) | version(2) | id(2) | timestamp(4) | sequence(4) |
//	size(2) | payload(size) | checksum(4)
const envelopeHeaderSize = 4 + 2 + 2 + 4 + 4 + 2
const envelopeTrailerSize = 4

// Encode serializes the envelope. Call Seal first.
func (e *Envelope) Encode() []byte {
	buf := make([]byte, 0, envelopeHeaderSize+len(e.Payload)+envelopeTrailerSize)
	buf = binary.LittleEndian.AppendUint32(buf, e.Magic)
	buf = binary.LittleEndian.AppendUint16(buf, e.Version)
	buf = binary.LittleEndian.AppendUint16(buf, e.MessageID)
	buf = binary.LittleEndian.AppendUint32(buf, e.Timestamp)
	buf = binary.LittleEndian.AppendUint32(buf, e.SequenceNumber)
	buf = binary.LittleEndian.AppendUint16(buf, e.PayloadSize)
	buf = append(buf, e.Payload...)
	return binary.LittleEndian.AppendUint32(buf, e.Checksum)
}

// DecodeEnvelope parses a serialized envelope. Structural parsing
// only; semantic checks (magic, replay, checksum) belong to
// MessageValidator.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if len(data) < envelopeHeaderSize+envelopeTrailerSize {
		return e, fmt.Errorf("integrity: envelope too short (%d bytes)", len(data))
	}

	e.Magic = binary.LittleEndian.Uint32(data)
	e.Version = binary.LittleEndian.Uint16(data[4:])
	e.MessageID = binary.LittleEndian.Uint16(data[6:])
	e.Timestamp = binary.LittleEndian.Uint32(data[8:])
	e.SequenceNumber = binary.LittleEndian.Uint32(data[12:])
	e.PayloadSize = binary.LittleEndian.Uint16(data[16:])

	if len(data) != envelopeHeaderSize+int(e.PayloadSize)+envelopeTrailerSize {
		return e, fmt.Errorf("integrity: envelope length %d does not match payload size %d",
			len(data), e.PayloadSize)
	}

	e.Payload = make([]byte, e.PayloadSize)
	copy(e.Payload, data[envelopeHeaderSize:])
	e.Checksum = binary.LittleEndian.Uint32(data[len(data)-envelopeTrailerSize:])
	return e, nil
}
