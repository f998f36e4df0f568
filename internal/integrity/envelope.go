// internal/integrity/envelope.go
package integrity

// Wire-message envelope constants. Protocol-locked.

// EnvelopeMagic identifies the configurator protocol ("T16P").
const EnvelopeMagic uint32 = 0x54313650

// ProtocolVersion is the only envelope version currently accepted.
const ProtocolVersion uint16 = 0x0001

// MaxClockSkew is the replay/staleness window in milliseconds.
const MaxClockSkew uint32 = 60_000

// MaxMessageHistory bounds the set of remembered message IDs.
const MaxMessageHistory = 100

// Envelope wraps a configuration payload delivered by the external
// transport. The payload's own encoding is the transport's concern;
// this layer sees bytes.
type Envelope struct {
	Magic          uint32
	Version        uint16
	MessageID      uint16
	Timestamp      uint32 // monotonic milliseconds at the sender
	SequenceNumber uint32
	PayloadSize    uint16
	Payload        []byte
	Checksum       uint32
}

// Seal fills in PayloadSize and Checksum for the current payload.
func (e *Envelope) Seal() {
	e.PayloadSize = uint16(len(e.Payload))
	e.Checksum = Checksum32(e.Payload)
}

// MessageValidator rejects replayed, stale, malformed, or corrupted
// envelopes. One instance per transport session.
type MessageValidator struct {
	expectedSequence uint32
	lastTimestamp    uint32

	seen      map[uint16]struct{}
	seenOrder []uint16 // FIFO eviction once MaxMessageHistory is exceeded
}

func NewMessageValidator() *MessageValidator {
	return &MessageValidator{
		seen: make(map[uint16]struct{}, MaxMessageHistory),
	}
}

// Validate checks the envelope and, on success, records its identity.
// Fails closed: bad magic, unsupported version, replayed ID, stale
// timestamp, size mismatch, and checksum mismatch are each a distinct
// error kind. An out-of-order sequence number is only a warning; the
// message is still accepted.
func (v *MessageValidator) Validate(msg *Envelope) *Result {
	result := NewResult()

	if msg.Magic != EnvelopeMagic {
		result.AddError(ErrorDetail{
			Kind:    ErrInvalidMagic,
			Value:   int64(msg.Magic),
			Min:     int64(EnvelopeMagic),
			Max:     int64(EnvelopeMagic),
			Message: "invalid protocol magic number",
		})
		return result
	}

	if msg.Version != ProtocolVersion {
		result.AddError(ErrorDetail{
			Kind:    ErrVersionMismatch,
			Value:   int64(msg.Version),
			Min:     int64(ProtocolVersion),
			Max:     int64(ProtocolVersion),
			Message: "protocol version not supported",
		})
	}

	if _, dup := v.seen[msg.MessageID]; dup {
		result.AddError(ErrorDetail{
			Kind:    ErrReplayAttack,
			Value:   int64(msg.MessageID),
			Message: "message already processed (replay)",
		})
		return result
	}

	if v.lastTimestamp > MaxClockSkew && msg.Timestamp < v.lastTimestamp-MaxClockSkew {
		result.AddError(ErrorDetail{
			Kind:    ErrStaleMessage,
			Value:   int64(msg.Timestamp),
			Message: "message timestamp too old",
		})
	}

	if msg.SequenceNumber != v.expectedSequence {
		result.AddWarning(WarningDetail{
			Kind:     WarnOutOfOrder,
			Severity: SeverityModerate,
			Message:  "message out of sequence",
		})
	}

	if int(msg.PayloadSize) != len(msg.Payload) {
		result.AddError(ErrorDetail{
			Kind:    ErrSizeMismatch,
			Value:   int64(msg.PayloadSize),
			Min:     int64(len(msg.Payload)),
			Max:     int64(len(msg.Payload)),
			Message: "payload size mismatch",
		})
		return result
	}

	if computed := Checksum32(msg.Payload); computed != msg.Checksum {
		result.AddError(ErrorDetail{
			Kind:    ErrChecksumFailure,
			Value:   int64(msg.Checksum),
			Min:     int64(computed),
			Max:     int64(computed),
			Message: "payload corruption detected (checksum mismatch)",
		})
		return result
	}

	if result.Valid {
		v.remember(msg.MessageID)
		v.lastTimestamp = msg.Timestamp
		v.expectedSequence = msg.SequenceNumber + 1
	}

	return result
}

// remember records an ID, evicting the oldest once the bound is hit.
func (v *MessageValidator) remember(id uint16) {
	if len(v.seenOrder) >= MaxMessageHistory {
		oldest := v.seenOrder[0]
		v.seenOrder = v.seenOrder[1:]
		delete(v.seen, oldest)
	}
	v.seen[id] = struct{}{}
	v.seenOrder = append(v.seenOrder, id)
}

// Reset clears all replay/sequence state.
func (v *MessageValidator) Reset() {
	v.expectedSequence = 0
	v.lastTimestamp = 0
	v.seen = make(map[uint16]struct{}, MaxMessageHistory)
	v.seenOrder = nil
}
