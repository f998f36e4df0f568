// internal/integrity/envelope_test.go
package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goodEnvelope(id uint16, seq uint32, ts uint32) *Envelope {
	e := &Envelope{
		Magic:          EnvelopeMagic,
		Version:        ProtocolVersion,
		MessageID:      id,
		Timestamp:      ts,
		SequenceNumber: seq,
		Payload:        []byte("payload"),
	}
	e.Seal()
	return e
}

func TestValidEnvelopeAccepted(t *testing.T) {
	v := NewMessageValidator()
	res := v.Validate(goodEnvelope(1, 0, 1000))
	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)
}

func TestBadMagicRejectedImmediately(t *testing.T) {
	v := NewMessageValidator()
	e := goodEnvelope(1, 0, 1000)
	e.Magic = 0xBADC0DE

	res := v.Validate(e)
	require.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ErrInvalidMagic, res.Errors[0].Kind)

	// Identity was not recorded; the same ID is accepted once fixed.
	assert.True(t, v.Validate(goodEnvelope(1, 0, 1000)).Valid)
}

func TestUnsupportedVersionRejected(t *testing.T) {
	v := NewMessageValidator()
	e := goodEnvelope(1, 0, 1000)
	e.Version = 2

	res := v.Validate(e)
	require.False(t, res.Valid)
	assert.Equal(t, ErrVersionMismatch, res.Errors[0].Kind)
}

func TestReplayRejected(t *testing.T) {
	v := NewMessageValidator()
	require.True(t, v.Validate(goodEnvelope(42, 0, 1000)).Valid)

	res := v.Validate(goodEnvelope(42, 1, 2000))
	require.False(t, res.Valid)
	assert.Equal(t, ErrReplayAttack, res.Errors[0].Kind)
}

func TestStaleTimestampRejected(t *testing.T) {
	v := NewMessageValidator()
	require.True(t, v.Validate(goodEnvelope(1, 0, 200_000)).Valid)

	// Within the skew window: accepted. The accepted timestamp becomes
	// the new reference.
	res := v.Validate(goodEnvelope(2, 1, 200_000-MaxClockSkew))
	assert.True(t, res.Valid)

	// Beyond the window relative to the new reference: stale.
	res = v.Validate(goodEnvelope(3, 2, 200_000-2*MaxClockSkew-1))
	require.False(t, res.Valid)
	assert.Equal(t, ErrStaleMessage, res.Errors[0].Kind)
}

func TestSmallTimestampsNeverStale(t *testing.T) {
	// Early-uptime senders must not trip the window through unsigned
	// wraparound.
	v := NewMessageValidator()
	require.True(t, v.Validate(goodEnvelope(1, 0, 5000)).Valid)
	assert.True(t, v.Validate(goodEnvelope(2, 1, 100)).Valid)
}

func TestOutOfOrderSequenceIsWarningOnly(t *testing.T) {
	v := NewMessageValidator()
	require.True(t, v.Validate(goodEnvelope(1, 0, 1000)).Valid)

	res := v.Validate(goodEnvelope(2, 5, 2000))
	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnOutOfOrder, res.Warnings[0].Kind)

	// Expectation resumes from the accepted sequence.
	assert.Empty(t, v.Validate(goodEnvelope(3, 6, 3000)).Warnings)
}

func TestSizeMismatchRejected(t *testing.T) {
	v := NewMessageValidator()
	e := goodEnvelope(1, 0, 1000)
	e.PayloadSize = 3

	res := v.Validate(e)
	require.False(t, res.Valid)
	assert.Equal(t, ErrSizeMismatch, res.Errors[0].Kind)
}

func TestPayloadCorruptionRejected(t *testing.T) {
	v := NewMessageValidator()
	e := goodEnvelope(1, 0, 1000)
	e.Payload[0] ^= 0xFF

	res := v.Validate(e)
	require.False(t, res.Valid)
	assert.Equal(t, ErrChecksumFailure, res.Errors[0].Kind)
}

func TestRejectedMessageIDReusable(t *testing.T) {
	v := NewMessageValidator()
	e := goodEnvelope(9, 0, 1000)
	e.Payload[0] ^= 0xFF
	require.False(t, v.Validate(e).Valid)

	// The corrupted attempt must not burn the ID.
	assert.True(t, v.Validate(goodEnvelope(9, 0, 1000)).Valid)
}

func TestHistoryEvictsOldestNotAll(t *testing.T) {
	v := NewMessageValidator()
	for i := 0; i < MaxMessageHistory; i++ {
		require.True(t, v.Validate(goodEnvelope(uint16(i), uint32(i), 1000+uint32(i))).Valid)
	}

	// One past the bound evicts ID 0 only.
	require.True(t, v.Validate(goodEnvelope(1000, MaxMessageHistory, 5000)).Valid)

	res := v.Validate(goodEnvelope(1, MaxMessageHistory+1, 5001))
	require.False(t, res.Valid, "recent IDs must still be remembered")
	assert.Equal(t, ErrReplayAttack, res.Errors[0].Kind)

	assert.True(t, v.Validate(goodEnvelope(0, MaxMessageHistory+1, 5002)).Valid,
		"oldest ID was evicted and may recur")
}

func TestReset(t *testing.T) {
	v := NewMessageValidator()
	require.True(t, v.Validate(goodEnvelope(5, 0, 1000)).Valid)

	v.Reset()
	assert.True(t, v.Validate(goodEnvelope(5, 0, 1000)).Valid)
}

func TestWireRoundTrip(t *testing.T) {
	e := goodEnvelope(77, 3, 123456)
	raw := e.Encode()

	got, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, *e, got)

	v := NewMessageValidator()
	assert.True(t, v.Validate(&got).Valid)
}

func TestDecodeEnvelopeRejectsTruncation(t *testing.T) {
	e := goodEnvelope(1, 0, 1000)
	raw := e.Encode()

	_, err := DecodeEnvelope(raw[:5])
	assert.Error(t, err)

	_, err = DecodeEnvelope(raw[:len(raw)-2])
	assert.Error(t, err)
}
