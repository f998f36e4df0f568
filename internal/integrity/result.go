// internal/integrity/result.go
package integrity

// ErrorKind classifies a validation failure.
// Protocol-integrity kinds are fatal to the message and never auto-fixable.
// Semantic kinds carry a per-error AutoFixable flag.
type ErrorKind uint8

const (
	ErrNone ErrorKind = iota
	ErrInvalidMagic
	ErrVersionMismatch
	ErrReplayAttack
	ErrStaleMessage
	ErrSizeMismatch
	ErrChecksumFailure
	ErrInvalidMIDIChannel
	ErrInvalidScale
	ErrInvalidOctave
	ErrInvalidCCID
	ErrInvalidScaleNote
	ErrHardwareIncompatible
	ErrFirmwareTooOld
	ErrOutOfRange
	ErrCustomValidationFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidMagic:
		return "INVALID_MAGIC"
	case ErrVersionMismatch:
		return "VERSION_MISMATCH"
	case ErrReplayAttack:
		return "REPLAY_ATTACK"
	case ErrStaleMessage:
		return "STALE_MESSAGE"
	case ErrSizeMismatch:
		return "SIZE_MISMATCH"
	case ErrChecksumFailure:
		return "CHECKSUM_FAILURE"
	case ErrInvalidMIDIChannel:
		return "INVALID_MIDI_CHANNEL"
	case ErrInvalidScale:
		return "INVALID_SCALE"
	case ErrInvalidOctave:
		return "INVALID_OCTAVE"
	case ErrInvalidCCID:
		return "INVALID_CC_ID"
	case ErrInvalidScaleNote:
		return "INVALID_SCALE_NOTE"
	case ErrHardwareIncompatible:
		return "HARDWARE_INCOMPATIBLE"
	case ErrFirmwareTooOld:
		return "FIRMWARE_TOO_OLD"
	case ErrOutOfRange:
		return "OUT_OF_RANGE"
	case ErrCustomValidationFailed:
		return "CUSTOM_VALIDATION_FAILED"
	default:
		return "NONE"
	}
}

// WarningKind classifies a non-fatal observation.
type WarningKind uint8

const (
	WarnNone WarningKind = iota
	WarnChannelConflict
	WarnDuplicateCCID
	WarnUnknownParameter
	WarnDeprecatedParameter
	WarnOutOfOrder
)

// Severity ranks a warning.
type Severity uint8

const (
	SeverityLow Severity = iota
	SeverityModerate
	SeverityHigh
)

// Location pins an error or warning to a field.
type Location struct {
	Bank      uint8
	Parameter string
	Index     uint8
}

// ErrorDetail is one validation failure.
type ErrorDetail struct {
	Kind        ErrorKind
	Location    Location
	Value       int64
	Min         int64
	Max         int64
	AutoFixable bool
	Fix         string
	Message     string
}

// WarningDetail is one non-fatal observation.
type WarningDetail struct {
	Kind     WarningKind
	Severity Severity
	Location Location
	Message  string
}

// Result accumulates errors and warnings from a validation pass.
// Invariant: Valid == (len(Errors) == 0).
type Result struct {
	Valid    bool
	Errors   []ErrorDetail
	Warnings []WarningDetail
}

// NewResult returns an empty, valid result.
func NewResult() *Result {
	return &Result{Valid: true}
}

func (r *Result) AddError(e ErrorDetail) {
	r.Errors = append(r.Errors, e)
	r.Valid = false
}

func (r *Result) AddWarning(w WarningDetail) {
	r.Warnings = append(r.Warnings, w)
}

// Merge folds other into r.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	if !other.Valid {
		r.Valid = false
	}
}

// CanAutoFix reports whether every accumulated error is fixable.
// False when there are no errors at all.
func (r *Result) CanAutoFix() bool {
	if len(r.Errors) == 0 {
		return false
	}
	for _, e := range r.Errors {
		if !e.AutoFixable {
			return false
		}
	}
	return true
}

// Clear resets the result to empty and valid.
func (r *Result) Clear() {
	r.Valid = true
	r.Errors = r.Errors[:0]
	r.Warnings = r.Warnings[:0]
}
