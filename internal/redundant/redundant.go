// internal/redundant/redundant.go
package redundant

import (
	"bytes"
	"log/slog"

	"github.com/tamzrod/midiguard/internal/integrity"
)

// EncodeFunc produces the stable byte form of a value. Checksums and
// copy comparisons run over this form, so it must be deterministic.
type EncodeFunc[T any] func(v *T, buf []byte) []byte

// Value keeps three copies of T plus per-copy checksums.
// It is the last line of defense: no corruption pattern may make it
// panic. Reads resolve through majority voting and self-heal damaged
// copies where a quorum or a single survivor exists.
//
// Not safe for concurrent use; the owner serializes access.
type Value[T any] struct {
	copies [3]T
	sums   [3]uint32
	gen    uint32

	encode EncodeFunc[T]
	logger *slog.Logger
}

// New creates a Value holding three copies of the zero T.
func New[T any](encode EncodeFunc[T], logger *slog.Logger) *Value[T] {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Value[T]{encode: encode, logger: logger}
	v.refreshChecksums()
	return v
}

// Set copies val into all three slots and recomputes every checksum.
// Immediately after a Set, corruption is impossible by construction.
func (v *Value[T]) Set(val T) {
	v.copies[0] = val
	v.copies[1] = val
	v.copies[2] = val
	v.gen++
	v.refreshChecksums()
}

// Majority resolves the stored value.
// Quorum of two matching valid copies wins; a lone valid copy is
// trusted and the others are repaired from it; with zero valid copies
// the zero T is returned. Never returns an error and never panics.
func (v *Value[T]) Majority() T {
	enc, valid := v.survey()

	switch {
	case valid[0] && valid[1] && bytes.Equal(enc[0], enc[1]):
		if !valid[2] || !bytes.Equal(enc[0], enc[2]) {
			v.repairFrom(0)
		}
		return v.copies[0]

	case valid[0] && valid[2] && bytes.Equal(enc[0], enc[2]):
		v.repairFrom(0)
		return v.copies[0]

	case valid[1] && valid[2] && bytes.Equal(enc[1], enc[2]):
		v.repairFrom(1)
		return v.copies[1]
	}

	// No quorum. Trust a lone survivor if any.
	for i := 0; i < 3; i++ {
		if valid[i] {
			v.logger.Warn("redundant value degraded to single copy, repairing",
				"copy", i, "generation", v.gen)
			v.repairFrom(i)
			return v.copies[i]
		}
	}

	v.logger.Error("all redundant copies corrupted, returning default",
		"generation", v.gen)
	var zero T
	return zero
}

// Corrupted reports whether any copy's checksum disagrees with its
// stored value.
func (v *Value[T]) Corrupted() bool {
	return v.ValidCopies() != 3
}

// ValidCopies counts copies whose live checksum matches the stored one.
func (v *Value[T]) ValidCopies() int {
	_, valid := v.survey()
	n := 0
	for _, ok := range valid {
		if ok {
			n++
		}
	}
	return n
}

// Generation returns the number of Sets performed.
func (v *Value[T]) Generation() uint32 {
	return v.gen
}

// survey encodes each copy and compares live checksums to stored ones.
func (v *Value[T]) survey() (enc [3][]byte, valid [3]bool) {
	for i := 0; i < 3; i++ {
		enc[i] = v.encode(&v.copies[i], nil)
		valid[i] = integrity.Checksum32(enc[i]) == v.sums[i]
	}
	return enc, valid
}

// repairFrom overwrites every slot with copy i and reseals checksums.
func (v *Value[T]) repairFrom(i int) {
	val := v.copies[i]
	v.copies[0] = val
	v.copies[1] = val
	v.copies[2] = val
	v.refreshChecksums()
}

func (v *Value[T]) refreshChecksums() {
	for i := 0; i < 3; i++ {
		v.sums[i] = integrity.Checksum32(v.encode(&v.copies[i], nil))
	}
}
