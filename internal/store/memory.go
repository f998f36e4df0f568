// internal/store/memory.go
package store

import (
	"errors"
	"fmt"
)

// Memory is a map-backed Store for tests. It supports per-operation
// failure injection so callers can exercise storage-error paths.
type Memory struct {
	blobs map[string][]byte

	// FailRead / FailWrite name blobs whose operations should fail.
	FailRead  map[string]bool
	FailWrite map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		blobs:     make(map[string][]byte),
		FailRead:  make(map[string]bool),
		FailWrite: make(map[string]bool),
	}
}

func (s *Memory) Read(name string) ([]byte, error) {
	if s.FailRead[name] {
		return nil, errors.New("store: injected read failure")
	}
	data, ok := s.blobs[name]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *Memory) Write(name string, data []byte) error {
	if s.FailWrite[name] {
		return fmt.Errorf("store: injected write failure for %s", name)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[name] = cp
	return nil
}

func (s *Memory) Exists(name string) bool {
	_, ok := s.blobs[name]
	return ok
}

func (s *Memory) Delete(name string) error {
	delete(s.blobs, name)
	return nil
}

func (s *Memory) Close() error {
	return nil
}

// Corrupt flips one byte of a stored blob in place. Test helper for
// simulating flash corruption without going through Write.
func (s *Memory) Corrupt(name string, offset int) bool {
	data, ok := s.blobs[name]
	if !ok || offset >= len(data) {
		return false
	}
	data[offset] ^= 0xFF
	return true
}
