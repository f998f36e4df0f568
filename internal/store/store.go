// internal/store/store.go
package store

import "errors"

// ErrNotFound is returned by Read when the named blob does not exist.
var ErrNotFound = errors.New("store: blob not found")

// ErrMountFailed is returned by constructors when the backing medium
// cannot be brought up. It is fatal to boot.
var ErrMountFailed = errors.New("store: mount failed")

// Store is the named-blob persistence contract the integrity core
// depends on. Whole-blob reads and writes only; no partial IO.
// Every call is fallible and MUST be checked by the caller.
type Store interface {
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
	Exists(name string) bool
	Delete(name string) error
	Close() error
}
