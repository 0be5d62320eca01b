package persistence

import "errors"

var (
	// ErrInvalidMagic indicates a snapshot with an unknown magic number.
	ErrInvalidMagic = errors.New("invalid magic number")
	// ErrInvalidVersion indicates a snapshot written by an unsupported format version.
	ErrInvalidVersion = errors.New("unsupported version")
	// ErrCorruptSnapshot indicates a snapshot whose sections are inconsistent.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)
