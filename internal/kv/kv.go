// Package kv provides the blob store behind every persisted list: a flat
// namespace of named slots, each holding one opaque byte blob.
package kv

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidSlot is returned for slot names that cannot be stored safely.
var ErrInvalidSlot = errors.New("invalid slot name")

// Store reads and writes whole blobs by slot name.
// Read returns nil, nil for a slot that was never written.
type Store interface {
	Read(slot string) ([]byte, error)
	Write(slot string, data []byte) error
}

var slotPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateSlot checks that a slot name is non-empty and only uses
// characters that are valid as a file name on every backend.
func ValidateSlot(slot string) error {
	if slot == "" || slot == "." || slot == ".." || !slotPattern.MatchString(slot) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	return nil
}
