// Package sdrstring stores short self-delimiting strings in an SDR heap: one
// length byte followed by up to 255 bytes of text.
package sdrstring

import (
	"fmt"

	"github.com/joshuapare/sdrkit/sdr"
)

// MaxLen is the longest string that can be stored.
const MaxLen = 255

// Create stores s in a new object.
func Create(t *sdr.Txn, s string) (sdr.Object, error) {
	if len(s) > MaxLen {
		return sdr.Nil, t.Fail(fmt.Errorf("string of %d bytes exceeds %d: %w", len(s), MaxLen, sdr.ErrInvalidArgument))
	}
	obj, err := t.Malloc(int64(len(s)) + 1)
	if err != nil {
		return sdr.Nil, err
	}
	b := make([]byte, len(s)+1)
	b[0] = byte(len(s))
	copy(b[1:], s)
	if err := t.Poke(obj.Addr(), b); err != nil {
		return sdr.Nil, err
	}
	return obj, nil
}

// Length returns the length of the string at obj.
func Length(t *sdr.Txn, obj sdr.Object) (int, error) {
	if obj == sdr.Nil {
		return 0, t.Fail(fmt.Errorf("string length of nil: %w", sdr.ErrInvalidArgument))
	}
	var n [1]byte
	if err := t.Read(obj.Addr(), n[:]); err != nil {
		return 0, err
	}
	return int(n[0]), nil
}

// Read returns the string at obj.
func Read(t *sdr.Txn, obj sdr.Object) (string, error) {
	n, err := Length(t, obj)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if err := t.Read(obj.Addr().Add(1), b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Dup copies the string at obj into a new object.
func Dup(t *sdr.Txn, obj sdr.Object) (sdr.Object, error) {
	s, err := Read(t, obj)
	if err != nil {
		return sdr.Nil, err
	}
	return Create(t, s)
}

// Destroy frees the string at obj.
func Destroy(t *sdr.Txn, obj sdr.Object) error {
	return t.Free(obj)
}
