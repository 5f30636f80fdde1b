package sdr

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/joshuapare/sdrkit/internal/format"
)

// descriptor is the part of the formatting profile recorded in the map, so
// tools can tell how a heap file was made.
type descriptor struct {
	Name        string `cbor:"1,keyasint"`
	Flags       uint8  `cbor:"2,keyasint"`
	HeapWords   int64  `cbor:"3,keyasint"`
	LogSize     int64  `cbor:"4,keyasint,omitempty"`
	SearchLimit int    `cbor:"5,keyasint,omitempty"`
	Durability  int    `cbor:"6,keyasint,omitempty"`
}

var descEnc cbor.EncMode

func init() {
	var err error
	descEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

func descriptorOf(p Profile) descriptor {
	return descriptor{
		Name:        p.Name,
		Flags:       uint8(p.Flags),
		HeapWords:   p.HeapWords,
		LogSize:     p.LogSize,
		SearchLimit: p.SearchLimit,
		Durability:  int(p.Durability),
	}
}

func writeDescriptor(b []byte, p Profile) error {
	enc, err := descEnc.Marshal(descriptorOf(p))
	if err != nil {
		return err
	}
	return format.PutDescriptor(b, enc)
}

func readDescriptor(b []byte) (descriptor, error) {
	var d descriptor
	raw := format.Descriptor(b)
	if len(raw) == 0 {
		return d, fmt.Errorf("no descriptor: %w", format.ErrCorruptMap)
	}
	if err := cbor.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("descriptor: %w", err)
	}
	return d, nil
}

// diff lists the fields of d that differ from p, by name.
func (d descriptor) diff(p Profile) []string {
	want := descriptorOf(p)
	var out []string
	if d.Name != want.Name {
		out = append(out, "name")
	}
	if d.Flags != want.Flags {
		out = append(out, "flags")
	}
	if d.HeapWords != want.HeapWords {
		out = append(out, "heap_words")
	}
	if d.LogSize != want.LogSize {
		out = append(out, "log_size")
	}
	if d.SearchLimit != want.SearchLimit {
		out = append(out, "search_limit")
	}
	if d.Durability != want.Durability {
		out = append(out, "durability")
	}
	return out
}
