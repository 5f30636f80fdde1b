package space

import "fmt"

// Address is any byte offset into the heap image.
type Address int64

// Object is the address of the first user byte of an allocated block.
type Object int64

// Nil is the zero Object; the map occupies offset 0, so no block starts there.
const Nil Object = 0

// Addr converts the object to a plain Address.
func (o Object) Addr() Address { return Address(o) }

// Add returns the address n bytes past a.
func (a Address) Add(n int64) Address { return a + Address(n) }

func (a Address) String() string { return fmt.Sprintf("0x%x", int64(a)) }

func (o Object) String() string { return fmt.Sprintf("obj@0x%x", int64(o)) }

// Scale classifies an address.
type Scale int

const (
	ScaleNone Scale = iota
	ScaleSmall
	ScaleLarge
)

func (s Scale) String() string {
	switch s {
	case ScaleSmall:
		return "small"
	case ScaleLarge:
		return "large"
	default:
		return "none"
	}
}

// Image is the byte image the manager allocates in. Reads go straight to
// Bytes; every store goes through Write so it can be logged and tracked.
type Image interface {
	Bytes() []byte
	Write(off int64, p []byte) error
}
