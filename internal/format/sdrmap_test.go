package format

import (
	"errors"
	"testing"
)

func TestInitMapParse(t *testing.T) {
	img := make([]byte, 64*1024)
	InitMap(img)

	m, err := ParseMap(img)
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	if m.HeapSize != int64(len(img)) {
		t.Fatalf("heap size mismatch: %+v", m)
	}
	if m.StartSmallPool != MapSize || m.EndSmallPool != MapSize {
		t.Fatalf("small pool bounds: %+v", m)
	}
	if m.StartLargePool != int64(len(img)) || m.EndLargePool != int64(len(img)) {
		t.Fatalf("large pool bounds: %+v", m)
	}
	if m.Unassigned != int64(len(img))-MapSize {
		t.Fatalf("unassigned mismatch: %+v", m)
	}
	if err := m.Validate(int64(len(img))); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseMapErrors(t *testing.T) {
	img := make([]byte, MapSize)
	if _, err := ParseMap(img[:10]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected truncation error, got %v", err)
	}
	if _, err := ParseMap(img); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature error, got %v", err)
	}
	InitMap(img)
	PutU32(img, MapVersionOffset, 99)
	if _, err := ParseMap(img); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestMapValidateDetectsDisorder(t *testing.T) {
	img := make([]byte, 8192)
	InitMap(img)
	PutU64(img, MapEndSmallOffset, 8000)

	m, err := ParseMap(img)
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	if err := m.Validate(int64(len(img))); !errors.Is(err, ErrCorruptMap) {
		t.Fatalf("expected corrupt map, got %v", err)
	}
}

func TestDescriptorSlot(t *testing.T) {
	img := make([]byte, 4096)
	InitMap(img)
	if d := Descriptor(img); d != nil {
		t.Fatalf("fresh map has descriptor %x", d)
	}
	if err := PutDescriptor(img, []byte{1, 2, 3}); err != nil {
		t.Fatalf("PutDescriptor: %v", err)
	}
	if d := Descriptor(img); string(d) != "\x01\x02\x03" {
		t.Fatalf("descriptor mismatch: %x", d)
	}
	if err := PutDescriptor(img, make([]byte, MaxDescriptor+1)); err == nil {
		t.Fatalf("expected oversize descriptor error")
	}
}

func TestSmallInUseWord(t *testing.T) {
	w := EncodeSmallInUse(0x4E0, 7)
	n, ok := DecodeSmallInUse(w, 0x4E0)
	if !ok || n != 7 {
		t.Fatalf("decode: n=%d ok=%v", n, ok)
	}
	if _, ok := DecodeSmallInUse(w, 0x4E8); ok {
		t.Fatalf("word accepted at foreign address")
	}
	if _, ok := DecodeSmallInUse(0x4F0, 0x4E0); ok {
		t.Fatalf("free-list link accepted as in-use word")
	}
}

func TestAlign(t *testing.T) {
	cases := []struct{ in, word, large int64 }{
		{1, 8, 32},
		{8, 8, 32},
		{9, 16, 32},
		{513, 520, 544},
		{4000, 4000, 4000},
		{4001, 4008, 4032},
	}
	for _, c := range cases {
		if got := AlignWord(c.in); got != c.word {
			t.Fatalf("AlignWord(%d)=%d want %d", c.in, got, c.word)
		}
		if got := AlignLarge(c.in); got != c.large {
			t.Fatalf("AlignLarge(%d)=%d want %d", c.in, got, c.large)
		}
	}
}

func TestOwnerFields(t *testing.T) {
	b := make([]byte, MapSize+64)
	InitMap(b)
	if got := ReadOwner(b); got.Task != 0 || got.Depth != 0 {
		t.Fatalf("fresh map owner = %+v", got)
	}
	want := MapOwner{Task: 4242, Depth: 3}
	want.Thread[0], want.Thread[15] = 0xAB, 0xCD
	PutOwner(b, want)
	if got := ReadOwner(b); got != want {
		t.Fatalf("owner = %+v, want %+v", got, want)
	}
	if _, err := ParseMap(b); err != nil {
		t.Fatalf("owner fields broke the map: %v", err)
	}
}
