package buf

import (
	"math"
	"testing"
)

func TestAddOverflowSafe(t *testing.T) {
	if sum, ok := AddOverflowSafe(10, 5); !ok || sum != 15 {
		t.Fatalf("AddOverflowSafe(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := AddOverflowSafe(math.MaxInt64, 1); ok {
		t.Fatalf("expected overflow when adding to MaxInt64")
	}
	if _, ok := AddOverflowSafe(-1, 1); ok {
		t.Fatalf("expected negative span to be rejected")
	}
}

func TestMulOverflowSafe(t *testing.T) {
	if p, ok := MulOverflowSafe(1<<20, 1<<20); !ok || p != 1<<40 {
		t.Fatalf("MulOverflowSafe(2^20,2^20)=%d,%v", p, ok)
	}
	if p, ok := MulOverflowSafe(0, math.MaxInt64); !ok || p != 0 {
		t.Fatalf("MulOverflowSafe(0,max)=%d,%v want 0,true", p, ok)
	}
	if _, ok := MulOverflowSafe(math.MaxInt64/2, 3); ok {
		t.Fatalf("expected overflow")
	}
	if _, ok := MulOverflowSafe(-2, 3); ok {
		t.Fatalf("expected negative span to be rejected")
	}
}

func TestCheckRows(t *testing.T) {
	end, err := CheckRows(1024, 64, 10, 16)
	if err != nil || end != 224 {
		t.Fatalf("CheckRows = %d, %v want 224, nil", end, err)
	}
	if _, err := CheckRows(1024, 64, 100, 16); err == nil {
		t.Fatalf("expected out of bounds error")
	}
	if _, err := CheckRows(1024, 0, math.MaxInt64/2, 4); err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, err := CheckRows(1024, 0, -1, 4); err == nil {
		t.Fatalf("expected negative count error")
	}
}
