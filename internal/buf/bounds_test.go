package buf

import (
	"math"
	"testing"
)

func TestAddOverflowSafe(t *testing.T) {
	if sum, ok := AddOverflowSafe(10, 5); !ok || sum != 15 {
		t.Fatalf("AddOverflowSafe(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := AddOverflowSafe(math.MaxInt, 1); ok {
		t.Fatalf("expected overflow when adding to MaxInt")
	}
	if _, ok := AddOverflowSafe(math.MinInt, -1); ok {
		t.Fatalf("expected underflow when subtracting from MinInt")
	}
}

func TestAddrOverflowSafe(t *testing.T) {
	if end, ok := AddrOverflowSafe(0x1000, 0x20); !ok || end != 0x1020 {
		t.Fatalf("AddrOverflowSafe = 0x%x,%v", end, ok)
	}
	if _, ok := AddrOverflowSafe(math.MaxUint64-4, 8); ok {
		t.Fatalf("expected wrap to be rejected")
	}
}

func TestMulOverflowSafe(t *testing.T) {
	if p, ok := MulOverflowSafe(24, 3); !ok || p != 72 {
		t.Fatalf("MulOverflowSafe(24,3)=%d,%v", p, ok)
	}
	if p, ok := MulOverflowSafe(0, math.MaxInt); !ok || p != 0 {
		t.Fatalf("zero operand should yield 0,true")
	}
	if _, ok := MulOverflowSafe(math.MaxInt/2, 3); ok {
		t.Fatalf("expected overflow")
	}
	if _, ok := MulOverflowSafe(-1, 3); ok {
		t.Fatalf("negative operands should be rejected")
	}
}

func TestCheckListBounds(t *testing.T) {
	end, err := CheckListBounds(80, 8, 3, 24)
	if err != nil || end != 80 {
		t.Fatalf("CheckListBounds = %d, %v; want 80, nil", end, err)
	}
	if _, err := CheckListBounds(79, 8, 3, 24); err == nil {
		t.Fatalf("expected bounds error")
	}
	if _, err := CheckListBounds(80, -1, 1, 1); err == nil {
		t.Fatalf("expected negative offset error")
	}
	if _, err := CheckListBounds(80, 0, math.MaxInt, 24); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestSlice(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4}
	if got, ok := Slice(data, 1, 3); !ok || len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Slice returned unexpected result: %v, %v", got, ok)
	}
	if _, ok := Slice(data, 4, 2); ok {
		t.Fatalf("Slice should fail when extending beyond len")
	}
	if _, ok := Slice(data, -1, 1); ok {
		t.Fatalf("Slice should reject negative offset")
	}
	if _, ok := Slice(data, 1, -1); ok {
		t.Fatalf("Slice should reject negative length")
	}
}
