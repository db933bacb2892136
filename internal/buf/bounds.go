package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// AddrOverflowSafe adds an unsigned length to an address, returning ok = false
// when the sum wraps the 64-bit address space.
func AddrOverflowSafe(addr, n uint64) (uint64, bool) {
	if addr > math.MaxUint64-n {
		return 0, false
	}
	return addr + n, true
}

// MulOverflowSafe multiplies two non-negative ints, returning ok = false when
// the product would overflow. Negative operands are rejected.
func MulOverflowSafe(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

// CheckListBounds validates that count entries of entrySize bytes fit in a
// region of regionLen bytes starting at offset. Returns the end offset.
//
// Method lists and section entry arrays are validated this way before any
// entry is read:
//
//	end, err := buf.CheckListBounds(len(region), off, int(count), int(entsize))
//	if err != nil {
//	    return fmt.Errorf("method list: %w", err)
//	}
func CheckListBounds(regionLen, offset, count, entrySize int) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("negative offset: %d", offset)
	}
	if count < 0 {
		return 0, fmt.Errorf("negative count: %d", count)
	}
	if entrySize < 0 {
		return 0, fmt.Errorf("negative entry size: %d", entrySize)
	}

	total, ok := MulOverflowSafe(count, entrySize)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * entsize=%d", count, entrySize)
	}

	end, ok := AddOverflowSafe(offset, total)
	if !ok {
		return 0, fmt.Errorf("overflow: offset=%d + size=%d", offset, total)
	}

	if end > regionLen {
		return 0, fmt.Errorf("bounds: end=%d > len=%d", end, regionLen)
	}

	return end, nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off > len(b) {
		return nil, false
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > len(b) {
		return nil, false
	}
	return b[off:end], true
}
