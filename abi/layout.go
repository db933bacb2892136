package abi

import (
	"errors"
	"fmt"
)

// ErrUnknownLayout is returned for runtime versions without a layout description.
var ErrUnknownLayout = errors.New("abi: unknown runtime layout")

// RuntimeLayout describes the private class_rw_t bits the registration engine
// writes. A runtime release that moves any of them needs a new entry in
// knownLayouts and nothing else.
type RuntimeLayout struct {
	// Version names the runtime release the description was taken from.
	Version string
	// RWFlagsOffset is the offset of the flags word inside class_rw_t.
	RWFlagsOffset int
	// RWRealized marks a realized class.
	RWRealized uint32
	// RWConstructing marks a class allocated but not yet registered; the
	// runtime only disposes classes carrying it or RWConstructed.
	RWConstructing uint32
	// RWConstructed marks a class registered through the pair API.
	RWConstructed uint32
	// FastDataMask extracts the class_rw_t pointer from the class data bits.
	FastDataMask uint64
}

// DisposableMask returns the flag bits that make a class disposable.
func (l RuntimeLayout) DisposableMask() uint32 {
	return l.RWConstructing | l.RWConstructed
}

// DefaultLayoutVersion is the layout used when none is requested.
const DefaultLayoutVersion = "objc4-750"

var knownLayouts = map[string]RuntimeLayout{
	"objc4-750": {
		Version:        "objc4-750",
		RWFlagsOffset:  0,
		RWRealized:     1 << 31,
		RWConstructing: 1 << 26,
		RWConstructed:  1 << 25,
		FastDataMask:   FastDataMask,
	},
	"objc4-818": {
		Version:        "objc4-818",
		RWFlagsOffset:  0,
		RWRealized:     1 << 31,
		RWConstructing: 1 << 26,
		RWConstructed:  1 << 25,
		FastDataMask:   0x00007ffffffffff8,
	},
}

// LookupRuntimeLayout returns the layout description for a runtime version.
func LookupRuntimeLayout(version string) (RuntimeLayout, error) {
	if version == "" {
		version = DefaultLayoutVersion
	}
	l, ok := knownLayouts[version]
	if !ok {
		return RuntimeLayout{}, fmt.Errorf("%w: %q", ErrUnknownLayout, version)
	}
	return l, nil
}
