// Package metadata interprets the raw Objective-C metadata records of an
// image: class and metaclass descriptors, their read-only data and method
// lists, categories, and the reference-slot sections that point at them.
//
// Decoders are pure. They read through image.Memory and never write.
package metadata

import (
	"fmt"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/image"
)

// ClassRecord is a decoded class64_t. The same layout describes classes and
// metaclasses; RO.IsMeta tells them apart.
type ClassRecord struct {
	Addr       uint64
	ISA        uint64 // metaclass record of a class; root metaclass of a metaclass
	Superclass uint64 // zero for root classes
	Cache      uint64
	VTable     uint64
	DataBits   uint64 // raw data word, flags included
	RO         ClassRO
}

// Name returns the class name from the read-only data.
func (c ClassRecord) Name() string { return c.RO.Name }

// IsRoot reports whether the record has no superclass.
func (c ClassRecord) IsRoot() bool { return c.Superclass == 0 }

// IsMeta reports whether the record describes a metaclass.
func (c ClassRecord) IsMeta() bool { return c.RO.IsMeta() }

// IsSwift reports whether the data word carries the Swift marker.
func (c ClassRecord) IsSwift() bool { return c.DataBits&abi.FastIsSwift != 0 }

// ClassRO is a decoded class_ro64_t.
type ClassRO struct {
	Addr           uint64
	Flags          uint32
	InstanceStart  uint32
	InstanceSize   uint32
	NameAddr       uint64
	Name           string
	BaseMethods    uint64
	BaseProtocols  uint64
	Ivars          uint64
	BaseProperties uint64
}

// IsMeta reports whether RO_META is set.
func (ro ClassRO) IsMeta() bool { return ro.Flags&abi.ROMeta != 0 }

// ReadClass decodes the class record at addr, following its data word to the
// read-only data.
func ReadClass(mem image.Memory, addr uint64) (ClassRecord, error) {
	if addr == 0 {
		return ClassRecord{}, fmt.Errorf("class: %w", ErrNullPointer)
	}
	words, err := readWords(mem, addr, abi.ClassSize/abi.PtrSize)
	if err != nil {
		return ClassRecord{}, fmt.Errorf("class 0x%x: %w", addr, err)
	}
	rec := ClassRecord{
		Addr:       addr,
		ISA:        words[abi.ClassISAOffset/abi.PtrSize],
		Superclass: words[abi.ClassSuperclassOffset/abi.PtrSize],
		Cache:      words[abi.ClassCacheOffset/abi.PtrSize],
		VTable:     words[abi.ClassVTableOffset/abi.PtrSize],
		DataBits:   words[abi.ClassDataOffset/abi.PtrSize],
	}

	ro, err := ReadClassRO(mem, rec.DataBits&abi.FastDataMask)
	if err != nil {
		return ClassRecord{}, fmt.Errorf("class 0x%x data: %w", addr, err)
	}
	rec.RO = ro
	return rec, nil
}

// ReadClassRO decodes the class_ro64_t at addr, including its name string.
func ReadClassRO(mem image.Memory, addr uint64) (ClassRO, error) {
	if addr == 0 {
		return ClassRO{}, fmt.Errorf("class ro: %w", ErrNullPointer)
	}
	flags, err := mem.ReadU32(addr + abi.ROFlagsOffset)
	if err != nil {
		return ClassRO{}, fmt.Errorf("class ro flags: %w", err)
	}
	start, err := mem.ReadU32(addr + abi.ROInstanceStartOffset)
	if err != nil {
		return ClassRO{}, fmt.Errorf("class ro instance start: %w", err)
	}
	size, err := mem.ReadU32(addr + abi.ROInstanceSizeOffset)
	if err != nil {
		return ClassRO{}, fmt.Errorf("class ro instance size: %w", err)
	}

	// Pointer fields run contiguously from ivarLayout to baseProperties.
	words, err := readWords(mem, addr+abi.ROIvarLayoutOffset, (abi.ROSize-abi.ROIvarLayoutOffset)/abi.PtrSize)
	if err != nil {
		return ClassRO{}, fmt.Errorf("class ro 0x%x: %w", addr, err)
	}
	field := func(off int) uint64 { return words[(off-abi.ROIvarLayoutOffset)/abi.PtrSize] }

	ro := ClassRO{
		Addr:           addr,
		Flags:          flags,
		InstanceStart:  start,
		InstanceSize:   size,
		NameAddr:       field(abi.RONameOffset),
		BaseMethods:    field(abi.ROBaseMethodsOffset),
		BaseProtocols:  field(abi.ROBaseProtocolsOffset),
		Ivars:          field(abi.ROIvarsOffset),
		BaseProperties: field(abi.ROBasePropertiesOffset),
	}
	if ro.NameAddr == 0 {
		return ClassRO{}, fmt.Errorf("class ro 0x%x name: %w", addr, ErrNullPointer)
	}
	ro.Name, err = mem.CString(ro.NameAddr)
	if err != nil {
		return ClassRO{}, fmt.Errorf("class ro 0x%x name: %w", addr, err)
	}
	return ro, nil
}

// ClassName decodes just enough of the record at addr to return its name.
func ClassName(mem image.Memory, addr uint64) (string, error) {
	rec, err := ReadClass(mem, addr)
	if err != nil {
		return "", err
	}
	return rec.Name(), nil
}

func readWords(mem image.Memory, addr uint64, n int) ([]uint64, error) {
	out := make([]uint64, n)
	for i := range out {
		v, err := mem.ReadPtr(addr + uint64(i*abi.PtrSize))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
		}
		out[i] = v
	}
	return out, nil
}
