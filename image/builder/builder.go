// Package builder lays out synthetic Objective-C images in memory: class
// pairs, method lists, categories and the five metadata sections, all at the
// ABI offsets the compiler uses. Tests and the selftest command load these
// images instead of real binaries.
package builder

import (
	"fmt"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/image"
	"github.com/joshuapare/objcload/internal/buf"
)

// DefaultBase is the load address used when none is given.
const DefaultBase uint64 = 0x1_0000_0000

// Method describes one method64_t entry.
type Method struct {
	Name  string
	Types string
	IMP   uint64
}

// Class describes a class pair to lay out.
type Class struct {
	Name string
	// Super is the superclass word: a record built earlier, an external
	// live class handle, or zero for a root class.
	Super        uint64
	Methods      []Method
	ClassMethods []Method
	InstanceSize uint32
	Swift        bool
}

// Pair holds the record addresses of a laid-out class and its metaclass.
type Pair struct {
	Class uint64
	Meta  uint64
}

// Category describes a category_t to lay out.
type Category struct {
	Name            string
	Class           uint64
	InstanceMethods []Method
	ClassMethods    []Method
}

// Builder accumulates records and section entries. The zero value is not
// usable; call New.
type Builder struct {
	base     uint64
	data     []byte
	strings  map[string]uint64
	metas    map[uint64]uint64 // class record -> metaclass record
	symbols  map[string]uint64
	segments map[string]string

	selRefs   []uint64
	classList []uint64
	classRefs []uint64
	superRefs []uint64
	catList   []uint64
}

// New returns a builder laying out records from base.
func New(base uint64) *Builder {
	if base == 0 {
		base = DefaultBase
	}
	return &Builder{
		base:     base,
		strings:  make(map[string]uint64),
		metas:    make(map[uint64]uint64),
		symbols:  make(map[string]uint64),
		segments: make(map[string]string),
	}
}

// Base returns the load address.
func (b *Builder) Base() uint64 { return b.base }

// InSegment places section in segment instead of __DATA.
func (b *Builder) InSegment(section, segment string) {
	b.segments[section] = segment
}

// Export records an exported symbol. The leading underscore is added.
func (b *Builder) Export(name string, addr uint64) {
	b.symbols["_"+name] = addr
}

// alloc reserves n bytes, pointer aligned, and returns their address.
func (b *Builder) alloc(n int) uint64 {
	off := len(b.data)
	if pad := off % abi.PtrSize; pad != 0 {
		off += abi.PtrSize - pad
	}
	b.data = append(b.data, make([]byte, off+n-len(b.data))...)
	return b.base + uint64(off)
}

func (b *Builder) putPtr(addr, v uint64) {
	buf.PutU64LE(b.data[addr-b.base:], v)
}

func (b *Builder) putU32(addr uint64, v uint32) {
	buf.PutU32LE(b.data[addr-b.base:], v)
}

// CString stores s once and returns its address.
func (b *Builder) CString(s string) uint64 {
	if addr, ok := b.strings[s]; ok {
		return addr
	}
	addr := b.alloc(len(s) + 1)
	copy(b.data[addr-b.base:], s)
	b.strings[s] = addr
	return addr
}

// Methods lays out a method list and returns its address, or zero for an
// empty list.
func (b *Builder) Methods(ms []Method) uint64 {
	if len(ms) == 0 {
		return 0
	}
	addr := b.alloc(abi.ListHeaderSize + len(ms)*abi.MethodSize)
	b.putU32(addr+abi.ListEntsizeOffset, abi.MethodSize)
	b.putU32(addr+abi.ListCountOffset, uint32(len(ms)))
	for i, m := range ms {
		at := addr + abi.ListHeaderSize + uint64(i*abi.MethodSize)
		b.putPtr(at+abi.MethodNameOffset, b.CString(m.Name))
		if m.Types != "" {
			b.putPtr(at+abi.MethodTypesOffset, b.CString(m.Types))
		}
		b.putPtr(at+abi.MethodIMPOffset, m.IMP)
	}
	return addr
}

func (b *Builder) classRO(name string, flags, size uint32, methods []Method) uint64 {
	nameAddr := b.CString(name)
	list := b.Methods(methods)
	ro := b.alloc(abi.ROSize)
	b.putU32(ro+abi.ROFlagsOffset, flags)
	b.putU32(ro+abi.ROInstanceStartOffset, size)
	b.putU32(ro+abi.ROInstanceSizeOffset, size)
	b.putPtr(ro+abi.RONameOffset, nameAddr)
	b.putPtr(ro+abi.ROBaseMethodsOffset, list)
	return ro
}

// AddClass lays out a class record, its metaclass record and both read-only
// data blocks. The metaclass chain follows the superclass when the
// superclass was built here; the root metaclass points at itself.
func (b *Builder) AddClass(c Class) Pair {
	var flags uint32
	if c.Super == 0 {
		flags |= abi.RORoot
	}
	size := c.InstanceSize
	if size == 0 {
		size = abi.PtrSize
	}

	metaRO := b.classRO(c.Name, flags|abi.ROMeta, 40, c.ClassMethods)
	clsRO := b.classRO(c.Name, flags, size, c.Methods)
	meta := b.alloc(abi.ClassSize)
	cls := b.alloc(abi.ClassSize)

	data := clsRO
	if c.Swift {
		data |= abi.FastIsSwift
	}
	b.putPtr(cls+abi.ClassISAOffset, meta)
	b.putPtr(cls+abi.ClassSuperclassOffset, c.Super)
	b.putPtr(cls+abi.ClassDataOffset, data)

	b.putPtr(meta+abi.ClassDataOffset, metaRO)
	switch superMeta, ok := b.metas[c.Super]; {
	case c.Super == 0:
		b.putPtr(meta+abi.ClassISAOffset, meta)
		b.putPtr(meta+abi.ClassSuperclassOffset, cls)
	case ok:
		b.putPtr(meta+abi.ClassISAOffset, b.rootMeta(superMeta))
		b.putPtr(meta+abi.ClassSuperclassOffset, superMeta)
	}
	b.metas[cls] = meta
	return Pair{Class: cls, Meta: meta}
}

func (b *Builder) rootMeta(meta uint64) uint64 {
	isa := b.ptr(meta + abi.ClassISAOffset)
	if isa == 0 {
		return meta
	}
	return isa
}

func (b *Builder) ptr(addr uint64) uint64 {
	return buf.U64LE(b.data[addr-b.base:])
}

// AddCategory lays out a category record and returns its address.
func (b *Builder) AddCategory(c Category) uint64 {
	name := b.CString(c.Name)
	inst := b.Methods(c.InstanceMethods)
	cls := b.Methods(c.ClassMethods)
	addr := b.alloc(abi.CategorySize)
	b.putPtr(addr+abi.CategoryNameOffset, name)
	b.putPtr(addr+abi.CategoryClassOffset, c.Class)
	b.putPtr(addr+abi.CategoryInstanceMethodsOffset, inst)
	b.putPtr(addr+abi.CategoryClassMethodsOffset, cls)
	return addr
}

// ListClass appends a class-list entry.
func (b *Builder) ListClass(record uint64) int {
	b.classList = append(b.classList, record)
	return len(b.classList) - 1
}

// RefClass appends a class-ref entry.
func (b *Builder) RefClass(v uint64) int {
	b.classRefs = append(b.classRefs, v)
	return len(b.classRefs) - 1
}

// RefSuper appends a superclass-ref entry.
func (b *Builder) RefSuper(v uint64) int {
	b.superRefs = append(b.superRefs, v)
	return len(b.superRefs) - 1
}

// RefSelector appends a selector-ref entry pointing at the name string.
func (b *Builder) RefSelector(name string) int {
	b.selRefs = append(b.selRefs, b.CString(name))
	return len(b.selRefs) - 1
}

// ListCategory appends a category-list entry.
func (b *Builder) ListCategory(record uint64) int {
	b.catList = append(b.catList, record)
	return len(b.catList) - 1
}

// Build lays out the sections and returns the image. Halved sections are
// padded to twice their entry count, as the producing toolchain does. Build
// is meant to be called once per builder.
func (b *Builder) Build(name string) *image.Image {
	var sections []image.Section
	add := func(sect string, entries []uint64, halved bool) {
		if len(entries) == 0 {
			return
		}
		n := len(entries)
		if halved {
			n *= abi.SectionEntryDivisor
		}
		addr := b.alloc(n * abi.PtrSize)
		for i, v := range entries {
			b.putPtr(addr+uint64(i*abi.PtrSize), v)
		}
		seg := abi.SegmentData
		if s, ok := b.segments[sect]; ok {
			seg = s
		}
		sections = append(sections, image.Section{
			Segment: seg,
			Name:    sect,
			Addr:    addr,
			Size:    uint64(n * abi.PtrSize),
		})
	}
	add(abi.SectionSelRefs, b.selRefs, false)
	add(abi.SectionClassList, b.classList, true)
	add(abi.SectionClassRefs, b.classRefs, true)
	add(abi.SectionSuperRefs, b.superRefs, true)
	add(abi.SectionCatList, b.catList, true)

	data := make([]byte, len(b.data))
	copy(data, b.data)
	img := image.New(name, b.base, data, sections)
	for sym, addr := range b.symbols {
		img.SetSymbol(sym, addr)
	}
	return img
}

// Slot returns the address of entry i of section sect in img.
func Slot(img *image.Image, segment, sect string, i int) (uint64, error) {
	sec, ok := img.SectionContent(segment, sect)
	if !ok {
		return 0, fmt.Errorf("builder: no section %s,%s", segment, sect)
	}
	addr := sec.Addr + uint64(i*abi.PtrSize)
	if addr >= sec.Addr+sec.Size {
		return 0, fmt.Errorf("builder: %s entry %d out of range", sect, i)
	}
	return addr, nil
}
