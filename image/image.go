package image

import (
	"errors"
	"fmt"
	"sort"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/image/dirty"
	"github.com/joshuapare/objcload/internal/buf"
)

var (
	// ErrOutOfImage indicates an address outside every mapped range.
	ErrOutOfImage = errors.New("image: address out of image")
	// ErrUnterminated indicates a C string without a NUL inside its mapping.
	ErrUnterminated = errors.New("image: unterminated string")
	// ErrClosed indicates use of an image after Close.
	ErrClosed = errors.New("image: closed")
	// ErrSymbolNotFound indicates a symbol missing from the export table.
	ErrSymbolNotFound = errors.New("image: symbol not found")
)

// Memory is the read/write view of image memory used by every stage.
type Memory interface {
	ReadPtr(addr uint64) (uint64, error)
	WritePtr(addr, v uint64) error
	ReadU32(addr uint64) (uint32, error)
	CString(addr uint64) (string, error)
	Contains(addr uint64) bool
}

// Section is one named section: the address and byte length the loader
// reports for it.
type Section struct {
	Segment string
	Name    string
	Addr    uint64
	Size    uint64
}

// Mapping ties a virtual address range to a range of the image buffer.
type Mapping struct {
	Addr   uint64
	Offset uint64
	Size   uint64
}

// Image is a mapped image.
type Image struct {
	name     string
	data     []byte
	mappings []Mapping
	sections []Section
	symbols  map[string]uint64
	writes   *dirty.Tracker
	unmap    func() error
}

// New wraps a buffer laid out contiguously from base.
func New(name string, base uint64, data []byte, sections []Section) *Image {
	return NewMapped(name, data, []Mapping{{Addr: base, Offset: 0, Size: uint64(len(data))}}, sections)
}

// NewMapped wraps a buffer backing several address ranges, as a segmented
// image on disk does.
func NewMapped(name string, data []byte, mappings []Mapping, sections []Section) *Image {
	ms := append([]Mapping(nil), mappings...)
	sort.Slice(ms, func(i, j int) bool { return ms[i].Addr < ms[j].Addr })
	return &Image{
		name:     name,
		data:     data,
		mappings: ms,
		sections: append([]Section(nil), sections...),
		symbols:  make(map[string]uint64),
		writes:   dirty.NewTracker(),
	}
}

// Name returns the image name.
func (img *Image) Name() string { return img.name }

// Bytes returns the underlying buffer.
func (img *Image) Bytes() []byte { return img.data }

// Sections returns every section of the image.
func (img *Image) Sections() []Section { return img.sections }

// Writes returns the tracker recording patched words.
func (img *Image) Writes() *dirty.Tracker { return img.writes }

// SectionContent looks up a section by segment and section name.
func (img *Image) SectionContent(segment, section string) (Section, bool) {
	for _, s := range img.sections {
		if s.Segment == segment && s.Name == section {
			return s, true
		}
	}
	return Section{}, false
}

// SetSymbol records an exported symbol address.
func (img *Image) SetSymbol(name string, addr uint64) {
	img.symbols[name] = addr
}

// Symbol returns the address of an exported symbol. The platform's leading
// underscore is added to name.
func (img *Image) Symbol(name string) (uint64, error) {
	if addr, ok := img.symbols["_"+name]; ok {
		return addr, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
}

// Contains reports whether addr is backed by the image buffer.
func (img *Image) Contains(addr uint64) bool {
	_, ok := img.offset(addr, 1)
	return ok
}

// ReadPtr reads the pointer word at addr.
func (img *Image) ReadPtr(addr uint64) (uint64, error) {
	b, err := img.at(addr, abi.PtrSize)
	if err != nil {
		return 0, err
	}
	return buf.U64LE(b), nil
}

// ReadU32 reads the 32-bit word at addr.
func (img *Image) ReadU32(addr uint64) (uint32, error) {
	b, err := img.at(addr, 4)
	if err != nil {
		return 0, err
	}
	return buf.U32LE(b), nil
}

// WritePtr stores v in the pointer word at addr and records the write.
func (img *Image) WritePtr(addr, v uint64) error {
	off, ok := img.offset(addr, abi.PtrSize)
	if !ok {
		return img.rangeError(addr)
	}
	buf.PutU64LE(img.data[off:], v)
	img.writes.Add(off, abi.PtrSize)
	return nil
}

// CString reads a NUL-terminated string at addr, bounded by abi.MaxNameLen.
func (img *Image) CString(addr uint64) (string, error) {
	off, ok := img.offset(addr, 1)
	if !ok {
		return "", img.rangeError(addr)
	}
	end := img.mappingEnd(addr)
	limit := off + abi.MaxNameLen
	if limit > end {
		limit = end
	}
	for i := off; i < limit; i++ {
		if img.data[i] == 0 {
			return string(img.data[off:i]), nil
		}
	}
	return "", fmt.Errorf("%w at 0x%x", ErrUnterminated, addr)
}

// Close releases the mapping, if the image owns one. Safe to call twice.
func (img *Image) Close() error {
	if img.data == nil {
		return nil
	}
	var err error
	if img.unmap != nil {
		err = img.unmap()
		img.unmap = nil
	}
	img.data = nil
	img.mappings = nil
	return err
}

func (img *Image) at(addr uint64, n int) ([]byte, error) {
	off, ok := img.offset(addr, n)
	if !ok {
		return nil, img.rangeError(addr)
	}
	return img.data[off : off+n], nil
}

// offset translates [addr, addr+n) into a buffer offset.
func (img *Image) offset(addr uint64, n int) (int, bool) {
	for _, m := range img.mappings {
		if addr < m.Addr || addr-m.Addr >= m.Size {
			continue
		}
		rel := addr - m.Addr
		if rel+uint64(n) > m.Size {
			return 0, false
		}
		off := m.Offset + rel
		if _, ok := buf.Slice(img.data, int(off), n); !ok {
			return 0, false
		}
		return int(off), true
	}
	return 0, false
}

// mappingEnd returns the buffer offset where addr's mapping ends.
func (img *Image) mappingEnd(addr uint64) int {
	for _, m := range img.mappings {
		if addr >= m.Addr && addr-m.Addr < m.Size {
			end := int(m.Offset + m.Size)
			if end > len(img.data) {
				end = len(img.data)
			}
			return end
		}
	}
	return 0
}

func (img *Image) rangeError(addr uint64) error {
	if img.data == nil {
		return ErrClosed
	}
	return fmt.Errorf("%w: 0x%x (%s)", ErrOutOfImage, addr, img.name)
}
