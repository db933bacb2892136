package metadata

import (
	"fmt"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/image"
	"github.com/joshuapare/objcload/internal/buf"
)

// Slot is one pointer word of a metadata section: where it lives and what it
// held when the section was read.
type Slot struct {
	Addr  uint64
	Value uint64
}

// SelectorRefs returns the non-null slots of a selector-ref section. Every
// pointer word is an entry; zero words are padding and skipped.
func SelectorRefs(mem image.Memory, sec image.Section) ([]Slot, error) {
	slots, err := readSlots(mem, sec, int(sec.Size/abi.PtrSize))
	if err != nil {
		return nil, err
	}
	out := slots[:0]
	for _, s := range slots {
		if s.Value != 0 {
			out = append(out, s)
		}
	}
	return out, nil
}

// ClassList returns the entries of a class-list section.
func ClassList(mem image.Memory, sec image.Section) ([]Slot, error) {
	return readSlots(mem, sec, EntryCount(sec))
}

// ClassRefs returns the entries of a class-ref section.
func ClassRefs(mem image.Memory, sec image.Section) ([]Slot, error) {
	return readSlots(mem, sec, EntryCount(sec))
}

// SuperRefs returns the entries of a superclass-ref section.
func SuperRefs(mem image.Memory, sec image.Section) ([]Slot, error) {
	return readSlots(mem, sec, EntryCount(sec))
}

// CategoryList returns the entries of a category-list section.
func CategoryList(mem image.Memory, sec image.Section) ([]Slot, error) {
	return readSlots(mem, sec, EntryCount(sec))
}

// EntryCount returns the number of meaningful entries in a class-list,
// class-ref, superclass-ref or category section:
// (length / pointer width) / abi.SectionEntryDivisor.
func EntryCount(sec image.Section) int {
	return int(sec.Size/abi.PtrSize) / abi.SectionEntryDivisor
}

func readSlots(mem image.Memory, sec image.Section, n int) ([]Slot, error) {
	if _, err := buf.CheckListBounds(int(sec.Size), 0, n, abi.PtrSize); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", sec.Name, ErrTruncated, err)
	}
	slots := make([]Slot, 0, n)
	for i := range n {
		addr := sec.Addr + uint64(i)*abi.PtrSize
		v, err := mem.ReadPtr(addr)
		if err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", sec.Name, i, err)
		}
		slots = append(slots, Slot{Addr: addr, Value: v})
	}
	return slots, nil
}

// Classes decodes every class record named by a class-list section.
func Classes(mem image.Memory, sec image.Section) ([]ClassRecord, error) {
	slots, err := ClassList(mem, sec)
	if err != nil {
		return nil, err
	}
	out := make([]ClassRecord, 0, len(slots))
	for _, s := range slots {
		if s.Value == 0 {
			continue
		}
		rec, err := ReadClass(mem, s.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
