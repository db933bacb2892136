package metadata

import (
	"fmt"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/image"
	"github.com/joshuapare/objcload/internal/buf"
)

// Method is one method64_t entry. NameRef is the raw SEL word: a pointer to
// the selector name inside the image before selectors are registered, a
// canonical selector afterwards.
type Method struct {
	Addr     uint64
	NameRef  uint64
	TypesRef uint64
	IMP      uint64
	Types    string
}

// MethodList is a decoded method_list_t.
type MethodList struct {
	Addr    uint64
	Entsize uint32
	Flags   uint32
	Methods []Method
}

// Len returns the number of methods in the list.
func (l MethodList) Len() int { return len(l.Methods) }

// ReadMethodList decodes the method list at addr. A zero addr is an empty
// list, as compilers emit for classes without methods.
func ReadMethodList(mem image.Memory, addr uint64) (MethodList, error) {
	if addr == 0 {
		return MethodList{}, nil
	}
	raw, err := mem.ReadU32(addr + abi.ListEntsizeOffset)
	if err != nil {
		return MethodList{}, fmt.Errorf("method list entsize: %w", err)
	}
	count, err := mem.ReadU32(addr + abi.ListCountOffset)
	if err != nil {
		return MethodList{}, fmt.Errorf("method list count: %w", err)
	}
	if count > abi.MaxMethodCount {
		return MethodList{}, fmt.Errorf("method list count %d exceeds limit %d: %w",
			count, abi.MaxMethodCount, ErrSanityLimit)
	}

	list := MethodList{
		Addr:    addr,
		Entsize: raw &^ abi.MethodListFlagMask,
		Flags:   raw & abi.MethodListFlagMask,
	}
	if count == 0 {
		return list, nil
	}
	if list.Entsize < abi.MethodSize {
		// Relative method lists (entsize 12) are not produced for this ABI.
		return MethodList{}, fmt.Errorf("method list entsize %d: %w", list.Entsize, ErrUnsupported)
	}

	size, ok := buf.MulOverflowSafe(int(count), int(list.Entsize))
	if !ok {
		return MethodList{}, fmt.Errorf("method list 0x%x: %w", addr, ErrSanityLimit)
	}
	end, ok := buf.AddrOverflowSafe(addr+abi.ListHeaderSize, uint64(size))
	if !ok || !mem.Contains(end-1) {
		return MethodList{}, fmt.Errorf("method list 0x%x: %d entries: %w", addr, count, ErrTruncated)
	}

	list.Methods = make([]Method, 0, count)
	for i := range count {
		at := addr + abi.ListHeaderSize + uint64(i)*uint64(list.Entsize)
		m, err := readMethod(mem, at)
		if err != nil {
			return MethodList{}, fmt.Errorf("method list 0x%x entry %d: %w", addr, i, err)
		}
		list.Methods = append(list.Methods, m)
	}
	return list, nil
}

func readMethod(mem image.Memory, addr uint64) (Method, error) {
	words, err := readWords(mem, addr, abi.MethodSize/abi.PtrSize)
	if err != nil {
		return Method{}, err
	}
	m := Method{
		Addr:     addr,
		NameRef:  words[abi.MethodNameOffset/abi.PtrSize],
		TypesRef: words[abi.MethodTypesOffset/abi.PtrSize],
		IMP:      words[abi.MethodIMPOffset/abi.PtrSize],
	}
	if m.NameRef == 0 {
		return Method{}, fmt.Errorf("method name: %w", ErrNullPointer)
	}
	if m.TypesRef != 0 && mem.Contains(m.TypesRef) {
		if m.Types, err = mem.CString(m.TypesRef); err != nil {
			return Method{}, fmt.Errorf("method types: %w", err)
		}
	}
	return m, nil
}
