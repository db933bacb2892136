package metadata

import (
	"fmt"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/image"
)

// Category is a decoded category_t.
type Category struct {
	Addr               uint64
	NameAddr           uint64
	Name               string
	Class              uint64 // target class: an image record or a live class
	InstanceMethods    uint64
	ClassMethods       uint64
	Protocols          uint64
	InstanceProperties uint64
}

// ReadCategory decodes the category record at addr.
func ReadCategory(mem image.Memory, addr uint64) (Category, error) {
	if addr == 0 {
		return Category{}, fmt.Errorf("category: %w", ErrNullPointer)
	}
	words, err := readWords(mem, addr, abi.CategorySize/abi.PtrSize)
	if err != nil {
		return Category{}, fmt.Errorf("category 0x%x: %w", addr, err)
	}
	cat := Category{
		Addr:               addr,
		NameAddr:           words[abi.CategoryNameOffset/abi.PtrSize],
		Class:              words[abi.CategoryClassOffset/abi.PtrSize],
		InstanceMethods:    words[abi.CategoryInstanceMethodsOffset/abi.PtrSize],
		ClassMethods:       words[abi.CategoryClassMethodsOffset/abi.PtrSize],
		Protocols:          words[abi.CategoryProtocolsOffset/abi.PtrSize],
		InstanceProperties: words[abi.CategoryInstancePropertiesOffset/abi.PtrSize],
	}
	if cat.NameAddr != 0 {
		if cat.Name, err = mem.CString(cat.NameAddr); err != nil {
			return Category{}, fmt.Errorf("category 0x%x name: %w", addr, err)
		}
	}
	return cat, nil
}
