package builder

import (
	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/image"
)

// SampleLayout names the records of the sample image.
type SampleLayout struct {
	Base, Widget, Gadget Pair
	Extras               uint64 // category on Base
}

// Sample builds a small self-consistent image: a root class Base, Widget
// deriving from it, Gadget deriving from Widget, listed subclass first, a
// category on Base, and references of every kind. It loads against an empty
// runtime.
func Sample(base uint64) (*image.Image, SampleLayout) {
	b := New(base)
	var l SampleLayout

	l.Base = b.AddClass(Class{
		Name:         "Base",
		Methods:      []Method{{Name: "init", Types: "@16@0:8", IMP: 0x1000}},
		ClassMethods: []Method{{Name: "alloc", Types: "@16@0:8", IMP: 0x1010}},
	})
	l.Widget = b.AddClass(Class{
		Name:         "Widget",
		Super:        l.Base.Class,
		Methods:      []Method{{Name: "describe", Types: "@16@0:8", IMP: 0x1020}},
		InstanceSize: 16,
	})
	l.Gadget = b.AddClass(Class{
		Name:         "Gadget",
		Super:        l.Widget.Class,
		Methods:      []Method{{Name: "describe", Types: "@16@0:8", IMP: 0x1030}},
		ClassMethods: []Method{{Name: "gadget", Types: "@16@0:8", IMP: 0x1040}},
		InstanceSize: 24,
	})
	l.Extras = b.AddCategory(Category{
		Name:            "Extras",
		Class:           l.Base.Class,
		InstanceMethods: []Method{{Name: "extra", Types: "v16@0:8", IMP: 0x1050}},
		ClassMethods:    []Method{{Name: "shared", Types: "@16@0:8", IMP: 0x1060}},
	})

	b.ListClass(l.Gadget.Class)
	b.ListClass(l.Widget.Class)
	b.ListClass(l.Base.Class)

	b.RefClass(l.Base.Class)
	b.RefClass(l.Gadget.Class)
	b.RefSuper(l.Widget.Class)
	b.RefSuper(l.Widget.Meta)

	for _, sel := range []string{"init", "alloc", "describe"} {
		b.RefSelector(sel)
	}
	b.ListCategory(l.Extras)

	// Category lists move to __DATA_CONST on newer linkers.
	b.InSegment(abi.SectionCatList, abi.SegmentDataConst)
	b.Export("GadgetVersion", l.Gadget.Class)

	return b.Build("sample"), l
}
