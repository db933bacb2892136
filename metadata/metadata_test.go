package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/image"
	"github.com/joshuapare/objcload/image/builder"
)

func TestReadClass(t *testing.T) {
	b := builder.New(0)
	root := b.AddClass(builder.Class{Name: "Root"})
	sub := b.AddClass(builder.Class{
		Name:         "Sub",
		Super:        root.Class,
		InstanceSize: 32,
		Swift:        true,
		Methods: []builder.Method{
			{Name: "run", Types: "v16@0:8", IMP: 0xaa},
			{Name: "stop", IMP: 0xbb},
		},
	})
	img := b.Build("t")

	rec, err := ReadClass(img, sub.Class)
	require.NoError(t, err)
	assert.Equal(t, "Sub", rec.Name())
	assert.Equal(t, sub.Meta, rec.ISA)
	assert.Equal(t, root.Class, rec.Superclass)
	assert.False(t, rec.IsRoot())
	assert.False(t, rec.IsMeta())
	assert.True(t, rec.IsSwift())
	assert.Equal(t, uint32(32), rec.RO.InstanceSize)
	assert.NotZero(t, rec.RO.BaseMethods)

	meta, err := ReadClass(img, rec.ISA)
	require.NoError(t, err)
	assert.True(t, meta.IsMeta())
	assert.Equal(t, "Sub", meta.Name())

	rootRec, err := ReadClass(img, root.Class)
	require.NoError(t, err)
	assert.True(t, rootRec.IsRoot())
	assert.NotZero(t, rootRec.RO.Flags&abi.RORoot)

	name, err := ClassName(img, root.Class)
	require.NoError(t, err)
	assert.Equal(t, "Root", name)
}

func TestReadClass_Errors(t *testing.T) {
	b := builder.New(0)
	p := b.AddClass(builder.Class{Name: "A"})
	img := b.Build("t")

	_, err := ReadClass(img, 0)
	require.ErrorIs(t, err, ErrNullPointer)

	_, err = ReadClass(img, 0xdead_0000)
	require.ErrorIs(t, err, ErrTruncated)
	require.ErrorIs(t, err, image.ErrOutOfImage)

	// Clear the name pointer of the read-only data.
	data, err := img.ReadPtr(p.Class + abi.ClassDataOffset)
	require.NoError(t, err)
	require.NoError(t, img.WritePtr((data&abi.FastDataMask)+abi.RONameOffset, 0))
	_, err = ReadClass(img, p.Class)
	require.ErrorIs(t, err, ErrNullPointer)
}

func TestReadMethodList(t *testing.T) {
	b := builder.New(0)
	list := b.Methods([]builder.Method{
		{Name: "a", Types: "v16@0:8", IMP: 1},
		{Name: "b", IMP: 2},
	})
	img := b.Build("t")

	// Mark the list as fixed up; the flag bits must not leak into entsize.
	raw, err := img.ReadU32(list)
	require.NoError(t, err)
	patchU32(t, img, list, raw|abi.MethodListFlagMask)

	ml, err := ReadMethodList(img, list)
	require.NoError(t, err)
	assert.Equal(t, uint32(abi.MethodSize), ml.Entsize)
	assert.Equal(t, abi.MethodListFlagMask, ml.Flags)
	require.Equal(t, 2, ml.Len())
	assert.Equal(t, "v16@0:8", ml.Methods[0].Types)
	assert.Equal(t, uint64(2), ml.Methods[1].IMP)
	assert.Empty(t, ml.Methods[1].Types)

	name, err := img.CString(ml.Methods[0].NameRef)
	require.NoError(t, err)
	assert.Equal(t, "a", name)
}

func TestReadMethodList_Empty(t *testing.T) {
	ml, err := ReadMethodList(builder.New(0).Build("t"), 0)
	require.NoError(t, err)
	assert.Zero(t, ml.Len())
}

func TestReadMethodList_Limits(t *testing.T) {
	b := builder.New(0)
	list := b.Methods([]builder.Method{{Name: "a"}})
	img := b.Build("t")

	patchU32(t, img, list+abi.ListCountOffset, abi.MaxMethodCount+1)
	_, err := ReadMethodList(img, list)
	require.ErrorIs(t, err, ErrSanityLimit)

	patchU32(t, img, list+abi.ListCountOffset, 1000)
	_, err = ReadMethodList(img, list)
	require.ErrorIs(t, err, ErrTruncated)

	patchU32(t, img, list+abi.ListCountOffset, 1)
	patchU32(t, img, list+abi.ListEntsizeOffset, 12)
	_, err = ReadMethodList(img, list)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestReadCategory(t *testing.T) {
	b := builder.New(0)
	p := b.AddClass(builder.Class{Name: "A"})
	cat := b.AddCategory(builder.Category{
		Name:            "Extras",
		Class:           p.Class,
		InstanceMethods: []builder.Method{{Name: "x"}},
	})
	img := b.Build("t")

	c, err := ReadCategory(img, cat)
	require.NoError(t, err)
	assert.Equal(t, "Extras", c.Name)
	assert.Equal(t, p.Class, c.Class)
	assert.NotZero(t, c.InstanceMethods)
	assert.Zero(t, c.ClassMethods)

	_, err = ReadCategory(img, 0)
	require.ErrorIs(t, err, ErrNullPointer)
}

func TestSections_EntryCounts(t *testing.T) {
	img, l := builder.Sample(0)

	sel, ok := img.SectionContent(abi.SegmentData, abi.SectionSelRefs)
	require.True(t, ok)
	sels, err := SelectorRefs(img, sel)
	require.NoError(t, err)
	assert.Len(t, sels, 3)

	list, ok := img.SectionContent(abi.SegmentData, abi.SectionClassList)
	require.True(t, ok)
	assert.Equal(t, 3, EntryCount(list))
	slots, err := ClassList(img, list)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, l.Gadget.Class, slots[0].Value)
	assert.Equal(t, list.Addr, slots[0].Addr)

	refs, ok := img.SectionContent(abi.SegmentData, abi.SectionClassRefs)
	require.True(t, ok)
	crefs, err := ClassRefs(img, refs)
	require.NoError(t, err)
	assert.Len(t, crefs, 2)

	sup, ok := img.SectionContent(abi.SegmentData, abi.SectionSuperRefs)
	require.True(t, ok)
	srefs, err := SuperRefs(img, sup)
	require.NoError(t, err)
	assert.Equal(t, l.Widget.Meta, srefs[1].Value)

	cats, ok := img.SectionContent(abi.SegmentDataConst, abi.SectionCatList)
	require.True(t, ok)
	cl, err := CategoryList(img, cats)
	require.NoError(t, err)
	require.Len(t, cl, 1)
	assert.Equal(t, l.Extras, cl[0].Value)

	recs, err := Classes(img, list)
	require.NoError(t, err)
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"Gadget", "Widget", "Base"}, names)
}

func TestSelectorRefs_SkipsZero(t *testing.T) {
	b := builder.New(0)
	b.RefSelector("a")
	b.RefSelector("b")
	img := b.Build("t")

	sec, ok := img.SectionContent(abi.SegmentData, abi.SectionSelRefs)
	require.True(t, ok)
	require.NoError(t, img.WritePtr(sec.Addr, 0))

	slots, err := SelectorRefs(img, sec)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, sec.Addr+abi.PtrSize, slots[0].Addr)
}

func TestSections_OutOfImage(t *testing.T) {
	img := builder.New(0).Build("t")
	_, err := ClassList(img, image.Section{Name: abi.SectionClassList, Addr: 0x10, Size: 32})
	require.ErrorIs(t, err, image.ErrOutOfImage)
}

func patchU32(t *testing.T, img *image.Image, addr uint64, v uint32) {
	t.Helper()
	word := addr &^ (abi.PtrSize - 1)
	cur, err := img.ReadPtr(word)
	require.NoError(t, err)
	shift := (addr - word) * 8
	cur = cur&^(uint64(0xffffffff)<<shift) | uint64(v)<<shift
	require.NoError(t, img.WritePtr(word, cur))
}
