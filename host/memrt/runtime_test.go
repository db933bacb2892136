package memrt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/host"
	"github.com/joshuapare/objcload/image/builder"
)

func TestDefineClass(t *testing.T) {
	rt := New()
	root, err := rt.DefineClass("NSObject", host.Nil)
	require.NoError(t, err)
	sub, err := rt.DefineClass("NSString", root)
	require.NoError(t, err)

	assert.Equal(t, root, rt.LookupClass("NSObject"))
	assert.Equal(t, root, rt.Superclass(sub))
	assert.True(t, rt.IsRegistered(sub))
	assert.False(t, rt.IsMetaClass(sub))

	meta := rt.LookupMetaClass("NSString")
	require.NotEqual(t, host.Nil, meta)
	assert.True(t, rt.IsMetaClass(meta))
	name, ok := rt.ClassName(meta)
	require.True(t, ok)
	assert.Equal(t, "NSString", name)
	assert.Equal(t, rt.LookupMetaClass("NSObject"), rt.Superclass(meta))
	assert.Equal(t, root, rt.Superclass(rt.LookupMetaClass("NSObject")), "root metaclass derives from the root class")

	_, err = rt.DefineClass("NSObject", host.Nil)
	require.ErrorIs(t, err, ErrNameInUse)
	_, err = rt.DefineClass("X", host.Class(0x1234))
	require.ErrorIs(t, err, host.ErrUnknownClass)

	assert.Equal(t, []string{"NSObject", "NSString"}, rt.Classes())
	require.ErrorIs(t, rt.DisposeClassPair(root), host.ErrNotDisposable)
}

func TestClassPairLifecycle(t *testing.T) {
	b := builder.New(0)
	p := b.AddClass(builder.Class{
		Name:         "Thing",
		Methods:      []builder.Method{{Name: "run", Types: "v16@0:8", IMP: 0x10}},
		ClassMethods: []builder.Method{{Name: "make", IMP: 0x20}},
	})
	img := b.Build("t")
	rt := New()

	cls, err := rt.ReadClassPair(img, p.Class, host.Nil)
	require.NoError(t, err)
	assert.Equal(t, host.Class(p.Class), cls, "handle is the record address")
	assert.False(t, rt.IsRegistered(cls), "not live before registration")

	require.ErrorIs(t, rt.RegisterClassPair(cls), host.ErrNotConstructing)

	in, err := rt.Internals()
	require.NoError(t, err)
	layout := in.Layout()
	require.NoError(t, in.MarkConstructing(cls))
	require.ErrorIs(t, rt.RegisterClassPair(cls), host.ErrNotConstructing, "metaclass still unmarked")
	require.NoError(t, in.MarkConstructing(host.Class(p.Meta)))
	require.NoError(t, rt.RegisterClassPair(cls))

	assert.Equal(t, cls, rt.LookupClass("Thing"))
	assert.Equal(t, host.Class(p.Meta), rt.LookupMetaClass("Thing"))
	assert.NotZero(t, rt.Flags(cls)&layout.RWConstructed)
	assert.Zero(t, rt.Flags(cls)&layout.RWConstructing)

	imp, types, ok := rt.Method(cls, rt.RegisterSelector("run"))
	require.True(t, ok)
	assert.Equal(t, uint64(0x10), imp)
	assert.Equal(t, "v16@0:8", types)
	_, _, ok = rt.Method(host.Class(p.Meta), rt.RegisterSelector("make"))
	assert.True(t, ok)

	_, err = rt.ReadClassPair(img, p.Class, host.Nil)
	require.ErrorIs(t, err, ErrAlreadyRead)

	require.NoError(t, rt.DisposeClassPair(cls))
	assert.Equal(t, host.Nil, rt.LookupClass("Thing"))
	assert.False(t, rt.IsRegistered(cls))
	require.ErrorIs(t, rt.DisposeClassPair(cls), host.ErrUnknownClass)
}

func TestDisposeClassPair_ReadButNotRegistered(t *testing.T) {
	b := builder.New(0)
	p := b.AddClass(builder.Class{Name: "Half"})
	img := b.Build("t")
	rt := New()

	cls, err := rt.ReadClassPair(img, p.Class, host.Nil)
	require.NoError(t, err)
	require.NoError(t, rt.DisposeClassPair(cls), "unmarked pair that never went live")

	_, err = rt.ReadClassPair(img, p.Class, host.Nil)
	require.NoError(t, err, "record can be read again")
}

func TestReadClassPair_UnknownSuper(t *testing.T) {
	b := builder.New(0)
	p := b.AddClass(builder.Class{Name: "A", Super: 0xabc0})
	img := b.Build("t")

	_, err := New().ReadClassPair(img, p.Class, host.Class(0xabc0))
	require.ErrorIs(t, err, host.ErrUnknownClass)
}

func TestRegisterClassPair_NameInUse(t *testing.T) {
	b := builder.New(0)
	p := b.AddClass(builder.Class{Name: "Dup"})
	img := b.Build("t")
	rt := New()
	_, err := rt.DefineClass("Dup", host.Nil)
	require.NoError(t, err)

	cls, err := rt.ReadClassPair(img, p.Class, host.Nil)
	require.NoError(t, err)
	in, err := rt.Internals()
	require.NoError(t, err)
	require.NoError(t, in.MarkConstructing(cls))
	require.NoError(t, in.MarkConstructing(host.Class(p.Meta)))
	require.ErrorIs(t, rt.RegisterClassPair(cls), ErrNameInUse)
}

func TestAddMethod(t *testing.T) {
	rt := New()
	cls, err := rt.DefineClass("A", host.Nil)
	require.NoError(t, err)
	sel := rt.RegisterSelector("go")

	assert.True(t, rt.AddMethod(cls, sel, 1, "v"))
	assert.False(t, rt.AddMethod(cls, sel, 2, "v"), "existing method is kept")
	imp, _, ok := rt.Method(cls, sel)
	require.True(t, ok)
	assert.Equal(t, uint64(1), imp)

	assert.False(t, rt.AddMethod(host.Class(0x99), sel, 1, ""))
	assert.False(t, rt.AddMethod(cls, host.Selector(0x1000), 1, ""), "unknown selector")
}

func TestSelectors(t *testing.T) {
	rt := New()
	a := rt.RegisterSelector("a")
	assert.Equal(t, a, rt.RegisterSelector("a"))
	assert.Equal(t, SelectorArena, uint64(a))

	name, ok := rt.SelectorName(a)
	require.True(t, ok)
	assert.Equal(t, "a", name)

	_, ok = rt.SelectorName(host.Selector(SelectorArena + 8))
	assert.False(t, ok)
	_, ok = rt.SelectorName(host.Selector(SelectorArena + 3))
	assert.False(t, ok)
	_, ok = rt.SelectorName(host.Selector(0x10))
	assert.False(t, ok)
}

func TestSelectors_Concurrent(t *testing.T) {
	rt := New()
	names := []string{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, n := range names {
				rt.RegisterSelector(n)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, len(names), rt.Selectors())
}

func TestInternals(t *testing.T) {
	_, err := New(WithoutInternals()).Internals()
	require.ErrorIs(t, err, host.ErrNoInternals)

	l, err := abi.LookupRuntimeLayout("objc4-818")
	require.NoError(t, err)
	in, err := New(WithLayout(l)).Internals()
	require.NoError(t, err)
	assert.Equal(t, "objc4-818", in.Layout().Version)
	require.ErrorIs(t, in.MarkConstructing(host.Class(1)), host.ErrUnknownClass)
}
