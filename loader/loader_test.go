package loader

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/host"
	"github.com/joshuapare/objcload/host/memrt"
	"github.com/joshuapare/objcload/image"
	"github.com/joshuapare/objcload/image/builder"
	"github.com/joshuapare/objcload/internal/testutil"
	"github.com/joshuapare/objcload/register"
)

func collidingImage() *image.Image {
	b := builder.New(0)
	first := b.AddClass(builder.Class{Name: "Twin"})
	second := b.AddClass(builder.Class{Name: "Twin"})
	b.ListClass(first.Class)
	b.ListClass(second.Class)
	return b.Build("twins")
}

func TestRegister_Sample(t *testing.T) {
	img, l := builder.Sample(0)
	rt := memrt.New()

	s, report, err := Register(img, rt, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.Equal(t, "sample", report.Image)
	assert.Equal(t, 3, report.Live())
	assert.Equal(t, 3, report.Selectors.Slots)
	assert.Equal(t, 2, report.ClassRefs.Slots)
	assert.Equal(t, 2, report.SuperRefs.Slots)
	require.Len(t, report.Categories, 1, "category list found through __DATA_CONST")
	assert.Equal(t, 2, report.Categories[0].Added)

	_, _, ok := rt.Method(host.Class(l.Base.Class), rt.RegisterSelector("extra"))
	assert.True(t, ok)
	_, _, ok = rt.Method(host.Class(l.Base.Meta), rt.RegisterSelector("shared"))
	assert.True(t, ok)
}

func TestRegister_SegmentOrder(t *testing.T) {
	img, _ := builder.Sample(0)
	s, report, err := Register(img, memrt.New(), Options{Segments: []string{abi.SegmentData}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.Empty(t, report.Categories, "category stage skipped without __DATA_CONST")

	secs := FindSections(img, nil)
	assert.Len(t, secs, 5)
	assert.Equal(t, abi.SegmentDataConst, secs[abi.SectionCatList].Segment)
}

func TestRegister_NoSections(t *testing.T) {
	img := builder.New(0).Build("empty")
	s, report, err := Register(img, memrt.New(), Options{})
	require.NoError(t, err)
	assert.Zero(t, report.Live())
	require.NoError(t, s.Close())
}

func TestRegister_CollisionReturned(t *testing.T) {
	rt := memrt.New()
	s, _, err := Register(collidingImage(), rt, Options{})
	var ce *register.CollisionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Twin", ce.Name)

	require.NotNil(t, s)
	require.NoError(t, s.Close())
	assert.Equal(t, host.Nil, rt.LookupClass("Twin"))
}

func TestRegister_ExitOnCollisionHook(t *testing.T) {
	var code int
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = os.Exit })

	_, _, err := Register(collidingImage(), memrt.New(), Options{ExitOnCollision: true})
	require.Error(t, err)
	assert.Equal(t, CollisionExitCode, code)
}

const childEnv = "OBJCLOAD_COLLISION_CHILD"

// The collision policy terminates the process, so it runs in a child.
func TestRegister_ExitOnCollision(t *testing.T) {
	if os.Getenv(childEnv) == "1" {
		_, _, _ = Register(collidingImage(), memrt.New(), Options{ExitOnCollision: true})
		os.Exit(0)
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestRegister_ExitOnCollision$")
	cmd.Env = append(os.Environ(), childEnv+"=1")
	err := cmd.Run()

	var ee *exec.ExitError
	require.ErrorAs(t, err, &ee, "child must exit with a failure status")
	assert.Equal(t, CollisionExitCode, ee.ExitCode())
}

func TestLoad_HandleLifecycle(t *testing.T) {
	img, l := builder.Sample(0)
	rt := memrt.New()

	h, err := Load(img, rt, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, h.Report().Live())
	assert.Len(t, h.Session().Registrations(), 3)

	addr, err := h.Symbol("GadgetVersion")
	require.NoError(t, err)
	assert.Equal(t, l.Gadget.Class, addr)
	_, err = h.Symbol("nope")
	require.ErrorIs(t, err, image.ErrSymbolNotFound)

	require.NoError(t, h.Close())
	for _, name := range []string{"Base", "Widget", "Gadget"} {
		assert.Equal(t, host.Nil, rt.LookupClass(name), name)
	}
	_, err = h.Symbol("GadgetVersion")
	require.ErrorIs(t, err, image.ErrClosed)
	require.NoError(t, h.Close())
}

func TestLoad_FailureDisposes(t *testing.T) {
	b := builder.New(0)
	root := b.AddClass(builder.Class{Name: "Root"})
	b.ListClass(root.Class)
	b.RefClass(0xdead_beef)
	rt := memrt.New()

	_, err := Load(b.Build("bad"), rt, Options{})
	require.ErrorIs(t, err, register.ErrClassNotFound)
	assert.Equal(t, host.Nil, rt.LookupClass("Root"))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("relative/image.dylib", memrt.New(), Options{})
	require.ErrorIs(t, err, ErrRelativePath)

	path := testutil.WriteTemp(t, "not-macho", "plain text")
	_, err = Open(path, memrt.New(), Options{})
	require.Error(t, err)
}
