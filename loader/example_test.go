package loader_test

import (
	"fmt"

	"github.com/joshuapare/objcload/host/memrt"
	"github.com/joshuapare/objcload/image/builder"
	"github.com/joshuapare/objcload/loader"
)

// Example registers a synthetic image and disposes its classes again.
func Example() {
	img, _ := builder.Sample(0)
	rt := memrt.New()

	h, err := loader.Load(img, rt, loader.Options{})
	if err != nil {
		fmt.Printf("Load failed: %v\n", err)
		return
	}
	fmt.Println(rt.Classes())
	fmt.Println(h.Report().Live(), "classes live")

	if err := h.Close(); err != nil {
		fmt.Printf("Close failed: %v\n", err)
	}
	fmt.Println(rt.Classes())
	// Output:
	// [Base Gadget Widget]
	// 3 classes live
	// []
}

// ExampleOpen loads an image from disk. Paths must be absolute.
func ExampleOpen() {
	rt := memrt.New()
	if _, err := rt.DefineClass("NSObject", 0); err != nil {
		fmt.Printf("Seed failed: %v\n", err)
		return
	}

	h, err := loader.Open("/usr/local/lib/libWidgets.dylib", rt, loader.Options{})
	if err != nil {
		fmt.Printf("Open failed: %v\n", err)
		return
	}
	defer h.Close()

	addr, err := h.Symbol("WidgetsVersion")
	if err != nil {
		fmt.Printf("Symbol failed: %v\n", err)
		return
	}
	fmt.Printf("WidgetsVersion at 0x%x\n", addr)
}
