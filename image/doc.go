// Package image provides the mapped-memory view of an image handed over by a
// custom loader.
//
// # Overview
//
// An Image is a byte buffer plus the virtual address ranges it backs and the
// named sections inside them. Every registration stage reads records and
// patches reference slots through the Memory interface, addressing memory by
// the image's own virtual addresses, never by buffer offsets.
//
// # Ownership
//
// The buffer belongs to the image loader. When a class record is registered,
// the record's storage becomes the live class's storage for the rest of the
// process: the transfer is one-way, and disposing the class later releases
// runtime bookkeeping only. The record is not restored.
//
// # Opening
//
// Images already laid out by a loader are wrapped with New. Open maps a
// Mach-O file copy-on-write and reads its segments, sections and exported
// symbols:
//
//	img, err := image.Open("/abs/path/libFoo.dylib")
//	if err != nil {
//	    return err
//	}
//	defer img.Close()
//
//	sec, ok := img.SectionContent("__DATA", "__objc_classlist")
//
// Open does not apply rebases or binds; the file must already be linked at
// its preferred address for pointer words to be meaningful.
//
// # Thread Safety
//
// Image is not thread-safe. The caller guarantees nothing else touches the
// image's memory while it is being registered.
package image
