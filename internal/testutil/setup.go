// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/image"
	"github.com/joshuapare/objcload/metadata"
)

// Slots reads the entries of sect from whichever default data segment
// carries it, with the stride rule of that section. It returns nil when the
// image has no such section.
//
// Example:
//
//	img, _ := builder.Sample(0)
//	slots := testutil.Slots(t, img, abi.SectionClassList)
func Slots(t *testing.T, img *image.Image, sect string) []metadata.Slot {
	t.Helper()
	for _, seg := range abi.DefaultSegments {
		sec, ok := img.SectionContent(seg, sect)
		if !ok {
			continue
		}
		read := metadata.ClassList
		if sect == abi.SectionSelRefs {
			read = metadata.SelectorRefs
		}
		slots, err := read(img, sec)
		if err != nil {
			t.Fatalf("read %s,%s: %v", seg, sect, err)
		}
		return slots
	}
	return nil
}

// WriteTemp writes content to a fresh file named name in a per-test
// directory and returns its path.
func WriteTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
