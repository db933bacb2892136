package image

import (
	"fmt"
	"path/filepath"

	"github.com/blacktop/go-macho"

	"github.com/joshuapare/objcload/internal/mmfile"
)

// Open maps the Mach-O file at path copy-on-write and builds its address
// mappings from the segment load commands, its section table and its
// exported symbols.
func Open(path string) (*Image, error) {
	f, err := macho.Open(path)
	if err != nil {
		return nil, fmt.Errorf("image: parse %s: %w", path, err)
	}
	defer f.Close()

	var mappings []Mapping
	for _, seg := range f.Segments() {
		if seg.Filesz == 0 {
			continue
		}
		mappings = append(mappings, Mapping{
			Addr:   seg.Addr,
			Offset: seg.Offset,
			Size:   seg.Filesz,
		})
	}

	sections := make([]Section, 0, len(f.Sections))
	for _, s := range f.Sections {
		sections = append(sections, Section{
			Segment: s.Seg,
			Name:    s.Name,
			Addr:    s.Addr,
			Size:    s.Size,
		})
	}

	data, unmap, err := mmfile.Map(path)
	if err != nil {
		return nil, fmt.Errorf("image: map %s: %w", path, err)
	}

	img := NewMapped(filepath.Base(path), data, mappings, sections)
	img.unmap = unmap

	if f.Symtab != nil {
		for _, sym := range f.Symtab.Syms {
			if sym.Value == 0 || sym.Name == "" {
				continue
			}
			img.SetSymbol(sym.Name, sym.Value)
		}
	}

	return img, nil
}
