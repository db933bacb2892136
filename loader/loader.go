// Package loader is the entry point of objcload: it finds the Objective-C
// metadata sections of an image and runs the registration stages over them
// in order.
package loader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/host"
	"github.com/joshuapare/objcload/image"
	"github.com/joshuapare/objcload/metadata"
	"github.com/joshuapare/objcload/register"
)

// CollisionExitCode is the process exit status used by ExitOnCollision.
const CollisionExitCode = 1

// Options configures a load.
type Options struct {
	// Segments is the lookup order for metadata sections. Nil means
	// abi.DefaultSegments.
	Segments []string

	// Logger receives progress records. Nil discards them.
	Logger *slog.Logger

	// MaxPasses bounds the class resolver. Zero means until no progress.
	MaxPasses int

	// Collision selects the name collision policy.
	Collision register.CollisionPolicy

	// ExitOnCollision terminates the process with CollisionExitCode when a
	// class name collides, instead of returning the error.
	ExitOnCollision bool
}

// exit is replaced in tests.
var exit = os.Exit

// Sections is the image's metadata: each section found, by section name.
type Sections map[string]image.Section

// FindSections looks up the five metadata sections, trying segments in
// order for each. Missing sections are absent from the result.
func FindSections(img *image.Image, segments []string) Sections {
	if len(segments) == 0 {
		segments = abi.DefaultSegments
	}
	found := make(Sections, 5)
	for _, name := range []string{
		abi.SectionSelRefs,
		abi.SectionClassList,
		abi.SectionClassRefs,
		abi.SectionSuperRefs,
		abi.SectionCatList,
	} {
		for _, seg := range segments {
			if sec, ok := img.SectionContent(seg, name); ok {
				found[name] = sec
				break
			}
		}
	}
	return found
}

// Register runs every registration stage over img with rt:
//
//	selectors -> class list -> class refs -> superclass refs -> categories
//
// A stage whose section is missing is skipped. On error the session is
// still returned so the caller can Close it and dispose whatever became
// live.
func Register(img *image.Image, rt host.Runtime, opts Options) (*register.Session, *register.Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := register.NewSession(img, rt, register.Options{
		Logger:    logger.With("image", img.Name()),
		MaxPasses: opts.MaxPasses,
		Collision: opts.Collision,
	})
	s.SetImageName(img.Name())
	log := logger.With("image", img.Name(), "session", s.ID().String())

	secs := FindSections(img, opts.Segments)
	stage := func(name string, read func(image.Memory, image.Section) ([]metadata.Slot, error), run func([]metadata.Slot) error) error {
		sec, ok := secs[name]
		if !ok {
			log.Debug("section missing, stage skipped", "section", name)
			return nil
		}
		slots, err := read(img, sec)
		if err != nil {
			return fmt.Errorf("%s,%s: %w", sec.Segment, name, err)
		}
		log.Debug("stage", "section", name, "segment", sec.Segment, "entries", len(slots))
		return run(slots)
	}

	err := stage(abi.SectionSelRefs, metadata.SelectorRefs, func(slots []metadata.Slot) error {
		_, err := s.RegisterSelectors(slots)
		return err
	})
	if err == nil {
		err = stage(abi.SectionClassList, metadata.ClassList, func(slots []metadata.Slot) error {
			_, err := s.RegisterClasses(slots)
			return err
		})
	}
	if err == nil {
		err = stage(abi.SectionClassRefs, metadata.ClassRefs, func(slots []metadata.Slot) error {
			_, err := s.FixClassRefs(slots)
			return err
		})
	}
	if err == nil {
		err = stage(abi.SectionSuperRefs, metadata.SuperRefs, func(slots []metadata.Slot) error {
			_, err := s.FixSuperRefs(slots)
			return err
		})
	}
	if err == nil {
		err = stage(abi.SectionCatList, metadata.CategoryList, func(slots []metadata.Slot) error {
			_, err := s.MergeCategories(slots)
			return err
		})
	}

	report := s.Report()
	if err != nil {
		var ce *register.CollisionError
		if opts.ExitOnCollision && errors.As(err, &ce) {
			log.Error("class name collision, exiting", "class", ce.Name, "record", fmt.Sprintf("0x%x", ce.Record))
			exit(CollisionExitCode)
		}
		log.Error("registration failed", "error", err)
		return s, report, err
	}
	log.Info("image registered", "classes", report.Live(), "categories", len(report.Categories), "writes", report.Writes)
	return s, report, nil
}
